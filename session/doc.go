// Package session holds SessionStore implementations. The interface and the
// Session type live in core so agents never depend on a concrete backend.
package session
