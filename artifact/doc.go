// Package artifact contains core.ArtifactStore implementations: a process
// local InMemoryStore and a FileStore that writes artifacts below a root
// directory.
package artifact
