// Package memory contains MemoryStore implementations. Depend on
// core.MemoryStore and pick a backend at wiring time.
package memory
