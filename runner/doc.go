// Package runner executes a root agent against a session.
//
// A run appends the user message, starts the agent in its own goroutine and
// processes emitted events one at a time: non-partial events are persisted
// together with their state delta before the agent is allowed to continue,
// so tools always observe the state written by earlier events of the same
// run. Runs can be cancelled by id.
package runner
