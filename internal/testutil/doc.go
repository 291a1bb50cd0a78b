// Package testutil holds helpers shared by the assistant tests: tool
// contexts backed by in-memory stores and a one-call agent runner driven by
// the scripted model.
package testutil
