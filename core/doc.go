// Package core provides the foundational types shared by the assistant runtime:
//
//   - Content and Parts (role based message segments, tool calls and results)
//   - Events (immutable records emitted while an agent runs)
//   - Sessions (conversation containers keyed by app, user and session id)
//   - RunContext / ToolContext (scoped execution state handed to agents and tools)
//   - Store interfaces for sessions, artifacts and memory
//
// Concrete agents, stores and model providers live in sibling packages so that
// core stays free of third-party SDK imports.
package core
