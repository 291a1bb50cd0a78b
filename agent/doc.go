// Package agent contains the agent implementations of the runtime:
//
//  1. BaseAgent: lifecycle and hierarchy plumbing (single parent per agent)
//  2. ModelAgent: the model-centric tool-calling agent driven by package flow
//  3. ParallelAgent: runs children concurrently on isolated branches
//
// Concrete agents embed BaseAgent and implement Run.
package agent
