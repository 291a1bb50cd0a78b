// Package model defines the provider agnostic request/response shapes the
// flow uses to drive a language model, plus a deterministic ScriptedModel.
//
// Providers live in sub-packages (model/openai, model/anthropic) so that the
// agent and flow packages never import a vendor SDK.
package model
