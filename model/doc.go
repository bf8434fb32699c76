// Package model defines the provider-agnostic abstractions and helpers for
// interacting with text completion models inside reactmesh.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Offer a synchronous-looking call (Collect) for the executor
//   - Facilitate deterministic stubs for tests (ScriptedModel, FuncModel)
//
// Providers (OpenAI, Anthropic) implement the Model interface from this
// package so the executor remains decoupled from vendor SDKs.
package model
