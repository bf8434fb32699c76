// Package logging provides a minimal logging interface and adapters for reactmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the executor, tools and model adapters use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - ReactLogger with run / tool / model helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - WithLogger / FromContext to hand the run logger to tools
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	exec, err := executor.New(llm, registry, func(o *executor.Options) { o.Logger = logger })
package logging
