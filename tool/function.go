package tool

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/reactmesh/logging"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a Tool.
//
// Errors returned by the function are normalized so callers always receive a
// *ToolError: a *ToolError returned directly is forwarded unchanged, any other
// error is wrapped with code EXECUTION_ERROR.
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use by multiple goroutines.
type FunctionTool struct {
	name        string
	description string
	fn          func(ctx context.Context, input string) (string, error)
}

// NewFunctionTool constructs a FunctionTool.
//
// Example:
//
//	echo := NewFunctionTool(
//	  "echo",
//	  "Repeats the input verbatim",
//	  func(_ context.Context, input string) (string, error) { return input, nil },
//	)
func NewFunctionTool(
	name, description string,
	fn func(ctx context.Context, input string) (string, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		fn:          fn,
	}
}

// Name returns the unique tool name used for dispatch.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Call invokes the wrapped function.
func (t *FunctionTool) Call(ctx context.Context, input string) (string, error) {
	logger := logging.FromContext(ctx)
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name)

	result, err := t.fn(ctx, input)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)
			return "", toolErr
		}

		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return "", &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeExecution,
			Err:     err,
		}
	}

	logger.Debug("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
