package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/model"
	"github.com/hupe1980/reactmesh/parser"
)

// CallbackType defines the lifecycle points where callbacks run.
//
// Callbacks execute synchronously on the run's goroutine. A callback that
// returns an error aborts the run and the error is returned from Run.
type CallbackType string

const (
	// CallbackBeforeRun fires once before the first iteration.
	CallbackBeforeRun CallbackType = "before_run"

	// CallbackBeforeModel fires before every model invocation. Prompt is set.
	CallbackBeforeModel CallbackType = "before_model"

	// CallbackAfterModel fires after a successful model invocation.
	// Completion, Usage and Step are set.
	CallbackAfterModel CallbackType = "after_model"

	// CallbackBeforeTool fires before a registered tool is called.
	CallbackBeforeTool CallbackType = "before_tool"

	// CallbackAfterTool fires after a registered tool returned, failed or
	// timed out. Observation and ToolErr are set.
	CallbackAfterTool CallbackType = "after_tool"

	// CallbackAfterRun fires once with the final Result.
	CallbackAfterRun CallbackType = "after_run"
)

// CallbackContext carries the run details visible to a callback. Fields not
// relevant to the current CallbackType are left zero.
type CallbackContext struct {
	RunID        string
	Question     string
	CallbackType CallbackType

	// Iteration is 1-based.
	Iteration int

	ModelName  string
	Prompt     string
	Completion string
	Usage      *model.TokenUsage
	Step       parser.Step

	Tool        string
	ToolInput   string
	Observation string
	ToolErr     error

	// Elapsed is the duration of the model or tool call for after_* callbacks.
	Elapsed time.Duration

	Result *RunResult

	// Metadata is free-form storage shared by all callbacks of one run.
	Metadata map[string]any
}

// Callback defines the interface for run lifecycle hooks.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic. Returning an error aborts the run.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	cb := NewFunctionCallback(
//	    CallbackBeforeTool,
//	    func(ctx context.Context, c *CallbackContext) error {
//	        log.Printf("calling %s with %q", c.Tool, c.ToolInput)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute calls the wrapped function.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager holds callbacks by type and runs them in registration order.
//
// Registration is not synchronized: register everything before the manager
// is handed to an Executor. Execution is safe for concurrent runs.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs all callbacks registered for callbackType. The first
// error stops execution and is returned. A nil manager is a no-op.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}

	callbackCtx.CallbackType = callbackType

	for _, callback := range cm.callbacks[callbackType] {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return fmt.Errorf("%s callback: %w", callbackType, err)
		}
	}

	return nil
}

// LoggingCallback reports model calls, tool calls and run completion through
// a ReactLogger's domain helpers.
type LoggingCallback struct {
	callbackType CallbackType
	logger       *logging.ReactLogger
}

// NewLoggingCallback creates a logging callback for one of CallbackAfterModel,
// CallbackAfterTool or CallbackAfterRun. Other types log nothing.
func NewLoggingCallback(callbackType CallbackType, logger *logging.ReactLogger) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// RegisterLoggingCallbacks registers logging callbacks for every after_* hook.
func RegisterLoggingCallbacks(cm *CallbackManager, logger *logging.ReactLogger) {
	for _, t := range []CallbackType{CallbackAfterModel, CallbackAfterTool, CallbackAfterRun} {
		cm.RegisterCallback(NewLoggingCallback(t, logger))
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType { return c.callbackType }

// Execute logs the event. It never fails.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}

	l := c.logger.WithRun(callbackCtx.RunID)

	switch c.callbackType {
	case CallbackAfterModel:
		tokens := 0
		if callbackCtx.Usage != nil {
			tokens = callbackCtx.Usage.TotalTokens
		}
		l.LogLLMCall(callbackCtx.ModelName, tokens, callbackCtx.Elapsed, true, nil)
	case CallbackAfterTool:
		l.LogToolCall(callbackCtx.Tool, callbackCtx.Elapsed, callbackCtx.ToolErr == nil, callbackCtx.ToolErr)
	case CallbackAfterRun:
		if r := callbackCtx.Result; r != nil {
			l.LogRun(string(r.StoppedReason), r.Iterations, r.Duration, nil)
		}
	}

	return nil
}
