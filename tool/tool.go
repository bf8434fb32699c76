// Package tool implements the tool subsystem that lets the executor invoke
// named capabilities (APIs, computations, side-effects) with consistent error
// handling and natural-language descriptions for model guidance.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/reactmesh/internal/util"
)

// Tool defines the interface for extending the agent with external functions.
//
// The model selects a tool by name and supplies a single free-form text input
// (the "Action Input"). The returned string becomes the observation fed back to
// the model on the next iteration.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Report expected failures through the returned string or a *ToolError
//   - Be safe for concurrent use when shared across runs
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns the usage contract shown to the model.
	Description() string

	// Call executes the tool with the raw action input.
	Call(ctx context.Context, input string) (string, error)
}

// ValidationError represents action input validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeExecution   = "EXECUTION_ERROR"
	CodeValidation  = "VALIDATION_ERROR"
	CodeTimeout     = "TIMEOUT"
	CodePanic       = "PANIC"
	CodeInvalidTool = "INVALID_TOOL"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`    // Name of the tool that failed
	Message string `json:"message"` // Error message
	Code    string `json:"code"`    // Error code for categorization
	Err     error  `json:"-"`       // Underlying cause, if any
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
