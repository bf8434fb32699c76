package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/reactmesh/internal/util"
)

// StructTool exposes a function taking a typed argument struct. The action
// input must be a JSON object; it is validated against a schema derived from T
// and decoded before fn runs. The schema is appended to the description so the
// model knows the expected shape.
type StructTool[T any] struct {
	*FunctionTool
	schema map[string]any
}

// NewStructTool derives the input schema from T using reflection.
//
// Example:
//
//	type SumArgs struct {
//	  A float64 `json:"a" description:"First addend"`
//	  B float64 `json:"b" description:"Second addend"`
//	}
//
//	sum := NewStructTool("sum", "Adds two numbers",
//	  func(_ context.Context, args SumArgs) (string, error) {
//	    return strconv.FormatFloat(args.A+args.B, 'f', -1, 64), nil
//	  })
func NewStructTool[T any](name, description string, fn func(ctx context.Context, args T) (string, error)) *StructTool[T] {
	var zero T
	schema := util.CreateSchema(zero)

	st := &StructTool[T]{schema: schema}
	st.FunctionTool = NewFunctionTool(name, describeWithSchema(description, schema), func(ctx context.Context, input string) (string, error) {
		args, err := st.decode(input)
		if err != nil {
			return "", err
		}
		return fn(ctx, args)
	})

	return st
}

// Schema returns the JSON schema the action input is validated against.
func (t *StructTool[T]) Schema() map[string]any { return t.schema }

func (t *StructTool[T]) decode(input string) (T, error) {
	var args T

	raw := []byte(strings.TrimSpace(input))
	if err := util.ValidateJSON(t.schema, raw); err != nil {
		return args, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("input validation failed: %v", err),
			Code:    CodeValidation,
			Err:     err,
		}
	}

	if err := json.Unmarshal(raw, &args); err != nil {
		return args, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("input decoding failed: %v", err),
			Code:    CodeValidation,
			Err:     err,
		}
	}

	return args, nil
}

func describeWithSchema(description string, schema map[string]any) string {
	b, err := json.Marshal(schema)
	if err != nil {
		return description
	}
	return fmt.Sprintf("%s Input must be a JSON object matching this schema: %s", description, b)
}
