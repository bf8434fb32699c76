package executor

import "fmt"

// ConfigurationError reports invalid construction parameters. It is raised
// by New before any run starts.
type ConfigurationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration: %s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// ModelError reports a failed or unusable model invocation. It is fatal to
// the run that observed it.
type ModelError struct {
	Model     string
	Iteration int
	Err       error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s failed at iteration %d: %v", e.Model, e.Iteration, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ModelError) Unwrap() error { return e.Err }
