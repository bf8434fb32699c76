package executor

import (
	"time"

	"github.com/hupe1980/reactmesh/prompt"
)

// StopReason tells how a run terminated.
type StopReason string

const (
	// Completed means the model produced a final answer.
	Completed StopReason = "completed"
	// MaxIterationsReached means the iteration budget ran out first.
	MaxIterationsReached StopReason = "max_iterations_reached"
)

// ScratchpadEntry is one completed reasoning/action/observation cycle.
type ScratchpadEntry struct {
	Thought     string `json:"thought"`
	Action      string `json:"action"`
	ActionInput string `json:"action_input"`
	Observation string `json:"observation"`
}

// RunResult is the outcome of a single run. The caller owns it.
type RunResult struct {
	RunID         string            `json:"run_id"`
	Output        string            `json:"output"`
	StoppedReason StopReason        `json:"stopped_reason"`
	BestEffort    bool              `json:"best_effort,omitempty"` // Output is a fallback, not a final answer
	Trace         []ScratchpadEntry `json:"trace"`
	Iterations    int               `json:"iterations"`
	Duration      time.Duration     `json:"duration"`
}

func toPromptEntries(trace []ScratchpadEntry) []prompt.Entry {
	entries := make([]prompt.Entry, len(trace))
	for i, e := range trace {
		entries[i] = prompt.Entry(e)
	}
	return entries
}
