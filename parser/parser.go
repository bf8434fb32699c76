// Package parser turns raw model completions into typed ReAct steps.
//
// All knowledge of the textual protocol (Thought / Action / Action Input /
// Final Answer markers) lives here so the executor never inspects raw text.
package parser

import (
	"strings"
)

// Protocol markers. Matching is case-insensitive and ignores surrounding whitespace.
const (
	ThoughtMarker     = "Thought:"
	ActionMarker      = "Action:"
	ActionInputMarker = "Action Input:"
	ObservationMarker = "Observation:"
	FinalAnswerMarker = "Final Answer:"
)

// Reasons reported by Malformed.
const (
	ReasonMissingAction      = "missing 'Action:' after 'Thought:'"
	ReasonMissingActionInput = "missing 'Action Input:' after 'Action:'"
	ReasonEmptyAction        = "empty action name"
	ReasonEmptyFinalAnswer   = "empty 'Final Answer:'"
)

// Step is the parsed form of a single model response. Exactly one of
// Action, FinalAnswer or Malformed.
type Step interface {
	// Kind returns "action", "final_answer" or "malformed".
	Kind() string
	isStep()
}

// Action requests a tool invocation.
type Action struct {
	Thought string
	Tool    string
	Input   string
}

// Kind implements Step.
func (Action) Kind() string { return "action" }
func (Action) isStep()      {}

// FinalAnswer terminates the run.
type FinalAnswer struct {
	Thought string
	Answer  string
}

// Kind implements Step.
func (FinalAnswer) Kind() string { return "final_answer" }
func (FinalAnswer) isStep()      {}

// Malformed carries output that matched neither shape.
type Malformed struct {
	Raw    string
	Reason string
}

// Kind implements Step.
func (Malformed) Kind() string { return "malformed" }
func (Malformed) isStep()      {}

// Parse resolves text into a Step. It never fails: unparseable output
// becomes Malformed. A final answer wins over an action when both appear,
// and the first occurrence of each marker is used. A final answer with no
// text is Malformed.
func Parse(text string) Step {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	if i, rest, ok := findMarker(lines, 0, FinalAnswerMarker); ok {
		tail := append([]string{rest}, lines[i+1:]...)
		answer := strings.TrimSpace(strings.Join(tail, "\n"))
		if answer == "" {
			return Malformed{Raw: text, Reason: ReasonEmptyFinalAnswer}
		}
		return FinalAnswer{
			Thought: thoughtOf(lines[:i]),
			Answer:  answer,
		}
	}

	ai, name, ok := findMarker(lines, 0, ActionMarker)
	if !ok {
		return Malformed{Raw: text, Reason: ReasonMissingAction}
	}

	_, input, ok := findMarker(lines, ai+1, ActionInputMarker)
	if !ok {
		return Malformed{Raw: text, Reason: ReasonMissingActionInput}
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return Malformed{Raw: text, Reason: ReasonEmptyAction}
	}

	return Action{
		Thought: thoughtOf(lines[:ai]),
		Tool:    name,
		Input:   unquote(strings.TrimSpace(input)),
	}
}

// findMarker returns the index of the first line at or after from that starts
// with marker, plus the remainder of that line after the marker.
func findMarker(lines []string, from int, marker string) (int, string, bool) {
	for i := from; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if hasPrefixFold(line, marker) {
			return i, strings.TrimSpace(line[len(marker):]), true
		}
	}
	return -1, "", false
}

// hasPrefixFold reports whether s begins with prefix, ignoring ASCII case.
// "Action:" never matches an "Action Input:" line because of the colon.
func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// thoughtOf joins the lines preceding a marker, dropping a leading Thought marker.
func thoughtOf(lines []string) string {
	t := strings.TrimSpace(strings.Join(lines, "\n"))
	if hasPrefixFold(t, ThoughtMarker) {
		t = strings.TrimSpace(t[len(ThoughtMarker):])
	}
	return t
}

// unquote removes one pair of surrounding double quotes.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
