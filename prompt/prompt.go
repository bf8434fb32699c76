// Package prompt renders the text sent to the model on every iteration:
// instructions, tool catalog, format specification, the question, the
// scratchpad of completed steps and the trailing "Thought:" cue.
package prompt

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/hupe1980/reactmesh/internal/util"
	"github.com/hupe1980/reactmesh/tool"
)

// DefaultTemplate is the ReAct prompt. The model completes right after the
// final "Thought:" so the trailing cue must stay last.
const DefaultTemplate = `Answer the following questions as best you can using the available tools.

Tools available:
{{.Tools}}

Available tool names: {{.ToolNames}}

Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [{{.ToolNames}}]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original input question

Remember:
- Use exactly one Action per step and wait for its Observation
- Always complete with a Final Answer

Question: {{.Input}}
{{.Scratchpad}}Thought:`

// ErrInvalidTemplate is returned when a template lacks a required field or
// the trailing Thought cue.
var ErrInvalidTemplate = errors.New("invalid prompt template")

var requiredFields = []string{".Tools", ".ToolNames", ".Input", ".Scratchpad"}

// Entry is one completed loop iteration as rendered into the scratchpad.
type Entry struct {
	Thought     string
	Action      string
	ActionInput string
	Observation string
}

// Input is everything the assembler needs for one prompt.
type Input struct {
	Catalog    tool.Catalog
	Question   string
	Scratchpad []Entry
}

// data is the value handed to the template.
type data struct {
	Tools      string
	ToolNames  string
	Input      string
	Scratchpad string
}

// Template is an immutable, validated prompt template. Safe for concurrent use.
type Template struct {
	src  string
	tmpl *template.Template
}

// NewTemplate parses and validates src.
func NewTemplate(src string) (*Template, error) {
	for _, field := range requiredFields {
		if !strings.Contains(src, field) {
			return nil, fmt.Errorf("%w: missing field %s", ErrInvalidTemplate, field)
		}
	}

	if !strings.HasSuffix(strings.TrimRight(src, " "), "Thought:") {
		return nil, fmt.Errorf("%w: template must end with the %q cue after the scratchpad", ErrInvalidTemplate, "Thought:")
	}

	tmpl, err := util.ParseTemplate("react", src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	return &Template{src: src, tmpl: tmpl}, nil
}

// MustTemplate is like NewTemplate but panics on error.
func MustTemplate(src string) *Template {
	t, err := NewTemplate(src)
	if err != nil {
		panic(err)
	}
	return t
}

// Default returns the parsed DefaultTemplate.
func Default() *Template { return defaultTemplate }

var defaultTemplate = MustTemplate(DefaultTemplate)

// Source returns the raw template text.
func (t *Template) Source() string { return t.src }

// Render produces the exact prompt text for the next model call.
func (t *Template) Render(in Input) (string, error) {
	return util.ExecuteTemplate(t.tmpl, data{
		Tools:      in.Catalog.Descriptions,
		ToolNames:  in.Catalog.Names,
		Input:      in.Question,
		Scratchpad: RenderScratchpad(in.Scratchpad),
	})
}

// RenderScratchpad renders completed steps in protocol format, one block per
// entry, each terminated by a newline so the trailing cue starts a fresh line.
func RenderScratchpad(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "Thought: %s\nAction: %s\nAction Input: %s\nObservation: %s\n",
			e.Thought, e.Action, e.ActionInput, e.Observation)
	}
	return b.String()
}
