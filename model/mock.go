package model

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned by a ScriptedModel asked for more responses
// than it was given.
var ErrScriptExhausted = errors.New("scripted model: no responses left")

// ScriptedModel is a deterministic in-memory Model for tests and examples. It
// answers each Generate call with the next scripted completion and records the
// prompts it received.
type ScriptedModel struct {
	mu        sync.Mutex
	info      Info
	responses []string
	errs      map[int]error
	next      int
	repeat    bool
	prompts   []string
}

// NewScriptedModel constructs a ScriptedModel returning responses in order.
func NewScriptedModel(responses ...string) *ScriptedModel {
	return &ScriptedModel{
		info:      Info{Name: "scripted", Provider: "scripted"},
		responses: responses,
		errs:      map[int]error{},
	}
}

// RepeatLast makes the model keep returning the last response once the script
// is exhausted instead of failing.
func (m *ScriptedModel) RepeatLast() *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repeat = true
	return m
}

// FailAt makes the call with the given zero-based index fail with err.
func (m *ScriptedModel) FailAt(call int, err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[call] = err
	return m
}

// Reset rewinds the script and clears recorded prompts.
func (m *ScriptedModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next = 0
	m.prompts = nil
}

// Prompts returns a copy of every prompt received so far.
func (m *ScriptedModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Calls returns how many times Generate was invoked.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *ScriptedModel) take(prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.prompts)
	m.prompts = append(m.prompts, prompt)

	if err, ok := m.errs[idx]; ok {
		return "", err
	}

	if m.next < len(m.responses) {
		r := m.responses[m.next]
		m.next++
		return r, nil
	}

	if m.repeat && len(m.responses) > 0 {
		return m.responses[len(m.responses)-1], nil
	}

	return "", ErrScriptExhausted
}

// Generate implements Model; emits optional streaming rune chunks then the final response.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		full, err := m.take(req.Prompt)
		if err != nil {
			errCh <- err
			return
		}

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{Partial: false, Text: full, FinishReason: "stop"}:
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }

// FuncModel adapts a plain function to the Model interface.
type FuncModel struct {
	name string
	fn   func(ctx context.Context, req Request) (string, error)
}

// NewFuncModel wraps fn as a non-streaming Model.
func NewFuncModel(name string, fn func(ctx context.Context, req Request) (string, error)) *FuncModel {
	return &FuncModel{name: name, fn: fn}
}

// Generate implements Model.
func (m *FuncModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		text, err := m.fn(ctx, req)
		if err != nil {
			errCh <- err
			return
		}
		respCh <- Response{Text: text, FinishReason: "stop"}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *FuncModel) Info() Info { return Info{Name: m.name, Provider: "func"} }
