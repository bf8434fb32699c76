package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is returned by Collect when the model produced no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// ErrNoResponse is returned by Collect when the response channel closed
// without a final response and without an error.
var ErrNoResponse = errors.New("model produced no final response")

// Request captures the text completion input produced by the executor.
type Request struct {
	Prompt string   `json:"prompt"`
	Stop   []string `json:"stop,omitempty"` // Stop sequences, e.g. "\nObservation:"
	Stream bool     `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", ...
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "scripted", ...
}

// Model is the minimal interface required by the executor to drive generation.
//
// Implementations emit zero or more partial responses followed by exactly one
// final response (Partial == false), or an error, then close both channels.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drives m to completion and returns the final response. When the
// model only streams partial chunks the concatenated text is returned.
func Collect(ctx context.Context, m Model, req Request) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		final    *Response
		partials strings.Builder
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				partials.WriteString(r.Text)
				continue
			}
			resp := r
			final = &resp
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}

	if final == nil {
		if partials.Len() == 0 {
			return Response{}, ErrNoResponse
		}
		final = &Response{Text: partials.String()}
	}

	if strings.TrimSpace(final.Text) == "" {
		return Response{}, fmt.Errorf("%w (finish_reason=%q)", ErrEmptyResponse, final.FinishReason)
	}

	return *final, nil
}
