package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/reactmesh/model"
)

func TestBuildParams(t *testing.T) {
	m := NewModelFromClient(nil, func(o *Options) {
		o.Model = anthropic.Model("claude-test")
		o.MaxTokens = 256
	})

	params := m.buildParams(model.Request{
		Prompt: "Question: hi\nThought:",
		Stop:   []string{"\nObservation:", "  \n"},
	})

	assert.Equal(t, anthropic.Model("claude-test"), params.Model)
	assert.Equal(t, int64(256), params.MaxTokens)
	assert.Len(t, params.Messages, 1)
	assert.Equal(t, []string{"\nObservation:"}, params.StopSequences)
	assert.Equal(t, model.Info{Name: "claude-test", Provider: "anthropic"}, m.Info())
}
