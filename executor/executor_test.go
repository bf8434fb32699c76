package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hupe1980/reactmesh/model"
	"github.com/hupe1980/reactmesh/parser"
	"github.com/hupe1980/reactmesh/prompt"
	"github.com/hupe1980/reactmesh/tool"
)

const (
	compareStep = "Thought: I should compare both clocks\nAction: compare_times\nAction Input: now"
	finalStep   = "Thought: I now know the final answer\nFinal Answer: London: 08:00, India: 12:30"
)

func timeRegistry(t *testing.T) *tool.Registry {
	t.Helper()

	reg, err := tool.NewRegistry(
		tool.NewFunctionTool("get_time", "Gets the time for a location", func(_ context.Context, _ string) (string, error) {
			return "08:00", nil
		}),
		tool.NewFunctionTool("compare_times", "Compares London and India time", func(_ context.Context, _ string) (string, error) {
			return "London 08:00, India 12:30", nil
		}),
	)
	require.NoError(t, err)

	return reg
}

func newExecutor(t *testing.T, m model.Model, reg *tool.Registry, optFns ...func(o *Options)) *Executor {
	t.Helper()

	e, err := New(m, reg, optFns...)
	require.NoError(t, err)

	return e
}

func TestRun_CompareTimesScenario(t *testing.T) {
	m := model.NewScriptedModel(compareStep, finalStep)
	e := newExecutor(t, m, timeRegistry(t))

	res, err := e.Run(context.Background(), "Compare the time in London and India")
	require.NoError(t, err)

	assert.Equal(t, "London: 08:00, India: 12:30", res.Output)
	assert.Equal(t, Completed, res.StoppedReason)
	assert.False(t, res.BestEffort)
	require.Len(t, res.Trace, 1)
	assert.Equal(t, ScratchpadEntry{
		Thought:     "I should compare both clocks",
		Action:      "compare_times",
		ActionInput: "now",
		Observation: "London 08:00, India 12:30",
	}, res.Trace[0])
	assert.Equal(t, 1, res.Iterations)
	assert.NotEmpty(t, res.RunID)

	prompts := m.Prompts()
	require.Len(t, prompts, 2)
	assert.True(t, strings.HasSuffix(prompts[0], "Question: Compare the time in London and India\nThought:"))
	assert.True(t, strings.HasSuffix(prompts[1],
		"Thought: I should compare both clocks\nAction: compare_times\nAction Input: now\nObservation: London 08:00, India 12:30\nThought:"))
}

func TestRun_PassesStopSequences(t *testing.T) {
	var got model.Request
	m := model.NewFuncModel("capture", func(_ context.Context, req model.Request) (string, error) {
		got = req
		return "Final Answer: done", nil
	})

	e := newExecutor(t, m, timeRegistry(t), func(o *Options) { o.Stream = true })

	_, err := e.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, DefaultStop, got.Stop)
	assert.True(t, got.Stream)
}

func TestRun_BudgetFallbackUsesLastObservation(t *testing.T) {
	var calls int32
	reg := tool.MustRegistry(tool.NewFunctionTool("count", "Counts calls", func(_ context.Context, _ string) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		return fmt.Sprintf("observation %d", n), nil
	}))

	m := model.NewScriptedModel("Thought: again\nAction: count\nAction Input: x").RepeatLast()
	e := newExecutor(t, m, reg, func(o *Options) { o.MaxIterations = 3 })

	res, err := e.Run(context.Background(), "loop forever")
	require.NoError(t, err)

	assert.Equal(t, MaxIterationsReached, res.StoppedReason)
	require.Len(t, res.Trace, 3)
	assert.Equal(t, res.Trace[2].Observation, res.Output)
	assert.Equal(t, "observation 3", res.Output)
	assert.True(t, res.BestEffort)
	assert.Equal(t, 3, m.Calls())
}

func TestRun_BudgetForceStop(t *testing.T) {
	m := model.NewScriptedModel(compareStep).RepeatLast()
	e := newExecutor(t, m, timeRegistry(t), func(o *Options) {
		o.MaxIterations = 2
		o.EarlyStopping = EarlyStoppingForce
	})

	res, err := e.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, MaxIterationsReached, res.StoppedReason)
	assert.Equal(t, StoppedMessage, res.Output)
	assert.False(t, res.BestEffort)
	assert.Len(t, res.Trace, 2)
}

func TestRun_TraceNeverExceedsBudget(t *testing.T) {
	for _, max := range []int{1, 2, 5} {
		m := model.NewScriptedModel("garbage").RepeatLast()
		e := newExecutor(t, m, timeRegistry(t), func(o *Options) { o.MaxIterations = max })

		res, err := e.Run(context.Background(), "q")
		require.NoError(t, err)
		assert.LessOrEqual(t, len(res.Trace), max)
		assert.Equal(t, max, res.Iterations)
	}
}

func TestRun_UnknownToolRecovers(t *testing.T) {
	m := model.NewScriptedModel(
		"Thought: weather?\nAction: get_weather\nAction Input: London",
		finalStep,
	)
	e := newExecutor(t, m, timeRegistry(t))

	res, err := e.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, Completed, res.StoppedReason)
	require.Len(t, res.Trace, 1)
	assert.Equal(t, "get_weather", res.Trace[0].Action)
	assert.Equal(t, "get_weather is not a valid tool, try one of [get_time, compare_times].", res.Trace[0].Observation)
}

func TestRun_ToolNameIsCaseSensitive(t *testing.T) {
	m := model.NewScriptedModel("Action: Get_Time\nAction Input: London", finalStep)
	e := newExecutor(t, m, timeRegistry(t))

	res, err := e.Run(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, res.Trace, 1)
	assert.Contains(t, res.Trace[0].Observation, "Get_Time is not a valid tool")
}

func TestRun_MalformedOutputBecomesObservation(t *testing.T) {
	raw := "I am not sure what to do"
	m := model.NewScriptedModel(raw, finalStep)
	e := newExecutor(t, m, timeRegistry(t))

	res, err := e.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, Completed, res.StoppedReason)
	require.Len(t, res.Trace, 1)
	assert.Equal(t, ScratchpadEntry{
		Thought:     raw,
		Action:      ExceptionAction,
		Observation: "Invalid Format: " + parser.ReasonMissingAction +
			". _Exception is not a valid tool, try one of [get_time, compare_times].",
	}, res.Trace[0])

	prompts := m.Prompts()
	require.Len(t, prompts, 2)
	assert.Equal(t, 1, strings.Count(prompts[1], raw))
	assert.Contains(t, prompts[1], "Action: _Exception\nAction Input: \nObservation: Invalid Format:")
}

func TestRun_EmptyFinalAnswerIsRetried(t *testing.T) {
	m := model.NewScriptedModel("Thought: done\nFinal Answer:", finalStep)
	e := newExecutor(t, m, timeRegistry(t))

	res, err := e.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, Completed, res.StoppedReason)
	assert.Equal(t, "London: 08:00, India: 12:30", res.Output)
	require.Len(t, res.Trace, 1)
	assert.Equal(t, ExceptionAction, res.Trace[0].Action)
	assert.True(t, strings.HasPrefix(res.Trace[0].Observation, "Invalid Format: "+parser.ReasonEmptyFinalAnswer))
}

func TestRun_MalformedSingleIterationFallsBackToObservation(t *testing.T) {
	m := model.NewScriptedModel("no markers here")
	e := newExecutor(t, m, timeRegistry(t), func(o *Options) { o.MaxIterations = 1 })

	res, err := e.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, MaxIterationsReached, res.StoppedReason)
	require.Len(t, res.Trace, 1)
	assert.Equal(t, res.Trace[0].Observation, res.Output)
	assert.NotEqual(t, NoAnswer, res.Output)
}

func TestFallback_EmptyTrace(t *testing.T) {
	e := newExecutor(t, model.NewScriptedModel(), timeRegistry(t))

	out, bestEffort := e.fallback(nil)
	assert.Equal(t, NoAnswer, out)
	assert.False(t, bestEffort)
}

func TestRun_Idempotent(t *testing.T) {
	m := model.NewScriptedModel(compareStep, finalStep)
	e := newExecutor(t, m, timeRegistry(t))

	first, err := e.Run(context.Background(), "q")
	require.NoError(t, err)

	m.Reset()

	second, err := e.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, first.StoppedReason, second.StoppedReason)
	assert.Equal(t, first.Trace, second.Trace)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_ToolFailures(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(ctx context.Context, input string) (string, error)
		timeout time.Duration
		want    string
	}{
		{
			name: "error",
			fn: func(context.Context, string) (string, error) {
				return "", errors.New("upstream unavailable")
			},
			want: "Tool error: upstream unavailable",
		},
		{
			name: "tool error",
			fn: func(context.Context, string) (string, error) {
				return "", tool.NewToolError("flaky", "bad input", tool.CodeValidation)
			},
			want: "Tool error: bad input",
		},
		{
			name: "panic",
			fn: func(context.Context, string) (string, error) {
				panic("kaboom")
			},
			want: "Tool error: panic: kaboom",
		},
		{
			name: "timeout",
			fn: func(ctx context.Context, _ string) (string, error) {
				<-ctx.Done()
				time.Sleep(10 * time.Millisecond)
				return "late", nil
			},
			timeout: 20 * time.Millisecond,
			want:    "Tool error: timed out after 20ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := tool.MustRegistry(tool.NewFunctionTool("flaky", "Fails", tt.fn))
			m := model.NewScriptedModel("Action: flaky\nAction Input: x", "Final Answer: recovered")
			e := newExecutor(t, m, reg, func(o *Options) { o.ToolTimeout = tt.timeout })

			res, err := e.Run(context.Background(), "q")
			require.NoError(t, err)

			assert.Equal(t, Completed, res.StoppedReason)
			assert.Equal(t, "recovered", res.Output)
			require.Len(t, res.Trace, 1)
			assert.Equal(t, tt.want, res.Trace[0].Observation)
		})
	}
}

func TestRun_ModelErrorIsFatal(t *testing.T) {
	boom := errors.New("provider down")
	m := model.NewScriptedModel(compareStep).FailAt(1, boom)
	e := newExecutor(t, m, timeRegistry(t))

	res, err := e.Run(context.Background(), "q")
	assert.Nil(t, res)

	var modelErr *ModelError
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, 2, modelErr.Iteration)
	assert.ErrorIs(t, err, boom)
}

func TestRun_EmptyCompletionIsModelError(t *testing.T) {
	e := newExecutor(t, model.NewScriptedModel("  "), timeRegistry(t))

	res, err := e.Run(context.Background(), "q")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, model.ErrEmptyResponse)
}

func TestRun_CanceledContext(t *testing.T) {
	m := model.NewScriptedModel(compareStep).RepeatLast()
	e := newExecutor(t, m, timeRegistry(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Run(ctx, "q")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, m.Calls())
}

func TestRun_CanceledDuringLastToolCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := tool.MustRegistry(tool.NewFunctionTool("slow", "Waits for cancellation", func(c context.Context, _ string) (string, error) {
		cancel()
		<-c.Done()
		return "", c.Err()
	}))
	m := model.NewScriptedModel("Action: slow\nAction Input: x")
	e := newExecutor(t, m, reg, func(o *Options) { o.MaxIterations = 1 })

	res, err := e.Run(ctx, "q")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_ConfigurationErrors(t *testing.T) {
	reg := timeRegistry(t)
	m := model.NewScriptedModel()

	tests := []struct {
		name  string
		model model.Model
		reg   *tool.Registry
		opt   func(o *Options)
		field string
	}{
		{"nil model", nil, reg, nil, "model"},
		{"nil registry", m, nil, nil, "registry"},
		{"empty registry", m, tool.MustRegistry(), nil, "registry"},
		{"zero budget", m, reg, func(o *Options) { o.MaxIterations = 0 }, "MaxIterations"},
		{"negative budget", m, reg, func(o *Options) { o.MaxIterations = -1 }, "MaxIterations"},
		{"negative timeout", m, reg, func(o *Options) { o.ToolTimeout = -time.Second }, "ToolTimeout"},
		{"nil template", m, reg, func(o *Options) { o.Template = nil }, "Template"},
		{"bad early stopping", m, reg, func(o *Options) { o.EarlyStopping = "sometimes" }, "EarlyStopping"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []func(o *Options)
			if tt.opt != nil {
				opts = append(opts, tt.opt)
			}

			e, err := New(tt.model, tt.reg, opts...)
			assert.Nil(t, e)

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	e := newExecutor(t, model.NewScriptedModel(), timeRegistry(t))
	opts := e.Options()

	assert.Equal(t, DefaultMaxIterations, opts.MaxIterations)
	assert.Equal(t, EarlyStoppingRecover, opts.EarlyStopping)
	assert.Equal(t, prompt.Default(), opts.Template)
	assert.Equal(t, DefaultStop, opts.Stop)
	assert.NotNil(t, opts.Tracer)
	assert.NotNil(t, opts.Logger)
}

func TestRun_CallbackOrder(t *testing.T) {
	var events []string
	cm := NewCallbackManager()
	for _, ct := range []CallbackType{
		CallbackBeforeRun, CallbackBeforeModel, CallbackAfterModel,
		CallbackBeforeTool, CallbackAfterTool, CallbackAfterRun,
	} {
		cm.RegisterCallback(NewFunctionCallback(ct, func(_ context.Context, c *CallbackContext) error {
			label := string(c.CallbackType)
			switch c.CallbackType {
			case CallbackAfterModel:
				label += ":" + c.Step.Kind()
			case CallbackAfterTool:
				label += ":" + c.Observation
			case CallbackAfterRun:
				label += ":" + c.Result.Output
			}
			events = append(events, label)
			return nil
		}))
	}

	m := model.NewScriptedModel(compareStep, finalStep)
	e := newExecutor(t, m, timeRegistry(t), func(o *Options) { o.Callbacks = cm })

	_, err := e.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"before_run",
		"before_model",
		"after_model:action",
		"before_tool",
		"after_tool:London 08:00, India 12:30",
		"before_model",
		"after_model:final_answer",
		"after_run:London: 08:00, India: 12:30",
	}, events)
}

func TestRun_CallbackErrorAborts(t *testing.T) {
	denied := errors.New("tool denied")
	cm := NewCallbackManager()
	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeTool, func(context.Context, *CallbackContext) error {
		return denied
	}))

	var toolCalls int32
	reg := tool.MustRegistry(tool.NewFunctionTool("compare_times", "d", func(context.Context, string) (string, error) {
		atomic.AddInt32(&toolCalls, 1)
		return "x", nil
	}))

	e := newExecutor(t, model.NewScriptedModel(compareStep), reg, func(o *Options) { o.Callbacks = cm })

	res, err := e.Run(context.Background(), "q")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, int32(0), atomic.LoadInt32(&toolCalls))
}

func TestRun_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	m := model.NewScriptedModel(compareStep, finalStep)
	e := newExecutor(t, m, timeRegistry(t), func(o *Options) { o.Tracer = tp.Tracer("test") })

	_, err := e.Run(context.Background(), "q")
	require.NoError(t, err)

	spans := sr.Ended()
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"reactmesh.model", "reactmesh.tool", "reactmesh.model", "reactmesh.run"}, names)

	root := spans[len(spans)-1]
	for _, s := range spans[:len(spans)-1] {
		assert.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID())
	}
}

func TestIterationBudget(t *testing.T) {
	b := NewIterationBudget(2)
	assert.False(t, b.Exhausted())
	assert.Equal(t, 2, b.Remaining())

	require.NoError(t, b.Increment())
	require.NoError(t, b.Increment())
	assert.True(t, b.Exhausted())
	assert.Equal(t, 0, b.Remaining())
	assert.Equal(t, 2, b.Count())

	assert.Error(t, b.Increment())
}
