package executor

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/model"
)

func TestCallbackManager_StopsAtFirstError(t *testing.T) {
	cm := NewCallbackManager()
	var ran []int

	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeRun, func(context.Context, *CallbackContext) error {
		ran = append(ran, 1)
		return errors.New("stop")
	}))
	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeRun, func(context.Context, *CallbackContext) error {
		ran = append(ran, 2)
		return nil
	}))

	err := cm.ExecuteCallbacks(context.Background(), CallbackBeforeRun, &CallbackContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before_run callback")
	assert.Equal(t, []int{1}, ran)

	assert.NoError(t, cm.ExecuteCallbacks(context.Background(), CallbackAfterRun, &CallbackContext{}))
}

func TestCallbackManager_NilIsNoop(t *testing.T) {
	var cm *CallbackManager
	assert.NoError(t, cm.ExecuteCallbacks(context.Background(), CallbackBeforeRun, &CallbackContext{}))
}

func TestLoggingCallbacks(t *testing.T) {
	var buf bytes.Buffer
	cfg := logging.DefaultLoggerConfig()
	cfg.Output = &buf
	cfg.Level = logging.LogLevelDebug

	cm := NewCallbackManager()
	RegisterLoggingCallbacks(cm, logging.NewLogger(cfg))

	ctx := context.Background()
	require.NoError(t, cm.ExecuteCallbacks(ctx, CallbackAfterModel, &CallbackContext{
		RunID:     "run-1",
		ModelName: "scripted",
		Usage:     &model.TokenUsage{TotalTokens: 42},
		Elapsed:   time.Millisecond,
	}))
	require.NoError(t, cm.ExecuteCallbacks(ctx, CallbackAfterTool, &CallbackContext{
		RunID:   "run-1",
		Tool:    "compare_times",
		ToolErr: errors.New("boom"),
	}))
	require.NoError(t, cm.ExecuteCallbacks(ctx, CallbackAfterRun, &CallbackContext{
		RunID:  "run-1",
		Result: &RunResult{StoppedReason: Completed, Iterations: 2},
	}))

	out := buf.String()
	assert.Contains(t, out, "LLM call completed")
	assert.Contains(t, out, `"token_count":42`)
	assert.Contains(t, out, "Tool execution failed")
	assert.Contains(t, out, `"tool_name":"compare_times"`)
	assert.Contains(t, out, "Run completed")
	assert.Contains(t, out, `"stop_reason":"completed"`)
	assert.Contains(t, out, `"run_id":"run-1"`)
}

func TestRun_LogsWithRunID(t *testing.T) {
	var buf bytes.Buffer
	cfg := logging.DefaultLoggerConfig()
	cfg.Output = &buf
	cfg.Level = logging.LogLevelDebug

	m := model.NewScriptedModel(compareStep, finalStep)
	e := newExecutor(t, m, timeRegistry(t), func(o *Options) { o.Logger = logging.NewLogger(cfg) })

	res, err := e.Run(context.Background(), "q")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "executor.run.start")
	assert.Contains(t, out, "executor.step")
	assert.Contains(t, out, "executor.run.complete")
	assert.Contains(t, out, `"component":"executor"`)
	assert.Contains(t, out, res.RunID)
}
