package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/reactmesh/internal/util"
	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/model"
	"github.com/hupe1980/reactmesh/parser"
	"github.com/hupe1980/reactmesh/prompt"
	"github.com/hupe1980/reactmesh/tool"
)

const (
	// DefaultMaxIterations is the iteration budget used when none is configured.
	DefaultMaxIterations = 15

	// ExceptionAction is the pseudo tool name recorded for malformed model output.
	ExceptionAction = "_Exception"

	// NoAnswer is the output of a budget-stopped run that has no observation to fall back on.
	NoAnswer = "Could not get a proper answer."

	// StoppedMessage is the output of a budget-stopped run under EarlyStoppingForce.
	StoppedMessage = "Agent stopped due to max iterations."

	tracerName = "github.com/hupe1980/reactmesh/executor"
)

// EarlyStopping selects the output of a run that exhausted its budget.
type EarlyStopping string

const (
	// EarlyStoppingRecover returns the last observation as a best-effort answer.
	EarlyStoppingRecover EarlyStopping = "recover"
	// EarlyStoppingForce returns StoppedMessage.
	EarlyStoppingForce EarlyStopping = "force"
)

// DefaultStop halts generation before the model writes its own observation.
var DefaultStop = []string{"\nObservation:"}

// Options configures an Executor. Options are fixed once New returns.
type Options struct {
	// MaxIterations bounds the number of reasoning/action cycles. Must be > 0.
	MaxIterations int

	// Template renders the prompt. Defaults to prompt.Default().
	Template *prompt.Template

	// ToolTimeout bounds each tool call. Zero disables the timeout.
	ToolTimeout time.Duration

	EarlyStopping EarlyStopping

	// Callbacks are invoked at run lifecycle points. May be nil.
	Callbacks *CallbackManager

	// Logger provides structured logging. Defaults to logging.NoOpLogger.
	Logger logging.Logger

	// Tracer creates run, model and tool spans. Defaults to the global provider.
	Tracer trace.Tracer

	// Stop sequences passed to the model. Defaults to DefaultStop.
	Stop []string

	// Stream asks the model for incremental output; the executor still
	// consumes the final text only.
	Stream bool
}

// DefaultOptions returns the options New starts from.
func DefaultOptions() Options {
	return Options{
		MaxIterations: DefaultMaxIterations,
		Template:      prompt.Default(),
		EarlyStopping: EarlyStoppingRecover,
		Logger:        logging.NoOpLogger{},
		Stop:          DefaultStop,
	}
}

// Executor runs the ReAct loop against a model and a tool registry.
//
// An Executor holds no per-run state and may serve concurrent runs, provided
// the registered tools are safe for concurrent use.
type Executor struct {
	model    model.Model
	registry *tool.Registry
	catalog  tool.Catalog
	opts     Options
}

// New creates an Executor. It fails with a *ConfigurationError on a nil
// model, an empty registry or invalid options.
func New(llm model.Model, registry *tool.Registry, optFns ...func(o *Options)) (*Executor, error) {
	opts := DefaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	if llm == nil {
		return nil, &ConfigurationError{Field: "model", Message: "must not be nil"}
	}

	if registry == nil || registry.Len() == 0 {
		return nil, &ConfigurationError{Field: "registry", Message: "at least one tool is required"}
	}

	if opts.MaxIterations <= 0 {
		return nil, &ConfigurationError{Field: "MaxIterations", Message: fmt.Sprintf("must be > 0, got %d", opts.MaxIterations)}
	}

	if opts.ToolTimeout < 0 {
		return nil, &ConfigurationError{Field: "ToolTimeout", Message: "must not be negative"}
	}

	if opts.Template == nil {
		return nil, &ConfigurationError{Field: "Template", Message: "must not be nil", Err: prompt.ErrInvalidTemplate}
	}

	switch opts.EarlyStopping {
	case "":
		opts.EarlyStopping = EarlyStoppingRecover
	case EarlyStoppingRecover, EarlyStoppingForce:
	default:
		return nil, &ConfigurationError{Field: "EarlyStopping", Message: fmt.Sprintf("unknown mode %q", opts.EarlyStopping)}
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	if rl, ok := opts.Logger.(*logging.ReactLogger); ok {
		opts.Logger = rl.WithComponent("executor")
	}

	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	return &Executor{
		model:    llm,
		registry: registry,
		catalog:  registry.Describe(),
		opts:     opts,
	}, nil
}

// Options returns a copy of the executor's options.
func (e *Executor) Options() Options { return e.opts }

// run is the per-run state. It never outlives a Run call.
type run struct {
	id       string
	question string
	logger   logging.Logger
	budget   *IterationBudget
	steps    []ScratchpadEntry
	metadata map[string]any
}

func (r *run) callbackContext() *CallbackContext {
	return &CallbackContext{
		RunID:     r.id,
		Question:  r.question,
		Iteration: r.budget.Count() + 1,
		Metadata:  r.metadata,
	}
}

// Run answers question by alternating model calls and tool calls until the
// model gives a final answer or the iteration budget is spent.
//
// Tool failures, unknown tools and malformed output become observations and
// never fail the run. Model failures return a *ModelError and no result;
// context cancellation returns the context error.
func (e *Executor) Run(ctx context.Context, question string) (*RunResult, error) {
	start := time.Now()

	r := &run{
		id:       util.NewID(),
		question: question,
		budget:   NewIterationBudget(e.opts.MaxIterations),
		metadata: map[string]any{},
	}

	r.logger = withRun(e.opts.Logger, r.id)

	ctx, span := e.opts.Tracer.Start(ctx, "reactmesh.run", trace.WithAttributes(
		attribute.String("reactmesh.run_id", r.id),
		attribute.Int("reactmesh.max_iterations", e.opts.MaxIterations),
		attribute.String("reactmesh.model", e.model.Info().Name),
	))
	defer span.End()

	ctx = logging.WithLogger(ctx, r.logger)

	r.logger.Info("executor.run.start", "max_iterations", e.opts.MaxIterations, "tools", e.catalog.Names)

	if err := e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackBeforeRun, r.callbackContext()); err != nil {
		return nil, failSpan(span, err)
	}

	for !r.budget.Exhausted() {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("executor.run.canceled", "iteration", r.budget.Count(), "error", err.Error())
			return nil, failSpan(span, fmt.Errorf("run canceled: %w", err))
		}

		step, err := e.think(ctx, r)
		if err != nil {
			r.logger.Error("executor.model.error", "iteration", r.budget.Count()+1, "error", err.Error())
			return nil, failSpan(span, err)
		}

		var entry ScratchpadEntry

		switch s := step.(type) {
		case parser.FinalAnswer:
			return e.finish(ctx, span, r, start, s.Answer, Completed, false)
		case parser.Action:
			entry, err = e.act(ctx, r, s)
			if err != nil {
				return nil, failSpan(span, err)
			}
		case parser.Malformed:
			entry = e.malformed(r, s)
		}

		r.steps = append(r.steps, entry)
		if err := r.budget.Increment(); err != nil {
			// Unreachable while the loop condition holds.
			return nil, failSpan(span, err)
		}

		r.logger.Debug("executor.step",
			"iteration", r.budget.Count(),
			"action", entry.Action,
			"observation_len", len(entry.Observation),
		)
	}

	output, bestEffort := e.fallback(r.steps)
	r.logger.Warn("executor.budget.exhausted", "iterations", r.budget.Count(), "best_effort", bestEffort)

	return e.finish(ctx, span, r, start, output, MaxIterationsReached, bestEffort)
}

// think renders the prompt, invokes the model and parses its completion.
func (e *Executor) think(ctx context.Context, r *run) (parser.Step, error) {
	iteration := r.budget.Count() + 1
	info := e.model.Info()

	text, err := e.opts.Template.Render(prompt.Input{
		Catalog:    e.catalog,
		Question:   r.question,
		Scratchpad: toPromptEntries(r.steps),
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	cbCtx := r.callbackContext()
	cbCtx.ModelName = info.Name
	cbCtx.Prompt = text
	if err := e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackBeforeModel, cbCtx); err != nil {
		return nil, err
	}

	mctx, span := e.opts.Tracer.Start(ctx, "reactmesh.model", trace.WithAttributes(
		attribute.String("reactmesh.model", info.Name),
		attribute.String("reactmesh.provider", info.Provider),
		attribute.Int("reactmesh.iteration", iteration),
	))

	started := time.Now()
	resp, err := model.Collect(mctx, e.model, model.Request{
		Prompt: text,
		Stop:   e.opts.Stop,
		Stream: e.opts.Stream,
	})
	elapsed := time.Since(started)

	if err != nil {
		failSpan(span, err)
		span.End()
		return nil, &ModelError{Model: info.Name, Iteration: iteration, Err: err}
	}

	step := parser.Parse(resp.Text)
	span.SetAttributes(attribute.String("reactmesh.step", step.Kind()))
	if resp.Usage != nil {
		span.SetAttributes(attribute.Int("reactmesh.tokens", resp.Usage.TotalTokens))
	}
	span.End()

	cbCtx.Completion = resp.Text
	cbCtx.Usage = resp.Usage
	cbCtx.Step = step
	cbCtx.Elapsed = elapsed
	if err := e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackAfterModel, cbCtx); err != nil {
		return nil, err
	}

	return step, nil
}

// act dispatches an Action step and builds its scratchpad entry.
func (e *Executor) act(ctx context.Context, r *run, a parser.Action) (ScratchpadEntry, error) {
	entry := ScratchpadEntry{Thought: a.Thought, Action: a.Tool, ActionInput: a.Input}

	t, err := e.registry.Get(a.Tool)
	if err != nil {
		r.logger.Warn("executor.tool.unknown", "tool", a.Tool, "available", e.catalog.Names)
		entry.Observation = err.Error()
		return entry, nil
	}

	cbCtx := r.callbackContext()
	cbCtx.Tool = a.Tool
	cbCtx.ToolInput = a.Input
	if err := e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackBeforeTool, cbCtx); err != nil {
		return entry, err
	}

	tctx, span := e.opts.Tracer.Start(ctx, "reactmesh.tool", trace.WithAttributes(
		attribute.String("reactmesh.tool", a.Tool),
		attribute.Int("reactmesh.iteration", r.budget.Count()+1),
	))

	started := time.Now()
	out, callErr := e.callTool(tctx, t, a.Input)
	elapsed := time.Since(started)

	if err := ctx.Err(); err != nil {
		failSpan(span, err)
		span.End()
		r.logger.Warn("executor.run.canceled", "iteration", r.budget.Count()+1, "tool", a.Tool, "error", err.Error())
		return entry, fmt.Errorf("run canceled: %w", err)
	}

	if callErr != nil {
		failSpan(span, callErr)
		entry.Observation = "Tool error: " + toolErrorMessage(callErr)
	} else {
		entry.Observation = out
	}
	span.End()

	cbCtx.Observation = entry.Observation
	cbCtx.ToolErr = callErr
	cbCtx.Elapsed = elapsed
	if err := e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackAfterTool, cbCtx); err != nil {
		return entry, err
	}

	return entry, nil
}

// callTool invokes t with the configured timeout, converting panics and
// deadline overruns into *tool.ToolError values.
func (e *Executor) callTool(ctx context.Context, t tool.Tool, input string) (string, error) {
	callCtx := ctx
	if e.opts.ToolTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.opts.ToolTimeout)
		defer cancel()
	}

	type result struct {
		out string
		err error
	}

	done := make(chan result, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- result{err: &tool.ToolError{
					Tool:    t.Name(),
					Message: fmt.Sprintf("panic: %v", rec),
					Code:    tool.CodePanic,
				}}
			}
		}()

		out, err := t.Call(callCtx, input)
		done <- result{out: out, err: err}
	}()

	select {
	case res := <-done:
		return res.out, res.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &tool.ToolError{
			Tool:    t.Name(),
			Message: fmt.Sprintf("timed out after %s", e.opts.ToolTimeout),
			Code:    tool.CodeTimeout,
			Err:     callCtx.Err(),
		}
	}
}

// malformed records unparseable output as an input-less call to the unknown
// tool ExceptionAction. The raw text is kept once, as the thought.
func (e *Executor) malformed(r *run, m parser.Malformed) ScratchpadEntry {
	unknown := &tool.UnknownToolError{Name: ExceptionAction, Available: e.registry.Names()}

	r.logger.Warn("executor.output.malformed", "reason", m.Reason)

	return ScratchpadEntry{
		Thought:     m.Raw,
		Action:      ExceptionAction,
		Observation: fmt.Sprintf("Invalid Format: %s. %s", m.Reason, unknown.Error()),
	}
}

// fallback picks the output of a budget-stopped run.
func (e *Executor) fallback(steps []ScratchpadEntry) (string, bool) {
	if e.opts.EarlyStopping == EarlyStoppingForce {
		return StoppedMessage, false
	}

	if len(steps) == 0 {
		return NoAnswer, false
	}

	return steps[len(steps)-1].Observation, true
}

func (e *Executor) finish(
	ctx context.Context,
	span trace.Span,
	r *run,
	start time.Time,
	output string,
	reason StopReason,
	bestEffort bool,
) (*RunResult, error) {
	steps := r.steps
	if steps == nil {
		steps = []ScratchpadEntry{}
	}

	result := &RunResult{
		RunID:         r.id,
		Output:        output,
		StoppedReason: reason,
		BestEffort:    bestEffort,
		Trace:         steps,
		Iterations:    len(steps),
		Duration:      time.Since(start),
	}

	span.SetAttributes(
		attribute.String("reactmesh.stop_reason", string(reason)),
		attribute.Int("reactmesh.iterations", result.Iterations),
		attribute.Bool("reactmesh.best_effort", bestEffort),
	)

	cbCtx := r.callbackContext()
	cbCtx.Result = result
	if err := e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackAfterRun, cbCtx); err != nil {
		return nil, failSpan(span, err)
	}

	r.logger.Info("executor.run.complete",
		"stop_reason", string(reason),
		"iterations", result.Iterations,
		"duration_ms", result.Duration.Milliseconds(),
	)

	return result, nil
}

// withRun attaches the run id to every entry written through l.
func withRun(l logging.Logger, runID string) logging.Logger {
	switch v := l.(type) {
	case *logging.ReactLogger:
		return v.WithRun(runID)
	case *logging.SlogAdapter:
		return logging.NewSlogAdapter(v.Logger.With("run_id", runID))
	default:
		return l
	}
}

func toolErrorMessage(err error) string {
	var toolErr *tool.ToolError
	if errors.As(err, &toolErr) && toolErr.Message != "" {
		return toolErr.Message
	}
	return err.Error()
}

func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
