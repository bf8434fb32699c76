// Package reactmesh provides a high-level façade over the ReAct executor.
// Most applications interact with this package by:
//  1. Creating a ReactMesh via New() with a model and a set of tools
//  2. Asking a single question synchronously (Ask) or asynchronously (Invoke)
//  3. Answering several independent questions concurrently (AskAll)
//
// Runs share the tool registry and the executor's immutable options but no
// mutable state, so tools must be safe for concurrent use when AskAll is used.
package reactmesh

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/reactmesh/executor"
	"github.com/hupe1980/reactmesh/model"
	"github.com/hupe1980/reactmesh/tool"
)

// DefaultMaxConcurrentRuns bounds AskAll when no limit is configured.
const DefaultMaxConcurrentRuns = 4

// Options configures the ReactMesh instance.
type Options struct {
	executor.Options

	// MaxConcurrentRuns limits how many runs AskAll executes at once.
	MaxConcurrentRuns int
}

// ReactMesh is the high-level façade aggregating a tool registry and an executor.
type ReactMesh struct {
	opts     Options
	registry *tool.Registry
	executor *executor.Executor
}

// New creates a ReactMesh answering questions with llm and tools. Tool names
// must be unique; construction errors are returned before any run starts.
func New(llm model.Model, tools []tool.Tool, optFns ...func(o *Options)) (*ReactMesh, error) {
	opts := Options{
		Options:           executor.DefaultOptions(),
		MaxConcurrentRuns: DefaultMaxConcurrentRuns,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxConcurrentRuns <= 0 {
		return nil, &executor.ConfigurationError{
			Field:   "MaxConcurrentRuns",
			Message: fmt.Sprintf("must be > 0, got %d", opts.MaxConcurrentRuns),
		}
	}

	registry, err := tool.NewRegistry(tools...)
	if err != nil {
		return nil, err
	}

	exec, err := executor.New(llm, registry, func(o *executor.Options) {
		*o = opts.Options
	})
	if err != nil {
		return nil, err
	}

	return &ReactMesh{opts: opts, registry: registry, executor: exec}, nil
}

// Registry returns the tool registry.
func (m *ReactMesh) Registry() *tool.Registry { return m.registry }

// Executor returns the underlying executor.
func (m *ReactMesh) Executor() *executor.Executor { return m.executor }

// Ask runs the loop for a single question.
func (m *ReactMesh) Ask(ctx context.Context, question string) (*executor.RunResult, error) {
	return m.executor.Run(ctx, question)
}

// Invoke starts a run in the background. Exactly one of the channels
// receives a value, then both are closed.
func (m *ReactMesh) Invoke(ctx context.Context, question string) (<-chan *executor.RunResult, <-chan error) {
	resultCh := make(chan *executor.RunResult, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(resultCh)
		defer close(errCh)

		res, err := m.executor.Run(ctx, question)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- res
	}()

	return resultCh, errCh
}

// AskAll answers independent questions concurrently, at most
// MaxConcurrentRuns at a time. Results are returned in input order. The first
// failing run cancels the others and its error is returned.
func (m *ReactMesh) AskAll(ctx context.Context, questions []string) ([]*executor.RunResult, error) {
	results := make([]*executor.RunResult, len(questions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.MaxConcurrentRuns)

	for i, q := range questions {
		i, q := i, q
		g.Go(func() error {
			res, err := m.executor.Run(gctx, q)
			if err != nil {
				return fmt.Errorf("question %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
