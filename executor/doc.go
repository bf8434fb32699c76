// Package executor implements the ReAct execution loop.
//
// Each iteration renders a prompt from the question and the scratchpad of
// completed steps, asks the model for a completion, parses it into a
// parser.Step and either finishes (final answer) or dispatches the requested
// tool and records the observation:
//
//	exec, err := executor.New(llm, registry, func(o *executor.Options) {
//	    o.MaxIterations = 5
//	    o.ToolTimeout = 10 * time.Second
//	})
//	if err != nil {
//	    return err
//	}
//	res, err := exec.Run(ctx, "What time is it in London?")
//
// A run ends Completed when the model emits "Final Answer:", or
// MaxIterationsReached when the budget is spent; the latter returns the last
// observation as a best-effort output unless EarlyStoppingForce is selected.
// Unknown tools, tool failures and malformed completions are fed back to the
// model as observations. Only model failures and cancellation fail a run.
package executor
