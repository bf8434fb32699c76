package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/reactmesh"
	"github.com/hupe1980/reactmesh/config"
	"github.com/hupe1980/reactmesh/executor"
	"github.com/hupe1980/reactmesh/logging"
)

func askCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var (
		questions  []string
		showTrace  bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Answer one or more questions",
		Long: "Positional arguments are joined into a single question. Repeat -q to ask\n" +
			"several independent questions concurrently.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				questions = append(questions, strings.Join(args, " "))
			}
			if len(questions) == 0 {
				return fmt.Errorf("no question given")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			llm, err := newModel(cfg)
			if err != nil {
				return err
			}

			logger := cfg.NewLogger(cmd.ErrOrStderr())

			rm, err := reactmesh.New(llm, builtinTools(), func(o *reactmesh.Options) {
				cfg.Apply(o)
				o.Logger = logger
				if level, _ := logging.ParseLevel(cfg.Log.Level); level == logging.LogLevelDebug {
					o.Callbacks = executor.NewCallbackManager()
					executor.RegisterLoggingCallbacks(o.Callbacks, logger)
				}
			})
			if err != nil {
				return err
			}

			results, err := rm.AskAll(cmd.Context(), questions)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			for i, res := range results {
				if len(results) > 1 {
					fmt.Fprintf(out, "Q: %s\n", questions[i])
				}
				if showTrace {
					printTrace(out, res.Trace)
				}
				printResult(out, res)
			}

			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&questions, "question", "q", nil, "question to ask (repeatable)")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "print the reasoning trace")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output results as JSON")

	return cmd
}

func printTrace(w io.Writer, trace []executor.ScratchpadEntry) {
	for i, e := range trace {
		fmt.Fprintf(w, "[%d] Thought: %s\n", i+1, e.Thought)
		fmt.Fprintf(w, "    Action: %s\n", e.Action)
		fmt.Fprintf(w, "    Action Input: %s\n", e.ActionInput)
		fmt.Fprintf(w, "    Observation: %s\n", e.Observation)
	}
}

func printResult(w io.Writer, res *executor.RunResult) {
	if res.StoppedReason == executor.MaxIterationsReached {
		fmt.Fprintf(w, "(stopped after %d iterations)\n", res.Iterations)
	}
	fmt.Fprintln(w, res.Output)
}
