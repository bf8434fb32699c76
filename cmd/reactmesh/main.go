// Command reactmesh answers questions with a ReAct agent over the built-in
// time tools.
//
//	reactmesh ask "What time is it in London?"
//	reactmesh ask -q "Time in India?" -q "Compare London and India" --trace
//	reactmesh tools
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/hupe1980/reactmesh/config"
	"github.com/hupe1980/reactmesh/model"
	"github.com/hupe1980/reactmesh/tool"
	"github.com/hupe1980/reactmesh/tool/timetool"
)

// newModel is replaced in tests.
var newModel = func(cfg *config.Config) (model.Model, error) {
	return cfg.NewModel()
}

func builtinTools() []tool.Tool {
	return timetool.All(nil)
}

func rootCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:           "reactmesh",
		Short:         "ReAct agent executor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to a YAML config file")

	loadConfig := func() (*config.Config, error) {
		if cfgPath == "" {
			return config.Default(), nil
		}
		return config.Load(cfgPath)
	}

	cmd.AddCommand(askCmd(loadConfig))
	cmd.AddCommand(toolsCmd())

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
