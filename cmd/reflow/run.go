package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danshapiro/reflow/internal/flow/compile"
	"github.com/danshapiro/reflow/internal/flow/engine"
	"github.com/danshapiro/reflow/internal/flow/graphfile"
	"github.com/danshapiro/reflow/internal/flow/memory"
	"github.com/danshapiro/reflow/internal/flow/route"
	"github.com/danshapiro/reflow/internal/flow/validate"
	"github.com/danshapiro/reflow/internal/llm"
)

func newRunCmd(verbose *bool) *cobra.Command {
	var (
		graphPath   string
		catalogPath string
		routerPath  string
		task        string
		threshold   float64
		interactive bool
		strategy    bool
		model       string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dry-run a graph definition with simulated nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(*verbose)

			reg, err := loadCatalog(catalogPath)
			if err != nil {
				return err
			}
			g, err := graphfile.Load(graphPath, reg)
			if err != nil {
				return err
			}
			if err := validate.ValidateOrError(g); err != nil {
				return err
			}

			cfg := route.DemoConfig()
			if routerPath != "" {
				if cfg, err = route.LoadConfig(routerPath); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("threshold") {
				cfg.Threshold = threshold
			}
			router := route.New(cfg, reg)
			opts := engine.Options{
				Task:   task,
				Router: router,
				Logger: logger,
				Memory: memory.NewStore(),
			}
			if strategy {
				completer, err := llm.NewOpenAI(llm.OpenAIOptions{
					APIKey:  os.Getenv("OPENAI_API_KEY"),
					BaseURL: os.Getenv("OPENAI_BASE_URL"),
					Model:   model,
				})
				if err != nil {
					return err
				}
				router.Strategy = completer
				opts.Completer = completer
			}
			if interactive {
				opts.Interviewer = stdinInterviewer{}
			}

			result, err := engine.New(opts).Run(cmd.Context(), g, nil)
			if err != nil {
				return err
			}

			fmt.Printf("run %s stable after %d iteration(s)\n", result.RunID, result.Iterations)
			fmt.Printf("path: %s\n", strings.Join(result.Path, " -> "))
			if x, err := compile.Compile(result.Graph); err == nil {
				fmt.Printf("resolved route: %s\n", strings.Join(x.ResolvedOrder(result.State), " -> "))
			}
			for _, m := range result.Mutations {
				fmt.Printf("mutation %d: %s\n", m.Seq, m.Summary)
			}
			fmt.Printf("state: %s\n", result.State.Summary())
			return nil
		},
	}
	cmd.Flags().StringVar(&graphPath, "graph", "graph.yaml", "graph definition file")
	cmd.Flags().StringVar(&catalogPath, "catalog", "catalog.yaml", "node catalog file")
	cmd.Flags().StringVar(&task, "task", "", "task description recorded in the trace")
	cmd.Flags().StringVar(&routerPath, "router", "", "router configuration file (defaults to the built-in demo config)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.6, "confidence threshold override")
	cmd.Flags().BoolVar(&interactive, "ask", false, "answer router questions on stdin")
	cmd.Flags().BoolVar(&strategy, "strategy", false, "consult an OpenAI-compatible strategy service (OPENAI_API_KEY)")
	cmd.Flags().StringVar(&model, "model", "", "strategy service model override")
	return cmd
}

type stdinInterviewer struct{}

func (stdinInterviewer) Ask(_ context.Context, question string) (string, error) {
	fmt.Printf("%s\n> ", question)
	r := bufio.NewReader(os.Stdin)
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
