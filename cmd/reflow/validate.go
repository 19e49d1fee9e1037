package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danshapiro/reflow/internal/flow/graphfile"
	"github.com/danshapiro/reflow/internal/flow/validate"
)

func newValidateCmd() *cobra.Command {
	var (
		graphPath   string
		catalogPath string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Lint a graph definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadCatalog(catalogPath)
			if err != nil {
				return err
			}
			g, err := graphfile.Load(graphPath, reg)
			if err != nil {
				return err
			}
			diags := validate.Validate(g)
			for _, d := range diags {
				fmt.Printf("%s %s: %s\n", d.Severity, d.Rule, d.Message)
			}
			for _, d := range diags {
				if d.Severity == validate.SeverityError {
					return fmt.Errorf("validation failed")
				}
			}
			fmt.Println("ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&graphPath, "graph", "graph.yaml", "graph definition file")
	cmd.Flags().StringVar(&catalogPath, "catalog", "catalog.yaml", "node catalog file")
	return cmd
}
