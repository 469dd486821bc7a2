package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ezachrisen/dyneval/cel"
)

func newEvalCmd(a *app) *cobra.Command {
	var vars []string
	cmd := &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate a CEL expression",
		Example: `  dyneval eval '1 + 2 * 3'
  dyneval eval --var x=20 --var 'names=["a","b"]' 'x * 2 + size(names)'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bound, err := parseVars(vars)
			if err != nil {
				return err
			}
			e := cel.NewEvaluator(cel.CacheSize(a.cfg.Evaluator.CacheSize), cel.Logger(a.log))
			for k, v := range bound {
				e.SetVariable(k, v)
			}
			out, err := e.Evaluate(strings.Join(args, " "))
			if err != nil {
				return err
			}
			printValue(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&vars, "var", nil, "variable as name=value, repeatable; values are parsed as JSON when possible")
	return cmd
}
