package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ezachrisen/dyneval"
)

type compileFlags struct {
	namespace        string
	typeName         string
	refs             []string
	vars             []string
	warningsAsErrors bool
}

func (f *compileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.namespace, "namespace", "", "package holding the entry type (default from config)")
	cmd.Flags().StringVar(&f.typeName, "type", "", "entry type name (default from config)")
	cmd.Flags().StringSliceVar(&f.refs, "ref", nil, "extra reference to load, repeatable")
	cmd.Flags().StringArrayVar(&f.vars, "var", nil, "variable as name=value, repeatable; values are parsed as JSON when possible")
	cmd.Flags().BoolVar(&f.warningsAsErrors, "warnings-as-errors", false, "treat warnings as errors")
}

func (f *compileFlags) options() (dyneval.CompileOptions, error) {
	vars, err := parseVars(f.vars)
	if err != nil {
		return dyneval.CompileOptions{}, err
	}
	return dyneval.CompileOptions{
		EntryNamespace:   f.namespace,
		EntryTypeName:    f.typeName,
		ExtraReferences:  f.refs,
		Variables:        vars,
		WarningsAsErrors: f.warningsAsErrors,
	}, nil
}

func newRunCmd(a *app) *cobra.Command {
	var flags compileFlags
	cmd := &cobra.Command{
		Use:   "run <file> <method> [args...]",
		Short: "Compile a script and call a method on its entry type",
		Long: `Compile a script, create its entry type and call one method.

Arguments are parsed as JSON when they parse, so 42 is a number and "42"
(quoted for the shell) is a string. The result is printed as JSON.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "reading script")
			}
			opts, err := flags.options()
			if err != nil {
				return err
			}
			h, err := a.host(cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ok, diags, in, err := h.TryCompile(cmd.Context(), string(src), opts)
			if err != nil {
				return errors.Wrapf(err, "compiling %s", args[0])
			}
			printDiagnostics(cmd.ErrOrStderr(), args[0], diags)
			if !ok {
				return errors.Errorf("%s does not compile", args[0])
			}

			callArgs := make([]interface{}, 0, len(args)-2)
			for _, s := range args[2:] {
				callArgs = append(callArgs, parseValue(s))
			}
			out, err := in.Call(cmd.Context(), args[1], callArgs...)
			if err != nil {
				return err
			}
			printValue(cmd.OutOrStdout(), out)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
