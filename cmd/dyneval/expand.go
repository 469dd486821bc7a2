package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ezachrisen/dyneval/macro"
)

func newExpandCmd(a *app) *cobra.Command {
	var libraries []string
	cmd := &cobra.Command{
		Use:   "expand [file]",
		Short: "Expand snippets and placeholders in a file, or stdin, and print the result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				src []byte
				err error
			)
			if len(args) == 0 || args[0] == "-" {
				src, err = io.ReadAll(cmd.InOrStdin())
			} else {
				src, err = os.ReadFile(args[0])
			}
			if err != nil {
				return errors.Wrap(err, "reading input")
			}

			e, err := a.cfg.Macros()
			if err != nil {
				return err
			}
			if e == nil {
				e = macro.New()
			}
			for _, lib := range libraries {
				snippets, diags := macro.LoadFile(lib)
				if diags.HasErrors() {
					return errors.Wrapf(diags, "loading %s", lib)
				}
				e.Register(snippets...)
			}

			out, err := e.Parse(string(src))
			if err != nil {
				return err
			}
			out, err = a.cfg.PlaceholderRegistry().Apply(out)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringSliceVarP(&libraries, "snippets", "s", nil, "HCL snippet library to load after the configured ones, repeatable")
	return cmd
}
