package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ezachrisen/dyneval"
)

func newCheckCmd(a *app) *cobra.Command {
	var (
		flags  compileFlags
		format string
	)
	cmd := &cobra.Command{
		Use:   "check <file>...",
		Short: "Compile scripts and report diagnostics without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format = strings.ToLower(format); format {
			case "pretty", "table", "json":
			default:
				return fmt.Errorf("unsupported format %q (must be pretty, table or json)", format)
			}
			opts, err := flags.options()
			if err != nil {
				return err
			}
			h, err := a.host(cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			reports := map[string]dyneval.Diagnostics{}
			failed := 0
			for _, file := range args {
				src, err := os.ReadFile(file)
				if err != nil {
					return errors.Wrap(err, "reading script")
				}
				ok, diags, _, err := h.TryCompile(cmd.Context(), string(src), opts)
				if err != nil {
					return errors.Wrapf(err, "compiling %s", file)
				}
				if !ok {
					failed++
				}
				switch format {
				case "json":
					if diags == nil {
						diags = dyneval.Diagnostics{}
					}
					reports[file] = diags
				case "table":
					if len(diags) > 0 {
						fmt.Fprintln(w, file)
						fmt.Fprintln(w, diags)
					}
					printSummary(w, file, diags)
				default:
					printDiagnostics(w, file, diags)
					printSummary(w, file, diags)
				}
			}
			if format == "json" {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(reports); err != nil {
					return err
				}
			}
			if failed > 0 {
				return errors.Errorf("%s failed to compile", plural(failed, "script"))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "pretty", "output format (pretty|table|json)")
	return cmd
}
