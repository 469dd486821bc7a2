package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ezachrisen/dyneval/refs"
)

func newRefsCmd(a *app) *cobra.Command {
	var extra []string
	cmd := &cobra.Command{
		Use:   "refs <file>",
		Short: "Show the references a script asks for and where they resolve",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "reading script")
			}
			names := append(refs.ScanDirectives(string(src)), extra...)
			r := refs.NewResolver(a.cfg.Compile.SearchPaths...)

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			style := table.StyleLight
			style.Format.Header = text.FormatDefault
			t.SetStyle(style)
			t.SetTitle("REFERENCES")
			t.AppendHeader(table.Row{"Name", "Path", "Resolved"})
			missing := 0
			for _, ref := range r.Resolve(names) {
				status := okColor.Sprint("yes")
				if !ref.Resolved {
					status = errorColor.Sprint("no")
					missing++
				}
				t.AppendRow(table.Row{ref.Name, ref.Path, status})
			}
			t.AppendFooter(table.Row{"", "search paths", len(r.SearchPaths)})
			t.Render()
			if missing > 0 {
				return errors.Errorf("%s unresolved", plural(missing, "reference"))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&extra, "ref", nil, "extra reference to resolve, repeatable")
	return cmd
}
