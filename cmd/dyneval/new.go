package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ezachrisen/dyneval/tools/scriptgen"
)

func newNewCmd(a *app) *cobra.Command {
	var (
		skel  scriptgen.Skeleton
		out   string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Write the skeleton of a new script",
		Example: `  dyneval new "order discount" --method "apply discount" --ref mathx
  dyneval new greeter --method greet -o -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			skel.Name = args[0]
			if skel.Namespace == "" {
				skel.Namespace = a.cfg.Compile.Namespace
			}
			if skel.TypeName == "" {
				skel.TypeName = a.cfg.Compile.Type
			}
			src, err := scriptgen.Render(skel)
			if err != nil {
				return err
			}
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(src)
				return err
			}

			path := out
			if path == "" || isDir(path) {
				path = filepath.Join(path, skel.FileName())
			}
			if _, err := os.Stat(path); err == nil && !force {
				return errors.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, src, 0o644); err != nil {
				return errors.Wrap(err, "writing skeleton")
			}
			a.log.Info("wrote script skeleton", "path", path)
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&skel.Namespace, "namespace", "", "package name (default from config)")
	cmd.Flags().StringVar(&skel.TypeName, "type", "", "entry type name (default from config)")
	cmd.Flags().StringArrayVarP(&skel.Methods, "method", "m", nil, "stub method to add, repeatable")
	cmd.Flags().StringSliceVar(&skel.References, "ref", nil, "reference directive to add, repeatable")
	cmd.Flags().StringVarP(&out, "output", "o", "", "file or directory to write, - for stdout (default: current directory)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
