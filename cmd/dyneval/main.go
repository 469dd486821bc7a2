package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ezachrisen/dyneval"
	"github.com/ezachrisen/dyneval/config"
)

// main builds the command tree and exits non-zero when a command fails.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by every command: the loaded configuration and
// the logger built from it.
type app struct {
	configPath string
	logLevel   string
	noColor    bool

	cfg config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "dyneval",
		Short:        "Compile, cache and run Go scripts and CEL expressions",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a TOML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level (debug|info|warn|error)")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newRunCmd(a),
		newCheckCmd(a),
		newEvalCmd(a),
		newExpandCmd(a),
		newRefsCmd(a),
		newServeCmd(a),
		newNewCmd(a),
	)
	return root
}

func (a *app) load(stderr io.Writer) error {
	if a.noColor {
		color.NoColor = true
	}
	a.cfg = config.Default()
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.logLevel != "" {
		a.cfg.Log.Level = a.logLevel
	}
	a.log = a.cfg.Logger(stderr)
	return nil
}

// host builds a host from the configuration. Script output goes to stdout.
func (a *app) host(stdout, stderr io.Writer) (*dyneval.Host, error) {
	opts := []dyneval.CompilerOption{
		dyneval.CompilerLogger(a.log),
		dyneval.Output(stdout, stderr),
	}
	macros, err := a.cfg.Macros()
	if err != nil {
		return nil, errors.Wrap(err, "loading configuration")
	}
	if macros != nil {
		opts = append(opts, dyneval.Macros(macros))
	}
	return dyneval.NewHost(dyneval.NewCompiler(opts...),
		dyneval.HostLogger(a.log),
		dyneval.DefaultOptions(a.cfg.CompileOptions()),
	), nil
}
