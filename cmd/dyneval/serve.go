package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pacedotdev/oto/otohttp"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ezachrisen/dyneval/cel"
	"github.com/ezachrisen/dyneval/macro"
	"github.com/ezachrisen/dyneval/rpc"
	"github.com/ezachrisen/dyneval/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr, dbPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve scripts, expressions and snippets over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			if dbPath == "" {
				dbPath = a.cfg.Store.Path
			}

			st, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			h, err := a.host(cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			macros, err := a.cfg.Macros()
			if err != nil {
				return err
			}
			if macros == nil {
				macros = macro.New()
			}

			server := otohttp.NewServer()
			rpc.Register(server,
				&rpc.ScriptService{Host: h, Store: st, Logger: a.log},
				&rpc.ExpressionService{Evaluator: cel.NewEvaluator(cel.CacheSize(a.cfg.Evaluator.CacheSize), cel.Logger(a.log))},
				&rpc.MacroService{Expander: macros},
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{Addr: addr, Handler: server, ReadHeaderTimeout: 10 * time.Second}
			errc := make(chan error, 1)
			go func() {
				a.log.Info("listening", "addr", addr, "store", dbPath)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				return errors.Wrap(err, "serve")
			case <-ctx.Done():
			}

			a.log.Info("shutting down", "stats", h.Stats().String())
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&dbPath, "store", "", "SQLite database holding scripts (default from config)")
	return cmd
}
