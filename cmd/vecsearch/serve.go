package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/hupe1980/vecsearch"
	"github.com/hupe1980/vecsearch/server"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var fetch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP search API",
		Long: `Serve opens every configured collection and answers
GET /search and GET /collections/{name}/search. With --fetch the current
snapshot of each collection is downloaded first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, _, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			var cols []server.Collection
			var searchers []*vecsearch.Searcher
			defer func() {
				for _, s := range searchers {
					_ = s.Close()
				}
			}()

			for _, col := range a.Config.Collections {
				if fetch {
					syncer, err := a.NewSyncer(ctx, col.Name)
					if err != nil {
						return err
					}
					if _, err := syncer.Fetch(ctx, col.DataDir); err != nil {
						return fmt.Errorf("fetch %s: %w", col.Name, err)
					}
				}

				mc, err := server.NewPrometheusCollector(reg, col.Name)
				if err != nil {
					return err
				}

				s, err := a.OpenCollection(ctx, col, vecsearch.WithMetricsCollector(mc))
				if err != nil {
					return err
				}
				searchers = append(searchers, s)

				cols = append(cols, server.Collection{
					Name:       col.Name,
					FieldNames: col.FieldNames,
					Searcher:   s,
				})
			}

			srv, err := server.New(a.Config.Server, cols,
				server.WithLogger(a.Logger.Slog()),
				server.WithRegistry(reg),
			)
			if err != nil {
				return err
			}

			if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, ctx.Err()) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fetch, "fetch", false, "download the current snapshot of every collection before serving")

	return cmd
}
