package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/chronicle"
	"github.com/aretw0/chronicle/internal/cli"
	"github.com/aretw0/chronicle/internal/presentation/tui"
	httpadapter "github.com/aretw0/chronicle/pkg/adapters/http"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Serves executions, lineage queries, the change feed (SSE) and Prometheus metrics over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, cfg, logger, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if cmd.Flags().Changed("addr") {
			cfg.HTTPAddr, _ = cmd.Flags().GetString("addr")
		}
		if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
			tui.PrintBanner(os.Stderr, chronicle.Version)
		}

		srv := &http.Server{
			Addr: cfg.HTTPAddr,
			Handler: httpadapter.NewHandler(rt.Service,
				httpadapter.WithSubscriber(rt.Subscriber),
				httpadapter.WithMetrics(rt.Metrics.Handler()),
				httpadapter.WithLogger(logger),
			),
			ReadHeaderTimeout: 10 * time.Second,
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting Chronicle server", "address", srv.Addr, "backend", cfg.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			return err
		case <-sigCtx.Done():
			logger.Info("Start shutdown", "signal", sigCtx.Signal())

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}
			logger.Info("Chronicle server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().BoolP("quiet", "q", false, "Skip the startup banner")
}
