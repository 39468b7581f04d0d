package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/aretw0/witmorph"
	httpAdapter "github.com/aretw0/witmorph/pkg/adapters/http"
	"github.com/aretw0/witmorph/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the planning HTTP server",
	Long:  `Exposes planning and validation as a JSON API over HTTP, with the OpenAPI document at /openapi.yaml and Prometheus metrics at /metrics.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		reg := prometheus.NewRegistry()
		metrics := observability.NewMetrics(reg)
		planner := witmorph.New(
			witmorph.WithLogger(logger),
			witmorph.WithMetrics(metrics),
			witmorph.WithDestroyUnmappedStates(cfg.Planner.DestroyUnmappedStates),
		)

		handler, err := httpAdapter.NewHandler(planner,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMetrics(reg),
		)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("starting witmorph server", "address", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("graceful shutdown did not complete", "err", err)
				return srv.Close()
			}
			logger.Info("witmorph server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().Bool("destroy-unmapped-states", false, "Destroy source states that are neither mapped nor kept")
}
