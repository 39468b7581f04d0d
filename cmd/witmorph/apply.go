package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aretw0/witmorph"
	"github.com/aretw0/witmorph/internal/presentation/tui"
	"github.com/aretw0/witmorph/pkg/observability"
)

var applyCmd = &cobra.Command{
	Use:   "apply PLAN",
	Short: "Apply a plan document to the configured record store",
	Long: `Applies the steps of a plan written by 'witmorph plan -o' one at a time.
Progress is checkpointed after every step; running the same plan again
resumes after the last completed step.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		restart, _ := cmd.Flags().GetBool("restart")
		allowPartial, _ := cmd.Flags().GetBool("allow-partial")
		seed, _ := cmd.Flags().GetString("seed")
		lockTTL, _ := cmd.Flags().GetDuration("lock-ttl")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		plan, err := readPlan(args[0])
		if err != nil {
			return err
		}

		res := newResources(cfg)
		defer func() {
			if err := res.Close(); err != nil {
				logger.Warn("failed to release resources", "err", err)
			}
		}()

		store, err := res.Store(ctx)
		if err != nil {
			return fmt.Errorf("failed to open record store: %w", err)
		}
		if seed != "" {
			n, err := seedRecords(ctx, store, seed)
			if err != nil {
				return fmt.Errorf("failed to seed records: %w", err)
			}
			logger.Info("records seeded", "count", n, "path", seed)
		}
		archive, err := res.Archive(ctx)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		progress, err := res.Progress()
		if err != nil {
			return fmt.Errorf("failed to open progress store: %w", err)
		}

		reg := prometheus.NewRegistry()
		metrics := observability.NewMetrics(reg)
		if cfg.Metrics.Addr != "" {
			stopMetrics := serveMetrics(cfg.Metrics.Addr, reg)
			defer stopMetrics()
		}

		opts := []witmorph.ExecutorOption{
			witmorph.WithArchive(archive),
			witmorph.WithProgressStore(progress),
			witmorph.WithLifecycleHooks(observability.Hooks(logger, metrics)),
			witmorph.WithExecutorLogger(logger),
			witmorph.WithDryRun(dryRun),
			witmorph.WithRestart(restart),
			witmorph.WithAllowPartial(allowPartial),
			witmorph.WithLocker(res.Locker(), lockTTL),
		}

		report, runErr := witmorph.NewExecutor(store, opts...).Run(ctx, plan)
		if report != nil {
			printReport(cmd.OutOrStdout(), report)
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().Bool("dry-run", false, "Report the steps without changing anything")
	applyCmd.Flags().Bool("restart", false, "Ignore the saved checkpoint and apply every step")
	applyCmd.Flags().Bool("allow-partial", false, "Apply a plan even if some entities failed comparison")
	applyCmd.Flags().String("seed", "", "Insert the records of this YAML/JSON file before applying")
	applyCmd.Flags().Duration("lock-ttl", 5*time.Minute, "Lifetime of the apply lock")
	applyCmd.Flags().String("store-driver", "memory", "Record store: memory, sqlite or postgres")
	applyCmd.Flags().String("store-dsn", "", "Record store DSN (file path for sqlite)")
	applyCmd.Flags().String("archive-driver", "file", "Export archive: file, xlsx or s3")
	applyCmd.Flags().String("archive-path", ".witmorph/exports", "Export directory for file and xlsx archives")
	applyCmd.Flags().String("progress-driver", "file", "Checkpoint store: memory, file or redis")
	applyCmd.Flags().String("progress-path", ".witmorph/progress", "Checkpoint directory for the file driver")
	applyCmd.Flags().String("redis-addr", "localhost:6379", "Redis address for checkpoints and locking")
	applyCmd.Flags().Bool("lock", false, "Guard the run with a Redis lock on the plan ID")
	applyCmd.Flags().String("metrics-addr", "", "Expose Prometheus metrics on this address while applying")
}

func printReport(w io.Writer, report *witmorph.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tPHASE\tACTION\tAFFECTED\tSTATUS")
	for _, s := range report.Steps {
		status := "applied"
		switch {
		case s.Skipped:
			status = "skipped"
		case report.DryRun:
			status = "dry-run"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", s.Index+1, tui.PhaseLabel(s.Action.Phase()), s.Action, s.Affected, status)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\nplan %s: %d applied, %d resumed, %d records affected\n",
		report.PlanID, report.Applied(), report.Resumed, report.Affected())
}

// serveMetrics exposes reg on addr until the returned func is called.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
