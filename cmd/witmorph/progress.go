package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Inspect or clear saved apply checkpoints",
}

var progressListCmd = &cobra.Command{
	Use:   "list",
	Short: "List plans with a saved checkpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		res := newResources(cfg)
		defer res.Close()

		store, err := res.Progress()
		if err != nil {
			return err
		}
		ids, err := store.List(ctx)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(w, "No checkpoints.")
			return nil
		}
		for _, id := range ids {
			p, err := store.Load(ctx, id)
			if err != nil {
				logger.Warn("failed to load checkpoint", "plan_id", id, "err", err)
				continue
			}
			fmt.Fprintf(w, "%s\t%d/%d\t%s\n", id, p.Completed, p.Total, p.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var progressDeleteCmd = &cobra.Command{
	Use:   "delete PLAN_ID...",
	Short: "Delete checkpoints so the next apply starts from the first step",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res := newResources(cfg)
		defer res.Close()

		store, err := res.Progress()
		if err != nil {
			return err
		}
		for _, id := range args {
			if err := store.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete checkpoint %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted checkpoint %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(progressCmd)
	progressCmd.AddCommand(progressListCmd, progressDeleteCmd)
	progressCmd.PersistentFlags().String("progress-driver", "file", "Checkpoint store: memory, file or redis")
	progressCmd.PersistentFlags().String("progress-path", ".witmorph/progress", "Checkpoint directory for the file driver")
	progressCmd.PersistentFlags().String("redis-addr", "localhost:6379", "Redis address")
}
