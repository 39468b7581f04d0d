package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/witmorph"
	"github.com/aretw0/witmorph/internal/presentation/tui"
	"github.com/aretw0/witmorph/pkg/domain"
)

var planCmd = &cobra.Command{
	Use:   "plan SOURCE TARGET MAPPING",
	Short: "Compute the migration plan between two templates",
	Long: `Compares SOURCE and TARGET under MAPPING and prints the ordered plan.
Templates are YAML/JSON files or directories with one document per entity type.
Entities that cannot be compared are reported beside the partial plan.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("output")

		p := newPlanner()
		plan, err := p.PlanFiles(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			return err
		}

		if out != "" {
			if err := writePlan(out, plan); err != nil {
				return err
			}
			logger.Info("plan written", "path", out, "steps", len(plan.Steps), "errors", len(plan.Errors))
		}

		w := cmd.OutOrStdout()
		switch format {
		case "json":
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(plan); err != nil {
				return err
			}
		case "text":
			fmt.Fprint(w, tui.PlanText(plan))
		case "markdown":
			md := tui.PlanMarkdown(plan)
			if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				if rendered, err := tui.NewRenderer()(md); err == nil {
					md = rendered
				}
			}
			fmt.Fprint(w, md)
		default:
			return fmt.Errorf("unknown format %q (want markdown, text or json)", format)
		}

		if plan.HasErrors() {
			return fmt.Errorf("%d entities could not be compared", len(plan.Errors))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringP("output", "o", "", "Write the plan document to this file")
	planCmd.Flags().StringP("format", "f", "markdown", "Output format: markdown, text or json")
	planCmd.Flags().Bool("destroy-unmapped-states", false, "Destroy source states that are neither mapped nor kept")
	planCmd.Flags().Bool("parallel", false, "Compare entity pairs concurrently")
	planCmd.Flags().Int("workers", 0, "Concurrent comparisons in parallel mode (0 means one per CPU)")
}

func newPlanner() *witmorph.Planner {
	opts := []witmorph.Option{
		witmorph.WithLogger(logger),
		witmorph.WithDestroyUnmappedStates(cfg.Planner.DestroyUnmappedStates),
	}
	if cfg.Planner.Parallel {
		opts = append(opts, witmorph.WithParallel(cfg.Planner.Workers))
	}
	return witmorph.New(opts...)
}

func writePlan(path string, plan *domain.Plan) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func readPlan(path string) (*domain.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var plan domain.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan %s: %w", path, err)
	}
	return &plan, nil
}
