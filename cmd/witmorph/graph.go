package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/witmorph"
	"github.com/aretw0/witmorph/internal/presentation/graph"
	"github.com/aretw0/witmorph/pkg/domain"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph TEMPLATE",
	Short: "Export entity workflows as Mermaid diagrams",
	Long: `Outputs a Mermaid state diagram per entity type of TEMPLATE.
With --plan, state rewrites and destroyed states from the plan are overlaid.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		only, _ := cmd.Flags().GetString("entity")
		planPath, _ := cmd.Flags().GetString("plan")

		loader, err := witmorph.OpenTemplate(args[0])
		if err != nil {
			return err
		}
		tmpl, err := loader.Load(cmd.Context())
		if err != nil {
			return err
		}

		var plan *domain.Plan
		if planPath != "" {
			if plan, err = readPlan(planPath); err != nil {
				return err
			}
		}

		w := cmd.OutOrStdout()
		found := false
		for _, et := range tmpl.Entities {
			if only != "" && et.Name != only {
				continue
			}
			found = true
			var overlay *graph.WorkflowOverlay
			if plan != nil {
				name := finalName(plan, et.Name)
				overlay = graph.OverlayFor(plan.StepsFor(name), name)
			}
			fmt.Fprintf(w, "%%%% %s\n", et.Name)
			fmt.Fprintln(w, graph.GenerateMermaid(et, overlay))
		}
		if only != "" && !found {
			return fmt.Errorf("entity type %q not in template %s", only, tmpl.Label())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("entity", "e", "", "Only render this entity type")
	graphCmd.Flags().String("plan", "", "Overlay the state changes of this plan document")
}

// finalName follows a type rename in plan, since later steps use the new name.
func finalName(plan *domain.Plan, name string) string {
	for _, s := range plan.Steps {
		if r, ok := s.(domain.Rename); ok && r.Target.Kind == domain.IdentityType && r.Target.Type == name {
			return r.NewName
		}
	}
	return name
}
