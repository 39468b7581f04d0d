package tui

import (
	"fmt"
	"strings"

	"github.com/muesli/termenv"

	"github.com/aretw0/witmorph/pkg/domain"
)

var phaseColors = map[domain.Phase]string{
	domain.PhaseRename:      "#818cf8",
	domain.PhaseExport:      "#38bdf8",
	domain.PhaseCopy:        "#34d399",
	domain.PhaseModifyState: "#fbbf24",
	domain.PhaseDestroy:     "#f87171",
}

// PhaseLabel returns the phase name colored for the current terminal.
func PhaseLabel(p domain.Phase) string {
	profile := termenv.ColorProfile()
	return termenv.String(p.String()).Foreground(profile.Color(phaseColors[p])).Bold().String()
}

// PlanMarkdown renders a plan as a markdown document with one section per
// non-empty phase and a section listing comparison errors.
func PlanMarkdown(plan *domain.Plan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Migration plan `%s`\n\n", plan.ID)
	fmt.Fprintf(&sb, "**%s** → **%s**, %d steps\n\n", plan.Source, plan.Target, len(plan.Steps))

	counts := plan.CountByPhase()
	index := 0
	for _, p := range domain.Phases() {
		if counts[p] == 0 {
			continue
		}
		rows := make([]string, 0, counts[p])
		for i, s := range plan.Steps {
			if s.Phase() == p {
				rows = append(rows, fmt.Sprintf("| %d | %s | %s | %s |", i, s.Kind(), escapeCell(domain.EntityOf(s)), escapeCell(s.String())))
			}
		}
		index++
		fmt.Fprintf(&sb, "## %d. %s (%d)\n\n", index, strings.ToUpper(p.String()[:1])+p.String()[1:], counts[p])
		sb.WriteString("| # | Kind | Entity | Step |\n|---|---|---|---|\n")
		sb.WriteString(strings.Join(rows, "\n"))
		sb.WriteString("\n\n")
	}
	if len(plan.Steps) == 0 {
		sb.WriteString("_Nothing to migrate._\n\n")
	}

	if plan.HasErrors() {
		fmt.Fprintf(&sb, "## Errors (%d)\n\n", len(plan.Errors))
		for _, e := range plan.Errors {
			fmt.Fprintf(&sb, "- **%s**: %s\n", escapeCell(e.Source), escapeCell(e.Err.Error()))
		}
		sb.WriteString("\nEntities with errors contribute no steps.\n")
	}
	return sb.String()
}

// PlanText renders a compact one-line-per-step listing with colored phases.
func PlanText(plan *domain.Plan) string {
	var sb strings.Builder
	for i, s := range plan.Steps {
		fmt.Fprintf(&sb, "%3d  %-20s %s\n", i, PhaseLabel(s.Phase()), s)
	}
	for _, e := range plan.Errors {
		fmt.Fprintf(&sb, "  !  %s\n", e)
	}
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
