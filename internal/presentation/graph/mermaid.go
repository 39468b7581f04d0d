package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/witmorph/pkg/domain"
)

// WorkflowOverlay carries the plan's effect on one entity's workflow.
type WorkflowOverlay struct {
	Moves     map[string]string // source state -> target state
	Destroyed []string
}

// OverlayFor collects the state steps of plan that touch entity.
// Steps address the entity by its final name, so pass the target name for renamed types.
func OverlayFor(steps []domain.Action, entity string) *WorkflowOverlay {
	o := &WorkflowOverlay{Moves: map[string]string{}}
	for _, s := range steps {
		switch a := s.(type) {
		case domain.ModifyState:
			if a.Type == entity {
				o.Moves[a.From] = a.To
			}
		case domain.Destroy:
			if a.Target.Kind == domain.IdentityState && a.Target.Type == entity {
				o.Destroyed = append(o.Destroyed, a.Target.Name)
			}
		}
	}
	return o
}

// GenerateMermaid produces a Mermaid state flowchart for an entity workflow.
// It applies semantic styling:
// - Initial state (target of a creation transition): ((Circle))
// - Default: [Rectangle]
// Overlay moves are drawn as dotted arrows into the target state; moved
// and destroyed states get their own classes.
func GenerateMermaid(et domain.EntityType, overlay *WorkflowOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	initial := make(map[string]bool)
	for _, t := range et.Workflow.Transitions {
		if t.From == "" {
			initial[t.To] = true
		}
	}

	for _, state := range et.Workflow.States {
		safeID := sanitizeMermaidID(state)
		opener, closer := "[", "]"
		if initial[state] {
			opener, closer = "((", "))"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, escape(state), closer))
	}

	for _, t := range et.Workflow.Transitions {
		if t.From == "" {
			continue
		}
		arrow := "-->"
		if t.Reason != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", escape(t.Reason))
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(t.From), arrow, sanitizeMermaidID(t.To)))
	}

	if overlay == nil {
		return sb.String()
	}

	sb.WriteString("\n    %% Migration Overlay\n")
	// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
	sb.WriteString("    classDef moved fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef retired fill:#ffebee,stroke:#b71c1c,stroke-dasharray:4,color:#000;\n")

	for _, from := range et.Workflow.States {
		to, ok := overlay.Moves[from]
		if !ok {
			continue
		}
		safeTo := "target_" + sanitizeMermaidID(to)
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", safeTo, escape(to)))
		sb.WriteString(fmt.Sprintf("    %s -. migrate .-> %s\n", sanitizeMermaidID(from), safeTo))
		sb.WriteString(fmt.Sprintf("    class %s moved;\n", sanitizeMermaidID(from)))
	}
	for _, state := range overlay.Destroyed {
		sb.WriteString(fmt.Sprintf("    class %s retired;\n", sanitizeMermaidID(state)))
	}
	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
