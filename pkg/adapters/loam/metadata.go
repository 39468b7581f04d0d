package loam

import "github.com/aretw0/witmorph/pkg/domain"

// EntityMetadata is the frontmatter of one entity type document.
// It uses "mapstructure" tags to match standard Frontmatter/YAML keys.
type EntityMetadata struct {
	Name     string           `json:"name" mapstructure:"name"`
	Order    int              `json:"order,omitempty" mapstructure:"order"`
	Fields   []FieldMetadata  `json:"fields" mapstructure:"fields"`
	Workflow WorkflowMetadata `json:"workflow" mapstructure:"workflow"`
}

// FieldMetadata describes one field.
type FieldMetadata struct {
	Ref  string `json:"ref" mapstructure:"ref"`
	Name string `json:"name,omitempty" mapstructure:"name"`
	Type string `json:"type,omitempty" mapstructure:"type"`
}

// WorkflowMetadata describes the workflow. States may also be declared
// implicitly through transitions.
type WorkflowMetadata struct {
	States      []string             `json:"states" mapstructure:"states"`
	Transitions []TransitionMetadata `json:"transitions,omitempty" mapstructure:"transitions"`
}

// TransitionMetadata is a workflow edge.
type TransitionMetadata struct {
	From   string `json:"from" mapstructure:"from"`
	To     string `json:"to" mapstructure:"to"`
	Reason string `json:"reason,omitempty" mapstructure:"reason"`
}

func (m EntityMetadata) toDomain(fallbackName string) domain.EntityType {
	et := domain.EntityType{Name: m.Name}
	if et.Name == "" {
		et.Name = fallbackName
	}
	for _, f := range m.Fields {
		et.Fields = append(et.Fields, domain.Field{RefName: f.Ref, Name: f.Name, Type: f.Type})
	}

	et.Workflow.States = append(et.Workflow.States, m.Workflow.States...)
	for _, t := range m.Workflow.Transitions {
		et.Workflow.Transitions = append(et.Workflow.Transitions, domain.Transition{From: t.From, To: t.To, Reason: t.Reason})
		for _, s := range []string{t.From, t.To} {
			if s != "" && !et.Workflow.HasState(s) {
				et.Workflow.States = append(et.Workflow.States, s)
			}
		}
	}
	return et
}
