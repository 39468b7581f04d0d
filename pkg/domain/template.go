package domain

// Field is a named, typed attribute of an entity type.
// RefName is the stable identifier used by mappings and the record store.
type Field struct {
	RefName string `json:"ref" yaml:"ref" mapstructure:"ref"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
}

// Transition is an edge of a workflow. An empty From denotes the initial transition.
type Transition struct {
	From   string `json:"from" yaml:"from" mapstructure:"from"`
	To     string `json:"to" yaml:"to" mapstructure:"to"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty" mapstructure:"reason"`
}

// Workflow is the finite status model of an entity type.
// It is not required to be total: missing transitions are not an error.
type Workflow struct {
	States      []string     `json:"states" yaml:"states" mapstructure:"states"`
	Transitions []Transition `json:"transitions,omitempty" yaml:"transitions,omitempty" mapstructure:"transitions"`
}

// HasState reports whether the workflow declares the given state verbatim.
func (w Workflow) HasState(state string) bool {
	for _, s := range w.States {
		if s == state {
			return true
		}
	}
	return false
}

// EntityType is a named record kind with its own fields and workflow.
type EntityType struct {
	Name     string   `json:"name" yaml:"name" mapstructure:"name"`
	Fields   []Field  `json:"fields" yaml:"fields" mapstructure:"fields"`
	Workflow Workflow `json:"workflow" yaml:"workflow" mapstructure:"workflow"`
}

// Field returns the field with the given reference name.
func (e *EntityType) Field(ref string) (Field, bool) {
	for _, f := range e.Fields {
		if f.RefName == ref {
			return f, true
		}
	}
	return Field{}, false
}

// HasField reports whether the entity declares the given field reference name.
func (e *EntityType) HasField(ref string) bool {
	_, ok := e.Field(ref)
	return ok
}

// FieldRefs returns the reference names of all fields in declaration order.
func (e *EntityType) FieldRefs() []string {
	refs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		refs = append(refs, f.RefName)
	}
	return refs
}

// ProcessTemplate is a read-only snapshot of one version of a process template.
type ProcessTemplate struct {
	Name     string       `json:"name" yaml:"name" mapstructure:"name"`
	Version  string       `json:"version,omitempty" yaml:"version,omitempty" mapstructure:"version"`
	Entities []EntityType `json:"entities" yaml:"entities" mapstructure:"entities"`
}

// Entity returns the entity type with the given name.
func (t *ProcessTemplate) Entity(name string) (*EntityType, bool) {
	if t == nil {
		return nil, false
	}
	for i := range t.Entities {
		if t.Entities[i].Name == name {
			return &t.Entities[i], true
		}
	}
	return nil, false
}

// EntityNames returns the entity type names in declaration order.
func (t *ProcessTemplate) EntityNames() []string {
	names := make([]string, 0, len(t.Entities))
	for _, e := range t.Entities {
		names = append(names, e.Name)
	}
	return names
}

// Label returns a human readable identifier for the template.
func (t *ProcessTemplate) Label() string {
	if t == nil {
		return ""
	}
	if t.Version == "" {
		return t.Name
	}
	return t.Name + " " + t.Version
}
