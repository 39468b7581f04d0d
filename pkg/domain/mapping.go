package domain

// CopyRule copies field data from a source field into a target field
// before the source field is destroyed.
type CopyRule struct {
	From string `json:"from" yaml:"from" mapstructure:"from"`
	To   string `json:"to" yaml:"to" mapstructure:"to"`
}

// FieldMap is a single field correspondence.
type FieldMap struct {
	Source string `json:"source" yaml:"source" mapstructure:"source"`
	Target string `json:"target" yaml:"target" mapstructure:"target"`
}

// StateMap is a single workflow state correspondence.
type StateMap struct {
	Source string `json:"source" yaml:"source" mapstructure:"source"`
	Target string `json:"target" yaml:"target" mapstructure:"target"`
}

// EntityMap is the correspondence for one source entity type.
// An empty Target retires the source type.
type EntityMap struct {
	Source string     `json:"source" yaml:"source" mapstructure:"source"`
	Target string     `json:"target,omitempty" yaml:"target,omitempty" mapstructure:"target"`
	Fields []FieldMap `json:"fields,omitempty" yaml:"fields,omitempty" mapstructure:"fields"`
	States []StateMap `json:"states,omitempty" yaml:"states,omitempty" mapstructure:"states"`
	Copies []CopyRule `json:"copy,omitempty" yaml:"copy,omitempty" mapstructure:"copy"`
}

// Retired reports whether the source entity type has no successor.
func (m *EntityMap) Retired() bool {
	return m.Target == ""
}

// TargetFieldFor returns the target reference name mapped to a source field.
func (m *EntityMap) TargetFieldFor(source string) (string, bool) {
	for _, f := range m.Fields {
		if f.Source == source {
			return f.Target, true
		}
	}
	return "", false
}

// TargetStateFor returns the target state mapped to a source state.
func (m *EntityMap) TargetStateFor(source string) (string, bool) {
	for _, s := range m.States {
		if s.Source == source {
			return s.Target, true
		}
	}
	return "", false
}

// Mapping is the explicit source to target correspondence driving a comparison.
// Entity order is significant: it decides relative order within a phase.
// A Mapping may be partial; lookups never fail, they report absence.
type Mapping struct {
	Name     string      `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Entities []EntityMap `json:"entities" yaml:"entities" mapstructure:"entities"`
}

// Entity returns the correspondence declared for a source entity type.
func (m *Mapping) Entity(source string) (*EntityMap, bool) {
	if m == nil {
		return nil, false
	}
	for i := range m.Entities {
		if m.Entities[i].Source == source {
			return &m.Entities[i], true
		}
	}
	return nil, false
}

// TargetEntityFor returns the target type name for a source type.
// A retired type yields ("", true).
func (m *Mapping) TargetEntityFor(source string) (string, bool) {
	em, ok := m.Entity(source)
	if !ok {
		return "", false
	}
	return em.Target, true
}

// TargetFieldFor returns the target field for a field of a source entity type.
func (m *Mapping) TargetFieldFor(entity, field string) (string, bool) {
	em, ok := m.Entity(entity)
	if !ok {
		return "", false
	}
	return em.TargetFieldFor(field)
}

// TargetStateFor returns the target state for a state of a source entity type.
func (m *Mapping) TargetStateFor(entity, state string) (string, bool) {
	em, ok := m.Entity(entity)
	if !ok {
		return "", false
	}
	return em.TargetStateFor(state)
}
