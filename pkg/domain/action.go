package domain

import (
	"fmt"
	"strings"
)

// Phase is the ordinal that fixes an action's position in a plan.
// Lower phases always run before higher ones, whichever entity produced them.
type Phase int

const (
	PhaseRename Phase = iota + 1
	PhaseExport
	PhaseCopy
	PhaseModifyState
	PhaseDestroy
)

// PhaseCount is the number of phases.
const PhaseCount = int(PhaseDestroy)

// Phases lists every phase in execution order.
func Phases() []Phase {
	return []Phase{PhaseRename, PhaseExport, PhaseCopy, PhaseModifyState, PhaseDestroy}
}

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	return p >= PhaseRename && p <= PhaseDestroy
}

func (p Phase) String() string {
	switch p {
	case PhaseRename:
		return "rename"
	case PhaseExport:
		return "export"
	case PhaseCopy:
		return "copy"
	case PhaseModifyState:
		return "modify-state"
	case PhaseDestroy:
		return "destroy"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ActionKind names an action variant on the wire.
type ActionKind string

const (
	KindRename      ActionKind = "rename"
	KindExportData  ActionKind = "export_data"
	KindCopyData    ActionKind = "copy_data"
	KindModifyState ActionKind = "modify_state"
	KindDestroy     ActionKind = "destroy"
)

// IdentityKind tells which schema element an Identity points at.
type IdentityKind string

const (
	IdentityType  IdentityKind = "type"
	IdentityField IdentityKind = "field"
	IdentityState IdentityKind = "state"
)

// Identity addresses a schema element.
// For a type, Type holds its name and Name is empty.
// For a field or state, Type is the owning entity type and Name the element.
type Identity struct {
	Kind IdentityKind `json:"kind" mapstructure:"kind"`
	Type string       `json:"type" mapstructure:"type"`
	Name string       `json:"name,omitempty" mapstructure:"name"`
}

// TypeIdentity addresses an entity type.
func TypeIdentity(typeName string) Identity {
	return Identity{Kind: IdentityType, Type: typeName}
}

// FieldIdentity addresses a field of an entity type.
func FieldIdentity(typeName, ref string) Identity {
	return Identity{Kind: IdentityField, Type: typeName, Name: ref}
}

// StateIdentity addresses a workflow state of an entity type.
func StateIdentity(typeName, state string) Identity {
	return Identity{Kind: IdentityState, Type: typeName, Name: state}
}

// Element returns the name of the addressed element.
func (i Identity) Element() string {
	if i.Kind == IdentityType {
		return i.Type
	}
	return i.Name
}

func (i Identity) String() string {
	if i.Kind == IdentityType {
		return fmt.Sprintf("type %q", i.Type)
	}
	return fmt.Sprintf("%s %q of %q", i.Kind, i.Name, i.Type)
}

// Action is one atomic, executable migration step.
// The set of implementations is closed: Rename, ExportData, CopyData,
// ModifyState and Destroy. Values are immutable once built.
type Action interface {
	Kind() ActionKind
	Phase() Phase
	String() string
	action()
}

// Rename changes the identifier of a type, field or state in place.
type Rename struct {
	Target  Identity `json:"target" mapstructure:"target"`
	NewName string   `json:"new_name" mapstructure:"new_name"`
}

func (Rename) Kind() ActionKind { return KindRename }
func (Rename) Phase() Phase     { return PhaseRename }
func (Rename) action()          {}

func (a Rename) String() string {
	return fmt.Sprintf("rename %s to %q", a.Target, a.NewName)
}

// ExportData preserves records of a type before anything is destroyed.
// With AllFields set, Fields is ignored and every field is exported.
type ExportData struct {
	Type      string   `json:"type" mapstructure:"type"`
	Fields    []string `json:"fields,omitempty" mapstructure:"fields"`
	AllFields bool     `json:"all_fields,omitempty" mapstructure:"all_fields"`
}

// NewExportFields builds an ExportData covering the listed fields.
func NewExportFields(typeName string, fields ...string) ExportData {
	return ExportData{Type: typeName, Fields: append([]string(nil), fields...)}
}

// NewExportAll builds an ExportData covering every field of a type.
func NewExportAll(typeName string) ExportData {
	return ExportData{Type: typeName, AllFields: true}
}

func (ExportData) Kind() ActionKind { return KindExportData }
func (ExportData) Phase() Phase     { return PhaseExport }
func (ExportData) action()          {}

// Covers reports whether the export includes the given field.
func (a ExportData) Covers(field string) bool {
	if a.AllFields {
		return true
	}
	for _, f := range a.Fields {
		if f == field {
			return true
		}
	}
	return false
}

func (a ExportData) String() string {
	if a.AllFields {
		return fmt.Sprintf("export all fields of %q", a.Type)
	}
	return fmt.Sprintf("export %s of %q", strings.Join(a.Fields, ", "), a.Type)
}

// CopyData copies the value of From into To for every record of Type.
type CopyData struct {
	Type string `json:"type" mapstructure:"type"`
	From string `json:"from" mapstructure:"from"`
	To   string `json:"to" mapstructure:"to"`
}

func (CopyData) Kind() ActionKind { return KindCopyData }
func (CopyData) Phase() Phase     { return PhaseCopy }
func (CopyData) action()          {}

func (a CopyData) String() string {
	return fmt.Sprintf("copy %q to %q on %q", a.From, a.To, a.Type)
}

// ModifyState rewrites records of Type whose state equals From.
type ModifyState struct {
	Type string `json:"type" mapstructure:"type"`
	From string `json:"from" mapstructure:"from"`
	To   string `json:"to" mapstructure:"to"`
}

func (ModifyState) Kind() ActionKind { return KindModifyState }
func (ModifyState) Phase() Phase     { return PhaseModifyState }
func (ModifyState) action()          {}

func (a ModifyState) String() string {
	return fmt.Sprintf("move %q records from state %q to %q", a.Type, a.From, a.To)
}

// Destroy irreversibly removes a type, field or state.
type Destroy struct {
	Target Identity `json:"target" mapstructure:"target"`
}

func (Destroy) Kind() ActionKind { return KindDestroy }
func (Destroy) Phase() Phase     { return PhaseDestroy }
func (Destroy) action()          {}

func (a Destroy) String() string {
	return fmt.Sprintf("destroy %s", a.Target)
}

// EntityOf returns the entity type an action operates on.
func EntityOf(a Action) string {
	switch v := a.(type) {
	case Rename:
		return v.Target.Type
	case ExportData:
		return v.Type
	case CopyData:
		return v.Type
	case ModifyState:
		return v.Type
	case Destroy:
		return v.Target.Type
	default:
		return ""
	}
}
