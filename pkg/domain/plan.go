package domain

import (
	"time"
)

// Plan is the final ordered sequence of actions for one migration,
// together with the comparison errors collected while building it.
type Plan struct {
	ID        string
	Source    string
	Target    string
	CreatedAt time.Time
	Steps     []Action
	Errors    PlanErrors
}

// HasErrors reports whether any entity comparison failed.
func (p *Plan) HasErrors() bool {
	return len(p.Errors) > 0
}

// CountByPhase returns how many steps fall into each phase.
func (p *Plan) CountByPhase() map[Phase]int {
	counts := make(map[Phase]int, PhaseCount)
	for _, s := range p.Steps {
		counts[s.Phase()]++
	}
	return counts
}

// StepsFor returns the steps that operate on the given entity type, in plan order.
func (p *Plan) StepsFor(entity string) []Action {
	var out []Action
	for _, s := range p.Steps {
		if EntityOf(s) == entity {
			out = append(out, s)
		}
	}
	return out
}

// Record is a single row of the live record store.
type Record struct {
	ID     int64          `json:"id"`
	Type   string         `json:"type"`
	State  string         `json:"state"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Clone returns a deep copy of the record's field map.
func (r Record) Clone() Record {
	out := r
	if r.Fields != nil {
		out.Fields = make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// ExportBatch is the payload written to an archive by an ExportData step.
type ExportBatch struct {
	PlanID     string    `json:"plan_id"`
	Step       int       `json:"step"`
	Type       string    `json:"type"`
	Fields     []string  `json:"fields,omitempty"`
	AllFields  bool      `json:"all_fields,omitempty"`
	ExportedAt time.Time `json:"exported_at"`
	Records    []Record  `json:"records"`
}

// Progress is the checkpoint of a plan run.
// Completed is the number of leading steps already applied.
type Progress struct {
	PlanID    string    `json:"plan_id"`
	RunID     string    `json:"run_id"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Done reports whether every step has been applied.
func (p *Progress) Done() bool {
	return p.Total > 0 && p.Completed >= p.Total
}
