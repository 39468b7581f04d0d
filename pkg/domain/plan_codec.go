package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// StepEnvelope is the wire form of an action.
type StepEnvelope struct {
	Kind   ActionKind     `json:"kind"`
	Phase  Phase          `json:"phase"`
	Params map[string]any `json:"params"`
}

// EncodeAction converts an action into its envelope.
func EncodeAction(a Action) (StepEnvelope, error) {
	params := map[string]any{}
	if err := mapstructure.Decode(a, &params); err != nil {
		return StepEnvelope{}, fmt.Errorf("encode %s: %w", a.Kind(), err)
	}
	return StepEnvelope{Kind: a.Kind(), Phase: a.Phase(), Params: params}, nil
}

// DecodeAction rebuilds an action from its envelope.
// The envelope phase, when set, must agree with the variant's phase.
func DecodeAction(env StepEnvelope) (Action, error) {
	var (
		action Action
		err    error
	)
	switch env.Kind {
	case KindRename:
		var v Rename
		err = decodeParams(env.Params, &v)
		action = v
	case KindExportData:
		var v ExportData
		err = decodeParams(env.Params, &v)
		action = v
	case KindCopyData:
		var v CopyData
		err = decodeParams(env.Params, &v)
		action = v
	case KindModifyState:
		var v ModifyState
		err = decodeParams(env.Params, &v)
		action = v
	case KindDestroy:
		var v Destroy
		err = decodeParams(env.Params, &v)
		action = v
	default:
		return nil, fmt.Errorf("unknown action kind %q", env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Kind, err)
	}
	if env.Phase != 0 && env.Phase != action.Phase() {
		return nil, fmt.Errorf("decode %s: phase %d does not match %s", env.Kind, env.Phase, action.Phase())
	}
	return action, nil
}

func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}

type entityErrorDoc struct {
	Source  string `json:"source"`
	Target  string `json:"target,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type planDoc struct {
	ID        string           `json:"id"`
	Source    string           `json:"source"`
	Target    string           `json:"target"`
	CreatedAt time.Time        `json:"created_at"`
	Steps     []StepEnvelope   `json:"steps"`
	Errors    []entityErrorDoc `json:"errors,omitempty"`
}

// MarshalJSON encodes the plan with typed step envelopes.
func (p Plan) MarshalJSON() ([]byte, error) {
	doc := planDoc{
		ID:        p.ID,
		Source:    p.Source,
		Target:    p.Target,
		CreatedAt: p.CreatedAt,
		Steps:     make([]StepEnvelope, 0, len(p.Steps)),
	}
	for _, s := range p.Steps {
		env, err := EncodeAction(s)
		if err != nil {
			return nil, err
		}
		doc.Steps = append(doc.Steps, env)
	}
	for _, e := range p.Errors {
		doc.Errors = append(doc.Errors, entityErrorDoc{
			Source:  e.Source,
			Target:  e.Target,
			Kind:    ErrorKind(e.Err),
			Message: e.Err.Error(),
		})
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes a plan written by MarshalJSON.
func (p *Plan) UnmarshalJSON(data []byte) error {
	var doc planDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	steps := make([]Action, 0, len(doc.Steps))
	for i, env := range doc.Steps {
		a, err := DecodeAction(env)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		steps = append(steps, a)
	}
	var errs PlanErrors
	for _, e := range doc.Errors {
		errs = append(errs, &EntityError{
			Source: e.Source,
			Target: e.Target,
			Err:    &decodedError{kind: errorForKind(e.Kind), msg: e.Message},
		})
	}
	*p = Plan{
		ID:        doc.ID,
		Source:    doc.Source,
		Target:    doc.Target,
		CreatedAt: doc.CreatedAt,
		Steps:     steps,
		Errors:    errs,
	}
	return nil
}
