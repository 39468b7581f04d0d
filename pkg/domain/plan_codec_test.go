package domain_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/witmorph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_JSONRoundTrip(t *testing.T) {
	plan := domain.Plan{
		ID:        "plan-1",
		Source:    "Scrum 2.0",
		Target:    "Agile 6.0",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Steps: []domain.Action{
			domain.Rename{Target: domain.TypeIdentity("Product Backlog Item"), NewName: "User Story"},
			domain.NewExportFields("Bug", "Effort", "AcceptanceCriteria"),
			domain.NewExportAll("Impediment"),
			domain.CopyData{Type: "Bug", From: "BacklogPriority", To: "StackRank"},
			domain.ModifyState{Type: "Bug", From: "Done", To: "Resolved"},
			domain.Destroy{Target: domain.FieldIdentity("Bug", "Effort")},
		},
		Errors: domain.PlanErrors{
			{Source: "Feature", Target: "Epic", Err: fmt.Errorf("%w: type %q not in source template", domain.ErrUnresolvedMappingReference, "Feature")},
		},
	}

	data, err := json.Marshal(plan)
	require.NoError(t, err)

	var decoded domain.Plan
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, plan.ID, decoded.ID)
	assert.True(t, plan.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, plan.Steps, decoded.Steps)
	require.Len(t, decoded.Errors, 1)
	assert.ErrorIs(t, decoded.Errors[0], domain.ErrUnresolvedMappingReference)
	assert.Equal(t, plan.Errors[0].Error(), decoded.Errors[0].Error())
}

func TestEncodeAction_Envelope(t *testing.T) {
	env, err := domain.EncodeAction(domain.CopyData{Type: "Bug", From: "A", To: "B"})
	require.NoError(t, err)

	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"copy_data","phase":3,"params":{"type":"Bug","from":"A","to":"B"}}`, string(data))
}

func TestDecodeAction_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  domain.StepEnvelope
	}{
		{"Unknown Kind", domain.StepEnvelope{Kind: "truncate"}},
		{"Phase Mismatch", domain.StepEnvelope{Kind: domain.KindDestroy, Phase: domain.PhaseRename,
			Params: map[string]any{"target": map[string]any{"kind": "type", "type": "Bug"}}}},
		{"Unknown Param", domain.StepEnvelope{Kind: domain.KindCopyData, Params: map[string]any{"type": "Bug", "into": "B"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.DecodeAction(tt.env)
			assert.Error(t, err)
		})
	}
}

func TestPlanErrors(t *testing.T) {
	var none domain.PlanErrors
	assert.NoError(t, none.Err())

	errs := domain.PlanErrors{
		{Source: "Bug", Err: fmt.Errorf("%w: field", domain.ErrAmbiguousCorrespondence)},
		{Source: "Task", Target: "Task", Err: domain.ErrConflictingAction},
	}
	err := errs.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAmbiguousCorrespondence)
	assert.ErrorIs(t, err, domain.ErrConflictingAction)

	var ee *domain.EntityError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "Bug", ee.Source)
	assert.Contains(t, err.Error(), "2 comparison errors")
	assert.Equal(t, "ambiguous_correspondence", domain.ErrorKind(errs[0]))
}
