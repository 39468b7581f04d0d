package runtime_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/witmorph/internal/planner"
	"github.com/aretw0/witmorph/internal/runtime"
	"github.com/aretw0/witmorph/pkg/adapters/file"
	"github.com/aretw0/witmorph/pkg/adapters/memory"
	"github.com/aretw0/witmorph/pkg/domain"
	"github.com/aretw0/witmorph/pkg/ports"
)

const (
	fBacklogPriority = "Microsoft.VSTS.Common.BacklogPriority"
	fStackRank       = "Microsoft.VSTS.Common.StackRank"
	fEffort          = "Microsoft.VSTS.Scheduling.Effort"
	fStoryPoints     = "Microsoft.VSTS.Scheduling.StoryPoints"
	fAcceptance      = "Microsoft.VSTS.Common.AcceptanceCriteria"
	fBlocked         = "Microsoft.VSTS.CMMI.Blocked"
	fSeverity        = "Microsoft.VSTS.Common.Severity"
	fTitle           = "System.Title"
)

func scrumToAgilePlan(t *testing.T) *domain.Plan {
	t.Helper()
	ctx := context.Background()
	dir := filepath.Join("..", "..", "pkg", "adapters", "file", "testdata")

	scrum, err := file.NewTemplateLoader(filepath.Join(dir, "scrum2.yaml")).Load(ctx)
	require.NoError(t, err)
	agile, err := file.NewTemplateLoader(filepath.Join(dir, "agile6.yaml")).Load(ctx)
	require.NoError(t, err)
	m, err := file.NewMappingSource(filepath.Join(dir, "scrum2-agile6.yaml")).Mapping(ctx)
	require.NoError(t, err)

	steps, errs, err := planner.Build(ctx, scrum, agile, m, planner.Options{})
	require.NoError(t, err)
	require.Empty(t, errs)
	return &domain.Plan{ID: "scrum-agile", Source: scrum.Label(), Target: agile.Label(), Steps: steps}
}

func seedScrum(t *testing.T, store ports.RecordStore) {
	t.Helper()
	ctx := context.Background()
	recs := []domain.Record{
		{Type: "Product Backlog Item", State: "Done", Fields: map[string]any{fTitle: "Login", fBacklogPriority: 10.0, fEffort: 5.0}},
		{Type: "Product Backlog Item", State: "New", Fields: map[string]any{fTitle: "Logout", fBacklogPriority: 20.0, fEffort: 3.0}},
		{Type: "Bug", State: "Done", Fields: map[string]any{fTitle: "Crash", fBacklogPriority: 1.0, fEffort: 2.0, fAcceptance: "no crash", fSeverity: "2 - High"}},
		{Type: "Task", State: "In Progress", Fields: map[string]any{fTitle: "Write tests", fBacklogPriority: 5.0, fBlocked: "Yes"}},
		{Type: "Impediment", State: "Open", Fields: map[string]any{fTitle: "No VPN"}},
	}
	for _, r := range recs {
		_, err := store.Insert(ctx, r)
		require.NoError(t, err)
	}
}

func query(t *testing.T, store ports.RecordStore, typeName string) []domain.Record {
	t.Helper()
	recs, err := store.Query(context.Background(), ports.RecordQuery{Type: typeName})
	require.NoError(t, err)
	return recs
}

func assertMigrated(t *testing.T, store ports.RecordStore) {
	t.Helper()
	assert.Empty(t, query(t, store, "Product Backlog Item"))
	assert.Empty(t, query(t, store, "Impediment"))

	stories := query(t, store, "User Story")
	require.Len(t, stories, 2)
	assert.Equal(t, "Resolved", stories[0].State)
	assert.Equal(t, "New", stories[1].State)
	assert.Equal(t, map[string]any{fTitle: "Login", fStackRank: 10.0, fStoryPoints: 5.0}, stories[0].Fields)
	assert.Equal(t, 20.0, stories[1].Fields[fStackRank])

	bugs := query(t, store, "Bug")
	require.Len(t, bugs, 1)
	assert.Equal(t, "Resolved", bugs[0].State)
	assert.Equal(t, map[string]any{fTitle: "Crash", fStackRank: 1.0, fSeverity: "2 - High"}, bugs[0].Fields)

	tasks := query(t, store, "Task")
	require.Len(t, tasks, 1)
	assert.Equal(t, "Active", tasks[0].State)
	assert.Equal(t, map[string]any{fTitle: "Write tests", fStackRank: 5.0}, tasks[0].Fields)
}

func TestExecutor_ScrumToAgile(t *testing.T) {
	plan := scrumToAgilePlan(t)
	store := memory.NewStore()
	seedScrum(t, store)
	archive := memory.NewArchive()

	report, err := runtime.NewExecutor(store, runtime.WithArchive(archive)).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, len(plan.Steps), report.Applied())
	assert.NotEmpty(t, report.RunID)

	assertMigrated(t, store)

	assert.Equal(t, []string{
		"scrum-agile/001-User Story",
		"scrum-agile/002-Bug",
		"scrum-agile/003-Task",
		"scrum-agile/004-Impediment",
	}, archive.Keys())

	stories, err := archive.Read(context.Background(), "scrum-agile/001-User Story")
	require.NoError(t, err)
	require.Len(t, stories.Records, 2)
	assert.Equal(t, map[string]any{fBacklogPriority: 10.0, fEffort: 5.0}, stories.Records[0].Fields,
		"only the retired fields are exported")

	impediments, err := archive.Read(context.Background(), "scrum-agile/004-Impediment")
	require.NoError(t, err)
	assert.True(t, impediments.AllFields)
	require.Len(t, impediments.Records, 1)
	assert.Equal(t, "No VPN", impediments.Records[0].Fields[fTitle])
}

func TestExecutor_ReapplyIsNoOp(t *testing.T) {
	plan := scrumToAgilePlan(t)
	store := memory.NewStore()
	seedScrum(t, store)
	archive := memory.NewArchive()
	exec := runtime.NewExecutor(store, runtime.WithArchive(archive))
	ctx := context.Background()

	_, err := exec.Run(ctx, plan)
	require.NoError(t, err)
	before := store.Snapshot()
	exported := make(map[string]domain.ExportBatch)
	for _, k := range archive.Keys() {
		exported[k], err = archive.Read(ctx, k)
		require.NoError(t, err)
	}

	report, err := exec.Run(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, before, store.Snapshot())
	for _, s := range report.Steps {
		assert.Zero(t, s.Affected, "step %d (%s) changed records on re-apply", s.Index, s.Action)
	}

	assert.Len(t, archive.Keys(), len(exported))
	for k, want := range exported {
		got, err := archive.Read(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, want, got, "re-apply replaced export %s", k)
	}
	impediments, err := archive.Read(ctx, "scrum-agile/004-Impediment")
	require.NoError(t, err)
	assert.Len(t, impediments.Records, 1, "the retired type's records are still archived")
}

func TestExecutor_RestartKeepsFileExports(t *testing.T) {
	plan := scrumToAgilePlan(t)
	store := memory.NewStore()
	seedScrum(t, store)
	dir := t.TempDir()
	ctx := context.Background()

	_, err := runtime.NewExecutor(store, runtime.WithArchive(file.NewArchive(dir))).Run(ctx, plan)
	require.NoError(t, err)

	report, err := runtime.NewExecutor(store,
		runtime.WithArchive(file.NewArchive(dir)),
		runtime.WithProgressStore(memory.NewProgressStore()),
		runtime.WithRestart(true),
	).Run(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, len(plan.Steps), report.Applied())

	got, err := file.NewArchive(dir).Read(ctx, "scrum-agile/004-Impediment")
	require.NoError(t, err)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "No VPN", got.Records[0].Fields[fTitle])
}

func TestExecutor_RefusesUnpreservedDestroy(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	_, err := store.Insert(ctx, domain.Record{Type: "Bug", Fields: map[string]any{"Effort": 3.0, "Notes": "keep"}})
	require.NoError(t, err)

	tests := []struct {
		name  string
		steps []domain.Action
	}{
		{"field never exported", []domain.Action{
			domain.Destroy{Target: domain.FieldIdentity("Bug", "Effort")},
		}},
		{"export of another field", []domain.Action{
			domain.NewExportFields("Bug", "Notes"),
			domain.Destroy{Target: domain.FieldIdentity("Bug", "Effort")},
		}},
		{"export after destroy", []domain.Action{
			domain.Destroy{Target: domain.FieldIdentity("Bug", "Effort")},
			domain.NewExportFields("Bug", "Effort"),
		}},
		{"type with field export only", []domain.Action{
			domain.NewExportFields("Bug", "Effort"),
			domain.Destroy{Target: domain.TypeIdentity("Bug")},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := &domain.Plan{ID: "unsafe", Steps: tt.steps}
			_, err := runtime.NewExecutor(store, runtime.WithArchive(memory.NewArchive())).Run(ctx, plan)
			assert.ErrorIs(t, err, domain.ErrUnpreservedDestroy)
			assert.Equal(t, 3.0, query(t, store, "Bug")[0].Fields["Effort"])
		})
	}
}

// flakyStore fails DestroyField once for one field.
type flakyStore struct {
	*memory.Store
	mu     sync.Mutex
	field  string
	failed bool
}

func (f *flakyStore) DestroyField(ctx context.Context, typeName, field string) (int, error) {
	f.mu.Lock()
	fail := field == f.field && !f.failed
	if fail {
		f.failed = true
	}
	f.mu.Unlock()
	if fail {
		return 0, errors.New("connection reset")
	}
	return f.Store.DestroyField(ctx, typeName, field)
}

func TestExecutor_StepErrorAndResume(t *testing.T) {
	plan := scrumToAgilePlan(t)
	store := &flakyStore{Store: memory.NewStore(), field: fAcceptance}
	seedScrum(t, store)
	progress := memory.NewProgressStore()
	exec := runtime.NewExecutor(store,
		runtime.WithArchive(memory.NewArchive()),
		runtime.WithProgressStore(progress),
	)
	ctx := context.Background()

	failAt := -1
	for i, s := range plan.Steps {
		if d, ok := s.(domain.Destroy); ok && d.Target.Name == fAcceptance {
			failAt = i
		}
	}
	require.NotEqual(t, -1, failAt)

	report, err := exec.Run(ctx, plan)
	var stepErr *domain.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, failAt, stepErr.Index)
	assert.Equal(t, plan.Steps[failAt], stepErr.Action)
	assert.ErrorContains(t, err, "connection reset")
	assert.Len(t, report.Steps, failAt)

	cp, err := progress.Load(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, failAt, cp.Completed)
	assert.Equal(t, len(plan.Steps), cp.Total)

	report, err = exec.Run(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, failAt, report.Resumed)
	assert.Equal(t, len(plan.Steps)-failAt, report.Applied())
	assertMigrated(t, store)

	cp, err = progress.Load(ctx, plan.ID)
	require.NoError(t, err)
	assert.True(t, cp.Done())
}

func TestExecutor_RestartIgnoresCheckpoint(t *testing.T) {
	plan := scrumToAgilePlan(t)
	store := memory.NewStore()
	seedScrum(t, store)
	progress := memory.NewProgressStore()
	ctx := context.Background()
	require.NoError(t, progress.Save(ctx, plan.ID, &domain.Progress{PlanID: plan.ID, Completed: len(plan.Steps), Total: len(plan.Steps)}))

	report, err := runtime.NewExecutor(store, runtime.WithArchive(memory.NewArchive()), runtime.WithProgressStore(progress)).Run(ctx, plan)
	require.NoError(t, err)
	assert.Zero(t, report.Applied(), "a finished checkpoint skips every step")
	assert.Len(t, query(t, store, "Product Backlog Item"), 2)

	report, err = runtime.NewExecutor(store,
		runtime.WithArchive(memory.NewArchive()),
		runtime.WithProgressStore(progress),
		runtime.WithRestart(true),
	).Run(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, len(plan.Steps), report.Applied())
	assertMigrated(t, store)
}

func TestExecutor_CheckpointMismatch(t *testing.T) {
	plan := scrumToAgilePlan(t)
	progress := memory.NewProgressStore()
	ctx := context.Background()
	require.NoError(t, progress.Save(ctx, plan.ID, &domain.Progress{PlanID: plan.ID, Completed: 1, Total: 3}))

	_, err := runtime.NewExecutor(memory.NewStore(), runtime.WithProgressStore(progress)).Run(ctx, plan)
	assert.ErrorContains(t, err, "restart")
}

func TestExecutor_DryRun(t *testing.T) {
	plan := scrumToAgilePlan(t)
	store := memory.NewStore()
	seedScrum(t, store)
	before := store.Snapshot()
	progress := memory.NewProgressStore()

	var events []*domain.StepEvent
	report, err := runtime.NewExecutor(store,
		runtime.WithDryRun(true),
		runtime.WithProgressStore(progress),
		runtime.WithLifecycleHooks(domain.LifecycleHooks{
			OnStepDone: func(ctx context.Context, e *domain.StepEvent) { events = append(events, e) },
		}),
	).Run(context.Background(), plan)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, before, store.Snapshot(), "dry run leaves the store untouched")
	require.Len(t, events, len(plan.Steps))
	assert.True(t, events[0].DryRun)

	_, err = progress.Load(context.Background(), plan.ID)
	assert.ErrorIs(t, err, domain.ErrProgressNotFound)
}

func TestExecutor_Hooks(t *testing.T) {
	plan := scrumToAgilePlan(t)
	store := memory.NewStore()
	seedScrum(t, store)

	var started, done []domain.ActionKind
	_, err := runtime.NewExecutor(store,
		runtime.WithArchive(memory.NewArchive()),
		runtime.WithLifecycleHooks(domain.LifecycleHooks{
			OnStepStart: func(ctx context.Context, e *domain.StepEvent) { started = append(started, e.Kind) },
			OnStepDone: func(ctx context.Context, e *domain.StepEvent) {
				assert.Equal(t, domain.EventStepDone, e.Type)
				assert.NoError(t, e.Err)
				done = append(done, e.Kind)
			},
		}),
	).Run(context.Background(), plan)
	require.NoError(t, err)

	require.Len(t, started, len(plan.Steps))
	assert.Equal(t, started, done)
	assert.Equal(t, domain.KindRename, started[0])
	assert.Equal(t, domain.KindDestroy, started[len(started)-1])
}

func TestExecutor_RefusesPlanWithErrors(t *testing.T) {
	plan := &domain.Plan{
		ID: "broken",
		Steps: []domain.Action{
			domain.ModifyState{Type: "Bug", From: "Done", To: "Resolved"},
		},
		Errors: domain.PlanErrors{
			{Source: "Feature", Target: "Epic", Err: domain.ErrUnresolvedMappingReference},
		},
	}
	store := memory.NewStore()
	_, err := store.Insert(context.Background(), domain.Record{Type: "Bug", State: "Done"})
	require.NoError(t, err)

	_, err = runtime.NewExecutor(store).Run(context.Background(), plan)
	assert.ErrorIs(t, err, domain.ErrPlanHasErrors)
	assert.Equal(t, "Done", query(t, store, "Bug")[0].State)

	report, err := runtime.NewExecutor(store, runtime.WithAllowPartial(true)).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Affected())
	assert.Equal(t, "Resolved", query(t, store, "Bug")[0].State)
}

func TestExecutor_ExportNeedsArchive(t *testing.T) {
	plan := &domain.Plan{ID: "p", Steps: []domain.Action{
		domain.NewExportAll("Impediment"),
		domain.Destroy{Target: domain.TypeIdentity("Impediment")},
	}}
	store := memory.NewStore()
	_, err := store.Insert(context.Background(), domain.Record{Type: "Impediment"})
	require.NoError(t, err)

	_, err = runtime.NewExecutor(store).Run(context.Background(), plan)
	var stepErr *domain.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Zero(t, stepErr.Index)
	assert.Len(t, query(t, store, "Impediment"), 1, "nothing is destroyed when the export fails")
}

func TestExecutor_StateDestroyClearsState(t *testing.T) {
	plan := &domain.Plan{ID: "p", Steps: []domain.Action{
		domain.Rename{Target: domain.StateIdentity("Bug", "Committed"), NewName: "Active"},
		domain.Destroy{Target: domain.StateIdentity("Bug", "Approved")},
	}}
	store := memory.NewStore()
	ctx := context.Background()
	for _, s := range []string{"Committed", "Approved", "New"} {
		_, err := store.Insert(ctx, domain.Record{Type: "Bug", State: s})
		require.NoError(t, err)
	}

	_, err := runtime.NewExecutor(store).Run(ctx, plan)
	require.NoError(t, err)
	bugs := query(t, store, "Bug")
	assert.Equal(t, "Active", bugs[0].State)
	assert.Equal(t, "", bugs[1].State)
	assert.Equal(t, "New", bugs[2].State)
}

type recordingLocker struct {
	mu     sync.Mutex
	locked []string
	freed  int
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked = append(l.locked, key)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.freed++
		return nil
	}, nil
}

func TestExecutor_LocksPlan(t *testing.T) {
	locker := &recordingLocker{}
	plan := &domain.Plan{ID: "locked", Steps: []domain.Action{
		domain.ModifyState{Type: "Bug", From: "Done", To: "Resolved"},
	}}

	_, err := runtime.NewExecutor(memory.NewStore(), runtime.WithLocker(locker, time.Minute)).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"locked"}, locker.locked)
	assert.Equal(t, 1, locker.freed)
}

func TestExecutor_Canceled(t *testing.T) {
	plan := scrumToAgilePlan(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runtime.NewExecutor(memory.NewStore()).Run(ctx, plan)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecutor_RejectsInvalidPlans(t *testing.T) {
	exec := runtime.NewExecutor(memory.NewStore())
	_, err := exec.Run(context.Background(), nil)
	assert.Error(t, err)
	_, err = exec.Run(context.Background(), &domain.Plan{})
	assert.Error(t, err)
}
