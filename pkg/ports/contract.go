package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/witmorph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunProgressStoreContract runs a suite of tests to verify that a ProgressStore
// implementation adheres to the defined interface contract.
func RunProgressStoreContract(t *testing.T, store ProgressStore) {
	ctx := context.Background()
	planID := "contract-plan-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		p := &domain.Progress{PlanID: planID, RunID: "run-1", Completed: 3, Total: 7, UpdatedAt: time.Now().UTC()}

		err := store.Save(ctx, planID, p)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, planID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, planID, loaded.PlanID)
		assert.Equal(t, "run-1", loaded.RunID)
		assert.Equal(t, 3, loaded.Completed)
		assert.Equal(t, 7, loaded.Total)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, planID, &domain.Progress{PlanID: planID, Completed: 5, Total: 7}))

		loaded, err := store.Load(ctx, planID)
		require.NoError(t, err)
		assert.Equal(t, 5, loaded.Completed)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+planID)
		assert.ErrorIs(t, err, domain.ErrProgressNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, planID, &domain.Progress{PlanID: planID}))

		err := store.Delete(ctx, planID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, planID)
		assert.ErrorIs(t, err, domain.ErrProgressNotFound, "Load after Delete should return ErrProgressNotFound")

		assert.NoError(t, store.Delete(ctx, planID), "Delete of a missing checkpoint is a no-op")
	})

	t.Run("List", func(t *testing.T) {
		id1 := planID + "-1"
		id2 := planID + "-2"
		_ = store.Save(ctx, id1, &domain.Progress{PlanID: id1})
		_ = store.Save(ctx, id2, &domain.Progress{PlanID: id2})
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}

// RunRecordStoreContract verifies that a RecordStore implementation behaves
// as the executor expects, idempotence included.
func RunRecordStoreContract(t *testing.T, store RecordStore) {
	ctx := context.Background()

	seed := func(t *testing.T, typeName string, recs ...domain.Record) []domain.Record {
		t.Helper()
		out := make([]domain.Record, 0, len(recs))
		for _, r := range recs {
			r.Type = typeName
			saved, err := store.Insert(ctx, r)
			require.NoError(t, err)
			out = append(out, saved)
		}
		return out
	}

	t.Run("Insert and Query", func(t *testing.T) {
		saved := seed(t, "Query",
			domain.Record{State: "New", Fields: map[string]any{"Title": "first", "Rank": "1"}},
			domain.Record{State: "Done", Fields: map[string]any{"Title": "second"}},
		)
		require.Len(t, saved, 2)
		assert.NotZero(t, saved[0].ID)
		assert.Greater(t, saved[1].ID, saved[0].ID)

		all, err := store.Query(ctx, RecordQuery{Type: "Query"})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, saved[0].ID, all[0].ID)
		assert.Equal(t, "New", all[0].State)
		assert.Equal(t, "first", all[0].Fields["Title"])
		assert.Equal(t, "1", all[0].Fields["Rank"])

		subset, err := store.Query(ctx, RecordQuery{Type: "Query", Fields: []string{"Rank"}})
		require.NoError(t, err)
		require.Len(t, subset, 2)
		assert.Equal(t, map[string]any{"Rank": "1"}, subset[0].Fields)
		assert.Empty(t, subset[1].Fields)

		none, err := store.Query(ctx, RecordQuery{Type: "Missing"})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("SetField", func(t *testing.T) {
		saved := seed(t, "Set", domain.Record{State: "New", Fields: map[string]any{"A": "x"}})

		require.NoError(t, store.SetField(ctx, "Set", saved[0].ID, "B", "y"))
		require.NoError(t, store.SetField(ctx, "Set", saved[0].ID, "A", "z"))

		recs, err := store.Query(ctx, RecordQuery{Type: "Set"})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "z", recs[0].Fields["A"])
		assert.Equal(t, "y", recs[0].Fields["B"])
	})

	t.Run("RewriteState", func(t *testing.T) {
		seed(t, "States",
			domain.Record{State: "Done"},
			domain.Record{State: "Done"},
			domain.Record{State: "New"},
		)

		n, err := store.RewriteState(ctx, "States", "Done", "Closed")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = store.RewriteState(ctx, "States", "Done", "Closed")
		require.NoError(t, err)
		assert.Zero(t, n, "second application is a no-op")

		recs, err := store.Query(ctx, RecordQuery{Type: "States"})
		require.NoError(t, err)
		assert.Equal(t, "Closed", recs[0].State)
		assert.Equal(t, "New", recs[2].State)
	})

	t.Run("RenameType", func(t *testing.T) {
		seed(t, "Old", domain.Record{State: "New"}, domain.Record{State: "New"})

		n, err := store.RenameType(ctx, "Old", "Renamed")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = store.RenameType(ctx, "Old", "Renamed")
		require.NoError(t, err)
		assert.Zero(t, n)

		old, err := store.Query(ctx, RecordQuery{Type: "Old"})
		require.NoError(t, err)
		assert.Empty(t, old)
		renamed, err := store.Query(ctx, RecordQuery{Type: "Renamed"})
		require.NoError(t, err)
		assert.Len(t, renamed, 2)
	})

	t.Run("RenameField", func(t *testing.T) {
		seed(t, "Fields",
			domain.Record{Fields: map[string]any{"From": "1"}},
			domain.Record{Fields: map[string]any{"Other": "2"}},
		)

		n, err := store.RenameField(ctx, "Fields", "From", "To")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = store.RenameField(ctx, "Fields", "From", "To")
		require.NoError(t, err)
		assert.Zero(t, n)

		recs, err := store.Query(ctx, RecordQuery{Type: "Fields"})
		require.NoError(t, err)
		assert.Equal(t, "1", recs[0].Fields["To"])
		assert.NotContains(t, recs[0].Fields, "From")
	})

	t.Run("RenameField Conflict", func(t *testing.T) {
		seed(t, "Clash", domain.Record{Fields: map[string]any{"From": "1", "To": "2"}})

		_, err := store.RenameField(ctx, "Clash", "From", "To")
		assert.ErrorIs(t, err, domain.ErrFieldConflict)

		recs, err := store.Query(ctx, RecordQuery{Type: "Clash"})
		require.NoError(t, err)
		assert.Equal(t, "1", recs[0].Fields["From"], "conflicting rename leaves data untouched")
		assert.Equal(t, "2", recs[0].Fields["To"])
	})

	t.Run("DestroyField", func(t *testing.T) {
		seed(t, "Drop",
			domain.Record{Fields: map[string]any{"Gone": "1", "Kept": "a"}},
			domain.Record{Fields: map[string]any{"Gone": "2"}},
		)

		n, err := store.DestroyField(ctx, "Drop", "Gone")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = store.DestroyField(ctx, "Drop", "Gone")
		require.NoError(t, err)
		assert.Zero(t, n)

		recs, err := store.Query(ctx, RecordQuery{Type: "Drop"})
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, map[string]any{"Kept": "a"}, recs[0].Fields)
	})

	t.Run("DestroyType", func(t *testing.T) {
		seed(t, "Doomed", domain.Record{State: "Open"}, domain.Record{State: "Closed"})

		n, err := store.DestroyType(ctx, "Doomed")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = store.DestroyType(ctx, "Doomed")
		require.NoError(t, err)
		assert.Zero(t, n)

		recs, err := store.Query(ctx, RecordQuery{Type: "Doomed"})
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}

// RunArchiveContract verifies that an Archive keeps the first batch written
// under a key. Archives that also implement ArchiveReader must return what was written.
func RunArchiveContract(t *testing.T, archive Archive) {
	ctx := context.Background()
	batch := domain.ExportBatch{
		PlanID:     "plan-contract",
		Step:       1,
		Type:       "Bug",
		Fields:     []string{"Effort"},
		ExportedAt: time.Now().UTC(),
		Records: []domain.Record{
			{ID: 1, Type: "Bug", State: "Done", Fields: map[string]any{"Effort": "3"}},
			{ID: 2, Type: "Bug", State: "New", Fields: map[string]any{"Effort": "5"}},
		},
	}
	key := "plan-contract/1-Bug"

	t.Run("Write", func(t *testing.T) {
		loc, err := archive.Write(ctx, key, batch)
		require.NoError(t, err)
		assert.NotEmpty(t, loc)
	})

	t.Run("Write Again", func(t *testing.T) {
		again := batch
		again.Records = nil
		_, err := archive.Write(ctx, key, again)
		assert.ErrorIs(t, err, domain.ErrArchiveEntryExists, "an existing entry is never replaced")
	})

	reader, ok := archive.(ArchiveReader)
	if !ok {
		return
	}

	t.Run("Read", func(t *testing.T) {
		got, err := reader.Read(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "Bug", got.Type)
		assert.Equal(t, []string{"Effort"}, got.Fields)
		require.Len(t, got.Records, 2, "the first batch survives a second write")
		assert.Equal(t, int64(1), got.Records[0].ID)
		assert.Equal(t, "3", got.Records[0].Fields["Effort"])
	})

	t.Run("Read Missing", func(t *testing.T) {
		_, err := reader.Read(ctx, "plan-contract/none")
		assert.ErrorIs(t, err, domain.ErrArchiveEntryNotFound)
	})
}
