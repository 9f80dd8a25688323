package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/Stride/internal/models"
)

func TestSaveRecordComputesScores(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	rec, err := f.records.SaveRecord(ctx, evalInput("T-001", "2024-04-01", models.EvaluatorStaff, map[[2]int]int{
		{0, 0}: 1, // 5
		{0, 1}: 3, // 3
		{2, 6}: 2, // 2-level, 1
	}))
	require.NoError(t, err)
	assert.Equal(t, "id-1", rec.ID)
	assert.Equal(t, 9, rec.TotalScore)
	assert.Equal(t, 4.0, rec.CategoryScores["I 日常生活"])
	assert.Equal(t, 0.0, rec.CategoryScores["II 働く場での対人関係"])
	assert.Equal(t, 1.0, rec.CategoryScores["III 働く場での行動・態度"])
}

func TestSaveRecordIgnoresOtherEvaluatorsInScores(t *testing.T) {
	f := newFixture()
	in := evalInput("T-001", "2024-04-01", models.EvaluatorSelf, map[[2]int]int{{1, 0}: 1})
	in.Responses.Values[models.ResponseKey{Evaluator: models.EvaluatorStaff, Category: 1, Item: 1}] = 5
	rec, err := f.records.SaveRecord(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 5, rec.TotalScore)
	assert.Equal(t, 5.0, rec.CategoryScores["II 働く場での対人関係"])
}

func TestSaveRecordRejectsInvalidInput(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.records.SaveRecord(ctx, evalInput("", "2024-04-01", models.EvaluatorStaff, nil))
	assert.True(t, IsCode(err, ErrorInvalid))
	_, err = f.records.SaveRecord(ctx, evalInput("T-001", "", models.EvaluatorStaff, nil))
	assert.True(t, IsCode(err, ErrorInvalid))
	_, err = f.records.SaveRecord(ctx, evalInput("T-001", "2024-04-01", "boss", nil))
	assert.True(t, IsCode(err, ErrorInvalid))
	_, err = f.records.SaveRecord(ctx, evalInput("T-001", "2024-04-01", models.EvaluatorStaff, map[[2]int]int{{0, 3}: 3}))
	assert.True(t, IsCode(err, ErrorInvalid), "2-level item accepts only 1 or 2: %v", err)

	recs, err := f.records.ListRecords(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSaveRecordUpsertsByEvaluation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.records.SaveRecord(ctx, evalInput("T-001", "2024-04-01", models.EvaluatorStaff, map[[2]int]int{{0, 0}: 1}))
	require.NoError(t, err)
	second, err := f.records.SaveRecord(ctx, evalInput("T-001", "2024-04-01", models.EvaluatorStaff, map[[2]int]int{{0, 0}: 5}))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, 1, second.TotalScore)

	other, err := f.records.SaveRecord(ctx, evalInput("T-001", "2024-04-01", models.EvaluatorFamily, map[[2]int]int{{0, 0}: 2}))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	recs, err := f.records.ListRecords(ctx, "T-001")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestListRecordsNewestFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for _, date := range []string{"2024-01-10", "2024-03-10", "2024-02-10"} {
		_, err := f.records.SaveRecord(ctx, evalInput("T-001", date, models.EvaluatorStaff, map[[2]int]int{{0, 0}: 1}))
		require.NoError(t, err)
	}
	_, err := f.records.SaveRecord(ctx, evalInput("T-002", "2024-05-10", models.EvaluatorStaff, nil))
	require.NoError(t, err)

	recs, err := f.records.ListRecords(ctx, "T-001")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "2024-03-10", recs[0].EvaluationDate)
	assert.Equal(t, "2024-02-10", recs[1].EvaluationDate)
	assert.Equal(t, "2024-01-10", recs[2].EvaluationDate)
}

func TestUpdateRecordRecomputesAndAudits(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	rec, err := f.records.SaveRecord(ctx, evalInput("T-001", "2024-04-01", models.EvaluatorStaff, map[[2]int]int{{0, 0}: 1, {0, 1}: 1}))
	require.NoError(t, err)
	require.Equal(t, 10, rec.TotalScore)

	rs := models.NewResponseSet()
	rs.Values[staffKey(0, 0)] = 5
	updated, err := f.records.UpdateRecord(ctx, rec.ID, rs)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.TotalScore)
	assert.Equal(t, 1.0, updated.CategoryScores["I 日常生活"])

	entries := f.audit.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "record.update", entries[0].Action)
	assert.Equal(t, rec.ID, entries[0].Target)
	assert.Contains(t, entries[0].Note, "-staff-0-0=1")
	assert.Contains(t, entries[0].Note, "+staff-0-0=5")
	assert.Contains(t, entries[0].Note, "-staff-0-1=1")

	_, err = f.records.UpdateRecord(ctx, "missing", rs)
	assert.True(t, IsCode(err, ErrorNotFound))

	bad := models.NewResponseSet()
	bad.Values[staffKey(0, 0)] = 9
	_, err = f.records.UpdateRecord(ctx, rec.ID, bad)
	assert.True(t, IsCode(err, ErrorInvalid))
}

func TestAuditSkipsIdenticalResponses(t *testing.T) {
	log := NewAuditLog(nil)
	rs := models.NewResponseSet()
	rs.Values[staffKey(0, 0)] = 2
	log.RecordRevision("r1", rs, rs.Clone())
	assert.Empty(t, log.List())
}

func TestFindAndDeleteRecord(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	rec, err := f.records.SaveRecord(ctx, evalInput("T-001", "2024-04-01", models.EvaluatorSelf, map[[2]int]int{{0, 0}: 1}))
	require.NoError(t, err)

	found, err := f.records.FindRecord(ctx, "T-001", "2024-04-01", models.EvaluatorSelf)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)
	_, err = f.records.FindRecord(ctx, "T-001", "2024-04-01", models.EvaluatorStaff)
	assert.True(t, IsCode(err, ErrorNotFound))

	ok, err := f.records.DeleteRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.records.DeleteRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = f.records.GetRecord(ctx, rec.ID)
	assert.True(t, IsCode(err, ErrorNotFound))
}

func TestSaveDraftUpsertsAndTracksCompletion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	d1, err := f.drafts.SaveDraft(ctx, evalInput("T-001", "2024-04-01", models.EvaluatorStaff, map[[2]int]int{{0, 0}: 1}))
	require.NoError(t, err)
	assert.Equal(t, 3, d1.CompletionRate) // 1/34

	answers := map[[2]int]int{}
	for i := 0; i < 11; i++ {
		answers[[2]int{0, i}] = 1
	}
	for i := 0; i < 6; i++ {
		answers[[2]int{1, i}] = 2
	}
	d2, err := f.drafts.SaveDraft(ctx, evalInput("T-001", "2024-04-01", models.EvaluatorStaff, answers))
	require.NoError(t, err)
	assert.Equal(t, d1.ID, d2.ID)
	assert.Equal(t, 50, d2.CompletionRate)
	assert.True(t, d2.LastSaved.After(d1.LastSaved))

	drafts, err := f.drafts.ListDrafts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, drafts, 1)
}

func TestListDraftsMostRecentFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, err := f.drafts.SaveDraft(ctx, evalInput("T-001", "2024-04-01", models.EvaluatorStaff, nil))
	require.NoError(t, err)
	b, err := f.drafts.SaveDraft(ctx, evalInput("T-002", "2024-04-01", models.EvaluatorStaff, nil))
	require.NoError(t, err)
	_, err = f.drafts.SaveDraft(ctx, evalInput("T-001", "2024-04-01", models.EvaluatorStaff, map[[2]int]int{{0, 0}: 2}))
	require.NoError(t, err)

	drafts, err := f.drafts.ListDrafts(ctx, "")
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, a.ID, drafts[0].ID)
	assert.Equal(t, b.ID, drafts[1].ID)
}

func TestFinalizeDraftCreatesRecordAndRemovesDraft(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	draft, err := f.drafts.SaveDraft(ctx, evalInput("T-001", "2024-04-01", models.EvaluatorStaff, map[[2]int]int{{0, 0}: 2, {0, 1}: 2}))
	require.NoError(t, err)

	rec, err := f.drafts.FinalizeDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, rec.TotalScore)
	assert.Equal(t, 4.0, rec.CategoryScores["I 日常生活"])
	assert.Equal(t, draft.Responses.Values, rec.Responses.Values)

	_, err = f.drafts.LoadDraft(ctx, draft.ID)
	assert.True(t, IsCode(err, ErrorNotFound))

	_, err = f.drafts.FinalizeDraft(ctx, draft.ID)
	assert.True(t, IsCode(err, ErrorNotFound))
}

func TestFinalizeDraftReplacesExistingRecord(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	old, err := f.records.SaveRecord(ctx, evalInput("T-001", "2024-04-01", models.EvaluatorStaff, map[[2]int]int{{0, 0}: 5}))
	require.NoError(t, err)
	draft, err := f.drafts.SaveDraft(ctx, evalInput("T-001", "2024-04-01", models.EvaluatorStaff, map[[2]int]int{{0, 0}: 1}))
	require.NoError(t, err)

	rec, err := f.drafts.FinalizeDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, old.ID, rec.ID)
	assert.Equal(t, 5, rec.TotalScore)

	recs, err := f.records.ListRecords(ctx, "T-001")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestFinalizeDraftKeepsDraftWhenRecordWriteFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	draft, err := f.drafts.SaveDraft(ctx, evalInput("T-001", "2024-04-01", models.EvaluatorStaff, map[[2]int]int{{0, 0}: 1}))
	require.NoError(t, err)
	f.store.fail(CollectionRecords)

	_, err = f.drafts.FinalizeDraft(ctx, draft.ID)
	assert.True(t, IsCode(err, ErrorStorage))

	still, err := f.drafts.LoadDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, still.ID)
}

func TestDeleteDraftReportsMissing(t *testing.T) {
	f := newFixture()
	ok, err := f.drafts.DeleteDraft(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCollectionQuotaRejectsOversizedWrite(t *testing.T) {
	store := newStubStore()
	repo := NewRepository(store, 200)
	targets := NewTargetService(repo, nil)
	ctx := context.Background()

	_, err := targets.Register(ctx, sampleTarget("T-001", "a"))
	require.NoError(t, err)
	big := sampleTarget("T-002", strings.Repeat("x", 300))
	_, err = targets.Register(ctx, big)
	assert.True(t, IsCode(err, ErrorStorage), "got %v", err)

	list, err := targets.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCollectionLoadFailureIsStorageError(t *testing.T) {
	f := newFixture()
	f.store.loadErr = assert.AnError
	_, err := f.records.ListRecords(context.Background(), "")
	assert.True(t, IsCode(err, ErrorStorage))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestCollectionCorruptPayload(t *testing.T) {
	f := newFixture()
	f.store.data[CollectionGoals] = []byte("{not json")
	_, err := f.goals.ListGoals(context.Background(), "")
	assert.True(t, IsCode(err, ErrorStorage))
}

func TestFinalizeDraftKeepsDraftSavedMeanwhile(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	draft, err := f.drafts.SaveDraft(ctx, evalInput("T-001", "2024-04-01", models.EvaluatorStaff, map[[2]int]int{{0, 0}: 1}))
	require.NoError(t, err)

	// An autosave for the same evaluation lands right after the record write.
	f.store.onSave(CollectionRecords, func() {
		_, err := f.drafts.SaveDraft(ctx, evalInput("T-001", "2024-04-01", models.EvaluatorStaff,
			map[[2]int]int{{0, 0}: 1, {0, 1}: 2, {0, 2}: 3}))
		require.NoError(t, err)
	})

	_, err = f.drafts.FinalizeDraft(ctx, draft.ID)
	assert.True(t, IsCode(err, ErrorConflict))

	kept, err := f.drafts.LoadDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, kept.Responses.Answered(models.EvaluatorStaff))

	recs, err := f.records.ListRecords(ctx, "T-001")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, recs[0].Responses.Answered(models.EvaluatorStaff))
}

func TestConcurrentSavesAreSerialized(t *testing.T) {
	repo := NewRepository(newStubStore(), 0)
	cl := DefaultChecklist()
	records := NewRecordService(repo, cl, nil, nil)
	drafts := NewDraftService(repo, cl, records, nil)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			date := fmt.Sprintf("2024-04-%02d", i+1)
			in := evalInput("T-001", date, models.EvaluatorStaff, map[[2]int]int{{0, 0}: 1})
			_, err := records.SaveRecord(ctx, in)
			errs <- err
			_, err = drafts.SaveDraft(ctx, evalInput("T-002", date, models.EvaluatorSelf, map[[2]int]int{{0, 1}: 2}))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	recs, err := records.ListRecords(ctx, "")
	require.NoError(t, err)
	assert.Len(t, recs, n)
	list, err := drafts.ListDrafts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, list, n)
}
