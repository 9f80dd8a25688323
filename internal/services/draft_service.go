package services

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/soaringjerry/Stride/internal/models"
)

var errDraftChanged = errors.New("draft changed")

// DraftService governs in-progress evaluations: NONE -> DRAFT on first
// save, DRAFT -> FINALIZED through FinalizeDraft, DRAFT -> DELETED
// through DeleteDraft.
type DraftService struct {
	repo      *Repository
	checklist *Checklist
	records   *RecordService
	logger    *zap.Logger
}

func NewDraftService(repo *Repository, checklist *Checklist, records *RecordService, logger *zap.Logger) *DraftService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftService{repo: repo, checklist: checklist, records: records, logger: logger}
}

// SaveDraft upserts the draft for the input's (target, date, evaluator).
// The completion rate is recomputed on every save.
func (s *DraftService) SaveDraft(ctx context.Context, in EvaluationInput) (*models.EvaluationDraft, error) {
	if err := in.validate(s.checklist); err != nil {
		return nil, err
	}
	now := s.repo.now()
	draft := models.EvaluationDraft{
		TargetID:       in.TargetID,
		TargetName:     in.TargetName,
		EvaluationDate: in.EvaluationDate,
		Evaluator:      in.Evaluator,
		Responses:      in.Responses.Clone(),
		CompletionRate: CompletionRate(in.Responses, s.checklist, in.Evaluator),
		LastSaved:      now,
		UpdatedAt:      now,
	}
	err := s.repo.Drafts.Update(ctx, func(list []models.EvaluationDraft) ([]models.EvaluationDraft, error) {
		for i, d := range list {
			if draftKey(d) == in.key() {
				draft.ID = d.ID
				draft.CreatedAt = d.CreatedAt
				list[i] = draft
				return list, nil
			}
		}
		draft.ID = s.repo.idGenerator()
		draft.CreatedAt = now
		return append(list, draft), nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("draft saved",
		zap.String("draft_id", draft.ID),
		zap.String("target_id", draft.TargetID),
		zap.Int("completion_rate", draft.CompletionRate),
	)
	return &draft, nil
}

func (s *DraftService) LoadDraft(ctx context.Context, id string) (*models.EvaluationDraft, error) {
	list, err := s.repo.Drafts.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range list {
		if d.ID == id {
			d := d
			return &d, nil
		}
	}
	return nil, notFoundf("draft %s not found", id)
}

// FindDraft looks a draft up by its evaluation triple.
func (s *DraftService) FindDraft(ctx context.Context, targetID, date string, ev models.Evaluator) (*models.EvaluationDraft, error) {
	list, err := s.repo.Drafts.All(ctx)
	if err != nil {
		return nil, err
	}
	want := evaluationKey{targetID, date, ev}
	for _, d := range list {
		if draftKey(d) == want {
			d := d
			return &d, nil
		}
	}
	return nil, notFoundf("no %s draft for %s on %s", ev, targetID, date)
}

// ListDrafts returns drafts for targetID (all when empty), most recently
// saved first.
func (s *DraftService) ListDrafts(ctx context.Context, targetID string) ([]models.EvaluationDraft, error) {
	list, err := s.repo.Drafts.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.EvaluationDraft, 0, len(list))
	for _, d := range list {
		if targetID == "" || d.TargetID == targetID {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastSaved.After(out[j].LastSaved) })
	return out, nil
}

// DeleteDraft reports false when no draft has id.
func (s *DraftService) DeleteDraft(ctx context.Context, id string) (bool, error) {
	err := s.repo.Drafts.Update(ctx, func(list []models.EvaluationDraft) ([]models.EvaluationDraft, error) {
		for i, d := range list {
			if d.ID == id {
				return append(list[:i], list[i+1:]...), nil
			}
		}
		return nil, errNoMatch
	})
	if errors.Is(err, errNoMatch) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FinalizeDraft converts a draft into a record. Scores are derived from
// the draft's raw responses, the record is written, then the draft is
// removed.
func (s *DraftService) FinalizeDraft(ctx context.Context, id string) (*models.EvaluationRecord, error) {
	draft, err := s.LoadDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	in := EvaluationInput{
		TargetID:       draft.TargetID,
		TargetName:     draft.TargetName,
		EvaluationDate: draft.EvaluationDate,
		Evaluator:      draft.Evaluator,
		Responses:      draft.Responses,
	}
	if err := in.validate(s.checklist); err != nil {
		return nil, err
	}
	rec, err := s.records.upsert(ctx, in)
	if err != nil {
		return nil, err
	}
	// Only the draft that was finalized is removed. A save that landed
	// meanwhile stays as the newer draft.
	err = s.repo.Drafts.Update(ctx, func(list []models.EvaluationDraft) ([]models.EvaluationDraft, error) {
		for i, d := range list {
			if d.ID != id {
				continue
			}
			if !d.UpdatedAt.Equal(draft.UpdatedAt) {
				return nil, errDraftChanged
			}
			return append(list[:i], list[i+1:]...), nil
		}
		return nil, errNoMatch
	})
	if errors.Is(err, errDraftChanged) {
		s.logger.Warn("draft changed during finalize, keeping newer draft",
			zap.String("draft_id", id),
			zap.String("record_id", rec.ID),
		)
		return nil, NewConflictError("draft " + id + " was saved again while finalizing; the newer draft was kept")
	}
	if err != nil && !errors.Is(err, errNoMatch) {
		s.logger.Error("draft not removed after finalize",
			zap.String("draft_id", id),
			zap.String("record_id", rec.ID),
			zap.Error(err),
		)
		return nil, err
	}
	s.logger.Info("draft finalized", zap.String("draft_id", id), zap.String("record_id", rec.ID))
	return rec, nil
}
