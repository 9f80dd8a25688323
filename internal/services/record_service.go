package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/soaringjerry/Stride/internal/models"
)

// EvaluationInput identifies one evaluation and carries its raw answers.
type EvaluationInput struct {
	TargetID       string             `json:"targetId"`
	TargetName     string             `json:"targetName"`
	EvaluationDate string             `json:"evaluationDate"`
	Evaluator      models.Evaluator   `json:"evaluator"`
	Responses      models.ResponseSet `json:"responses"`
}

func (in *EvaluationInput) validate(cl *Checklist) error {
	in.TargetID = strings.TrimSpace(in.TargetID)
	in.EvaluationDate = strings.TrimSpace(in.EvaluationDate)
	if in.TargetID == "" {
		return NewInvalidError("target id required")
	}
	if in.EvaluationDate == "" {
		return NewInvalidError("evaluation date required")
	}
	if _, err := models.ParseEvaluator(string(in.Evaluator)); err != nil {
		return NewInvalidError(err.Error())
	}
	in.Responses = mergeResponses(models.NewResponseSet(), in.Responses)
	if err := cl.CheckResponses(in.Responses); err != nil {
		return NewInvalidError(err.Error())
	}
	return nil
}

func mergeResponses(dst, src models.ResponseSet) models.ResponseSet {
	for k, v := range src.Values {
		dst.Values[k] = v
	}
	for k, v := range src.SubChecks {
		dst.SubChecks[k] = v
	}
	for k, v := range src.Comments {
		dst.Comments[k] = v
	}
	return dst
}

// errNoMatch aborts a collection update whose target entry is absent.
var errNoMatch = errors.New("no matching entry")

// evaluationKey is the (target, date, evaluator) triple that identifies
// both drafts and records.
type evaluationKey struct {
	targetID  string
	date      string
	evaluator models.Evaluator
}

func (in EvaluationInput) key() evaluationKey {
	return evaluationKey{in.TargetID, in.EvaluationDate, in.Evaluator}
}

func recordKey(r models.EvaluationRecord) evaluationKey {
	return evaluationKey{r.TargetID, r.EvaluationDate, r.Evaluator}
}

func draftKey(d models.EvaluationDraft) evaluationKey {
	return evaluationKey{d.TargetID, d.EvaluationDate, d.Evaluator}
}

// RecordService manages finalized evaluation records. Scores are always
// recomputed from raw responses on write.
type RecordService struct {
	repo      *Repository
	checklist *Checklist
	audit     *AuditLog
	logger    *zap.Logger
}

func NewRecordService(repo *Repository, checklist *Checklist, audit *AuditLog, logger *zap.Logger) *RecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordService{repo: repo, checklist: checklist, audit: audit, logger: logger}
}

// SaveRecord stores an evaluation directly, bypassing drafts. A record
// for the same (target, date, evaluator) is replaced in place.
func (s *RecordService) SaveRecord(ctx context.Context, in EvaluationInput) (*models.EvaluationRecord, error) {
	if err := in.validate(s.checklist); err != nil {
		return nil, err
	}
	return s.upsert(ctx, in)
}

func (s *RecordService) upsert(ctx context.Context, in EvaluationInput) (*models.EvaluationRecord, error) {
	scores, err := ComputeScores(in.Responses, s.checklist, in.Evaluator)
	if err != nil {
		return nil, NewInvalidError(err.Error())
	}
	now := s.repo.now()
	rec := models.EvaluationRecord{
		TargetID:       in.TargetID,
		TargetName:     in.TargetName,
		EvaluationDate: in.EvaluationDate,
		Evaluator:      in.Evaluator,
		Responses:      in.Responses.Clone(),
		TotalScore:     scores.Total,
		CategoryScores: scores.Categories,
		UpdatedAt:      now,
	}
	err = s.repo.Records.Update(ctx, func(list []models.EvaluationRecord) ([]models.EvaluationRecord, error) {
		for i, r := range list {
			if recordKey(r) == in.key() {
				rec.ID = r.ID
				rec.CreatedAt = r.CreatedAt
				list[i] = rec
				return list, nil
			}
		}
		rec.ID = s.repo.idGenerator()
		rec.CreatedAt = now
		return append(list, rec), nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("evaluation record saved",
		zap.String("record_id", rec.ID),
		zap.String("target_id", rec.TargetID),
		zap.String("evaluator", string(rec.Evaluator)),
		zap.Int("total_score", rec.TotalScore),
	)
	return &rec, nil
}

// UpdateRecord replaces the raw responses of an existing record and
// recomputes its scores.
func (s *RecordService) UpdateRecord(ctx context.Context, id string, responses models.ResponseSet) (*models.EvaluationRecord, error) {
	responses = mergeResponses(models.NewResponseSet(), responses)
	if err := s.checklist.CheckResponses(responses); err != nil {
		return nil, NewInvalidError(err.Error())
	}
	var (
		out    models.EvaluationRecord
		before models.ResponseSet
	)
	err := s.repo.Records.Update(ctx, func(list []models.EvaluationRecord) ([]models.EvaluationRecord, error) {
		for i, r := range list {
			if r.ID != id {
				continue
			}
			scores, err := ComputeScores(responses, s.checklist, r.Evaluator)
			if err != nil {
				return nil, NewInvalidError(err.Error())
			}
			before = r.Responses
			r.Responses = responses.Clone()
			r.TotalScore = scores.Total
			r.CategoryScores = scores.Categories
			r.UpdatedAt = s.repo.now()
			list[i] = r
			out = r
			return list, nil
		}
		return nil, notFoundf("record %s not found", id)
	})
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.RecordRevision(out.ID, before, out.Responses)
	}
	return &out, nil
}

func (s *RecordService) GetRecord(ctx context.Context, id string) (*models.EvaluationRecord, error) {
	list, err := s.repo.Records.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range list {
		if r.ID == id {
			r := r
			return &r, nil
		}
	}
	return nil, notFoundf("record %s not found", id)
}

// FindRecord looks a record up by its evaluation triple.
func (s *RecordService) FindRecord(ctx context.Context, targetID, date string, ev models.Evaluator) (*models.EvaluationRecord, error) {
	list, err := s.repo.Records.All(ctx)
	if err != nil {
		return nil, err
	}
	want := evaluationKey{targetID, date, ev}
	for _, r := range list {
		if recordKey(r) == want {
			r := r
			return &r, nil
		}
	}
	return nil, notFoundf("no %s record for %s on %s", ev, targetID, date)
}

// ListRecords returns records for targetID (all targets when empty),
// newest evaluation date first.
func (s *RecordService) ListRecords(ctx context.Context, targetID string) ([]models.EvaluationRecord, error) {
	list, err := s.repo.Records.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.EvaluationRecord, 0, len(list))
	for _, r := range list {
		if targetID == "" || r.TargetID == targetID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EvaluationDate == out[j].EvaluationDate {
			return out[i].Evaluator < out[j].Evaluator
		}
		return out[i].EvaluationDate > out[j].EvaluationDate
	})
	return out, nil
}

// DeleteRecord reports false when no record has id.
func (s *RecordService) DeleteRecord(ctx context.Context, id string) (bool, error) {
	err := s.repo.Records.Update(ctx, func(list []models.EvaluationRecord) ([]models.EvaluationRecord, error) {
		for i, r := range list {
			if r.ID == id {
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
