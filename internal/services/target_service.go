package services

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/soaringjerry/Stride/internal/models"
)

// TargetService manages support targets.
type TargetService struct {
	repo   *Repository
	logger *zap.Logger
}

func NewTargetService(repo *Repository, logger *zap.Logger) *TargetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TargetService{repo: repo, logger: logger}
}

func validateTarget(t *models.SupportTarget) error {
	t.ID = strings.TrimSpace(t.ID)
	t.Name = strings.TrimSpace(t.Name)
	t.Birthdate = strings.TrimSpace(t.Birthdate)
	switch {
	case t.ID == "":
		return NewInvalidError("target id required")
	case t.Name == "":
		return NewInvalidError("target name required")
	case t.Birthdate == "":
		return NewInvalidError("target birthdate required")
	case !t.Gender.Valid():
		return NewInvalidError("gender must be male, female or other")
	}
	return nil
}

// Register stores a new target. The id is chosen by staff and must be unique.
func (s *TargetService) Register(ctx context.Context, in models.SupportTarget) (*models.SupportTarget, error) {
	if err := validateTarget(&in); err != nil {
		return nil, err
	}
	now := s.repo.now()
	in.CreatedAt = now
	in.UpdatedAt = now
	err := s.repo.Targets.Update(ctx, func(list []models.SupportTarget) ([]models.SupportTarget, error) {
		for _, t := range list {
			if t.ID == in.ID {
				return nil, NewConflictError("target " + in.ID + " already exists")
			}
		}
		return append(list, in), nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("target registered", zap.String("target_id", in.ID))
	return &in, nil
}

// Update replaces the editable fields of an existing target.
func (s *TargetService) Update(ctx context.Context, in models.SupportTarget) (*models.SupportTarget, error) {
	if err := validateTarget(&in); err != nil {
		return nil, err
	}
	var out models.SupportTarget
	err := s.repo.Targets.Update(ctx, func(list []models.SupportTarget) ([]models.SupportTarget, error) {
		for i, t := range list {
			if t.ID != in.ID {
				continue
			}
			in.CreatedAt = t.CreatedAt
			in.UpdatedAt = s.repo.now()
			list[i] = in
			out = in
			return list, nil
		}
		return nil, notFoundf("target %s not found", in.ID)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *TargetService) Get(ctx context.Context, id string) (*models.SupportTarget, error) {
	list, err := s.repo.Targets.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range list {
		if t.ID == id {
			t := t
			return &t, nil
		}
	}
	return nil, notFoundf("target %s not found", id)
}

func (s *TargetService) List(ctx context.Context) ([]models.SupportTarget, error) {
	list, err := s.repo.Targets.All(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Name == list[j].Name {
			return list[i].ID < list[j].ID
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

// Delete removes a target and every evaluation record that references it.
// Drafts and goals are left in place. Records go first so a failed
// cascade leaves the target for a retry.
func (s *TargetService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	removed := 0
	err := s.repo.Records.Update(ctx, func(records []models.EvaluationRecord) ([]models.EvaluationRecord, error) {
		kept := records[:0]
		for _, r := range records {
			if r.TargetID == id {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		return kept, nil
	})
	if err != nil {
		return err
	}
	err = s.repo.Targets.Update(ctx, func(list []models.SupportTarget) ([]models.SupportTarget, error) {
		out := list[:0]
		found := false
		for _, t := range list {
			if t.ID == id {
				found = true
				continue
			}
			out = append(out, t)
		}
		if !found {
			return nil, notFoundf("target %s not found", id)
		}
		return out, nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("target deleted", zap.String("target_id", id), zap.Int("records_removed", removed))
	return nil
}
