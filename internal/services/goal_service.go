package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/soaringjerry/Stride/internal/models"
)

type GoalService struct {
	repo   *Repository
	logger *zap.Logger
}

func NewGoalService(repo *Repository, logger *zap.Logger) *GoalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoalService{repo: repo, logger: logger}
}

// SaveGoal upserts by (TargetID, GoalDate); the latest write wins.
func (s *GoalService) SaveGoal(ctx context.Context, in models.SupportGoal) (*models.SupportGoal, error) {
	in.TargetID = strings.TrimSpace(in.TargetID)
	in.GoalDate = strings.TrimSpace(in.GoalDate)
	if in.TargetID == "" || in.GoalDate == "" {
		return nil, NewInvalidError("target id and goal date required")
	}
	if strings.TrimSpace(in.SelectedGoal) == "" {
		return nil, NewInvalidError("selected goal required")
	}
	now := s.repo.now()
	in.UpdatedAt = now
	err := s.repo.Goals.Update(ctx, func(list []models.SupportGoal) ([]models.SupportGoal, error) {
		for i, g := range list {
			if g.TargetID == in.TargetID && g.GoalDate == in.GoalDate {
				in.ID = g.ID
				in.CreatedAt = g.CreatedAt
				list[i] = in
				return list, nil
			}
		}
		in.ID = s.repo.idGenerator()
		in.CreatedAt = now
		return append(list, in), nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("goal saved", zap.String("goal_id", in.ID), zap.String("target_id", in.TargetID))
	return &in, nil
}

// ListGoals returns goals for targetID, newest goal date first.
func (s *GoalService) ListGoals(ctx context.Context, targetID string) ([]models.SupportGoal, error) {
	list, err := s.repo.Goals.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.SupportGoal, 0, len(list))
	for _, g := range list {
		if targetID == "" || g.TargetID == targetID {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].GoalDate > out[j].GoalDate })
	return out, nil
}

func (s *GoalService) DeleteGoal(ctx context.Context, id string) (bool, error) {
	err := s.repo.Goals.Update(ctx, func(list []models.SupportGoal) ([]models.SupportGoal, error) {
		for i, g := range list {
			if g.ID == id {
				return append(list[:i], list[i+1:]...), nil
			}
		}
		return nil, errNoMatch
	})
	if errors.Is(err, errNoMatch) {
		return false, nil
	}
	return err == nil, err
}
