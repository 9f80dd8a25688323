package models

import (
	"encoding/json"
	"time"
)

// Gender of a support target as captured at registration.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Valid reports whether g is one of the known genders. Empty is allowed.
func (g Gender) Valid() bool {
	switch g {
	case "", GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// SupportTarget is a person receiving employment-transition support.
type SupportTarget struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId,omitempty"`
	Name             string    `json:"name"`
	Birthdate        string    `json:"birthdate"`
	Email            string    `json:"email,omitempty"`
	Gender           Gender    `json:"gender,omitempty"`
	Disability       string    `json:"disability,omitempty"`
	SupportStartDate string    `json:"supportStartDate,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// EvaluationDraft is an autosaved, not yet finalized evaluation.
// At most one exists per (TargetID, EvaluationDate, Evaluator).
type EvaluationDraft struct {
	ID             string      `json:"id"`
	TargetID       string      `json:"targetId"`
	TargetName     string      `json:"targetName"`
	EvaluationDate string      `json:"evaluationDate"`
	Evaluator      Evaluator   `json:"evaluator"`
	Responses      ResponseSet `json:"responses"`
	CompletionRate int         `json:"completionRate"`
	LastSaved      time.Time   `json:"lastSaved"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// EvaluationRecord is a finalized evaluation. TotalScore and
// CategoryScores are derived from Responses on every write.
type EvaluationRecord struct {
	ID             string             `json:"id"`
	TargetID       string             `json:"targetId"`
	TargetName     string             `json:"targetName"`
	EvaluationDate string             `json:"evaluationDate"`
	Evaluator      Evaluator          `json:"evaluator"`
	Responses      ResponseSet        `json:"responses"`
	TotalScore     int                `json:"totalScore"`
	CategoryScores map[string]float64 `json:"categoryScores"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// SupportGoal is one goal-setting entry, unique per (TargetID, GoalDate).
type SupportGoal struct {
	ID                string          `json:"id"`
	TargetID          string          `json:"targetId"`
	TargetName        string          `json:"targetName"`
	GoalDate          string          `json:"goalDate"`
	SelectedGoal      string          `json:"selectedGoal"`
	ActionPlan        string          `json:"actionPlan,omitempty"`
	SuccessCriteria   string          `json:"successCriteria,omitempty"`
	SupportNeeded     string          `json:"supportNeeded,omitempty"`
	AIRecommendations json.RawMessage `json:"aiRecommendations,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}
