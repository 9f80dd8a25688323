package services

import (
	"fmt"
	"time"

	"github.com/soaringjerry/Stride/internal/models"
)

// SummaryItem carries one checklist item's normalized scores per evaluator.
// Evaluators who have not answered are absent.
type SummaryItem struct {
	Category string                   `json:"category"`
	Item     int                      `json:"item"`
	Label    string                   `json:"label"`
	Scores   map[models.Evaluator]int `json:"scores"`
}

// SummaryTarget is the subset of target data sent to the AI service.
type SummaryTarget struct {
	Name             string `json:"name"`
	Age              int    `json:"age,omitempty"`
	Gender           string `json:"gender,omitempty"`
	Disability       string `json:"disability,omitempty"`
	SupportStartDate string `json:"supportStartDate,omitempty"`
}

// EvaluationSummary is the structured request payload for AI calls.
type EvaluationSummary struct {
	Target          SummaryTarget                           `json:"target"`
	EvaluationDate  string                                  `json:"evaluationDate"`
	Items           []SummaryItem                           `json:"items"`
	CategoryScores  map[models.Evaluator]map[string]float64 `json:"categoryScores"`
	CompletionRates map[models.Evaluator]int                `json:"completionRates"`
}

// BuildSummary normalizes every answered item across all evaluators.
func BuildSummary(target models.SupportTarget, date string, rs models.ResponseSet, cl *Checklist) (EvaluationSummary, error) {
	out := EvaluationSummary{
		Target: SummaryTarget{
			Name:             target.Name,
			Age:              ageOn(target.Birthdate, date),
			Gender:           string(target.Gender),
			Disability:       target.Disability,
			SupportStartDate: target.SupportStartDate,
		},
		EvaluationDate:  date,
		CategoryScores:  map[models.Evaluator]map[string]float64{},
		CompletionRates: map[models.Evaluator]int{},
	}
	for ci, cat := range cl.Categories {
		for ii, it := range cat.Items {
			item := SummaryItem{Category: cat.Name, Item: ii + 1, Label: it.Label, Scores: map[models.Evaluator]int{}}
			for _, ev := range models.Evaluators {
				n, err := Normalize(rs.Values[models.ResponseKey{Evaluator: ev, Category: ci, Item: ii}], it.Type)
				if err != nil {
					return EvaluationSummary{}, fmt.Errorf("%s item %d: %w", cat.Name, ii, err)
				}
				if n > 0 {
					item.Scores[ev] = n
				}
			}
			out.Items = append(out.Items, item)
		}
	}
	for _, ev := range models.Evaluators {
		if rs.Answered(ev) == 0 {
			continue
		}
		scores, err := ComputeScores(rs, cl, ev)
		if err != nil {
			return EvaluationSummary{}, err
		}
		out.CategoryScores[ev] = scores.Categories
		out.CompletionRates[ev] = CompletionRate(rs, cl, ev)
	}
	return out, nil
}

// ageOn returns whole years between birthdate and on (both YYYY-MM-DD);
// 0 when either is unparsable.
func ageOn(birthdate, on string) int {
	b, err := time.Parse("2006-01-02", birthdate)
	if err != nil {
		return 0
	}
	d, err := time.Parse("2006-01-02", on)
	if err != nil {
		return 0
	}
	age := d.Year() - b.Year()
	if d.Month() < b.Month() || (d.Month() == b.Month() && d.Day() < b.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

func evaluatorLabel(ev models.Evaluator) string {
	switch ev {
	case models.EvaluatorSelf:
		return "本人"
	case models.EvaluatorStaff:
		return "職員"
	case models.EvaluatorFamily:
		return "家族"
	}
	return string(ev)
}
