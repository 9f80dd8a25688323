package services

import (
	"fmt"
	"math"

	"github.com/soaringjerry/Stride/internal/models"
)

// Scores are the derived totals of one evaluator's responses.
type Scores struct {
	Total      int                `json:"totalScore"`
	Categories map[string]float64 `json:"categoryScores"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// categoryNormalized returns the nonzero normalized scores of one category.
func categoryNormalized(rs models.ResponseSet, cl *Checklist, category int, ev models.Evaluator) ([]int, error) {
	cat := cl.Categories[category]
	out := make([]int, 0, len(cat.Items))
	for i, it := range cat.Items {
		raw := rs.Values[models.ResponseKey{Evaluator: ev, Category: category, Item: i}]
		n, err := Normalize(raw, it.Type)
		if err != nil {
			return nil, fmt.Errorf("%s item %d: %w", cat.Name, i, err)
		}
		if n > 0 {
			out = append(out, n)
		}
	}
	return out, nil
}

// CategoryAverage is the mean normalized score of the answered items in
// category for ev, rounded to two decimals. Unanswered items are
// excluded; a category with no answers averages 0.
func CategoryAverage(rs models.ResponseSet, cl *Checklist, category int, ev models.Evaluator) (float64, error) {
	if category < 0 || category >= len(cl.Categories) {
		return 0, fmt.Errorf("%w: no category %d", ErrInvalidResponse, category)
	}
	scores, err := categoryNormalized(rs, cl, category, ev)
	if err != nil {
		return 0, err
	}
	if len(scores) == 0 {
		return 0, nil
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return round2(float64(sum) / float64(len(scores))), nil
}

// TotalScore sums normalized scores across the whole checklist for ev.
// It is a raw sum, so it grows with the number of answered items.
func TotalScore(rs models.ResponseSet, cl *Checklist, ev models.Evaluator) (int, error) {
	total := 0
	for ci := range cl.Categories {
		scores, err := categoryNormalized(rs, cl, ci, ev)
		if err != nil {
			return 0, err
		}
		for _, s := range scores {
			total += s
		}
	}
	return total, nil
}

// ComputeScores derives the total and per-category averages for ev.
// Every record write goes through here.
func ComputeScores(rs models.ResponseSet, cl *Checklist, ev models.Evaluator) (Scores, error) {
	out := Scores{Categories: make(map[string]float64, len(cl.Categories))}
	total, err := TotalScore(rs, cl, ev)
	if err != nil {
		return Scores{}, err
	}
	out.Total = total
	for ci, cat := range cl.Categories {
		avg, err := CategoryAverage(rs, cl, ci, ev)
		if err != nil {
			return Scores{}, err
		}
		out.Categories[cat.Name] = avg
	}
	return out, nil
}

// CompletionRate is round(100 * answered / total) for ev.
func CompletionRate(rs models.ResponseSet, cl *Checklist, ev models.Evaluator) int {
	total := cl.TotalItems()
	if total == 0 {
		return 0
	}
	answered := 0
	for ci, cat := range cl.Categories {
		for ii := range cat.Items {
			if rs.Values[models.ResponseKey{Evaluator: ev, Category: ci, Item: ii}] != 0 {
				answered++
			}
		}
	}
	return int(math.Round(100 * float64(answered) / float64(total)))
}

// CategoryProgress is the answered/total count of one category.
type CategoryProgress struct {
	Category string `json:"category"`
	Answered int    `json:"answered"`
	Total    int    `json:"total"`
}

func Progress(rs models.ResponseSet, cl *Checklist, ev models.Evaluator) []CategoryProgress {
	out := make([]CategoryProgress, 0, len(cl.Categories))
	for ci, cat := range cl.Categories {
		p := CategoryProgress{Category: cat.Name, Total: len(cat.Items)}
		for ii := range cat.Items {
			if rs.Values[models.ResponseKey{Evaluator: ev, Category: ci, Item: ii}] != 0 {
				p.Answered++
			}
		}
		out = append(out, p)
	}
	return out
}
