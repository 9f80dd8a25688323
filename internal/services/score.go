package services

import (
	"errors"
	"fmt"
)

// ItemType is the response scale of a checklist item.
type ItemType string

const (
	ItemFiveLevel          ItemType = "5-level"
	ItemFiveLevelSubchecks ItemType = "5-level-with-subchecks"
	ItemTwoLevelSubchecks  ItemType = "2-level-with-subchecks"
)

// ErrInvalidResponse flags a raw value outside the item's option range.
// It indicates corrupt data upstream rather than a user mistake.
var ErrInvalidResponse = errors.New("invalid raw response")

// Points returns the number of options on the scale, or 0 for unknown types.
func (t ItemType) Points() int {
	switch t {
	case ItemFiveLevel, ItemFiveLevelSubchecks:
		return 5
	case ItemTwoLevelSubchecks:
		return 2
	}
	return 0
}

// HasSubchecks reports whether items of this type carry sub-check boxes.
func (t ItemType) HasSubchecks() bool {
	return t == ItemFiveLevelSubchecks || t == ItemTwoLevelSubchecks
}

// ReverseScore maps a raw Likert value to its reverse-scored value
// given the number of points in the scale (e.g., 5 or 2).
// raw is expected to be within [1, points]. Out-of-range values are clamped.
func ReverseScore(raw, points int) int {
	if points < 2 {
		return raw
	}
	if raw < 1 {
		raw = 1
	}
	if raw > points {
		raw = points
	}
	return (points + 1) - raw
}

// Normalize converts a raw option index into a score where higher means
// more capable. Option 1 is the most capable answer on every scale, so
// the scale is inverted: 5-level maps raw r to 6-r, 2-level maps 1->2 and
// 2->1. Zero means unanswered and stays zero.
func Normalize(raw int, t ItemType) (int, error) {
	points := t.Points()
	if points == 0 {
		return 0, fmt.Errorf("%w: unknown item type %q", ErrInvalidResponse, t)
	}
	if raw == 0 {
		return 0, nil
	}
	if raw < 0 || raw > points {
		return 0, fmt.Errorf("%w: %d not in [0,%d] for %s", ErrInvalidResponse, raw, points, t)
	}
	return ReverseScore(raw, points), nil
}
