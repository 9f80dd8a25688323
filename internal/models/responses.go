package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Evaluator is the rating source for an evaluation.
type Evaluator string

const (
	EvaluatorSelf   Evaluator = "self"
	EvaluatorStaff  Evaluator = "staff"
	EvaluatorFamily Evaluator = "family"
)

// Evaluators lists every rating source in display order.
var Evaluators = []Evaluator{EvaluatorSelf, EvaluatorStaff, EvaluatorFamily}

// ParseEvaluator converts s into an Evaluator.
func ParseEvaluator(s string) (Evaluator, error) {
	switch e := Evaluator(strings.TrimSpace(s)); e {
	case EvaluatorSelf, EvaluatorStaff, EvaluatorFamily:
		return e, nil
	}
	return "", fmt.Errorf("unknown evaluator %q", s)
}

// ResponseKey addresses one checklist item for one evaluator.
type ResponseKey struct {
	Evaluator Evaluator
	Category  int
	Item      int
}

func (k ResponseKey) String() string {
	return fmt.Sprintf("%s-%d-%d", k.Evaluator, k.Category, k.Item)
}

// SubCheckKey addresses one sub-check box below a checklist item.
type SubCheckKey struct {
	ResponseKey
	Sub int
}

func (k SubCheckKey) String() string {
	return fmt.Sprintf("%s-%d", k.ResponseKey, k.Sub)
}

// ParseResponseKey parses the "<evaluator>-<cat>-<item>" form.
func ParseResponseKey(s string) (ResponseKey, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return ResponseKey{}, fmt.Errorf("malformed response key %q", s)
	}
	return parseKeyParts(s, parts)
}

// ParseSubCheckKey parses the "<evaluator>-<cat>-<item>-<sub>" form.
func ParseSubCheckKey(s string) (SubCheckKey, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 4 {
		return SubCheckKey{}, fmt.Errorf("malformed sub-check key %q", s)
	}
	rk, err := parseKeyParts(s, parts[:3])
	if err != nil {
		return SubCheckKey{}, err
	}
	sub, err := strconv.Atoi(parts[3])
	if err != nil || sub < 0 {
		return SubCheckKey{}, fmt.Errorf("malformed sub-check key %q", s)
	}
	return SubCheckKey{ResponseKey: rk, Sub: sub}, nil
}

func parseKeyParts(raw string, parts []string) (ResponseKey, error) {
	ev, err := ParseEvaluator(parts[0])
	if err != nil {
		return ResponseKey{}, fmt.Errorf("malformed key %q: %w", raw, err)
	}
	cat, err := strconv.Atoi(parts[1])
	if err != nil || cat < 0 {
		return ResponseKey{}, fmt.Errorf("malformed key %q", raw)
	}
	item, err := strconv.Atoi(parts[2])
	if err != nil || item < 0 {
		return ResponseKey{}, fmt.Errorf("malformed key %q", raw)
	}
	return ResponseKey{Evaluator: ev, Category: cat, Item: item}, nil
}

// ResponseSet holds the sparse answers of an evaluation. A missing key
// means the item has not been answered; it is never treated as zero.
type ResponseSet struct {
	Values    map[ResponseKey]int
	SubChecks map[SubCheckKey]bool
	Comments  map[ResponseKey]string
}

// NewResponseSet returns an empty set with all maps allocated.
func NewResponseSet() ResponseSet {
	return ResponseSet{
		Values:    map[ResponseKey]int{},
		SubChecks: map[SubCheckKey]bool{},
		Comments:  map[ResponseKey]string{},
	}
}

// Clone returns a deep copy of rs.
func (rs ResponseSet) Clone() ResponseSet {
	out := NewResponseSet()
	for k, v := range rs.Values {
		out.Values[k] = v
	}
	for k, v := range rs.SubChecks {
		out.SubChecks[k] = v
	}
	for k, v := range rs.Comments {
		out.Comments[k] = v
	}
	return out
}

// Answered counts nonzero responses recorded for ev.
func (rs ResponseSet) Answered(ev Evaluator) int {
	n := 0
	for k, v := range rs.Values {
		if k.Evaluator == ev && v != 0 {
			n++
		}
	}
	return n
}

// ForEvaluator returns the subset of rs belonging to ev.
func (rs ResponseSet) ForEvaluator(ev Evaluator) ResponseSet {
	out := NewResponseSet()
	for k, v := range rs.Values {
		if k.Evaluator == ev {
			out.Values[k] = v
		}
	}
	for k, v := range rs.SubChecks {
		if k.Evaluator == ev {
			out.SubChecks[k] = v
		}
	}
	for k, v := range rs.Comments {
		if k.Evaluator == ev {
			out.Comments[k] = v
		}
	}
	return out
}

// Lines renders rs as sorted "key=value" lines, suitable for diffing.
func (rs ResponseSet) Lines() []string {
	lines := make([]string, 0, len(rs.Values)+len(rs.SubChecks)+len(rs.Comments))
	for k, v := range rs.Values {
		lines = append(lines, fmt.Sprintf("%s=%d", k, v))
	}
	for k, v := range rs.SubChecks {
		lines = append(lines, fmt.Sprintf("%s=%t", k, v))
	}
	for k, v := range rs.Comments {
		lines = append(lines, fmt.Sprintf("%s#comment=%q", k, v))
	}
	sort.Strings(lines)
	return lines
}

type responseSetJSON struct {
	Values    map[string]int    `json:"values"`
	SubChecks map[string]bool   `json:"subChecks"`
	Comments  map[string]string `json:"comments"`
}

// MarshalJSON encodes keys in their composite string form.
func (rs ResponseSet) MarshalJSON() ([]byte, error) {
	out := responseSetJSON{
		Values:    make(map[string]int, len(rs.Values)),
		SubChecks: make(map[string]bool, len(rs.SubChecks)),
		Comments:  make(map[string]string, len(rs.Comments)),
	}
	for k, v := range rs.Values {
		out.Values[k.String()] = v
	}
	for k, v := range rs.SubChecks {
		out.SubChecks[k.String()] = v
	}
	for k, v := range rs.Comments {
		out.Comments[k.String()] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes composite string keys; malformed keys are errors.
func (rs *ResponseSet) UnmarshalJSON(b []byte) error {
	var in responseSetJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	out := NewResponseSet()
	for s, v := range in.Values {
		k, err := ParseResponseKey(s)
		if err != nil {
			return err
		}
		out.Values[k] = v
	}
	for s, v := range in.SubChecks {
		k, err := ParseSubCheckKey(s)
		if err != nil {
			return err
		}
		out.SubChecks[k] = v
	}
	for s, v := range in.Comments {
		k, err := ParseResponseKey(s)
		if err != nil {
			return err
		}
		out.Comments[k] = v
	}
	*rs = out
	return nil
}
