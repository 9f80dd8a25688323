package services

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/soaringjerry/Stride/internal/models"
)

// utf8BOM lets spreadsheet software detect the encoding of Japanese text.
const utf8BOM = "\uFEFF"

// cell is one CSV field. Text fields are always quoted; numbers never are.
type cell struct {
	value string
	quote bool
}

func text(s string) cell { return cell{value: s, quote: true} }
func num(i int) cell     { return cell{value: strconv.Itoa(i)} }
func dec(f float64) cell { return cell{value: strconv.FormatFloat(f, 'f', 2, 64)} }

func writeCSV(header []string, rows [][]cell) []byte {
	buf := &bytes.Buffer{}
	buf.WriteString(utf8BOM)
	head := make([]cell, len(header))
	for i, h := range header {
		head[i] = text(h)
	}
	writeRow(buf, head)
	for _, r := range rows {
		writeRow(buf, r)
	}
	return buf.Bytes()
}

func writeRow(buf *bytes.Buffer, row []cell) {
	for i, c := range row {
		if i > 0 {
			buf.WriteByte(',')
		}
		if c.quote {
			buf.WriteByte('"')
			buf.WriteString(strings.ReplaceAll(c.value, `"`, `""`))
			buf.WriteByte('"')
			continue
		}
		buf.WriteString(c.value)
	}
	buf.WriteByte('\n')
}

// ExportFilename renders "<label>_<YYYY-MM-DD>.<ext>".
func ExportFilename(label, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", label, now.Format("2006-01-02"), ext)
}

func genderLabel(g models.Gender) string {
	switch g {
	case models.GenderMale:
		return "男性"
	case models.GenderFemale:
		return "女性"
	case models.GenderOther:
		return "その他"
	}
	return ""
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// ExportTargetsCSV renders the target roster.
func ExportTargetsCSV(targets []models.SupportTarget) []byte {
	header := []string{"ID", "利用者ID", "氏名", "生年月日", "メールアドレス", "性別", "障害", "支援開始日", "備考", "登録日時"}
	rows := make([][]cell, 0, len(targets))
	for _, t := range targets {
		rows = append(rows, []cell{
			text(t.ID), text(t.UserID), text(t.Name), text(t.Birthdate), text(t.Email),
			text(genderLabel(t.Gender)), text(t.Disability), text(t.SupportStartDate), text(t.Notes),
			text(formatTime(t.CreatedAt)),
		})
	}
	return writeCSV(header, rows)
}

// ExportRecordsCSV renders one summary row per record with the total and
// each category average.
func ExportRecordsCSV(records []models.EvaluationRecord, cl *Checklist) []byte {
	header := []string{"評価ID", "対象者ID", "対象者名", "評価日", "評価者", "合計スコア"}
	for _, cat := range cl.Categories {
		header = append(header, cat.Name)
	}
	header = append(header, "作成日時")
	rows := make([][]cell, 0, len(records))
	for _, r := range records {
		row := []cell{
			text(r.ID), text(r.TargetID), text(r.TargetName), text(r.EvaluationDate),
			text(evaluatorLabel(r.Evaluator)), num(r.TotalScore),
		}
		for _, cat := range cl.Categories {
			row = append(row, dec(r.CategoryScores[cat.Name]))
		}
		row = append(row, text(formatTime(r.CreatedAt)))
		rows = append(rows, row)
	}
	return writeCSV(header, rows)
}

// ExportDetailCSV renders a wide table with one column per response key
// present in any record, headed "<evaluator>-<cat>-<item>". Cells hold the
// raw answer; unanswered cells are empty.
func ExportDetailCSV(records []models.EvaluationRecord) []byte {
	keySet := map[models.ResponseKey]struct{}{}
	for _, r := range records {
		for k, v := range r.Responses.Values {
			if v != 0 {
				keySet[k] = struct{}{}
			}
		}
	}
	keys := make([]models.ResponseKey, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })

	header := []string{"評価ID", "対象者ID", "対象者名", "評価日", "評価者"}
	for _, k := range keys {
		header = append(header, k.String())
	}
	rows := make([][]cell, 0, len(records))
	for _, r := range records {
		row := []cell{text(r.ID), text(r.TargetID), text(r.TargetName), text(r.EvaluationDate), text(string(r.Evaluator))}
		for _, k := range keys {
			if v := r.Responses.Values[k]; v != 0 {
				row = append(row, num(v))
			} else {
				row = append(row, cell{})
			}
		}
		rows = append(rows, row)
	}
	return writeCSV(header, rows)
}

func evaluatorOrder(ev models.Evaluator) int {
	for i, e := range models.Evaluators {
		if e == ev {
			return i
		}
	}
	return len(models.Evaluators)
}

func lessKey(a, b models.ResponseKey) bool {
	if a.Evaluator != b.Evaluator {
		return evaluatorOrder(a.Evaluator) < evaluatorOrder(b.Evaluator)
	}
	if a.Category != b.Category {
		return a.Category < b.Category
	}
	return a.Item < b.Item
}
