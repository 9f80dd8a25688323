package services

import (
	"strings"
	"sync"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"github.com/soaringjerry/Stride/internal/models"
)

type AuditEntry struct {
	Time   time.Time `json:"time"`
	Action string    `json:"action"`
	Target string    `json:"target"`
	Note   string    `json:"note,omitempty"`
}

// AuditLog keeps an in-process trail of post-hoc record edits.
type AuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
	now     func() time.Time
	logger  *zap.Logger
}

func NewAuditLog(logger *zap.Logger) *AuditLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLog{now: func() time.Time { return time.Now().UTC() }, logger: logger}
}

// RecordRevision stores a unified diff between two response sets.
// Identical sets produce no entry.
func (a *AuditLog) RecordRevision(recordID string, before, after models.ResponseSet) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        withNewlines(before.Lines()),
		B:        withNewlines(after.Lines()),
		FromFile: recordID + "@before",
		ToFile:   recordID + "@after",
		Context:  0,
	})
	if err != nil {
		a.logger.Warn("record diff failed", zap.String("record_id", recordID), zap.Error(err))
		return
	}
	if diff == "" {
		return
	}
	a.mu.Lock()
	a.entries = append(a.entries, AuditEntry{Time: a.now(), Action: "record.update", Target: recordID, Note: diff})
	a.mu.Unlock()
	a.logger.Info("record responses revised", zap.String("record_id", recordID))
}

func withNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimRight(l, "\n") + "\n"
	}
	return out
}

func (a *AuditLog) List() []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out
}
