package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/soaringjerry/Stride/internal/models"
)

// stubStore is an in-process CollectionStore with switchable failures.
type stubStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	failOn  map[string]error
	saves   int
	loadErr error

	// afterSave runs once, outside the lock, after the next successful
	// save of the named collection.
	afterSave map[string]func()
}

func newStubStore() *stubStore {
	return &stubStore{data: map[string][]byte{}, failOn: map[string]error{}, afterSave: map[string]func(){}}
}

func (s *stubStore) Load(_ context.Context, collection string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]byte(nil), s.data[collection]...), nil
}

func (s *stubStore) Save(_ context.Context, collection string, data []byte) error {
	s.mu.Lock()
	if err := s.failOn[collection]; err != nil {
		s.mu.Unlock()
		return err
	}
	s.saves++
	s.data[collection] = append([]byte(nil), data...)
	hook := s.afterSave[collection]
	delete(s.afterSave, collection)
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (s *stubStore) fail(collection string) {
	s.mu.Lock()
	s.failOn[collection] = errors.New("disk full")
	s.mu.Unlock()
}

func (s *stubStore) heal(collection string) {
	s.mu.Lock()
	delete(s.failOn, collection)
	s.mu.Unlock()
}

func (s *stubStore) onSave(collection string, fn func()) {
	s.mu.Lock()
	s.afterSave[collection] = fn
	s.mu.Unlock()
}

type fixture struct {
	store   *stubStore
	repo    *Repository
	cl      *Checklist
	audit   *AuditLog
	targets *TargetService
	records *RecordService
	drafts  *DraftService
	goals   *GoalService
}

func newFixture() *fixture {
	store := newStubStore()
	repo := NewRepository(store, DefaultQuotaBytes)
	seq := 0
	clock := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	repo.idGenerator = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	repo.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	cl := DefaultChecklist()
	audit := NewAuditLog(nil)
	records := NewRecordService(repo, cl, audit, nil)
	return &fixture{
		store:   store,
		repo:    repo,
		cl:      cl,
		audit:   audit,
		targets: NewTargetService(repo, nil),
		records: records,
		drafts:  NewDraftService(repo, cl, records, nil),
		goals:   NewGoalService(repo, nil),
	}
}

func evalInput(target, date string, ev models.Evaluator, answers map[[2]int]int) EvaluationInput {
	rs := models.NewResponseSet()
	for k, v := range answers {
		rs.Values[models.ResponseKey{Evaluator: ev, Category: k[0], Item: k[1]}] = v
	}
	return EvaluationInput{TargetID: target, TargetName: "山田 太郎", EvaluationDate: date, Evaluator: ev, Responses: rs}
}
