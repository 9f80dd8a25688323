package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soaringjerry/Stride/internal/models"
)

// Collection names as persisted by every backend.
const (
	CollectionTargets = "supportTargets"
	CollectionRecords = "evaluationRecords"
	CollectionDrafts  = "evaluationDrafts"
	CollectionGoals   = "supportGoals"
)

// DefaultQuotaBytes caps one serialized collection at the size of a
// browser's per-origin local storage budget.
const DefaultQuotaBytes = 5 << 20

// CollectionStore abstracts the persistent key-value backend. Each
// collection is read and replaced as a whole.
type CollectionStore interface {
	Load(ctx context.Context, collection string) ([]byte, error)
	Save(ctx context.Context, collection string, data []byte) error
}

// collection is a typed view over one stored list. Update holds the
// collection lock across read, mutate and write so concurrent upserts
// never lose each other's changes.
type collection[T any] struct {
	name  string
	store CollectionStore
	quota int
	mu    *sync.Mutex
}

func (c collection[T]) load(ctx context.Context) ([]T, error) {
	data, err := c.store.Load(ctx, c.name)
	if err != nil {
		return nil, NewStorageError("load "+c.name, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, NewStorageError("decode "+c.name, err)
	}
	return out, nil
}

// All returns a snapshot of the collection.
func (c collection[T]) All(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

// Update runs fn over the current list and writes back its result.
// Nothing is written when fn returns an error.
func (c collection[T]) Update(ctx context.Context, fn func([]T) ([]T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	list, err := c.load(ctx)
	if err != nil {
		return err
	}
	next, err := fn(list)
	if err != nil {
		return err
	}
	if next == nil {
		next = []T{}
	}
	data, err := json.Marshal(next)
	if err != nil {
		return NewStorageError("encode "+c.name, err)
	}
	if c.quota > 0 && len(data) > c.quota {
		return NewStorageError("save "+c.name, fmt.Errorf("quota exceeded: %d > %d bytes", len(data), c.quota))
	}
	if err := c.store.Save(ctx, c.name, data); err != nil {
		return NewStorageError("save "+c.name, err)
	}
	return nil
}

// Repository bundles the four entity collections over one backend.
// Construct it once and share it between services.
type Repository struct {
	Targets collection[models.SupportTarget]
	Records collection[models.EvaluationRecord]
	Drafts  collection[models.EvaluationDraft]
	Goals   collection[models.SupportGoal]

	now         func() time.Time
	idGenerator func() string
}

// NewRepository binds typed collections to store. quota <= 0 disables the
// size check.
func NewRepository(store CollectionStore, quota int) *Repository {
	return &Repository{
		Targets:     collection[models.SupportTarget]{name: CollectionTargets, store: store, quota: quota, mu: &sync.Mutex{}},
		Records:     collection[models.EvaluationRecord]{name: CollectionRecords, store: store, quota: quota, mu: &sync.Mutex{}},
		Drafts:      collection[models.EvaluationDraft]{name: CollectionDrafts, store: store, quota: quota, mu: &sync.Mutex{}},
		Goals:       collection[models.SupportGoal]{name: CollectionGoals, store: store, quota: quota, mu: &sync.Mutex{}},
		now:         func() time.Time { return time.Now().UTC() },
		idGenerator: uuid.NewString,
	}
}
