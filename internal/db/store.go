package db

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/soaringjerry/Stride/internal/services"
)

// Store is a CollectionStore backend with a lifecycle.
type Store interface {
	services.CollectionStore
	Ping(ctx context.Context) error
	Close() error
}

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Options struct {
	Backend       string
	SnapshotPath  string
	SQLitePath    string
	MigrationsDir string
	Redis         RedisOptions
}

// Open builds the backend named by opts.Backend and checks it is reachable.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		store Store
		err   error
	)
	switch opts.Backend {
	case BackendMemory, "":
		store, err = NewMemoryStoreFromPath(opts.SnapshotPath)
	case BackendSQLite:
		store, err = OpenSQLite(ctx, opts.SQLitePath, opts.MigrationsDir)
	case BackendRedis:
		store = NewRedisStore(NewRedisClient(opts.Redis), opts.Redis.Prefix)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%s store unreachable: %w", opts.Backend, err)
	}
	return store, nil
}

var knownCollections = []string{
	services.CollectionTargets,
	services.CollectionRecords,
	services.CollectionDrafts,
	services.CollectionGoals,
}

// ImportResult lists which collections an import wrote and which it left
// alone because the store already had data.
type ImportResult struct {
	Imported []string
	Skipped  []string
}

// Import copies snapshot collections into store. Unknown collection names
// are rejected; populated collections are only replaced when overwrite is
// set.
func Import(ctx context.Context, store services.CollectionStore, snap Snapshot, overwrite bool) (ImportResult, error) {
	var res ImportResult
	known := map[string]bool{}
	for _, name := range knownCollections {
		known[name] = true
	}
	for name, payload := range snap {
		if !known[name] {
			return res, fmt.Errorf("unknown collection %q in snapshot", name)
		}
		var probe []json.RawMessage
		if err := json.Unmarshal(payload, &probe); err != nil {
			return res, fmt.Errorf("collection %s is not a JSON array: %w", name, err)
		}
	}
	for _, name := range knownCollections {
		payload, ok := snap[name]
		if !ok {
			continue
		}
		if !overwrite {
			existing, err := store.Load(ctx, name)
			if err != nil {
				return res, err
			}
			if hasEntries(existing) {
				res.Skipped = append(res.Skipped, name)
				continue
			}
		}
		if err := store.Save(ctx, name, payload); err != nil {
			return res, err
		}
		res.Imported = append(res.Imported, name)
	}
	return res, nil
}

func hasEntries(payload []byte) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("[]")) && !bytes.Equal(trimmed, []byte("null"))
}
