package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"fee-ledger/internal/clients"
	"fee-ledger/internal/domain"
)

const (
	exportStatusTTL  = 20 * time.Minute
	exportIDsSetKey  = "export_ids"
	exportStatusKeyF = "export_status:%s"
)

type MemoryExportStatusRepository struct {
	mu       sync.RWMutex
	statuses map[string]domain.ExportStatus
}

func NewMemoryExportStatusRepository() *MemoryExportStatusRepository {
	return &MemoryExportStatusRepository{statuses: make(map[string]domain.ExportStatus)}
}

func (r *MemoryExportStatusRepository) Save(ctx context.Context, s domain.ExportStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[s.Key] = s
	return nil
}

func (r *MemoryExportStatusRepository) Get(ctx context.Context, key string) (domain.ExportStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.statuses[key]
	if !ok {
		return domain.ExportStatus{}, domain.ErrExportNotFound
	}
	return s, nil
}

func (r *MemoryExportStatusRepository) List(ctx context.Context, username string) ([]domain.ExportStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.ExportStatus{}
	for _, s := range r.statuses {
		if username == "" || s.Username == username {
			out = append(out, s)
		}
	}
	sortExports(out)
	return out, nil
}

// RedisExportStatusRepository stores each status as JSON under its own key
// and tracks known keys in a set.
type RedisExportStatusRepository struct {
	cache KeyValueStore
}

func NewRedisExportStatusRepository(cache KeyValueStore) *RedisExportStatusRepository {
	return &RedisExportStatusRepository{cache: cache}
}

func (r *RedisExportStatusRepository) Save(ctx context.Context, s domain.ExportStatus) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal export status: %w", err)
	}
	if err := r.cache.Set(ctx, fmt.Sprintf(exportStatusKeyF, s.Key), raw, exportStatusTTL); err != nil {
		return &domain.StorageError{Op: "save export status", Err: err}
	}
	if err := r.cache.SAdd(ctx, exportIDsSetKey, s.Key); err != nil {
		return &domain.StorageError{Op: "index export status", Err: err}
	}
	return nil
}

func (r *RedisExportStatusRepository) Get(ctx context.Context, key string) (domain.ExportStatus, error) {
	raw, err := r.cache.Get(ctx, fmt.Sprintf(exportStatusKeyF, key))
	if errors.Is(err, clients.ErrCacheMiss) {
		return domain.ExportStatus{}, domain.ErrExportNotFound
	}
	if err != nil {
		return domain.ExportStatus{}, &domain.StorageError{Op: "get export status", Err: err}
	}

	var s domain.ExportStatus
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return domain.ExportStatus{}, &domain.StorageError{Op: "decode export status", Err: err}
	}
	return s, nil
}

// List drops expired keys from the index as it goes.
func (r *RedisExportStatusRepository) List(ctx context.Context, username string) ([]domain.ExportStatus, error) {
	ids, err := r.cache.SMembers(ctx, exportIDsSetKey)
	if err != nil {
		return nil, &domain.StorageError{Op: "list export ids", Err: err}
	}

	out := []domain.ExportStatus{}
	for _, id := range ids {
		s, err := r.Get(ctx, id)
		if errors.Is(err, domain.ErrExportNotFound) {
			if err := r.cache.SRem(ctx, exportIDsSetKey, id); err != nil {
				log.Printf("[EXPORT] failed to drop stale export id %s: %v", id, err)
			}
			continue
		}
		if err != nil {
			log.Printf("[EXPORT] skipping export %s: %v", id, err)
			continue
		}
		if username == "" || s.Username == username {
			out = append(out, s)
		}
	}
	sortExports(out)
	return out, nil
}

func sortExports(s []domain.ExportStatus) {
	sort.Slice(s, func(i, j int) bool { return s[i].Created.After(s[j].Created) })
}
