package repository

import (
	"context"
	"sync"

	"fee-ledger/internal/domain"
)

// FeeScheduleRepository keeps per-student fee overrides in a JSON object keyed by identity.
type FeeScheduleRepository struct {
	path string
	mu   sync.RWMutex
}

func NewFeeScheduleRepository(path string) *FeeScheduleRepository {
	return &FeeScheduleRepository{path: path}
}

func (r *FeeScheduleRepository) load() (map[string]domain.FeeSchedule, error) {
	schedules := map[string]domain.FeeSchedule{}
	if err := readJSONFile(r.path, &schedules); err != nil {
		return nil, &domain.StorageError{Op: "read fee schedules", Err: err}
	}
	return schedules, nil
}

// Get returns the schedule for id and whether one exists.
func (r *FeeScheduleRepository) Get(ctx context.Context, id domain.Identity) (domain.FeeSchedule, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schedules, err := r.load()
	if err != nil {
		return domain.FeeSchedule{}, false, err
	}
	s, ok := schedules[id.String()]
	return s, ok, nil
}

// Set stores the schedule for id, replacing any previous one.
func (r *FeeScheduleRepository) Set(ctx context.Context, id domain.Identity, s domain.FeeSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	schedules, err := r.load()
	if err != nil {
		return err
	}
	schedules[id.String()] = s
	if err := writeJSONFileAtomic(r.path, schedules); err != nil {
		return &domain.StorageError{Op: "write fee schedules", Err: err}
	}
	return nil
}

func (r *FeeScheduleRepository) List(ctx context.Context) (map[domain.Identity]domain.FeeSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schedules, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Identity]domain.FeeSchedule, len(schedules))
	for k, v := range schedules {
		out[domain.Identity(k)] = v
	}
	return out, nil
}
