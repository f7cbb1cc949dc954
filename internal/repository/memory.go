package repository

import (
	"context"
	"sort"
	"sync"

	"go-leaf-inspector/pkg/models"
)

// MemoryPredictionRepository keeps the history in process memory.
type MemoryPredictionRepository struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]models.PredictionRecord
}

// NewMemoryPredictionRepository creates an empty in-memory repository
func NewMemoryPredictionRepository() *MemoryPredictionRepository {
	return &MemoryPredictionRepository{
		nextID:  1,
		records: make(map[int64]models.PredictionRecord),
	}
}

func (r *MemoryPredictionRepository) Create(ctx context.Context, rec *models.PredictionRecord) (*models.PredictionRecord, error) {
	if err := Validate(rec); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := clone(rec)
	stored.ID = r.nextID
	r.nextID++
	r.records[stored.ID] = *stored

	return clone(stored), nil
}

// clone copies rec including the confidence value, so callers never share
// memory with the stored history.
func clone(rec *models.PredictionRecord) *models.PredictionRecord {
	out := *rec
	if rec.Confidence != nil {
		c := *rec.Confidence
		out.Confidence = &c
	}
	return &out
}

func (r *MemoryPredictionRepository) FindAll(ctx context.Context, filter models.PredictionFilter) ([]*models.PredictionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.PredictionRecord, 0, len(r.records))
	for _, rec := range r.records {
		if Matches(&rec, filter) {
			out = append(out, clone(&rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryPredictionRepository) FindByID(ctx context.Context, id int64) (*models.PredictionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(&rec), nil
}

func (r *MemoryPredictionRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *MemoryPredictionRepository) Ping(ctx context.Context) error { return nil }

func (r *MemoryPredictionRepository) Name() string { return "memory" }

func (r *MemoryPredictionRepository) Close() error { return nil }
