package predictions

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store persists served predictions
type Store interface {
	// Record saves a new prediction; IDs must be unique
	Record(ctx context.Context, rec *Record) error

	// Get returns a prediction by ID or ErrNotFound
	Get(ctx context.Context, id string) (*Record, error)

	// ListRecent returns up to limit predictions, newest first
	ListRecent(ctx context.Context, limit int) ([]*Record, error)
}

// MemoryStore implements Store in process memory. Safe for concurrent use.
type MemoryStore struct {
	records map[string]*Record
	order   []string
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
	}
}

// Record stores a copy of rec, setting CreatedAt when unset
func (s *MemoryStore) Record(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("prediction with ID %s already exists", rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.records[rec.ID] = rec.clone()
	s.order = append(s.order, rec.ID)
	return nil
}

// Get retrieves a prediction by ID
func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, fmt.Errorf("prediction %s: %w", id, ErrNotFound)
	}
	return rec.clone(), nil
}

// ListRecent returns the newest predictions in reverse insertion order
func (s *MemoryStore) ListRecent(_ context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	out := make([]*Record, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[s.order[i]].clone())
	}
	return out, nil
}
