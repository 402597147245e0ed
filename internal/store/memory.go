package store

import (
	"context"
	"sync"
	"time"

	"github.com/tipgate/tipgate/internal/prediction"
)

type memoryStore struct {
	mu      sync.RWMutex
	records map[int64]prediction.Prediction

	now func() time.Time
}

// NewMemory returns an in-process store. The single mutex gives every key
// the put-serialization guarantee for free; records are cloned on both
// sides of the boundary so callers cannot mutate stored state.
func NewMemory() Store {
	return &memoryStore{
		records: make(map[int64]prediction.Prediction),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryStore) Put(_ context.Context, p prediction.Prediction) (prediction.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := p.Clone()
	stored.LastUpdated = s.now()
	s.records[stored.MatchID] = stored
	return stored.Clone(), nil
}

func (s *memoryStore) Get(_ context.Context, matchID int64) (prediction.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[matchID]
	if !ok {
		return prediction.Prediction{}, prediction.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *memoryStore) Delete(_ context.Context, matchID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[matchID]; !ok {
		return prediction.ErrNotFound
	}
	delete(s.records, matchID)
	return nil
}

func (s *memoryStore) Scan(_ context.Context, keep func(prediction.Prediction) bool) ([]prediction.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]prediction.Prediction, 0, len(s.records))
	for _, record := range s.records {
		if keep != nil && !keep(record) {
			continue
		}
		out = append(out, record.Clone())
	}
	return out, nil
}

func (s *memoryStore) Size(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}
