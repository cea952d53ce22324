package persistence

import (
	"context"
	"sync"

	"github.com/gigguin/bookflow/pkg/api"
)

// InMemoryStore is a simple, goroutine-safe PipelineStore backed by a
// map. It is the default store for tests and examples.
type InMemoryStore struct {
	mu        sync.RWMutex
	pipelines map[string]*api.Pipeline
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		pipelines: make(map[string]*api.Pipeline),
	}
}

// Ensure InMemoryStore implements the interface.
var _ PipelineStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) SavePipeline(ctx context.Context, p *api.Pipeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pipelines[p.EventID]; ok {
		return ErrPipelineExists
	}

	s.pipelines[p.EventID] = p.Clone()
	return nil
}

func (s *InMemoryStore) UpdatePipeline(ctx context.Context, p *api.Pipeline, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.pipelines[p.EventID]
	if !ok {
		return ErrPipelineNotFound
	}
	if stored.Version != expectedVersion {
		return ErrVersionConflict
	}

	s.pipelines[p.EventID] = p.Clone()
	return nil
}

func (s *InMemoryStore) GetPipeline(ctx context.Context, eventID string) (*api.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pipelines[eventID]
	if !ok {
		return nil, ErrPipelineNotFound
	}

	return p.Clone(), nil
}

func (s *InMemoryStore) ListPipelines(ctx context.Context, filter PipelineFilter) ([]*api.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*api.Pipeline
	for _, p := range s.pipelines {
		if matchesFilter(p, filter) {
			result = append(result, p.Clone())
		}
	}

	return result, nil
}
