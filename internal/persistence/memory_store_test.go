package persistence

import (
	"context"
	"testing"

	"github.com/gigguin/bookflow/pkg/api"
)

func TestInMemoryStore(t *testing.T) {
	runStoreConformance(t, func(t *testing.T) PipelineStore {
		return NewInMemoryStore()
	})
}

// The in-memory store must hand out independent copies, not aliases
// into its map.
func TestInMemoryStoreIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	p := samplePipeline("evt-1", "org-1")
	if err := store.SavePipeline(ctx, p); err != nil {
		t.Fatalf("SavePipeline failed: %v", err)
	}

	// Mutating the saved argument must not leak into the store.
	p.Stage = api.StageCancelled

	got, err := store.GetPipeline(ctx, "evt-1")
	if err != nil {
		t.Fatalf("GetPipeline failed: %v", err)
	}
	if got.Stage != api.StageHold {
		t.Errorf("store aliased the caller's record: stage = %s", got.Stage)
	}

	// Mutating a returned record must not leak either.
	got.Stage = api.StageCancelled
	again, err := store.GetPipeline(ctx, "evt-1")
	if err != nil {
		t.Fatalf("GetPipeline failed: %v", err)
	}
	if again.Stage != api.StageHold {
		t.Errorf("store aliased the returned record: stage = %s", again.Stage)
	}
}
