package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gigguin/bookflow/pkg/api"
)

func samplePipeline(eventID, orgID string) *api.Pipeline {
	now := time.Now().Truncate(time.Second)
	return &api.Pipeline{
		EventID:        eventID,
		OrganizationID: orgID,
		Stage:          api.StageHold,
		HoldExpiresAt:  now.Add(72 * time.Hour),
		Version:        1,
		CreatedAt:      now,
		CreatedBy:      "booker",
		UpdatedAt:      now,
		UpdatedBy:      "booker",
	}
}

// runStoreConformance runs the PipelineStore contract against a fresh
// store. Every backend must pass it.
func runStoreConformance(t *testing.T, newStore func(t *testing.T) PipelineStore) {
	t.Run("SaveAndGet", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		p := samplePipeline("evt-1", "org-1")
		if err := store.SavePipeline(ctx, p); err != nil {
			t.Fatalf("SavePipeline failed: %v", err)
		}

		got, err := store.GetPipeline(ctx, "evt-1")
		if err != nil {
			t.Fatalf("GetPipeline failed: %v", err)
		}
		if got.EventID != p.EventID || got.OrganizationID != p.OrganizationID || got.Stage != p.Stage {
			t.Errorf("got %+v, want %+v", got, p)
		}
		if got.Version != 1 {
			t.Errorf("version = %d, want 1", got.Version)
		}
	})

	t.Run("SaveDuplicate", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		p := samplePipeline("evt-1", "org-1")
		if err := store.SavePipeline(ctx, p); err != nil {
			t.Fatalf("SavePipeline failed: %v", err)
		}
		if err := store.SavePipeline(ctx, samplePipeline("evt-1", "org-1")); !errors.Is(err, ErrPipelineExists) {
			t.Fatalf("expected ErrPipelineExists, got %v", err)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		store := newStore(t)
		if _, err := store.GetPipeline(context.Background(), "nope"); !errors.Is(err, ErrPipelineNotFound) {
			t.Fatalf("expected ErrPipelineNotFound, got %v", err)
		}
	})

	t.Run("UpdateVersionCheck", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		if err := store.SavePipeline(ctx, samplePipeline("evt-1", "org-1")); err != nil {
			t.Fatalf("SavePipeline failed: %v", err)
		}

		next := samplePipeline("evt-1", "org-1")
		next.Stage = api.StageOffer
		next.OfferAmountCents = 50_000
		next.OfferExpiresAt = time.Now().Add(48 * time.Hour).Truncate(time.Second)
		next.Version = 2

		if err := store.UpdatePipeline(ctx, next, 1); err != nil {
			t.Fatalf("UpdatePipeline failed: %v", err)
		}

		// A second writer against the old snapshot must lose.
		stale := samplePipeline("evt-1", "org-1")
		stale.Stage = api.StageCancelled
		stale.Version = 2
		if err := store.UpdatePipeline(ctx, stale, 1); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}

		got, err := store.GetPipeline(ctx, "evt-1")
		if err != nil {
			t.Fatalf("GetPipeline failed: %v", err)
		}
		if got.Stage != api.StageOffer || got.Version != 2 {
			t.Errorf("stage = %s version = %d, want offer 2", got.Stage, got.Version)
		}
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		store := newStore(t)
		p := samplePipeline("ghost", "org-1")
		if err := store.UpdatePipeline(context.Background(), p, 1); !errors.Is(err, ErrPipelineNotFound) {
			t.Fatalf("expected ErrPipelineNotFound, got %v", err)
		}
	})

	t.Run("ListFilters", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		now := time.Now().Truncate(time.Second)

		lapsed := samplePipeline("evt-lapsed", "org-a")
		lapsed.HoldExpiresAt = now.Add(-time.Hour)

		offer := samplePipeline("evt-offer", "org-a")
		offer.Stage = api.StageOffer
		offer.OfferAmountCents = 500
		offer.OfferExpiresAt = now.Add(-time.Minute)

		other := samplePipeline("evt-other", "org-b")

		for _, p := range []*api.Pipeline{lapsed, offer, other} {
			if err := store.SavePipeline(ctx, p); err != nil {
				t.Fatalf("SavePipeline %s failed: %v", p.EventID, err)
			}
		}

		all, err := store.ListPipelines(ctx, PipelineFilter{})
		if err != nil {
			t.Fatalf("ListPipelines failed: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("all = %d, want 3", len(all))
		}

		byOrg, err := store.ListPipelines(ctx, PipelineFilter{OrganizationID: "org-a"})
		if err != nil {
			t.Fatalf("ListPipelines failed: %v", err)
		}
		if len(byOrg) != 2 {
			t.Fatalf("org-a = %d, want 2", len(byOrg))
		}

		byStage, err := store.ListPipelines(ctx, PipelineFilter{OrganizationID: "org-a", Stage: api.StageOffer})
		if err != nil {
			t.Fatalf("ListPipelines failed: %v", err)
		}
		if len(byStage) != 1 || byStage[0].EventID != "evt-offer" {
			t.Fatalf("byStage = %v", byStage)
		}

		due, err := store.ListPipelines(ctx, PipelineFilter{DueBefore: now})
		if err != nil {
			t.Fatalf("ListPipelines failed: %v", err)
		}
		if len(due) != 2 {
			t.Fatalf("due = %d, want 2 (lapsed hold and lapsed offer)", len(due))
		}
		for _, p := range due {
			if p.EventID == "evt-other" {
				t.Error("live hold matched the due filter")
			}
		}
	})

	t.Run("HistoryRoundTrip", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		now := time.Now().Truncate(time.Second)

		p := samplePipeline("evt-1", "org-1")
		if err := store.SavePipeline(ctx, p); err != nil {
			t.Fatalf("SavePipeline failed: %v", err)
		}

		next := p.Clone()
		next.Stage = api.StageOffer
		next.PreviousStage = api.StageHold
		next.OfferAmountCents = 75_000
		next.OfferExpiresAt = now.Add(time.Hour)
		next.History = append(next.History, api.StageTransition{
			From:           api.StageHold,
			To:             api.StageOffer,
			TransitionedAt: now,
			TransitionedBy: "booker",
			Notes:          "sent offer",
		})
		next.Version = 2

		if err := store.UpdatePipeline(ctx, next, 1); err != nil {
			t.Fatalf("UpdatePipeline failed: %v", err)
		}

		got, err := store.GetPipeline(ctx, "evt-1")
		if err != nil {
			t.Fatalf("GetPipeline failed: %v", err)
		}
		if len(got.History) != 1 {
			t.Fatalf("history = %d entries, want 1", len(got.History))
		}
		tr := got.History[0]
		if tr.From != api.StageHold || tr.To != api.StageOffer || tr.TransitionedBy != "booker" || tr.Notes != "sent offer" {
			t.Errorf("transition = %+v", tr)
		}
		if got.PreviousStage != api.StageHold {
			t.Errorf("previousStage = %s", got.PreviousStage)
		}
	})
}
