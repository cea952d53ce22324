package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/gigguin/bookflow/pkg/api"
)

func TestSQLiteTransitionLog(t *testing.T) {
	ctx := context.Background()
	log, err := NewSQLiteTransitionLog(newTestDB(t))
	if err != nil {
		t.Fatalf("failed to create log: %v", err)
	}

	base := time.Now().Truncate(time.Second)
	recs := []TransitionRecord{
		{EventID: "evt-1", OrganizationID: "org-1", From: api.StageHold, To: api.StageOffer, At: base, Actor: "booker"},
		{EventID: "evt-1", OrganizationID: "org-1", From: api.StageOffer, To: api.StageConfirmed, At: base.Add(time.Minute), Actor: "booker", Notes: "contract in"},
		{EventID: "evt-2", OrganizationID: "org-1", From: api.StageHold, To: api.StageCancelled, At: base, Actor: "scheduler", Automatic: true},
	}
	for _, rec := range recs {
		if err := log.AppendTransition(ctx, rec); err != nil {
			t.Fatalf("AppendTransition failed: %v", err)
		}
	}

	got, err := log.ListTransitions(ctx, "evt-1")
	if err != nil {
		t.Fatalf("ListTransitions failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].To != api.StageOffer || got[1].To != api.StageConfirmed {
		t.Errorf("records out of order: %v -> %v", got[0].To, got[1].To)
	}
	if got[0].ID == "" {
		t.Error("record ID not assigned")
	}
	if got[1].Notes != "contract in" {
		t.Errorf("notes = %q", got[1].Notes)
	}

	auto, err := log.ListTransitions(ctx, "evt-2")
	if err != nil {
		t.Fatalf("ListTransitions failed: %v", err)
	}
	if len(auto) != 1 || !auto[0].Automatic || auto[0].Actor != "scheduler" {
		t.Errorf("automatic record = %+v", auto)
	}
}

func TestListTransitionsUnknownEvent(t *testing.T) {
	log, err := NewSQLiteTransitionLog(newTestDB(t))
	if err != nil {
		t.Fatalf("failed to create log: %v", err)
	}

	got, err := log.ListTransitions(context.Background(), "nope")
	if err != nil {
		t.Fatalf("ListTransitions failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d records, want 0", len(got))
	}
}
