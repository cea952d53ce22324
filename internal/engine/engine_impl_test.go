package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gigguin/bookflow/pkg/api"
)

func newHoldPipeline(t *testing.T, eng api.Engine) *api.Pipeline {
	t.Helper()

	p, err := eng.CreatePipeline(context.Background(), api.CreatePipelineRequest{
		EventID:        "evt-1",
		OrganizationID: "org-1",
		Actor:          "booker",
		HoldExpiresAt:  time.Now().Add(72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreatePipeline failed: %v", err)
	}
	return p
}

func TestCreatePipelineStartsAtHold(t *testing.T) {
	eng := NewInMemoryEngine()
	p := newHoldPipeline(t, eng)

	if p.Stage != api.StageHold {
		t.Fatalf("stage = %s, want hold", p.Stage)
	}
	if p.PreviousStage != "" {
		t.Fatalf("previousStage = %s, want empty", p.PreviousStage)
	}
	if len(p.History) != 0 {
		t.Fatalf("fresh pipeline should have empty history, got %d", len(p.History))
	}
	if p.Version != 1 {
		t.Fatalf("version = %d, want 1", p.Version)
	}
}

func TestCreatePipelineRequiresHoldExpiry(t *testing.T) {
	eng := NewInMemoryEngine()

	_, err := eng.CreatePipeline(context.Background(), api.CreatePipelineRequest{
		EventID:        "evt-1",
		OrganizationID: "org-1",
		Actor:          "booker",
	})
	m, ok := api.IsMissingRequiredFields(err)
	if !ok {
		t.Fatalf("expected MissingRequiredFields, got %v", err)
	}
	if len(m.Fields) != 1 || m.Fields[0] != api.FieldHoldExpiresAt {
		t.Fatalf("fields = %v", m.Fields)
	}
}

func TestCreatePipelineDuplicate(t *testing.T) {
	eng := NewInMemoryEngine()
	newHoldPipeline(t, eng)

	_, err := eng.CreatePipeline(context.Background(), api.CreatePipelineRequest{
		EventID:        "evt-1",
		OrganizationID: "org-1",
		Actor:          "booker",
		HoldExpiresAt:  time.Now().Add(time.Hour),
	})
	if !errors.Is(err, api.ErrPipelineExists) {
		t.Fatalf("expected ErrPipelineExists, got %v", err)
	}
}

// TestBookingScenario follows the canonical flow: hold -> offer with
// amount and expiry -> confirmed rejected without a signed contract ->
// contract signed -> confirmed.
func TestBookingScenario(t *testing.T) {
	ctx := context.Background()
	eng := NewInMemoryEngine()
	newHoldPipeline(t, eng)

	amount := int64(500)
	offerExpiry := time.Now().Add(48 * time.Hour)

	p, err := eng.Transition(ctx, "evt-1", api.TransitionRequest{
		To:    api.StageOffer,
		Actor: "booker",
		Updates: api.PipelineUpdate{
			OfferAmountCents: &amount,
			OfferExpiresAt:   &offerExpiry,
		},
	})
	if err != nil {
		t.Fatalf("hold -> offer failed: %v", err)
	}
	if p.Stage != api.StageOffer || len(p.History) != 1 {
		t.Fatalf("stage = %s, history = %d", p.Stage, len(p.History))
	}

	// Confirming without a signed contract must fail and mutate nothing.
	_, err = eng.Transition(ctx, "evt-1", api.TransitionRequest{
		To:    api.StageConfirmed,
		Actor: "booker",
	})
	m, ok := api.IsMissingRequiredFields(err)
	if !ok {
		t.Fatalf("expected MissingRequiredFields, got %v", err)
	}
	if len(m.Fields) != 1 || m.Fields[0] != api.FieldContractSigned {
		t.Fatalf("fields = %v", m.Fields)
	}

	p, err = eng.GetPipeline(ctx, "evt-1")
	if err != nil {
		t.Fatalf("GetPipeline failed: %v", err)
	}
	if p.Stage != api.StageOffer || len(p.History) != 1 {
		t.Fatalf("rejected transition mutated state: stage = %s, history = %d", p.Stage, len(p.History))
	}

	// Sign the contract and retry.
	signed := true
	if _, err := eng.UpdatePipeline(ctx, "evt-1", api.PipelineUpdate{ContractSigned: &signed}, "booker"); err != nil {
		t.Fatalf("UpdatePipeline failed: %v", err)
	}

	p, err = eng.Transition(ctx, "evt-1", api.TransitionRequest{
		To:    api.StageConfirmed,
		Actor: "booker",
	})
	if err != nil {
		t.Fatalf("offer -> confirmed failed: %v", err)
	}
	if p.Stage != api.StageConfirmed || len(p.History) != 2 {
		t.Fatalf("stage = %s, history = %d", p.Stage, len(p.History))
	}
	if p.PreviousStage != api.StageOffer {
		t.Fatalf("previousStage = %s, want offer", p.PreviousStage)
	}
}

func TestIllegalTransitionLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	eng := NewInMemoryEngine()
	before := newHoldPipeline(t, eng)

	_, err := eng.Transition(ctx, "evt-1", api.TransitionRequest{
		To:    api.StageMarketing,
		Actor: "booker",
	})
	tr, ok := api.IsTransitionNotAllowed(err)
	if !ok {
		t.Fatalf("expected TransitionNotAllowed, got %v", err)
	}
	if tr.From != api.StageHold || tr.To != api.StageMarketing {
		t.Fatalf("error edge = %s -> %s", tr.From, tr.To)
	}

	after, err := eng.GetPipeline(ctx, "evt-1")
	if err != nil {
		t.Fatalf("GetPipeline failed: %v", err)
	}
	if after.Stage != before.Stage || after.PreviousStage != before.PreviousStage {
		t.Fatal("stage fields changed on rejection")
	}
	if len(after.History) != len(before.History) {
		t.Fatal("history changed on rejection")
	}
	if after.Version != before.Version {
		t.Fatal("version changed on rejection")
	}
}

// TestHistoryChains drives a pipeline through the whole happy path and
// checks that each history entry's from equals the previous entry's to.
func TestHistoryChains(t *testing.T) {
	ctx := context.Background()
	eng := NewInMemoryEngine()
	newHoldPipeline(t, eng)

	amount := int64(90_000)
	offerExpiry := time.Now().Add(time.Hour)
	signed := true
	attendance := 350
	settled := true

	steps := []api.TransitionRequest{
		{To: api.StageOffer, Actor: "booker", Updates: api.PipelineUpdate{OfferAmountCents: &amount, OfferExpiresAt: &offerExpiry}},
		{To: api.StageConfirmed, Actor: "booker", Updates: api.PipelineUpdate{ContractSigned: &signed}},
		{To: api.StageMarketing, Actor: "marketing"},
		{To: api.StageCompleted, Actor: "booker", Updates: api.PipelineUpdate{FinalAttendance: &attendance, SettlementComplete: &settled}},
	}

	var p *api.Pipeline
	var err error
	for _, req := range steps {
		p, err = eng.Transition(ctx, "evt-1", req)
		if err != nil {
			t.Fatalf("transition to %s failed: %v", req.To, err)
		}
	}

	if len(p.History) != len(steps) {
		t.Fatalf("history length = %d, want %d", len(p.History), len(steps))
	}
	for i := 1; i < len(p.History); i++ {
		if p.History[i].From != p.History[i-1].To {
			t.Errorf("history[%d].From = %s, previous To = %s", i, p.History[i].From, p.History[i-1].To)
		}
	}
	if p.Stage != api.StageCompleted {
		t.Fatalf("final stage = %s", p.Stage)
	}

	// completed is terminal.
	_, err = eng.Transition(ctx, "evt-1", api.TransitionRequest{To: api.StageHold, Actor: "booker"})
	if _, ok := api.IsTransitionNotAllowed(err); !ok {
		t.Fatalf("expected TransitionNotAllowed out of completed, got %v", err)
	}
}

func TestOfferBackToHoldClearsOfferFields(t *testing.T) {
	ctx := context.Background()
	eng := NewInMemoryEngine()
	newHoldPipeline(t, eng)

	amount := int64(60_000)
	offerExpiry := time.Now().Add(time.Hour)
	if _, err := eng.Transition(ctx, "evt-1", api.TransitionRequest{
		To:      api.StageOffer,
		Actor:   "booker",
		Updates: api.PipelineUpdate{OfferAmountCents: &amount, OfferExpiresAt: &offerExpiry},
	}); err != nil {
		t.Fatalf("hold -> offer failed: %v", err)
	}

	p, err := eng.Transition(ctx, "evt-1", api.TransitionRequest{To: api.StageHold, Actor: "booker"})
	if err != nil {
		t.Fatalf("offer -> hold failed: %v", err)
	}

	if p.OfferAmountCents != 0 || !p.OfferExpiresAt.IsZero() {
		t.Errorf("offer fields should be cleared, got amount=%d expiry=%v", p.OfferAmountCents, p.OfferExpiresAt)
	}
	if p.HoldExpiresAt.IsZero() {
		t.Error("hold expiry must survive the loop back")
	}
}

func TestTransitionRecordsActorNotesAndFlag(t *testing.T) {
	ctx := context.Background()
	eng := NewInMemoryEngine()
	newHoldPipeline(t, eng)

	p, err := eng.Transition(ctx, "evt-1", api.TransitionRequest{
		To:        api.StageCancelled,
		Actor:     "scheduler",
		Notes:     "hold expired",
		Automatic: true,
	})
	if err != nil {
		t.Fatalf("hold -> cancelled failed: %v", err)
	}

	tr := p.History[len(p.History)-1]
	if tr.TransitionedBy != "scheduler" || tr.Notes != "hold expired" || !tr.Automatic {
		t.Errorf("transition record = %+v", tr)
	}
	if tr.TransitionedAt.IsZero() {
		t.Error("transition timestamp not set")
	}
}

func TestTransitionUnknownEvent(t *testing.T) {
	eng := NewInMemoryEngine()

	_, err := eng.Transition(context.Background(), "nope", api.TransitionRequest{To: api.StageOffer})
	if !errors.Is(err, api.ErrPipelineNotFound) {
		t.Fatalf("expected ErrPipelineNotFound, got %v", err)
	}
}

func TestListPipelinesFilters(t *testing.T) {
	ctx := context.Background()
	eng := NewInMemoryEngine()

	for _, tc := range []struct{ event, org string }{
		{"evt-1", "org-a"},
		{"evt-2", "org-a"},
		{"evt-3", "org-b"},
	} {
		if _, err := eng.CreatePipeline(ctx, api.CreatePipelineRequest{
			EventID:        tc.event,
			OrganizationID: tc.org,
			Actor:          "booker",
			HoldExpiresAt:  time.Now().Add(time.Hour),
		}); err != nil {
			t.Fatalf("CreatePipeline %s failed: %v", tc.event, err)
		}
	}

	if _, err := eng.Transition(ctx, "evt-2", api.TransitionRequest{To: api.StageCancelled, Actor: "booker"}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	byOrg, err := eng.ListPipelines(ctx, api.PipelineListOptions{OrganizationID: "org-a"})
	if err != nil {
		t.Fatalf("ListPipelines failed: %v", err)
	}
	if len(byOrg) != 2 {
		t.Fatalf("org-a pipelines = %d, want 2", len(byOrg))
	}

	held, err := eng.ListPipelines(ctx, api.PipelineListOptions{OrganizationID: "org-a", Stage: api.StageHold})
	if err != nil {
		t.Fatalf("ListPipelines failed: %v", err)
	}
	if len(held) != 1 || held[0].EventID != "evt-1" {
		t.Fatalf("held = %v", held)
	}
}
