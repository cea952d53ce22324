package api

import (
	"context"
	"errors"
	"testing"
)

func TestRegistryDispatcherRunsRegisteredHandler(t *testing.T) {
	d := NewRegistryDispatcher()

	var gotEvent string
	d.Register(HookSendOfferEmail, func(ctx context.Context, hc HookContext) error {
		gotEvent = hc.EventID
		return nil
	})

	err := d.RunHook(context.Background(), HookSendOfferEmail, HookContext{EventID: "evt-1"})
	if err != nil {
		t.Fatalf("RunHook failed: %v", err)
	}
	if gotEvent != "evt-1" {
		t.Errorf("handler saw event %q", gotEvent)
	}
}

func TestRegistryDispatcherUnknownHook(t *testing.T) {
	d := NewRegistryDispatcher()

	err := d.RunHook(context.Background(), HookSendContract, HookContext{})
	if err == nil {
		t.Fatal("expected an error for an unregistered hook")
	}
}

func TestRegistryDispatcherReplacesHandler(t *testing.T) {
	d := NewRegistryDispatcher()

	d.Register(HookReleaseHold, func(ctx context.Context, hc HookContext) error {
		return errors.New("old handler")
	})
	d.Register(HookReleaseHold, func(ctx context.Context, hc HookContext) error {
		return nil
	})

	if err := d.RunHook(context.Background(), HookReleaseHold, HookContext{}); err != nil {
		t.Fatalf("replacement handler should win: %v", err)
	}
}

func TestNoopDispatcher(t *testing.T) {
	if err := (NoopDispatcher{}).RunHook(context.Background(), "anything", HookContext{}); err != nil {
		t.Fatalf("noop dispatcher must not fail: %v", err)
	}
}

func TestStageHookDeclarations(t *testing.T) {
	// Every hook name declared in the stage table must be one of the
	// exported identifiers, so a dispatcher can register them all.
	known := map[Hook]bool{
		HookSendHoldNotice:        true,
		HookReleaseHold:           true,
		HookSendOfferEmail:        true,
		HookSendContract:          true,
		HookNotifyArtistConfirmed: true,
		HookPublishEventPage:      true,
		HookScheduleAnnouncements: true,
		HookRecordSettlement:      true,
		HookSendRecapEmail:        true,
		HookNotifyCancellation:    true,
	}

	for _, stage := range Stages() {
		cfg, _ := ConfigFor(stage)
		for _, hook := range append(cfg.OnEnter, cfg.OnExit...) {
			if !known[hook] {
				t.Errorf("stage %s declares unknown hook %q", stage, hook)
			}
		}
	}
}
