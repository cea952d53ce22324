package api

import (
	"context"
	"fmt"
	"sync"
)

// Hook identifies an automation side effect to run on entering or
// leaving a stage. The engine only guarantees hook names and dispatch
// order; what a hook does is resolved by the Dispatcher collaborator.
type Hook string

const (
	HookSendHoldNotice        Hook = "sendHoldNotice"
	HookReleaseHold           Hook = "releaseHold"
	HookSendOfferEmail        Hook = "sendOfferEmail"
	HookSendContract          Hook = "sendContract"
	HookNotifyArtistConfirmed Hook = "notifyArtistConfirmed"
	HookPublishEventPage      Hook = "publishEventPage"
	HookScheduleAnnouncements Hook = "scheduleAnnouncements"
	HookRecordSettlement      Hook = "recordSettlement"
	HookSendRecapEmail        Hook = "sendRecapEmail"
	HookNotifyCancellation    Hook = "notifyCancellation"
)

// HookContext is passed to hook handlers. Pipeline is a snapshot taken
// after the transition committed; handlers must not mutate it expecting
// the change to persist.
type HookContext struct {
	Pipeline       *Pipeline
	EventID        string
	OrganizationID string
	Actor          string
	Transition     StageTransition
}

// Dispatcher resolves hook names to side effects. Implementations may
// run hooks synchronously or enqueue them; the engine invokes RunHook
// once per hook per accepted transition, onExit before onEnter.
type Dispatcher interface {
	RunHook(ctx context.Context, hook Hook, hc HookContext) error
}

// NoopDispatcher ignores all hooks. It is the default when no
// dispatcher is configured.
type NoopDispatcher struct{}

func (NoopDispatcher) RunHook(ctx context.Context, hook Hook, hc HookContext) error { return nil }

// HookFunc is a single registered hook handler.
type HookFunc func(ctx context.Context, hc HookContext) error

// RegistryDispatcher dispatches hooks through an explicit registration
// table, avoiding stringly-typed dynamic dispatch in the engine itself.
// Unregistered hooks return an error, which the engine reports to its
// observer without failing the (already committed) transition.
type RegistryDispatcher struct {
	mu       sync.RWMutex
	handlers map[Hook]HookFunc
}

// NewRegistryDispatcher creates an empty RegistryDispatcher.
func NewRegistryDispatcher() *RegistryDispatcher {
	return &RegistryDispatcher{handlers: make(map[Hook]HookFunc)}
}

// Register binds a handler to a hook name, replacing any previous
// handler for that name.
func (d *RegistryDispatcher) Register(hook Hook, fn HookFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[hook] = fn
}

func (d *RegistryDispatcher) RunHook(ctx context.Context, hook Hook, hc HookContext) error {
	d.mu.RLock()
	fn, ok := d.handlers[hook]
	d.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no handler registered for hook %q", hook)
	}
	return fn(ctx, hc)
}
