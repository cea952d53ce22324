package api

import (
	"context"
	"time"
)

// Engine is the high-level pipeline API. One transition executes to
// completion within a single call; conflicting concurrent requests are
// serialized by the store's optimistic version check, so at most one of
// two mutually exclusive transitions can succeed.
type Engine interface {
	// CreatePipeline enters an event into the pipeline at the hold
	// stage. The hold stage's required fields apply at creation.
	CreatePipeline(ctx context.Context, req CreatePipelineRequest) (*Pipeline, error)

	// GetPipeline looks up a pipeline by event ID.
	// Returns ErrPipelineNotFound if the event has no pipeline record.
	GetPipeline(ctx context.Context, eventID string) (*Pipeline, error)

	// ListPipelines returns pipelines matching the given options.
	// If options are zero-valued, all pipelines are returned.
	ListPipelines(ctx context.Context, opts PipelineListOptions) ([]*Pipeline, error)

	// UpdatePipeline applies field changes without a stage change.
	// It does not append to history.
	UpdatePipeline(ctx context.Context, eventID string, update PipelineUpdate, actor string) (*Pipeline, error)

	// Transition performs a stage change, enforcing the guard, the
	// required-field precondition, and the optimistic version check as
	// one all-or-nothing operation. On success the accepted transition
	// is appended to history and the stage's hooks are dispatched,
	// onExit before onEnter.
	Transition(ctx context.Context, eventID string, req TransitionRequest) (*Pipeline, error)

	// ExpireDue issues automatic transitions for pipelines whose hold
	// or offer deadline has passed: expired holds are cancelled and
	// expired offers fall back to hold. Raced or superseded deadlines
	// are skipped silently. Returns the number of accepted transitions.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// Options configures optional engine collaborators. Zero values fall
// back to no-op implementations.
type Options struct {
	Observer   Observer
	Dispatcher Dispatcher
}
