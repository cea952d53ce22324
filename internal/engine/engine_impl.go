package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gigguin/bookflow/internal/persistence"
	"github.com/gigguin/bookflow/pkg/api"
)

// engineImpl executes pipeline operations against a PipelineStore.
// Each call runs to completion within the request; concurrency control
// is delegated to the store's version check.
type engineImpl struct {
	store      persistence.PipelineStore
	log        persistence.TransitionLog
	observer   api.Observer
	dispatcher api.Dispatcher
	now        func() time.Time
}

// Config describes how to construct an engineImpl.
// Only used inside this package; external callers use the helper functions.
type Config struct {
	Store      persistence.PipelineStore
	Log        persistence.TransitionLog
	Observer   api.Observer
	Dispatcher api.Dispatcher

	// Now overrides the engine clock; nil means time.Now.
	Now func() time.Time
}

// NewEngineWithConfig creates a new Engine using the given configuration.
func NewEngineWithConfig(cfg Config) api.Engine {
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	disp := cfg.Dispatcher
	if disp == nil {
		disp = api.NoopDispatcher{}
	}
	log := cfg.Log
	if log == nil {
		log = persistence.NoopTransitionLog{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &engineImpl{
		store:      cfg.Store,
		log:        log,
		observer:   obs,
		dispatcher: disp,
		now:        now,
	}
}

func NewInMemoryEngine() api.Engine {
	return NewInMemoryEngineWithOptions(api.Options{})
}

func NewInMemoryEngineWithOptions(opts api.Options) api.Engine {
	return NewEngineWithConfig(Config{
		Store:      persistence.NewInMemoryStore(),
		Observer:   opts.Observer,
		Dispatcher: opts.Dispatcher,
	})
}

func NewSQLiteEngine(db *sql.DB) (api.Engine, error) {
	return NewSQLiteEngineWithOptions(db, api.Options{})
}

func NewSQLiteEngineWithOptions(db *sql.DB, opts api.Options) (api.Engine, error) {
	store, err := persistence.NewSQLitePipelineStore(db)
	if err != nil {
		return nil, err
	}
	// Accepted transitions also land in the audit log sharing the DB.
	log, err := persistence.NewSQLiteTransitionLog(db)
	if err != nil {
		return nil, err
	}
	return NewEngineWithConfig(Config{
		Store:      store,
		Log:        log,
		Observer:   opts.Observer,
		Dispatcher: opts.Dispatcher,
	}), nil
}

func NewPostgresEngine(db *sql.DB) (api.Engine, error) {
	return NewPostgresEngineWithOptions(db, api.Options{})
}

func NewPostgresEngineWithOptions(db *sql.DB, opts api.Options) (api.Engine, error) {
	store, err := persistence.NewPostgresPipelineStore(db)
	if err != nil {
		return nil, err
	}
	return NewEngineWithConfig(Config{
		Store:      store,
		Observer:   opts.Observer,
		Dispatcher: opts.Dispatcher,
	}), nil
}

func NewRedisEngine(client *redis.Client) api.Engine {
	return NewRedisEngineWithOptions(client, api.Options{})
}

func NewRedisEngineWithOptions(client *redis.Client, opts api.Options) api.Engine {
	return NewEngineWithConfig(Config{
		Store:      persistence.NewRedisPipelineStore(client, "bookflow:"),
		Observer:   opts.Observer,
		Dispatcher: opts.Dispatcher,
	})
}

func NewMongoEngine(db *mongo.Database) api.Engine {
	return NewMongoEngineWithOptions(db, api.Options{})
}

func NewMongoEngineWithOptions(db *mongo.Database, opts api.Options) api.Engine {
	return NewEngineWithConfig(Config{
		Store:      persistence.NewMongoPipelineStore(db),
		Observer:   opts.Observer,
		Dispatcher: opts.Dispatcher,
	})
}

func (e *engineImpl) CreatePipeline(ctx context.Context, req api.CreatePipelineRequest) (*api.Pipeline, error) {
	if req.EventID == "" {
		return nil, errors.New("event id is required")
	}
	if req.OrganizationID == "" {
		return nil, errors.New("organization id is required")
	}

	now := e.now()
	p := &api.Pipeline{
		EventID:        req.EventID,
		OrganizationID: req.OrganizationID,
		Stage:          api.StageHold,
		HoldExpiresAt:  req.HoldExpiresAt,
		Version:        1,
		CreatedAt:      now,
		CreatedBy:      req.Actor,
		UpdatedAt:      now,
		UpdatedBy:      req.Actor,
	}

	// The hold stage's entry rule applies at creation.
	if missing := p.MissingFields(api.StageHold); len(missing) > 0 {
		return nil, &api.MissingRequiredFieldsError{Stage: api.StageHold, Fields: missing}
	}

	if err := e.store.SavePipeline(ctx, p); err != nil {
		if errors.Is(err, persistence.ErrPipelineExists) {
			return nil, fmt.Errorf("%w: %s", api.ErrPipelineExists, req.EventID)
		}
		return nil, err
	}

	e.observer.OnPipelineCreated(ctx, p)
	e.runHooks(ctx, p, api.StageTransition{
		To:             api.StageHold,
		TransitionedAt: now,
		TransitionedBy: req.Actor,
		Notes:          req.Notes,
	}, nil, enterHooks(api.StageHold))
	return p, nil
}

func (e *engineImpl) GetPipeline(ctx context.Context, eventID string) (*api.Pipeline, error) {
	p, err := e.store.GetPipeline(ctx, eventID)
	if err != nil {
		if errors.Is(err, persistence.ErrPipelineNotFound) {
			return nil, fmt.Errorf("%w: %s", api.ErrPipelineNotFound, eventID)
		}
		return nil, err
	}
	return p, nil
}

func (e *engineImpl) ListPipelines(ctx context.Context, opts api.PipelineListOptions) ([]*api.Pipeline, error) {
	return e.store.ListPipelines(ctx, persistence.PipelineFilter{
		OrganizationID: opts.OrganizationID,
		Stage:          opts.Stage,
		DueBefore:      opts.DueBefore,
	})
}

func (e *engineImpl) UpdatePipeline(ctx context.Context, eventID string, update api.PipelineUpdate, actor string) (*api.Pipeline, error) {
	p, err := e.GetPipeline(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if update.IsZero() {
		return p, nil
	}

	next := p.Clone()
	update.Apply(next)
	next.UpdatedAt = e.now()
	next.UpdatedBy = actor
	next.Version = p.Version + 1

	if err := e.store.UpdatePipeline(ctx, next, p.Version); err != nil {
		return nil, mapStoreErr(err, eventID)
	}

	return next, nil
}

func (e *engineImpl) Transition(ctx context.Context, eventID string, req api.TransitionRequest) (*api.Pipeline, error) {
	p, err := e.store.GetPipeline(ctx, eventID)
	if err != nil {
		if errors.Is(err, persistence.ErrPipelineNotFound) {
			return nil, fmt.Errorf("%w: %s", api.ErrPipelineNotFound, eventID)
		}
		return nil, err
	}

	next := p.Clone()
	req.Updates.Apply(next)

	if !api.CanTransitionTo(p.Stage, req.To) {
		err := &api.TransitionNotAllowedError{From: p.Stage, To: req.To}
		e.observer.OnTransitionRejected(ctx, eventID, p.Stage, req.To, err)
		return nil, err
	}

	// Entry precondition: the target stage's required fields must be
	// satisfiable from the record after the request's field updates.
	if missing := next.MissingFields(req.To); len(missing) > 0 {
		err := &api.MissingRequiredFieldsError{Stage: req.To, Fields: missing}
		e.observer.OnTransitionRejected(ctx, eventID, p.Stage, req.To, err)
		return nil, err
	}

	now := e.now()
	tr := api.StageTransition{
		From:           p.Stage,
		To:             req.To,
		TransitionedAt: now,
		TransitionedBy: req.Actor,
		Notes:          req.Notes,
		Automatic:      req.Automatic,
	}

	next.History = append(next.History, tr)
	next.PreviousStage = p.Stage
	next.Stage = req.To
	next.UpdatedAt = now
	next.UpdatedBy = req.Actor
	next.Version = p.Version + 1

	// Returning from offer to hold invalidates the standing offer.
	if p.Stage == api.StageOffer && req.To == api.StageHold {
		next.OfferAmountCents = 0
		next.OfferExpiresAt = time.Time{}
	}

	if err := e.store.UpdatePipeline(ctx, next, p.Version); err != nil {
		err = mapStoreErr(err, eventID)
		e.observer.OnTransitionRejected(ctx, eventID, p.Stage, req.To, err)
		return nil, err
	}

	// The write is committed; the audit log append is best-effort, the
	// canonical history is already on the record.
	_ = e.log.AppendTransition(ctx, persistence.TransitionRecord{
		EventID:        next.EventID,
		OrganizationID: next.OrganizationID,
		From:           tr.From,
		To:             tr.To,
		At:             tr.TransitionedAt,
		Actor:          tr.TransitionedBy,
		Automatic:      tr.Automatic,
		Notes:          tr.Notes,
	})

	e.observer.OnTransition(ctx, next, tr)
	e.runHooks(ctx, next, tr, exitHooks(tr.From), enterHooks(tr.To))

	return next, nil
}

func (e *engineImpl) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := e.store.ListPipelines(ctx, persistence.PipelineFilter{DueBefore: now})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, p := range due {
		var req api.TransitionRequest
		switch p.Stage {
		case api.StageHold:
			req = api.TransitionRequest{
				To:        api.StageCancelled,
				Actor:     "scheduler",
				Notes:     "hold expired",
				Automatic: true,
			}
		case api.StageOffer:
			req = api.TransitionRequest{
				To:        api.StageHold,
				Actor:     "scheduler",
				Notes:     "offer expired",
				Automatic: true,
			}
		default:
			continue
		}

		_, err := e.Transition(ctx, p.EventID, req)
		switch {
		case err == nil:
			expired++
		case isSuperseded(err):
			// A manual transition won the race; the deadline no longer
			// applies. Not an error condition.
		default:
			return expired, err
		}
	}

	return expired, nil
}

// isSuperseded reports whether an automatic transition lost to a
// concurrent or earlier manual transition.
func isSuperseded(err error) bool {
	if errors.Is(err, api.ErrConcurrencyConflict) || errors.Is(err, api.ErrPipelineNotFound) {
		return true
	}
	_, notAllowed := api.IsTransitionNotAllowed(err)
	return notAllowed
}

func mapStoreErr(err error, eventID string) error {
	switch {
	case errors.Is(err, persistence.ErrVersionConflict):
		return fmt.Errorf("%w: %s", api.ErrConcurrencyConflict, eventID)
	case errors.Is(err, persistence.ErrPipelineNotFound):
		return fmt.Errorf("%w: %s", api.ErrPipelineNotFound, eventID)
	default:
		return err
	}
}

func exitHooks(s api.Stage) []api.Hook {
	cfg, _ := api.ConfigFor(s)
	return cfg.OnExit
}

func enterHooks(s api.Stage) []api.Hook {
	cfg, _ := api.ConfigFor(s)
	return cfg.OnEnter
}

// runHooks dispatches the exit hooks of the old stage, then the enter
// hooks of the new stage, each exactly once and in declared order. Hook
// failures are observed, never propagated: the transition is already
// durable by the time hooks run.
func (e *engineImpl) runHooks(ctx context.Context, p *api.Pipeline, tr api.StageTransition, exit, enter []api.Hook) {
	hc := api.HookContext{
		Pipeline:       p,
		EventID:        p.EventID,
		OrganizationID: p.OrganizationID,
		Actor:          tr.TransitionedBy,
		Transition:     tr,
	}

	for _, hook := range append(append([]api.Hook{}, exit...), enter...) {
		e.observer.OnHookStart(ctx, p, hook)
		start := e.now()
		err := e.dispatcher.RunHook(ctx, hook, hc)
		e.observer.OnHookCompleted(ctx, p, hook, err, e.now().Sub(start))
	}
}
