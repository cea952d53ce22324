package bookflow

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gigguin/bookflow/internal/engine"
	"github.com/gigguin/bookflow/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine                     = api.Engine
	Options                    = api.Options
	Stage                      = api.Stage
	StageConfig                = api.StageConfig
	Pipeline                   = api.Pipeline
	StageTransition            = api.StageTransition
	PipelineUpdate             = api.PipelineUpdate
	PipelineListOptions        = api.PipelineListOptions
	CreatePipelineRequest      = api.CreatePipelineRequest
	TransitionRequest          = api.TransitionRequest
	Hook                       = api.Hook
	HookContext                = api.HookContext
	HookFunc                   = api.HookFunc
	Dispatcher                 = api.Dispatcher
	RegistryDispatcher         = api.RegistryDispatcher
	NoopDispatcher             = api.NoopDispatcher
	Observer                   = api.Observer
	LoggingObserver            = api.LoggingObserver
	BasicMetrics               = api.BasicMetrics
	BasicMetricsSnapshot       = api.BasicMetricsSnapshot
	CompositeObserver          = api.CompositeObserver
	NoopObserver               = api.NoopObserver
	TransitionNotAllowedError  = api.TransitionNotAllowedError
	MissingRequiredFieldsError = api.MissingRequiredFieldsError
)

// Re-export common helpers.

var (
	NewLoggingObserver    = api.NewLoggingObserver
	NewCompositeObserver  = api.NewCompositeObserver
	NewRegistryDispatcher = api.NewRegistryDispatcher

	Stages          = api.Stages
	CanTransitionTo = api.CanTransitionTo
	ConfigFor       = api.ConfigFor
	Progress        = api.Progress
	StageLabel      = api.StageLabel
	StageColor      = api.StageColor
	StageIcon       = api.StageIcon

	IsTransitionNotAllowed  = api.IsTransitionNotAllowed
	IsMissingRequiredFields = api.IsMissingRequiredFields
)

// Re-export error sentinels.

var (
	ErrPipelineNotFound    = api.ErrPipelineNotFound
	ErrPipelineExists      = api.ErrPipelineExists
	ErrConcurrencyConflict = api.ErrConcurrencyConflict
)

// Re-export stage values for convenience.

const (
	StageHold      = api.StageHold
	StageOffer     = api.StageOffer
	StageConfirmed = api.StageConfirmed
	StageMarketing = api.StageMarketing
	StageCompleted = api.StageCompleted
	StageCancelled = api.StageCancelled
)

// Engine constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// NewInMemoryEngine returns an Engine backed entirely by an in-memory store.
func NewInMemoryEngine() Engine {
	return engine.NewInMemoryEngine()
}

// NewInMemoryEngineWithOptions returns an in-memory Engine with the given Options.
func NewInMemoryEngineWithOptions(opts Options) Engine {
	return engine.NewInMemoryEngineWithOptions(opts)
}

// NewSQLiteEngine returns an Engine that persists pipelines in a SQLite
// database, with a transition audit log in the same database.
func NewSQLiteEngine(db *sql.DB) (Engine, error) {
	return engine.NewSQLiteEngine(db)
}

// NewSQLiteEngineWithOptions returns a SQLite-backed Engine with the given Options.
func NewSQLiteEngineWithOptions(db *sql.DB, opts Options) (Engine, error) {
	return engine.NewSQLiteEngineWithOptions(db, opts)
}

// NewPostgresEngine returns an Engine that persists pipelines in PostgreSQL.
func NewPostgresEngine(db *sql.DB) (Engine, error) {
	return engine.NewPostgresEngine(db)
}

// NewPostgresEngineWithOptions returns a Postgres-backed Engine with the given Options.
func NewPostgresEngineWithOptions(db *sql.DB, opts Options) (Engine, error) {
	return engine.NewPostgresEngineWithOptions(db, opts)
}

// NewRedisEngine returns an Engine that persists pipelines in Redis.
func NewRedisEngine(client *redis.Client) Engine {
	return engine.NewRedisEngine(client)
}

// NewRedisEngineWithOptions returns a Redis-backed Engine with the given Options.
func NewRedisEngineWithOptions(client *redis.Client, opts Options) Engine {
	return engine.NewRedisEngineWithOptions(client, opts)
}

// NewMongoEngine returns an Engine that persists pipelines in MongoDB.
func NewMongoEngine(db *mongo.Database) Engine {
	return engine.NewMongoEngine(db)
}

// NewMongoEngineWithOptions returns a Mongo-backed Engine with the given Options.
func NewMongoEngineWithOptions(db *mongo.Database, opts Options) Engine {
	return engine.NewMongoEngineWithOptions(db, opts)
}

// Convenience helpers that just forward to the underlying Engine.

// CreatePipeline enters an event into the pipeline at the hold stage.
func CreatePipeline(ctx context.Context, eng Engine, req CreatePipelineRequest) (*Pipeline, error) {
	return eng.CreatePipeline(ctx, req)
}

// GetPipeline fetches a pipeline by event ID.
func GetPipeline(ctx context.Context, eng Engine, eventID string) (*Pipeline, error) {
	return eng.GetPipeline(ctx, eventID)
}

// ListPipelines lists pipelines according to the given options.
func ListPipelines(ctx context.Context, eng Engine, opts PipelineListOptions) ([]*Pipeline, error) {
	return eng.ListPipelines(ctx, opts)
}

// Transition performs a stage change on a pipeline.
func Transition(ctx context.Context, eng Engine, eventID string, req TransitionRequest) (*Pipeline, error) {
	return eng.Transition(ctx, eventID, req)
}

// ExpireDue delegates to eng.ExpireDue.
//
// It is typically called from the scheduler, but can be invoked
// manually, for example on process startup:
//
//	count, err := bookflow.ExpireDue(ctx, engine, time.Now())
func ExpireDue(ctx context.Context, eng Engine, now time.Time) (int, error) {
	return eng.ExpireDue(ctx, now)
}
