package bookflow

import (
	"database/sql"

	"github.com/gigguin/bookflow/internal/engine"
	schedulerpkg "github.com/gigguin/bookflow/pkg/scheduler"
)

// Bundle wires together an Engine and the expiry Scheduler that sweeps
// its due holds and offers.
//
// For now, we only provide a SQLite-backed bundle.
type Bundle struct {
	Engine    Engine
	Scheduler *schedulerpkg.Scheduler
}

// NewSQLiteBundle constructs a durable Engine + Scheduler combo sharing
// the same SQLite database. Pipelines and the transition audit log are
// persisted in the provided *sql.DB.
//
// Typical usage:
//
//	db, _ := sql.Open("sqlite", "file:bookflow.db?_journal=WAL")
//	bundle, err := bookflow.NewSQLiteBundle(db, scheduler.Config{}, bookflow.Options{})
//	// create pipelines via bundle.Engine
//	// go bundle.Scheduler.Run(ctx)
func NewSQLiteBundle(db *sql.DB, cfg schedulerpkg.Config, opts Options) (*Bundle, error) {
	eng, err := engine.NewSQLiteEngineWithOptions(db, opts)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Engine:    eng,
		Scheduler: schedulerpkg.New(eng, cfg),
	}, nil
}
