// Package bookflow implements the event booking pipeline: the state
// machine that tracks a bookable event from a tentative hold through
// offer, confirmation, marketing, and completion.
//
// # Core Concepts
//
// The bookflow programming model is intentionally small:
//
//  1. Stage: one of six lifecycle states (hold, offer, confirmed,
//     marketing, completed, cancelled) with a static transition graph.
//  2. Pipeline: the per-event record: current stage, an append-only
//     transition history, and stage-specific fields such as the hold
//     deadline or the offer amount.
//  3. Engine: loads a pipeline, enforces the transition guard and the
//     required-field preconditions, and commits the change with an
//     optimistic version check so two conflicting requests can never
//     both win.
//  4. Dispatcher: resolves the automation hook names attached to each
//     stage (sendOfferEmail, notifyCancellation, ...) to handlers. The
//     engine only guarantees names and order: onExit of the old stage,
//     then onEnter of the new one, exactly once per accepted transition.
//  5. Scheduler: sweeps expired holds and offers and issues automatic
//     transitions; superseded deadlines are skipped by the normal guard.
//
// # Engine
//
// Engines can be backed by different storage systems:
//
//   - In-memory (non-durable, best for tests)
//   - SQLite (embedded durability, plus a transition audit log)
//   - Postgres
//   - Redis
//   - MongoDB
//
// Every backend implements the same compare-and-swap write, so the
// transition history always reflects the true serialization order of
// accepted transitions.
//
// # Multi-tenancy
//
// Pipelines belong to organizations. The internal HTTP layer resolves
// the organization from the request hostname (tenant subdomain or
// custom domain) before any record is loaded; the engine itself only
// sees organization IDs.
//
// For a runnable walkthrough, see the /examples directory.
package bookflow
