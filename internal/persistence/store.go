package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/gigguin/bookflow/pkg/api"
)

var (
	// ErrPipelineNotFound is returned when no pipeline exists for an event.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrPipelineExists is returned when SavePipeline would overwrite an
	// existing record.
	ErrPipelineExists = errors.New("pipeline already exists")

	// ErrVersionConflict is returned by UpdatePipeline when the stored
	// version no longer matches the expected one.
	ErrVersionConflict = errors.New("pipeline version conflict")
)

// PipelineFilter is used to select pipelines from the store.
// Zero values mean "no filter" for that field.
type PipelineFilter struct {
	OrganizationID string
	Stage          api.Stage

	// DueBefore, if non-zero, selects pipelines whose current stage
	// deadline has passed: holds with hold_expires_at <= DueBefore and
	// offers with offer_expires_at <= DueBefore.
	DueBefore time.Time
}

// PipelineStore handles storage of pipeline records.
//
// UpdatePipeline is the concurrency control point: it must write the
// record only if the stored version equals expectedVersion, atomically,
// and return ErrVersionConflict otherwise. The engine relies on this to
// guarantee that two mutually exclusive transitions against the same
// snapshot cannot both succeed.
type PipelineStore interface {
	SavePipeline(ctx context.Context, p *api.Pipeline) error
	UpdatePipeline(ctx context.Context, p *api.Pipeline, expectedVersion int64) error
	GetPipeline(ctx context.Context, eventID string) (*api.Pipeline, error)
	ListPipelines(ctx context.Context, filter PipelineFilter) ([]*api.Pipeline, error)
}

// matchesFilter applies PipelineFilter semantics to a single record.
// Shared by the non-SQL stores, which filter in memory.
func matchesFilter(p *api.Pipeline, filter PipelineFilter) bool {
	if filter.OrganizationID != "" && p.OrganizationID != filter.OrganizationID {
		return false
	}
	if filter.Stage != "" && p.Stage != filter.Stage {
		return false
	}
	if !filter.DueBefore.IsZero() {
		switch p.Stage {
		case api.StageHold:
			if p.HoldExpiresAt.IsZero() || p.HoldExpiresAt.After(filter.DueBefore) {
				return false
			}
		case api.StageOffer:
			if p.OfferExpiresAt.IsZero() || p.OfferExpiresAt.After(filter.DueBefore) {
				return false
			}
		default:
			return false
		}
	}
	return true
}
