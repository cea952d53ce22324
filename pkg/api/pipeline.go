package api

import (
	"encoding/gob"
	"time"
)

func init() {
	gob.Register(Pipeline{})
	gob.Register(StageTransition{})
}

// Field names referenced by StageConfig.RequiredFields. They match the
// JSON names used on the wire.
const (
	FieldHoldExpiresAt      = "holdExpiresAt"
	FieldOfferAmount        = "offerAmount"
	FieldOfferExpiresAt     = "offerExpiresAt"
	FieldContractSigned     = "contractSigned"
	FieldFinalAttendance    = "finalAttendance"
	FieldSettlementComplete = "settlementComplete"
)

// StageTransition is one immutable entry in a pipeline's history.
// Once appended it is never edited or removed.
type StageTransition struct {
	From           Stage     `json:"from"`
	To             Stage     `json:"to"`
	TransitionedAt time.Time `json:"transitionedAt"`
	TransitionedBy string    `json:"transitionedBy"`
	Notes          string    `json:"notes,omitempty"`

	// Automatic marks transitions issued by the expiry scheduler rather
	// than a user.
	Automatic bool `json:"automatic"`
}

// Pipeline tracks the booking lifecycle of a single event. It is owned
// by the event aggregate and mutated only through the engine; callers
// never assign Stage or History directly.
type Pipeline struct {
	EventID        string `json:"eventId"`
	OrganizationID string `json:"organizationId"`

	Stage         Stage             `json:"stage"`
	PreviousStage Stage             `json:"previousStage,omitempty"`
	History       []StageTransition `json:"history"`

	// Stage-specific fields. Zero values mean "unset" for the purposes
	// of required-field checks; FinalAttendance is a pointer so that a
	// genuine zero head-count still counts as present.
	HoldExpiresAt      time.Time `json:"holdExpiresAt,omitempty"`
	OfferAmountCents   int64     `json:"offerAmount,omitempty"`
	OfferExpiresAt     time.Time `json:"offerExpiresAt,omitempty"`
	ContractSigned     bool      `json:"contractSigned"`
	MarketingReady     bool      `json:"marketingReady"`
	FinalAttendance    *int      `json:"finalAttendance,omitempty"`
	SettlementComplete bool      `json:"settlementComplete"`

	// Version is the optimistic-concurrency token. Every accepted write
	// increments it; stores reject writes whose expected version does
	// not match the stored one.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy"`
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy"`
}

// Clone returns a deep copy of the pipeline. The engine mutates clones
// and only publishes them after the store accepts the write.
func (p *Pipeline) Clone() *Pipeline {
	out := *p
	out.History = append([]StageTransition(nil), p.History...)
	if p.FinalAttendance != nil {
		v := *p.FinalAttendance
		out.FinalAttendance = &v
	}
	return &out
}

// FieldPresent reports whether the named required field is set on the
// pipeline. Unknown field names report false.
func (p *Pipeline) FieldPresent(name string) bool {
	switch name {
	case FieldHoldExpiresAt:
		return !p.HoldExpiresAt.IsZero()
	case FieldOfferAmount:
		return p.OfferAmountCents > 0
	case FieldOfferExpiresAt:
		return !p.OfferExpiresAt.IsZero()
	case FieldContractSigned:
		return p.ContractSigned
	case FieldFinalAttendance:
		return p.FinalAttendance != nil
	case FieldSettlementComplete:
		return p.SettlementComplete
	default:
		return false
	}
}

// MissingFields returns the required fields of the given stage that are
// not present on the pipeline, in declared order.
func (p *Pipeline) MissingFields(s Stage) []string {
	cfg, ok := stageConfigs[s]
	if !ok {
		return nil
	}
	var missing []string
	for _, f := range cfg.RequiredFields {
		if !p.FieldPresent(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// PipelineUpdate carries optional field changes. Nil pointers leave the
// corresponding field untouched.
type PipelineUpdate struct {
	HoldExpiresAt      *time.Time `json:"holdExpiresAt,omitempty"`
	OfferAmountCents   *int64     `json:"offerAmount,omitempty"`
	OfferExpiresAt     *time.Time `json:"offerExpiresAt,omitempty"`
	ContractSigned     *bool      `json:"contractSigned,omitempty"`
	MarketingReady     *bool      `json:"marketingReady,omitempty"`
	FinalAttendance    *int       `json:"finalAttendance,omitempty"`
	SettlementComplete *bool      `json:"settlementComplete,omitempty"`
}

// IsZero reports whether the update changes nothing.
func (u PipelineUpdate) IsZero() bool {
	return u.HoldExpiresAt == nil &&
		u.OfferAmountCents == nil &&
		u.OfferExpiresAt == nil &&
		u.ContractSigned == nil &&
		u.MarketingReady == nil &&
		u.FinalAttendance == nil &&
		u.SettlementComplete == nil
}

// Apply copies the set fields of the update onto the pipeline.
func (u PipelineUpdate) Apply(p *Pipeline) {
	if u.HoldExpiresAt != nil {
		p.HoldExpiresAt = *u.HoldExpiresAt
	}
	if u.OfferAmountCents != nil {
		p.OfferAmountCents = *u.OfferAmountCents
	}
	if u.OfferExpiresAt != nil {
		p.OfferExpiresAt = *u.OfferExpiresAt
	}
	if u.ContractSigned != nil {
		p.ContractSigned = *u.ContractSigned
	}
	if u.MarketingReady != nil {
		p.MarketingReady = *u.MarketingReady
	}
	if u.FinalAttendance != nil {
		v := *u.FinalAttendance
		p.FinalAttendance = &v
	}
	if u.SettlementComplete != nil {
		p.SettlementComplete = *u.SettlementComplete
	}
}

// CreatePipelineRequest enters an event into the pipeline at the hold
// stage. HoldExpiresAt is required (the hold stage's entry rule applies
// to creation as well).
type CreatePipelineRequest struct {
	EventID        string
	OrganizationID string
	Actor          string
	HoldExpiresAt  time.Time
	Notes          string
}

// TransitionRequest asks the engine to move a pipeline to a new stage.
// Updates, if any, are applied before the required-field check so a
// single request can both supply data and advance the stage.
type TransitionRequest struct {
	To        Stage
	Actor     string
	Notes     string
	Automatic bool
	Updates   PipelineUpdate
}

// PipelineListOptions filters pipeline listings. Zero values mean "no
// filter" for that field.
type PipelineListOptions struct {
	OrganizationID string
	Stage          Stage

	// DueBefore, if non-zero, limits results to pipelines whose current
	// stage deadline (hold or offer expiry) falls before this time.
	DueBefore time.Time
}
