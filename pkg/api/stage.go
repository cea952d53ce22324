package api

// Stage represents the booking lifecycle state of an event.
type Stage string

const (
	StageHold      Stage = "hold"
	StageOffer     Stage = "offer"
	StageConfirmed Stage = "confirmed"
	StageMarketing Stage = "marketing"
	StageCompleted Stage = "completed"
	StageCancelled Stage = "cancelled"
)

// Stages lists all stages in happy-path order, with cancelled last.
// The returned slice is a copy.
func Stages() []Stage {
	return []Stage{
		StageHold,
		StageOffer,
		StageConfirmed,
		StageMarketing,
		StageCompleted,
		StageCancelled,
	}
}

// IsValid reports whether s is one of the six declared stages.
func (s Stage) IsValid() bool {
	_, ok := stageConfigs[s]
	return ok
}

// IsTerminal reports whether s has no outgoing transitions.
func (s Stage) IsTerminal() bool {
	cfg, ok := stageConfigs[s]
	return ok && len(cfg.NextStages) == 0
}

// StageConfig describes one stage: its display attributes, its outgoing
// edge set, the fields that must be present before entering it, the
// automation hooks dispatched around transitions, and any named entry
// conditions evaluated by the caller's condition registry.
type StageConfig struct {
	Label string
	Color string
	Icon  string

	NextStages     []Stage
	RequiredFields []string

	OnEnter    []Hook
	OnExit     []Hook
	Conditions []string
}

// stageConfigs is the single source of truth for the transition graph.
// It is initialized once and never mutated; external callers only see
// copies via ConfigFor.
var stageConfigs = map[Stage]StageConfig{
	StageHold: {
		Label:          "On Hold",
		Color:          "#f59e0b",
		Icon:           "clock",
		NextStages:     []Stage{StageOffer, StageCancelled},
		RequiredFields: []string{FieldHoldExpiresAt},
		OnEnter:        []Hook{HookSendHoldNotice},
		OnExit:         []Hook{HookReleaseHold},
	},
	StageOffer: {
		Label:          "Offer Sent",
		Color:          "#3b82f6",
		Icon:           "mail",
		NextStages:     []Stage{StageConfirmed, StageHold, StageCancelled},
		RequiredFields: []string{FieldOfferAmount, FieldOfferExpiresAt},
		OnEnter:        []Hook{HookSendOfferEmail},
	},
	StageConfirmed: {
		Label:          "Confirmed",
		Color:          "#10b981",
		Icon:           "check-circle",
		NextStages:     []Stage{StageMarketing, StageCancelled},
		RequiredFields: []string{FieldContractSigned},
		OnEnter:        []Hook{HookSendContract, HookNotifyArtistConfirmed},
	},
	StageMarketing: {
		Label:      "Marketing",
		Color:      "#8b5cf6",
		Icon:       "megaphone",
		NextStages: []Stage{StageCompleted},
		OnEnter:    []Hook{HookPublishEventPage, HookScheduleAnnouncements},
	},
	StageCompleted: {
		Label:          "Completed",
		Color:          "#6b7280",
		Icon:           "flag",
		RequiredFields: []string{FieldFinalAttendance, FieldSettlementComplete},
		OnEnter:        []Hook{HookRecordSettlement, HookSendRecapEmail},
	},
	StageCancelled: {
		Label:   "Cancelled",
		Color:   "#ef4444",
		Icon:    "x-circle",
		OnEnter: []Hook{HookNotifyCancellation},
	},
}

// ConfigFor returns the configuration for a stage. The second return
// value is false for unknown stages. The returned config is a copy;
// mutating it has no effect on the process-wide table.
func ConfigFor(s Stage) (StageConfig, bool) {
	cfg, ok := stageConfigs[s]
	if !ok {
		return StageConfig{}, false
	}

	out := cfg
	out.NextStages = append([]Stage(nil), cfg.NextStages...)
	out.RequiredFields = append([]string(nil), cfg.RequiredFields...)
	out.OnEnter = append([]Hook(nil), cfg.OnEnter...)
	out.OnExit = append([]Hook(nil), cfg.OnExit...)
	out.Conditions = append([]string(nil), cfg.Conditions...)
	return out, true
}

// CanTransitionTo reports whether the edge from -> to exists in the
// stage graph. It is pure and total: unknown stages and illegal edges
// simply return false. It does not check required fields or run hooks;
// those are layered on top by the transition executor.
func CanTransitionTo(from, to Stage) bool {
	cfg, ok := stageConfigs[from]
	if !ok {
		return false
	}
	for _, next := range cfg.NextStages {
		if next == to {
			return true
		}
	}
	return false
}

// happyPath is the five-stage progression used for progress display.
var happyPath = []Stage{StageHold, StageOffer, StageConfirmed, StageMarketing, StageCompleted}

// Progress returns the 0-100 position of a stage along the happy path.
// Cancelled (and unknown stages) are off the progress line: the second
// return value is false and the percentage is 0.
func Progress(s Stage) (int, bool) {
	for i, st := range happyPath {
		if st == s {
			return i * 100 / (len(happyPath) - 1), true
		}
	}
	return 0, false
}

// StageLabel returns the display label for a stage, or the raw stage
// string if it is unknown.
func StageLabel(s Stage) string {
	if cfg, ok := stageConfigs[s]; ok {
		return cfg.Label
	}
	return string(s)
}

// StageColor returns the display color for a stage ("" if unknown).
func StageColor(s Stage) string {
	return stageConfigs[s].Color
}

// StageIcon returns the display icon name for a stage ("" if unknown).
func StageIcon(s Stage) string {
	return stageConfigs[s].Icon
}
