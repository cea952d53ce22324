package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPipelineNotFound is returned when the referenced event has no
	// pipeline record.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrPipelineExists is returned when creating a pipeline for an
	// event that already has one.
	ErrPipelineExists = errors.New("pipeline already exists")

	// ErrConcurrencyConflict is returned when an optimistic write lost
	// the race against a concurrent transition. Callers should reload
	// and retry, or surface the conflict to the user.
	ErrConcurrencyConflict = errors.New("pipeline was modified concurrently")
)

// TransitionNotAllowedError indicates the requested edge does not exist
// in the stage graph. The pipeline is left untouched.
type TransitionNotAllowedError struct {
	From Stage
	To   Stage
}

func (e *TransitionNotAllowedError) Error() string {
	return fmt.Sprintf("transition not allowed: %s -> %s", e.From, e.To)
}

// IsTransitionNotAllowed returns the typed error if err indicates an
// illegal edge.
func IsTransitionNotAllowed(err error) (*TransitionNotAllowedError, bool) {
	var t *TransitionNotAllowedError
	if errors.As(err, &t) {
		return t, true
	}
	return nil, false
}

// MissingRequiredFieldsError indicates the target stage's required
// fields are not all present. Fields lists the missing ones in the
// order the stage configuration declares them.
type MissingRequiredFieldsError struct {
	Stage  Stage
	Fields []string
}

func (e *MissingRequiredFieldsError) Error() string {
	return fmt.Sprintf("stage %s requires missing fields: %s", e.Stage, strings.Join(e.Fields, ", "))
}

// IsMissingRequiredFields returns the typed error if err indicates a
// failed required-field precondition.
func IsMissingRequiredFields(err error) (*MissingRequiredFieldsError, bool) {
	var m *MissingRequiredFieldsError
	if errors.As(err, &m) {
		return m, true
	}
	return nil, false
}
