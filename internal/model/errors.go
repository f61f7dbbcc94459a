package model

import "errors"

var (
	// ErrStatusTransition is returned when a result leaves a terminal status.
	ErrStatusTransition = errors.New("status already resolved")
	// ErrTimestampSet is returned when a start or end time is assigned twice.
	ErrTimestampSet = errors.New("timestamp already set")
	// ErrNoResults is returned when aggregating an empty result list.
	ErrNoResults = errors.New("at least one scenario result is required")
	// ErrNilArtifact is returned when attaching a nil artifact.
	ErrNilArtifact = errors.New("artifact is nil")
	// ErrInvalidPath is returned when a scenario path cannot be derived
	// relative to the project directory.
	ErrInvalidPath = errors.New("invalid scenario path")
)
