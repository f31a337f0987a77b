package mts

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error conditions in the scheduler
type ErrorCode int

const (
	// No error occurred
	ErrCodeNone ErrorCode = iota
	// Lifecycle step is not allowed from the current phase
	ErrCodePhaseNotAllowed
	// Configuration is invalid
	ErrCodeInvalidConfiguration
	// More than one train holds the track
	ErrCodeMutualExclusion
	// A train was granted or removed while not at its queue head
	ErrCodeNotQueueHead
	// Pop on an empty direction queue
	ErrCodeEmptyQueue
	// Simulation was started twice
	ErrCodeAlreadyStarted
	// Train description is unusable
	ErrCodeInvalidTrain
)

// PhaseError is returned when a train is driven through an illegal lifecycle step
type PhaseError struct {
	Code    ErrorCode
	TrainID int
	From    Phase
	Event   string
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("phase error [train %d]: no transition from %s on %q", e.TrainID, e.From, e.Event)
}

// NewPhaseError creates a new phase error
func NewPhaseError(trainID int, from Phase, event string) *PhaseError {
	return &PhaseError{
		Code:    ErrCodePhaseNotAllowed,
		TrainID: trainID,
		From:    from,
		Event:   event,
	}
}

// ConfigurationError represents invalid simulation configuration
type ConfigurationError struct {
	Component string
	Issue     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Issue)
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(component, issue string) *ConfigurationError {
	return &ConfigurationError{
		Component: component,
		Issue:     issue,
	}
}

// InvariantError reports a broken scheduler invariant. These indicate a
// defect in the arbiter, never a runtime condition.
type InvariantError struct {
	Code    ErrorCode
	TrainID int
	Message string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated [train %d]: %s", e.TrainID, e.Message)
}

// NewInvariantError creates a new invariant error
func NewInvariantError(code ErrorCode, trainID int, message string) *InvariantError {
	return &InvariantError{
		Code:    code,
		TrainID: trainID,
		Message: message,
	}
}

// ErrAlreadyStarted is returned when Run is called more than once on a Simulation
var ErrAlreadyStarted = errors.New("simulation already started")

// IsPhaseError checks if an error is or wraps a PhaseError
func IsPhaseError(err error) bool {
	var target *PhaseError
	return errors.As(err, &target)
}

// IsConfigurationError checks if an error is or wraps a ConfigurationError
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsInvariantError checks if an error is or wraps an InvariantError
func IsInvariantError(err error) bool {
	var target *InvariantError
	return errors.As(err, &target)
}

// GetErrorCode returns the error code for known error types
func GetErrorCode(err error) ErrorCode {
	var (
		phaseErr     *PhaseError
		configErr    *ConfigurationError
		invariantErr *InvariantError
	)
	switch {
	case err == nil:
		return ErrCodeNone
	case errors.As(err, &phaseErr):
		return phaseErr.Code
	case errors.As(err, &configErr):
		return ErrCodeInvalidConfiguration
	case errors.As(err, &invariantErr):
		return invariantErr.Code
	case errors.Is(err, ErrAlreadyStarted):
		return ErrCodeAlreadyStarted
	default:
		return ErrCodeNone
	}
}
