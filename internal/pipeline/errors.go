package pipeline

import (
	"errors"
	"fmt"
)

// StageError attributes a run failure to the stage that produced it.
type StageError struct {
	StageID   string `json:"stage_id"`
	Message   string `json:"message"`
	Cancelled bool   `json:"cancelled,omitempty"`
	Err       error  `json:"-"`
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stage %s: %s: %v", e.StageID, e.Message, e.Err)
	}
	return fmt.Sprintf("stage %s: %s", e.StageID, e.Message)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a stage-attributed error.
func NewStageError(stageID, message string, err error) *StageError {
	return &StageError{StageID: stageID, Message: message, Err: err}
}

// NewCancellationError marks a run aborted by context cancellation at
// the named stage.
func NewCancellationError(stageID string, cause error) *StageError {
	return &StageError{
		StageID:   stageID,
		Message:   "run cancelled",
		Cancelled: true,
		Err:       cause,
	}
}

// WrapStageError attributes err to a stage. An existing StageError
// keeps its original attribution.
func WrapStageError(err error, stageID, message string) *StageError {
	if err == nil {
		return nil
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr
	}
	return &StageError{StageID: stageID, Message: message, Err: err}
}

// AsStageError extracts a StageError from an error chain.
func AsStageError(err error) (*StageError, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr, true
	}
	return nil, false
}
