package domain

import (
	"errors"
	"fmt"
)

// ============================================================================
// Pipeline Errors
// ============================================================================

// Data errors
var (
	ErrSourceNotFound       = errors.New("data source directory not found")
	ErrNoImages             = errors.New("no images found")
	ErrDataValidationFailed = errors.New("data validation failed")
)

// Params errors
var (
	ErrInvalidParams = errors.New("invalid params schema")
)

// Business rule errors
var (
	ErrAccuracyBelowExpected = errors.New("training accuracy is less than expected accuracy")
	ErrModelOverfit          = errors.New("model is overfit: train/test accuracy gap exceeds threshold")
)

// ============================================================================
// Run Errors
// ============================================================================

var (
	ErrRunNotFound      = errors.New("pipeline run not found")
	ErrInvalidRunID     = errors.New("pipeline run ID is required")
	ErrPipelineBusy     = errors.New("a pipeline run is already in progress")
	ErrRunStoreDisabled = errors.New("run store is disabled")
)

// Stage names a pipeline step for error context and run bookkeeping.
type Stage string

const (
	StagePipeline       Stage = "pipeline"
	StageDataIngestion  Stage = "data_ingestion"
	StageDataValidation Stage = "data_validation"
	StageBaseModel      Stage = "base_model"
	StageModelTrainer   Stage = "model_trainer"
)

// PipelineError is the single error type every stage boundary returns.
// It keeps the original cause reachable through errors.Is / errors.As.
type PipelineError struct {
	Stage Stage
	Op    string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Wrap attaches stage context to err. An error that already carries a
// PipelineError is returned as is so the innermost stage stays visible.
func Wrap(stage Stage, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return err
	}
	return &PipelineError{Stage: stage, Op: op, Err: err}
}

// StageOf reports the stage recorded on err, or "" if err carries none.
func StageOf(err error) Stage {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}

// IsGateFailure reports whether err was raised by one of the training gates.
func IsGateFailure(err error) bool {
	return errors.Is(err, ErrAccuracyBelowExpected) || errors.Is(err, ErrModelOverfit)
}
