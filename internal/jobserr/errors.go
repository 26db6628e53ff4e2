// Package jobserr defines the error taxonomy shared by every manager and job
// function in the worker runtime (see spec §7 Error Handling Design).
package jobserr

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/mavedb/worker/internal/jobmodel"
)

// TransitionError indicates a manager method was called while the job or
// pipeline was in a status that forbids the requested transition. This is a
// programmer error: it is surfaced, never retried.
type TransitionError struct {
	Entity        string // "job" or "pipeline"
	ID            int64
	CurrentStatus string
	Operation     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s %d in status %s", e.Operation, e.Entity, e.ID, e.CurrentStatus)
}

// StatePersistenceError indicates a database mutation failed its
// post-condition check (e.g. zero rows affected by an ownership-checked
// update). The current commit should be aborted; the next coordination pass
// recovers.
type StatePersistenceError struct {
	Operation string
	Err       error
}

func (e *StatePersistenceError) Error() string {
	return fmt.Sprintf("failed to persist state during %s: %v", e.Operation, e.Err)
}
func (e *StatePersistenceError) Unwrap() error { return e.Err }

// DatabaseConnectionError wraps a read or write failure at the store layer.
type DatabaseConnectionError struct {
	Err error
}

func (e *DatabaseConnectionError) Error() string { return fmt.Sprintf("database error: %v", e.Err) }
func (e *DatabaseConnectionError) Unwrap() error { return e.Err }

// CoordinationError indicates pipeline coordination failed unrecoverably;
// the pipeline is driven to FAILED.
type CoordinationError struct {
	PipelineID int64
	Err        error
}

func (e *CoordinationError) Error() string {
	return fmt.Sprintf("pipeline %d coordination failed: %v", e.PipelineID, e.Err)
}
func (e *CoordinationError) Unwrap() error { return e.Err }

// EnqueueError indicates the queue gateway rejected an enqueue. The job
// remains PENDING and is retried by the next coordination pass.
type EnqueueError struct {
	JobID int64
	Err   error
}

func (e *EnqueueError) Error() string {
	return fmt.Sprintf("failed to enqueue job %d: %v", e.JobID, e.Err)
}
func (e *EnqueueError) Unwrap() error { return e.Err }

// SubmissionError indicates an external-service submission job (CAR, LDH)
// failed partially or completely.
type SubmissionError struct {
	Service string
	Failed  int
	Total   int
	Err     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s submission failed for %d/%d items: %v", e.Service, e.Failed, e.Total, e.Err)
}
func (e *SubmissionError) Unwrap() error { return e.Err }

// LinkingError indicates an external-service linking job (ClinGen, gnomAD)
// could not link some or all variants.
type LinkingError struct {
	Service string
	Failed  int
	Total   int
	Err     error
}

func (e *LinkingError) Error() string {
	return fmt.Sprintf("%s linking failed for %d/%d variants: %v", e.Service, e.Failed, e.Total, e.Err)
}
func (e *LinkingError) Unwrap() error { return e.Err }

// The three VRS-mapping-specific fatal kinds named in spec §4.6/§7.

type NonexistentMappingResultsError struct{ ScoreSetURN string }

func (e *NonexistentMappingResultsError) Error() string {
	return fmt.Sprintf("VRS mapping service returned no results for score set %s", e.ScoreSetURN)
}

type NonexistentMappingScoresError struct{ ScoreSetURN string }

func (e *NonexistentMappingScoresError) Error() string {
	return fmt.Sprintf("VRS mapping service returned no mapped scores for score set %s", e.ScoreSetURN)
}

type NonexistentMappingReferenceError struct{ ScoreSetURN string }

func (e *NonexistentMappingReferenceError) Error() string {
	return fmt.Sprintf("VRS mapping service returned no reference metadata for score set %s", e.ScoreSetURN)
}

// ValidationError surfaces dataframe/variant validation failures, with an
// optional structured detail suitable for a score set's processing_errors
// field.
type ValidationError struct {
	Classification string
	Detail         any
	Err            error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Classification, e.Err)
	}
	return e.Classification
}
func (e *ValidationError) Unwrap() error { return e.Err }

// Classify maps a raw error to a FailureCategory. This resolves the spec's
// open question on failure_category: common transient conditions are
// classified instead of always landing on UNKNOWN, so should_retry has
// something to act on.
func Classify(err error) jobmodel.FailureCategory {
	if err == nil {
		return jobmodel.FailureUnknown
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return jobmodel.FailureValidationError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return jobmodel.FailureTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return jobmodel.FailureTimeout
		}
		return jobmodel.FailureNetworkError
	}

	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return jobmodel.FailureServiceUnavailable
	}
	var linkErr *LinkingError
	if errors.As(err, &linkErr) {
		return jobmodel.FailureServiceUnavailable
	}

	return jobmodel.FailureUnknown
}
