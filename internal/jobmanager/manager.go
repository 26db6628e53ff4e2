// Package jobmanager implements the per-job lifecycle manager described in
// spec §4.3: start/complete/retry/reset transitions plus progress
// reporting, all preconditioned on the job's current status. A Manager
// mutates and flushes through the Persistence Gateway but never commits —
// that boundary belongs to its caller, typically the decorator.
package jobmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mavedb/worker/internal/jobmodel"
	"github.com/mavedb/worker/internal/jobserr"
	"github.com/mavedb/worker/internal/persistence"
)

// Manager operates on a single JobRun identified by jobID, re-reading it
// from the gateway on every call so it always acts on current state.
type Manager struct {
	gw    persistence.Gateway
	jobID int64
	now   func() time.Time
}

// New constructs a Manager bound to one job and gateway.
func New(gw persistence.Gateway, jobID int64) *Manager {
	return &Manager{gw: gw, jobID: jobID, now: time.Now}
}

// WithClock overrides the manager's clock; intended for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) load(ctx context.Context) (*jobmodel.JobRun, error) {
	return m.gw.GetJobByID(ctx, m.jobID)
}

func transitionErr(job *jobmodel.JobRun, operation string) error {
	return &jobserr.TransitionError{
		Entity:        "job",
		ID:            job.ID,
		CurrentStatus: string(job.Status),
		Operation:     operation,
	}
}

// StartJob requires the job to be PENDING or QUEUED; it moves to RUNNING,
// stamps started_at, and resets progress to the fresh-execution baseline.
func (m *Manager) StartJob(ctx context.Context) error {
	job, err := m.load(ctx)
	if err != nil {
		return err
	}
	if !job.Status.Startable() {
		return transitionErr(job, "start_job")
	}

	now := m.now()
	job.Status = jobmodel.JobRunning
	job.StartedAt = &now
	job.ProgressCurrent = 0
	job.ProgressTotal = 100
	job.ProgressMessage = "Job began execution"
	return m.gw.UpdateJob(ctx, job)
}

// PrepareQueue requires PENDING; it moves to QUEUED with an informational
// progress message so observers see the job has left the planning stage.
func (m *Manager) PrepareQueue(ctx context.Context) error {
	job, err := m.load(ctx)
	if err != nil {
		return err
	}
	if job.Status != jobmodel.JobPending {
		return transitionErr(job, "prepare_queue")
	}

	job.Status = jobmodel.JobQueued
	job.ProgressMessage = "Job queued for execution"
	return m.gw.UpdateJob(ctx, job)
}

// CompleteJob drives the job to a terminal status and stamps finished_at
// and the result. On FAILED it also records the failure category and error
// detail. CompleteJob has no precondition on current status: a job may
// complete from any state (e.g. a cancel issued mid-RUNNING).
func (m *Manager) CompleteJob(ctx context.Context, target jobmodel.JobStatus, result any, failure error) error {
	if !target.Terminal() {
		return fmt.Errorf("jobmanager: complete_job target %s is not a terminal status", target)
	}

	job, err := m.load(ctx)
	if err != nil {
		return err
	}

	resultRaw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("jobmanager: failed to encode job result: %w", err)
	}

	now := m.now()
	job.Status = target
	job.FinishedAt = &now
	job.Metadata.Result = resultRaw

	if target == jobmodel.JobFailed {
		job.FailureCategory = jobserr.Classify(failure)
		if job.FailureCategory == "" {
			job.FailureCategory = jobmodel.FailureUnknown
		}
		if failure != nil {
			job.ErrorMessage = failure.Error()
			job.ErrorTraceback = fmt.Sprintf("%+v", failure)
		}
	}

	return m.gw.UpdateJob(ctx, job)
}

// SucceedJob is complete_job(SUCCEEDED, result).
func (m *Manager) SucceedJob(ctx context.Context, result any) error {
	return m.CompleteJob(ctx, jobmodel.JobSucceeded, result, nil)
}

// FailJob is complete_job(FAILED, result, error).
func (m *Manager) FailJob(ctx context.Context, failure error, result any) error {
	return m.CompleteJob(ctx, jobmodel.JobFailed, result, failure)
}

// CancelJob is complete_job(CANCELLED, result).
func (m *Manager) CancelJob(ctx context.Context, result any) error {
	return m.CompleteJob(ctx, jobmodel.JobCancelled, result, nil)
}

// SkipJob is complete_job(SKIPPED, result).
func (m *Manager) SkipJob(ctx context.Context, result any) error {
	return m.CompleteJob(ctx, jobmodel.JobSkipped, result, nil)
}

// PrepareRetry requires the job to be in a retryable status. It returns the
// job to PENDING, increments retry_count, clears error/timestamp fields,
// appends a retry-history entry capturing the prior attempt's outcome, and
// drops the prior result so a stale success payload cannot leak forward.
func (m *Manager) PrepareRetry(ctx context.Context, reason string) error {
	job, err := m.load(ctx)
	if err != nil {
		return err
	}
	if !job.Status.Retryable() {
		return transitionErr(job, "prepare_retry")
	}

	job.Metadata.RetryHistory = append(job.Metadata.RetryHistory, jobmodel.RetryHistoryItem{
		Attempt:      job.RetryCount + 1,
		At:           m.now(),
		Reason:       reason,
		PriorResult:  job.Metadata.Result,
		PriorFailure: job.FailureCategory,
	})

	job.Status = jobmodel.JobPending
	job.RetryCount++
	job.StartedAt = nil
	job.FinishedAt = nil
	job.ErrorMessage = ""
	job.ErrorTraceback = ""
	job.FailureCategory = ""
	job.Metadata.Result = nil

	return m.gw.UpdateJob(ctx, job)
}

// ResetJob unconditionally returns the job to PENDING with every execution
// field cleared, as if it had never run.
func (m *Manager) ResetJob(ctx context.Context) error {
	job, err := m.load(ctx)
	if err != nil {
		return err
	}

	job.Status = jobmodel.JobPending
	job.StartedAt = nil
	job.FinishedAt = nil
	job.RetryCount = 0
	job.ErrorMessage = ""
	job.ErrorTraceback = ""
	job.FailureCategory = ""
	job.ProgressCurrent = 0
	job.ProgressTotal = 100
	job.ProgressMessage = ""
	job.Metadata = jobmodel.JobMetadata{}

	return m.gw.UpdateJob(ctx, job)
}

// UpdateProgress sets current/total/message together.
func (m *Manager) UpdateProgress(ctx context.Context, current, total int, message string) error {
	job, err := m.load(ctx)
	if err != nil {
		return err
	}
	job.ProgressCurrent = current
	job.ProgressTotal = total
	job.ProgressMessage = message
	return m.gw.UpdateJob(ctx, job)
}

// IncrementProgress adds delta to the current progress counter.
func (m *Manager) IncrementProgress(ctx context.Context, delta int) error {
	job, err := m.load(ctx)
	if err != nil {
		return err
	}
	job.ProgressCurrent += delta
	return m.gw.UpdateJob(ctx, job)
}

// SetProgressTotal rewrites the denominator, used when a job discovers its
// true item count only after starting (e.g. after fetching a score set).
func (m *Manager) SetProgressTotal(ctx context.Context, total int) error {
	job, err := m.load(ctx)
	if err != nil {
		return err
	}
	job.ProgressTotal = total
	return m.gw.UpdateJob(ctx, job)
}

// UpdateStatusMessage rewrites only the human-readable progress message.
func (m *Manager) UpdateStatusMessage(ctx context.Context, message string) error {
	job, err := m.load(ctx)
	if err != nil {
		return err
	}
	job.ProgressMessage = message
	return m.gw.UpdateJob(ctx, job)
}

// IsCancelled reports whether the job has landed in a status that a
// long-running job function should treat as "stop cooperatively".
func (m *Manager) IsCancelled(ctx context.Context) (bool, error) {
	job, err := m.load(ctx)
	if err != nil {
		return false, err
	}
	switch job.Status {
	case jobmodel.JobCancelled, jobmodel.JobSkipped, jobmodel.JobFailed:
		return true, nil
	default:
		return false, nil
	}
}

// ShouldRetry reports whether the job's current failure is eligible for an
// automatic retry: FAILED, under its retry budget, and a retryable
// failure_category.
func (m *Manager) ShouldRetry(ctx context.Context) (bool, error) {
	job, err := m.load(ctx)
	if err != nil {
		return false, err
	}
	if job.Status != jobmodel.JobFailed {
		return false, nil
	}
	if job.RetryCount >= job.MaxRetries {
		return false, nil
	}
	return job.FailureCategory.Retryable(), nil
}
