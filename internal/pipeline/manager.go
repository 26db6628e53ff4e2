// Package pipeline implements the Pipeline Manager described in spec §4.4:
// multi-job coordination driving a pipeline's aggregate status, the
// dependency-aware ready-set enqueue, and cancel/pause/restart/retry
// operations. Like the Job Manager, it mutates and flushes through the
// Persistence Gateway but never commits.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/mavedb/worker/internal/jobmanager"
	"github.com/mavedb/worker/internal/jobmodel"
	"github.com/mavedb/worker/internal/jobserr"
	"github.com/mavedb/worker/internal/persistence"
	"github.com/mavedb/worker/internal/queue"
)

// Manager coordinates one pipeline. It re-reads pipeline and job rows from
// the gateway on every call.
type Manager struct {
	gw         persistence.Gateway
	q          queue.Gateway
	pipelineID int64
	now        func() time.Time
}

// New constructs a Manager bound to one pipeline, gateway, and queue.
func New(gw persistence.Gateway, q queue.Gateway, pipelineID int64) *Manager {
	return &Manager{gw: gw, q: q, pipelineID: pipelineID, now: time.Now}
}

// WithClock overrides the manager's clock; intended for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) load(ctx context.Context) (*jobmodel.Pipeline, error) {
	return m.gw.GetPipeline(ctx, m.pipelineID)
}

func transitionErr(p *jobmodel.Pipeline, operation string) error {
	return &jobserr.TransitionError{
		Entity:        "pipeline",
		ID:            p.ID,
		CurrentStatus: string(p.Status),
		Operation:     operation,
	}
}

// StartPipeline requires CREATED, sets RUNNING, and stamps started_at. When
// coordinate is true it immediately enqueues the ready set. Callers that
// are themselves inside a job function which is about to start this
// pipeline should pass coordinate=false, since the decorator's own
// post-completion coordinate call will run the enqueue pass for them —
// calling it twice would race two enqueue passes against the same ready
// set (harmless given queue dedup, but wasted work and confusing logs).
func (m *Manager) StartPipeline(ctx context.Context, coordinate bool) error {
	p, err := m.load(ctx)
	if err != nil {
		return err
	}
	if !p.Status.Startable() {
		return transitionErr(p, "start_pipeline")
	}

	now := m.now()
	p.Status = jobmodel.PipelineRunning
	p.StartedAt = &now
	if err := m.gw.UpdatePipeline(ctx, p); err != nil {
		return err
	}

	if coordinate {
		return m.CoordinatePipeline(ctx)
	}
	return nil
}

// CoordinatePipeline is the re-entry point after any job terminates: it
// recomputes aggregate status, cancels remaining jobs on a
// cancelled/failed outcome, and otherwise enqueues the ready set and
// recomputes status once more since skipping unreachable jobs during the
// enqueue pass can itself change the aggregate.
func (m *Manager) CoordinatePipeline(ctx context.Context) error {
	p, err := m.recomputeStatus(ctx)
	if err != nil {
		return &jobserr.CoordinationError{PipelineID: m.pipelineID, Err: err}
	}

	switch p.Status {
	case jobmodel.PipelineFailed, jobmodel.PipelineCancelled:
		if err := m.CancelRemainingJobs(ctx, "pipeline reached a terminal failure state"); err != nil {
			return &jobserr.CoordinationError{PipelineID: m.pipelineID, Err: err}
		}
		return nil
	case jobmodel.PipelineRunning:
		if err := m.EnqueueReadyJobs(ctx); err != nil {
			return &jobserr.CoordinationError{PipelineID: m.pipelineID, Err: err}
		}
		if _, err := m.recomputeStatus(ctx); err != nil {
			return &jobserr.CoordinationError{PipelineID: m.pipelineID, Err: err}
		}
		return nil
	default:
		return nil
	}
}

// recomputeStatus implements the aggregate status algorithm in spec §4.4
// and persists the resulting pipeline row.
func (m *Manager) recomputeStatus(ctx context.Context) (*jobmodel.Pipeline, error) {
	p, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	if p.Status.Terminal() || p.Status == jobmodel.PipelinePaused {
		return p, nil
	}

	counts, err := m.gw.CountJobsByStatus(ctx, m.pipelineID)
	if err != nil {
		return nil, err
	}

	next := aggregateStatus(counts)
	if next == "" || next == p.Status {
		return p, nil
	}

	now := m.now()
	if next.Terminal() {
		p.FinishedAt = &now
	}
	if next == jobmodel.PipelineRunning && p.StartedAt == nil {
		p.StartedAt = &now
	}
	if next == jobmodel.PipelineCreated {
		p.StartedAt = nil
	}
	p.Status = next

	if err := m.gw.UpdatePipeline(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// aggregateStatus is the decision table from spec §4.4. total()==0 (an
// empty pipeline) is SUCCEEDED immediately. RUNNING/QUEUED and PENDING are
// checked before FAILED is allowed to settle the outcome: a job that later
// succeeds despite a COMPLETION_REQUIRED sibling's earlier failure must
// still have a chance to run before the pipeline is called FAILED. Once
// every job is terminal, any SUCCEEDED present (even alongside a FAILED
// one) means PARTIAL, not FAILED — FAILED is reserved for a run where
// nothing independently succeeded.
func aggregateStatus(counts jobmodel.StatusCounts) jobmodel.PipelineStatus {
	if counts.Total() == 0 {
		return jobmodel.PipelineSucceeded
	}
	if counts[jobmodel.JobRunning] > 0 || counts[jobmodel.JobQueued] > 0 {
		return jobmodel.PipelineRunning
	}
	if counts[jobmodel.JobPending] > 0 {
		return "" // unchanged: caller keeps the pipeline's current status
	}
	if counts[jobmodel.JobSucceeded] > 0 {
		total := counts.Total()
		if counts[jobmodel.JobSucceeded] == total {
			return jobmodel.PipelineSucceeded
		}
		onlyTerminalMix := counts[jobmodel.JobSucceeded]+counts[jobmodel.JobSkipped]+counts[jobmodel.JobCancelled] == total
		if !onlyTerminalMix {
			slog.Warn("pipeline reached an unexpected status mix", "counts", counts)
		}
		return jobmodel.PipelinePartial
	}
	if counts[jobmodel.JobFailed] > 0 {
		return jobmodel.PipelineFailed
	}
	return jobmodel.PipelineCancelled
}

// EnqueueReadyJobs requires RUNNING. For each PENDING job it evaluates
// dependencies: if all are satisfied it prepares the job for the queue; if
// any dependency has become unreachable it skips the job instead. Every
// mutation flushes once, then the queue gateway is called for each
// to-enqueue job using its urn as the dedup id, deferring by
// retry_delay_seconds on a retry attempt.
func (m *Manager) EnqueueReadyJobs(ctx context.Context) error {
	p, err := m.load(ctx)
	if err != nil {
		return err
	}
	if p.Status != jobmodel.PipelineRunning {
		return transitionErr(p, "enqueue_ready_jobs")
	}

	pending, err := m.gw.ListPipelineJobs(ctx, m.pipelineID, jobmodel.JobPending)
	if err != nil {
		return err
	}

	var toEnqueue []*jobmodel.JobRun
	for _, job := range pending {
		ready, unreachable, err := m.evaluateReadiness(ctx, job.ID)
		if err != nil {
			return err
		}

		jm := jobmanager.New(m.gw, job.ID)
		switch {
		case unreachable:
			if err := jm.SkipJob(ctx, map[string]any{"reason": "one or more required dependencies became unreachable"}); err != nil {
				return err
			}
		case ready:
			if err := jm.PrepareQueue(ctx); err != nil {
				return err
			}
			toEnqueue = append(toEnqueue, job)
		}
	}

	for _, job := range toEnqueue {
		var deferBy time.Duration
		if job.RetryCount > 0 {
			deferBy = job.RetryDelay
		}
		if _, err := m.q.Enqueue(ctx, job.JobFunction, job.ID, job.URN, deferBy); err != nil {
			return &jobserr.EnqueueError{JobID: job.ID, Err: err}
		}
	}
	return nil
}

// evaluateReadiness reports whether jobID's dependencies are all satisfied
// (ready) or whether at least one has become unreachable.
func (m *Manager) evaluateReadiness(ctx context.Context, jobID int64) (ready, unreachable bool, err error) {
	deps, err := m.gw.ListDependencies(ctx, jobID)
	if err != nil {
		return false, false, err
	}
	if len(deps) == 0 {
		return true, false, nil
	}

	allSatisfied := true
	for _, dep := range deps {
		outcome := jobmodel.Evaluate(dep.DependencyType, dep.Predecessor.Status)
		switch outcome {
		case jobmodel.DependencyUnreachable:
			return false, true, nil
		case jobmodel.DependencyWait:
			allSatisfied = false
		}
	}
	return allSatisfied, false, nil
}

// CancelRemainingJobs skips active PENDING jobs and cancels active
// RUNNING/QUEUED jobs, recording reason in each job's result.
func (m *Manager) CancelRemainingJobs(ctx context.Context, reason string) error {
	var active []*jobmodel.JobRun
	for _, status := range []jobmodel.JobStatus{jobmodel.JobPending, jobmodel.JobQueued, jobmodel.JobRunning} {
		jobs, err := m.gw.ListPipelineJobs(ctx, m.pipelineID, status)
		if err != nil {
			return err
		}
		active = append(active, jobs...)
	}

	for _, job := range active {
		jm := jobmanager.New(m.gw, job.ID)
		result := map[string]any{"reason": reason}
		if job.Status == jobmodel.JobPending {
			if err := jm.SkipJob(ctx, result); err != nil {
				return err
			}
			continue
		}
		if err := jm.CancelJob(ctx, result); err != nil {
			return err
		}
	}
	return nil
}

// CancelPipeline requires a non-terminal pipeline; it sets CANCELLED and
// coordinates, which in turn cancels every remaining active job.
func (m *Manager) CancelPipeline(ctx context.Context, reason string) error {
	p, err := m.load(ctx)
	if err != nil {
		return err
	}
	if p.Status.Terminal() {
		return transitionErr(p, "cancel_pipeline")
	}

	now := m.now()
	p.Status = jobmodel.PipelineCancelled
	p.FinishedAt = &now
	if err := m.gw.UpdatePipeline(ctx, p); err != nil {
		return err
	}

	return m.CoordinatePipeline(ctx)
}

// PausePipeline requires RUNNING; PAUSED pipelines refuse enqueue_ready_jobs
// but let already-running jobs finish.
func (m *Manager) PausePipeline(ctx context.Context, reason string) error {
	p, err := m.load(ctx)
	if err != nil {
		return err
	}
	if p.Status != jobmodel.PipelineRunning {
		return transitionErr(p, "pause_pipeline")
	}
	p.Status = jobmodel.PipelinePaused
	return m.gw.UpdatePipeline(ctx, p)
}

// UnpausePipeline requires PAUSED and returns the pipeline to RUNNING;
// callers typically follow with CoordinatePipeline to resume enqueuing.
func (m *Manager) UnpausePipeline(ctx context.Context, reason string) error {
	p, err := m.load(ctx)
	if err != nil {
		return err
	}
	if p.Status != jobmodel.PipelinePaused {
		return transitionErr(p, "unpause_pipeline")
	}
	p.Status = jobmodel.PipelineRunning
	return m.gw.UpdatePipeline(ctx, p)
}

// RestartPipeline resets every job in the pipeline to PENDING, sets the
// pipeline to CREATED, then starts it.
func (m *Manager) RestartPipeline(ctx context.Context) error {
	jobs, err := m.gw.ListPipelineJobs(ctx, m.pipelineID)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if err := jobmanager.New(m.gw, job.ID).ResetJob(ctx); err != nil {
			return err
		}
	}

	p, err := m.load(ctx)
	if err != nil {
		return err
	}
	p.Status = jobmodel.PipelineCreated
	p.StartedAt = nil
	p.FinishedAt = nil
	if err := m.gw.UpdatePipeline(ctx, p); err != nil {
		return err
	}

	return m.StartPipeline(ctx, true)
}

// RetryFailedJobs prepares every FAILED job for retry, then resumes
// coordination. includeUnsuccessful also retries CANCELLED and SKIPPED
// jobs (retry_unsuccessful_jobs in spec §4.4).
func (m *Manager) RetryFailedJobs(ctx context.Context, reason string, includeUnsuccessful bool) error {
	statuses := []jobmodel.JobStatus{jobmodel.JobFailed}
	if includeUnsuccessful {
		statuses = append(statuses, jobmodel.JobCancelled, jobmodel.JobSkipped)
	}

	var toRetry []*jobmodel.JobRun
	for _, status := range statuses {
		jobs, err := m.gw.ListPipelineJobs(ctx, m.pipelineID, status)
		if err != nil {
			return err
		}
		toRetry = append(toRetry, jobs...)
	}

	for _, job := range toRetry {
		if err := jobmanager.New(m.gw, job.ID).PrepareRetry(ctx, reason); err != nil {
			return err
		}
	}

	p, err := m.load(ctx)
	if err != nil {
		return err
	}
	p.Status = jobmodel.PipelineRunning
	p.FinishedAt = nil
	if err := m.gw.UpdatePipeline(ctx, p); err != nil {
		return err
	}

	return m.CoordinatePipeline(ctx)
}
