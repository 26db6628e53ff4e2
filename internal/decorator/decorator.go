package decorator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/mavedb/worker/internal/annotation"
	"github.com/mavedb/worker/internal/config"
	"github.com/mavedb/worker/internal/executor"
	"github.com/mavedb/worker/internal/externalclients"
	"github.com/mavedb/worker/internal/jobmanager"
	"github.com/mavedb/worker/internal/objectstorage"
	"github.com/mavedb/worker/internal/persistence"
	"github.com/mavedb/worker/internal/pipeline"
	"github.com/mavedb/worker/internal/queue"
	"github.com/mavedb/worker/internal/scoreset"
	"github.com/mavedb/worker/internal/workerctx"
)

// PanicError records a recovered panic from inside a job function, mirroring
// the teacher's worker.PanicError. Jobs that panic are failed outright, not
// retried — a panic is a programming error, not a transient condition.
type PanicError struct {
	Value      any
	StackTrace string
}

func (e PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Dispatcher brackets every job function call with the decorator contract
// of spec §4.5: start the job, run the function, drive it to a terminal
// status, coordinate its pipeline if it has one, and commit exactly once —
// on both the success path and the failure path, per spec invariant 9. The
// numbered steps in §4.5 read as three separate commits (after start_job,
// after the outcome, after coordination); that phrasing is reconciled here
// in favor of the one-commit-per-job rule spelled out elsewhere in the
// core's design (the Persistence Gateway's BeginTx contract, and "the
// decorator commits exactly once on the success path and exactly once on
// the failure path"): every step below flushes through the same
// transaction, and Commit is called once, after coordination has returned.
type Dispatcher struct {
	gw       persistence.Gateway
	q        queue.Gateway
	registry *Registry

	executor *executor.Pool
	clients  *externalclients.Clients
	storage  objectstorage.Downloader
	cfg      *config.Config
}

// NewDispatcher builds a Dispatcher over the given gateway, queue, and
// registry, plus the handles every job function needs through its
// workerctx.Context: the executor pool for blocking calls, the
// external-service clients, object storage, and configuration.
func NewDispatcher(
	gw persistence.Gateway,
	q queue.Gateway,
	registry *Registry,
	pool *executor.Pool,
	clients *externalclients.Clients,
	storage objectstorage.Downloader,
	cfg *config.Config,
) *Dispatcher {
	return &Dispatcher{gw: gw, q: q, registry: registry, executor: pool, clients: clients, storage: storage, cfg: cfg}
}

// Dispatch runs the job function registered for job jobID's job_function
// column. It returns an error for the uncaught-exception path (spec §4.5
// step 4's third case), after the job's FAILED state has already been
// committed, and also when opening the transaction, loading the job,
// finding its registered function, starting it, recording its completion
// or committing fails; in those cases the transaction is rolled back and
// nothing is committed. Callers should log it, not retry it inline;
// retrying happens through should_retry/prepare_retry on a later pass.
func (d *Dispatcher) Dispatch(ctx context.Context, jobID int64) error {
	tx, err := d.gw.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("decorator: begin transaction for job %d: %w", jobID, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	job, err := tx.GetJobByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("decorator: load job %d: %w", jobID, err)
	}

	fn, ok := d.registry.Lookup(job.JobFunction)
	if !ok {
		return fmt.Errorf("decorator: no job function registered for %q", job.JobFunction)
	}

	jm := jobmanager.New(tx, jobID)

	var pm *pipeline.Manager
	if job.PipelineID != nil {
		pm = pipeline.New(tx, d.q, *job.PipelineID)
	}

	if err := jm.StartJob(ctx); err != nil {
		return fmt.Errorf("decorator: start job %d: %w", jobID, err)
	}

	// A Tx implementation only needs to satisfy the opaque domain gateways
	// (scoreset.Gateway, annotation.Gateway) when job functions that touch
	// them are actually registered against it; test fakes used solely for
	// decorator/pipeline coordination tests need not.
	var annotations *annotation.Manager
	if annotationGW, ok := tx.(annotation.Gateway); ok {
		annotations = annotation.New(annotationGW)
	}
	scoreSetsGW, _ := tx.(scoreset.Gateway)

	wc := &workerctx.Context{
		Tx:          tx,
		ScoreSets:   scoreSetsGW,
		Annotations: annotations,
		JobManager:  jm,
		Queue:       d.q,
		Executor:    d.executor,
		Clients:     d.clients,
		Storage:     d.storage,
		Config:      d.cfg,
		JobID:       jobID,
		JobURN:      job.URN,
		PipelineID:  job.PipelineID,
	}

	result, runErr := d.runJobFunction(ctx, fn, jobID, job.JobParams, wc)

	if completeErr := d.complete(ctx, jm, result, runErr); completeErr != nil {
		return fmt.Errorf("decorator: complete job %d: %w", jobID, completeErr)
	}

	if pm != nil {
		if err := pm.CoordinatePipeline(ctx); err != nil {
			slog.ErrorContext(ctx, "pipeline coordination failed", "pipeline_id", *job.PipelineID, "job_id", jobID, "error", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("decorator: commit job %d: %w", jobID, err)
	}
	committed = true

	return runErr
}

// runJobFunction calls fn with panic recovery, converting a recovered panic
// into the same uncaught-exception path as a returned error.
func (d *Dispatcher) runJobFunction(ctx context.Context, fn JobFunction, jobID int64, jobParams []byte, wc *workerctx.Context) (result JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			slog.ErrorContext(ctx, "job function panicked", "job_id", jobID, "panic", r)
			err = PanicError{Value: r, StackTrace: stack}
		}
	}()
	return fn(ctx, jobParams, wc)
}

// complete maps the job function's outcome onto the Job Manager's terminal
// transitions, per spec §4.5 step 4.
func (d *Dispatcher) complete(ctx context.Context, jm *jobmanager.Manager, result JobResult, runErr error) error {
	if runErr != nil {
		return jm.FailJob(ctx, runErr, JobResult{Status: StatusError, Exception: runErr.Error()})
	}

	switch result.Status {
	case StatusOK:
		return jm.SucceedJob(ctx, result)
	case StatusSkipped:
		return jm.SkipJob(ctx, result)
	case StatusFailed, StatusError, "":
		cause := errors.New(result.Exception)
		if result.Exception == "" {
			cause = errors.New("job function reported a non-ok result with no exception detail")
		}
		return jm.FailJob(ctx, cause, result)
	default:
		return jm.FailJob(ctx, fmt.Errorf("unrecognized job result status %q", result.Status), result)
	}
}
