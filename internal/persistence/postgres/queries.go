package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mavedb/worker/internal/jobmodel"
	"github.com/mavedb/worker/internal/jobserr"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting every query
// function run unmodified whether called from the pool-backed Store or a
// transaction-scoped txStore.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const jobColumns = `id, urn, job_function, pipeline_id, status, job_params, metadata_,
	progress_current, progress_total, progress_message, started_at, finished_at,
	retry_count, max_retries, retry_delay_seconds, failure_category, error_message,
	error_traceback, created_at`

const jobColumnsPrefixedP = `p.id, p.urn, p.job_function, p.pipeline_id, p.status, p.job_params, p.metadata_,
	p.progress_current, p.progress_total, p.progress_message, p.started_at, p.finished_at,
	p.retry_count, p.max_retries, p.retry_delay_seconds, p.failure_category, p.error_message,
	p.error_traceback, p.created_at`

func scanJob(row pgx.Row) (*jobmodel.JobRun, error) {
	var j jobmodel.JobRun
	var metadataRaw []byte
	var retryDelaySeconds int
	err := row.Scan(
		&j.ID, &j.URN, &j.JobFunction, &j.PipelineID, &j.Status, &j.JobParams, &metadataRaw,
		&j.ProgressCurrent, &j.ProgressTotal, &j.ProgressMessage, &j.StartedAt, &j.FinishedAt,
		&j.RetryCount, &j.MaxRetries, &retryDelaySeconds, &j.FailureCategory, &j.ErrorMessage,
		&j.ErrorTraceback, &j.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	j.RetryDelay = secondsToDuration(retryDelaySeconds)
	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &j.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode job metadata_: %w", err)
		}
	}
	return &j, nil
}

func getJobByID(ctx context.Context, q querier, id int64) (*jobmodel.JobRun, error) {
	row := q.QueryRow(ctx, `SELECT `+jobColumns+` FROM job_runs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("job %d: %w", id, jobmodel.ErrNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to get job by id", "job_id", id, "error", err)
		return nil, &jobserr.DatabaseConnectionError{Err: err}
	}
	return job, nil
}

func getJobByURN(ctx context.Context, q querier, urn string) (*jobmodel.JobRun, error) {
	row := q.QueryRow(ctx, `SELECT `+jobColumns+` FROM job_runs WHERE urn = $1`, urn)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("job urn %s: %w", urn, jobmodel.ErrNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to get job by urn", "urn", urn, "error", err)
		return nil, &jobserr.DatabaseConnectionError{Err: err}
	}
	return job, nil
}

func getPipeline(ctx context.Context, q querier, id int64) (*jobmodel.Pipeline, error) {
	row := q.QueryRow(ctx, `SELECT id, status, created_at, started_at, finished_at FROM pipelines WHERE id = $1`, id)
	var p jobmodel.Pipeline
	err := row.Scan(&p.ID, &p.Status, &p.CreatedAt, &p.StartedAt, &p.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("pipeline %d: %w", id, jobmodel.ErrNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to get pipeline", "pipeline_id", id, "error", err)
		return nil, &jobserr.DatabaseConnectionError{Err: err}
	}
	return &p, nil
}

func listPipelineJobs(ctx context.Context, q querier, pipelineID int64, statuses ...jobmodel.JobStatus) ([]*jobmodel.JobRun, error) {
	sql := `SELECT ` + jobColumns + ` FROM job_runs WHERE pipeline_id = $1`
	args := []any{pipelineID}
	if len(statuses) > 0 {
		sql += ` AND status = ANY($2)`
		args = append(args, statusesToStrings(statuses))
	}
	sql += ` ORDER BY id`

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list pipeline jobs", "pipeline_id", pipelineID, "error", err)
		return nil, &jobserr.DatabaseConnectionError{Err: err}
	}
	defer rows.Close()

	var jobs []*jobmodel.JobRun
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, &jobserr.DatabaseConnectionError{Err: err}
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func listDependencies(ctx context.Context, q querier, jobID int64) ([]jobmodel.JobDependency, error) {
	sql := `SELECT d.job_id, d.depends_on_job_id, d.dependency_type, ` + jobColumnsPrefixedP + `
		FROM job_dependencies d
		JOIN job_runs p ON p.id = d.depends_on_job_id
		WHERE d.job_id = $1`

	rows, err := q.Query(ctx, sql, jobID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list dependencies", "job_id", jobID, "error", err)
		return nil, &jobserr.DatabaseConnectionError{Err: err}
	}
	defer rows.Close()

	var deps []jobmodel.JobDependency
	for rows.Next() {
		var d jobmodel.JobDependency
		var pred jobmodel.JobRun
		var metadataRaw []byte
		var retryDelaySeconds int
		err := rows.Scan(
			&d.JobID, &d.DependsOnJobID, &d.DependencyType,
			&pred.ID, &pred.URN, &pred.JobFunction, &pred.PipelineID, &pred.Status, &pred.JobParams, &metadataRaw,
			&pred.ProgressCurrent, &pred.ProgressTotal, &pred.ProgressMessage, &pred.StartedAt, &pred.FinishedAt,
			&pred.RetryCount, &pred.MaxRetries, &retryDelaySeconds, &pred.FailureCategory, &pred.ErrorMessage,
			&pred.ErrorTraceback, &pred.CreatedAt,
		)
		if err != nil {
			return nil, &jobserr.DatabaseConnectionError{Err: err}
		}
		pred.RetryDelay = secondsToDuration(retryDelaySeconds)
		if len(metadataRaw) > 0 {
			_ = json.Unmarshal(metadataRaw, &pred.Metadata)
		}
		d.Predecessor = &pred
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

func countJobsByStatus(ctx context.Context, q querier, pipelineID int64) (jobmodel.StatusCounts, error) {
	rows, err := q.Query(ctx, `SELECT status, count(*) FROM job_runs WHERE pipeline_id = $1 GROUP BY status`, pipelineID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs by status", "pipeline_id", pipelineID, "error", err)
		return nil, &jobserr.DatabaseConnectionError{Err: err}
	}
	defer rows.Close()

	counts := jobmodel.StatusCounts{}
	for rows.Next() {
		var status jobmodel.JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, &jobserr.DatabaseConnectionError{Err: err}
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func insertJob(ctx context.Context, q querier, job *jobmodel.JobRun) (int64, error) {
	metadataRaw, err := json.Marshal(job.Metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to encode job metadata_: %w", err)
	}
	if job.JobParams == nil {
		job.JobParams = json.RawMessage(`{}`)
	}
	if job.Status == "" {
		job.Status = jobmodel.JobPending
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = 3
	}
	if job.ProgressTotal == 0 {
		job.ProgressTotal = 100
	}

	row := q.QueryRow(ctx, `
		INSERT INTO job_runs (urn, job_function, pipeline_id, status, job_params, metadata_,
			progress_total, max_retries, retry_delay_seconds, failure_category)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		job.URN, job.JobFunction, job.PipelineID, job.Status, job.JobParams, metadataRaw,
		job.ProgressTotal, job.MaxRetries, durationToSeconds(job.RetryDelay), nonEmptyOr(job.FailureCategory, jobmodel.FailureUnknown),
	)
	if err := row.Scan(&job.ID, &job.CreatedAt); err != nil {
		slog.ErrorContext(ctx, "failed to insert job", "urn", job.URN, "error", err)
		return 0, &jobserr.DatabaseConnectionError{Err: err}
	}
	return job.ID, nil
}

func insertPipeline(ctx context.Context, q querier, p *jobmodel.Pipeline) (int64, error) {
	if p.Status == "" {
		p.Status = jobmodel.PipelineCreated
	}
	row := q.QueryRow(ctx, `INSERT INTO pipelines (status) VALUES ($1) RETURNING id, created_at`, p.Status)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		slog.ErrorContext(ctx, "failed to insert pipeline", "error", err)
		return 0, &jobserr.DatabaseConnectionError{Err: err}
	}
	return p.ID, nil
}

func insertDependency(ctx context.Context, q querier, dep jobmodel.JobDependency) error {
	_, err := q.Exec(ctx, `
		INSERT INTO job_dependencies (job_id, depends_on_job_id, dependency_type)
		VALUES ($1, $2, $3)`,
		dep.JobID, dep.DependsOnJobID, dep.DependencyType)
	if err != nil {
		slog.ErrorContext(ctx, "failed to insert dependency", "job_id", dep.JobID, "depends_on", dep.DependsOnJobID, "error", err)
		return &jobserr.DatabaseConnectionError{Err: err}
	}
	return nil
}

// updateJob writes every mutable field at once. The Job/Pipeline Managers
// read-modify-write a single JobRun per call, so a full-row update keeps
// this gateway simple without losing the "flush every write" contract.
func updateJob(ctx context.Context, q querier, job *jobmodel.JobRun) error {
	metadataRaw, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode job metadata_: %w", err)
	}

	tag, err := q.Exec(ctx, `
		UPDATE job_runs SET
			status = $1, job_params = $2, metadata_ = $3,
			progress_current = $4, progress_total = $5, progress_message = $6,
			started_at = $7, finished_at = $8,
			retry_count = $9, max_retries = $10, retry_delay_seconds = $11,
			failure_category = $12, error_message = $13, error_traceback = $14
		WHERE id = $15`,
		job.Status, job.JobParams, metadataRaw,
		job.ProgressCurrent, job.ProgressTotal, job.ProgressMessage,
		job.StartedAt, job.FinishedAt,
		job.RetryCount, job.MaxRetries, durationToSeconds(job.RetryDelay),
		job.FailureCategory, job.ErrorMessage, job.ErrorTraceback,
		job.ID,
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to update job", "job_id", job.ID, "error", err)
		return &jobserr.DatabaseConnectionError{Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &jobserr.StatePersistenceError{Operation: "update job", Err: fmt.Errorf("job %d not found", job.ID)}
	}
	return nil
}

func updatePipeline(ctx context.Context, q querier, p *jobmodel.Pipeline) error {
	tag, err := q.Exec(ctx, `
		UPDATE pipelines SET status = $1, started_at = $2, finished_at = $3 WHERE id = $4`,
		p.Status, p.StartedAt, p.FinishedAt, p.ID,
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to update pipeline", "pipeline_id", p.ID, "error", err)
		return &jobserr.DatabaseConnectionError{Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &jobserr.StatePersistenceError{Operation: "update pipeline", Err: fmt.Errorf("pipeline %d not found", p.ID)}
	}
	return nil
}

func statusesToStrings(statuses []jobmodel.JobStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nonEmptyOr(v, fallback jobmodel.FailureCategory) jobmodel.FailureCategory {
	if v == "" {
		return fallback
	}
	return v
}
