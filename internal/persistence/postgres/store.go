package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mavedb/worker/internal/jobmodel"
	"github.com/mavedb/worker/internal/persistence"
)

// Store is the pool-backed Persistence Gateway. It satisfies
// persistence.Gateway directly by running each operation in its own
// implicit transaction; BeginTx hands callers an explicit transaction that
// spans multiple operations (the decorator's one-commit-per-job unit).
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an already-open pool as a Persistence Gateway.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) querier() querier { return s.pool }

func (s *Store) GetJobByID(ctx context.Context, id int64) (*jobmodel.JobRun, error) {
	return getJobByID(ctx, s.querier(), id)
}

func (s *Store) GetJobByURN(ctx context.Context, urn string) (*jobmodel.JobRun, error) {
	return getJobByURN(ctx, s.querier(), urn)
}

func (s *Store) GetPipeline(ctx context.Context, id int64) (*jobmodel.Pipeline, error) {
	return getPipeline(ctx, s.querier(), id)
}

func (s *Store) ListPipelineJobs(ctx context.Context, pipelineID int64, statuses ...jobmodel.JobStatus) ([]*jobmodel.JobRun, error) {
	return listPipelineJobs(ctx, s.querier(), pipelineID, statuses...)
}

func (s *Store) ListDependencies(ctx context.Context, jobID int64) ([]jobmodel.JobDependency, error) {
	return listDependencies(ctx, s.querier(), jobID)
}

func (s *Store) CountJobsByStatus(ctx context.Context, pipelineID int64) (jobmodel.StatusCounts, error) {
	return countJobsByStatus(ctx, s.querier(), pipelineID)
}

func (s *Store) InsertJob(ctx context.Context, job *jobmodel.JobRun) (int64, error) {
	return insertJob(ctx, s.querier(), job)
}

func (s *Store) InsertPipeline(ctx context.Context, pipeline *jobmodel.Pipeline) (int64, error) {
	return insertPipeline(ctx, s.querier(), pipeline)
}

func (s *Store) InsertDependency(ctx context.Context, dep jobmodel.JobDependency) error {
	return insertDependency(ctx, s.querier(), dep)
}

func (s *Store) UpdateJob(ctx context.Context, job *jobmodel.JobRun) error {
	return updateJob(ctx, s.querier(), job)
}

func (s *Store) UpdatePipeline(ctx context.Context, pipeline *jobmodel.Pipeline) error {
	return updatePipeline(ctx, s.querier(), pipeline)
}

// BeginTx starts a transaction. The returned Tx flushes (via the same
// querier interface) without committing until Commit is called explicitly —
// this is the hook the decorator uses to implement one-commit-per-job.
func (s *Store) BeginTx(ctx context.Context) (persistence.Tx, error) {
	pgxTx, err := s.pool.Begin(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to begin transaction", "error", err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &txStore{tx: pgxTx}, nil
}

// txStore implements persistence.Tx over a live pgx.Tx.
type txStore struct {
	tx pgx.Tx
}

func (t *txStore) querier() querier { return t.tx }

func (t *txStore) GetJobByID(ctx context.Context, id int64) (*jobmodel.JobRun, error) {
	return getJobByID(ctx, t.querier(), id)
}
func (t *txStore) GetJobByURN(ctx context.Context, urn string) (*jobmodel.JobRun, error) {
	return getJobByURN(ctx, t.querier(), urn)
}
func (t *txStore) GetPipeline(ctx context.Context, id int64) (*jobmodel.Pipeline, error) {
	return getPipeline(ctx, t.querier(), id)
}
func (t *txStore) ListPipelineJobs(ctx context.Context, pipelineID int64, statuses ...jobmodel.JobStatus) ([]*jobmodel.JobRun, error) {
	return listPipelineJobs(ctx, t.querier(), pipelineID, statuses...)
}
func (t *txStore) ListDependencies(ctx context.Context, jobID int64) ([]jobmodel.JobDependency, error) {
	return listDependencies(ctx, t.querier(), jobID)
}
func (t *txStore) CountJobsByStatus(ctx context.Context, pipelineID int64) (jobmodel.StatusCounts, error) {
	return countJobsByStatus(ctx, t.querier(), pipelineID)
}
func (t *txStore) InsertJob(ctx context.Context, job *jobmodel.JobRun) (int64, error) {
	return insertJob(ctx, t.querier(), job)
}
func (t *txStore) InsertPipeline(ctx context.Context, pipeline *jobmodel.Pipeline) (int64, error) {
	return insertPipeline(ctx, t.querier(), pipeline)
}
func (t *txStore) InsertDependency(ctx context.Context, dep jobmodel.JobDependency) error {
	return insertDependency(ctx, t.querier(), dep)
}
func (t *txStore) UpdateJob(ctx context.Context, job *jobmodel.JobRun) error {
	return updateJob(ctx, t.querier(), job)
}
func (t *txStore) UpdatePipeline(ctx context.Context, pipeline *jobmodel.Pipeline) error {
	return updatePipeline(ctx, t.querier(), pipeline)
}

// BeginTx on a Tx is a programming error: transactions do not nest here.
func (t *txStore) BeginTx(ctx context.Context) (persistence.Tx, error) {
	return nil, errors.New("postgres: nested transactions are not supported")
}

func (t *txStore) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *txStore) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
