// Package persistence defines the Persistence Gateway: typed access to
// JobRun, Pipeline, and JobDependency rows with transactional flush but no
// commit policy. Callers (the decorator) own the commit boundary.
package persistence

import (
	"context"

	"github.com/mavedb/worker/internal/jobmodel"
)

// Gateway is the Persistence Gateway described in spec §4.1. Implementations
// must flush every write so sibling reads in the same transaction observe
// it, but must never commit.
type Gateway interface {
	// Reads

	GetJobByID(ctx context.Context, id int64) (*jobmodel.JobRun, error)
	GetJobByURN(ctx context.Context, urn string) (*jobmodel.JobRun, error)
	GetPipeline(ctx context.Context, id int64) (*jobmodel.Pipeline, error)
	ListPipelineJobs(ctx context.Context, pipelineID int64, statuses ...jobmodel.JobStatus) ([]*jobmodel.JobRun, error)
	ListDependencies(ctx context.Context, jobID int64) ([]jobmodel.JobDependency, error)
	CountJobsByStatus(ctx context.Context, pipelineID int64) (jobmodel.StatusCounts, error)

	// Writes. Every write flushes; none commit.

	InsertJob(ctx context.Context, job *jobmodel.JobRun) (int64, error)
	InsertPipeline(ctx context.Context, pipeline *jobmodel.Pipeline) (int64, error)
	InsertDependency(ctx context.Context, dep jobmodel.JobDependency) error
	UpdateJob(ctx context.Context, job *jobmodel.JobRun) error
	UpdatePipeline(ctx context.Context, pipeline *jobmodel.Pipeline) error

	// BeginTx opens a transaction whose writes are flushed but not
	// committed; the caller calls the returned Tx's Commit once it is
	// satisfied with the outcome of both the job function and pipeline
	// coordination (the one-commit-per-job rule in spec §4.1).
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is a transactional handle scoped to one worker dispatch. Each write is
// sent to the database as it is made, without ending the transaction;
// Commit and Rollback end it.
type Tx interface {
	Gateway
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
