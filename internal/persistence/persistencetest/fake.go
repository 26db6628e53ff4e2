// Package persistencetest provides an in-memory Persistence Gateway for
// unit tests of the managers and decorator, which exercise dependency and
// coordination logic without a live database.
package persistencetest

import (
	"context"
	"sync"

	"github.com/mavedb/worker/internal/jobmodel"
	"github.com/mavedb/worker/internal/persistence"
)

// Fake is an in-memory persistence.Gateway. BeginTx returns a transaction
// view over the same maps; Commit is a noop and Rollback discards nothing
// (tests that need rollback semantics assert on intermediate Flush state
// directly rather than relying on the fake to truly isolate writes).
type Fake struct {
	mu         sync.Mutex
	jobs       map[int64]*jobmodel.JobRun
	pipelines  map[int64]*jobmodel.Pipeline
	deps       map[int64][]jobmodel.JobDependency
	nextJobID  int64
	nextPipeID int64
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		jobs:      map[int64]*jobmodel.JobRun{},
		pipelines: map[int64]*jobmodel.Pipeline{},
		deps:      map[int64][]jobmodel.JobDependency{},
	}
}

func (f *Fake) GetJobByID(_ context.Context, id int64) (*jobmodel.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, jobmodel.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *Fake) GetJobByURN(_ context.Context, urn string) (*jobmodel.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.URN == urn {
			cp := *job
			return &cp, nil
		}
	}
	return nil, jobmodel.ErrNotFound
}

func (f *Fake) GetPipeline(_ context.Context, id int64) (*jobmodel.Pipeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pipelines[id]
	if !ok {
		return nil, jobmodel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *Fake) ListPipelineJobs(_ context.Context, pipelineID int64, statuses ...jobmodel.JobStatus) ([]*jobmodel.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[jobmodel.JobStatus]bool{}
	for _, s := range statuses {
		want[s] = true
	}
	var out []*jobmodel.JobRun
	for _, job := range f.jobs {
		if job.PipelineID == nil || *job.PipelineID != pipelineID {
			continue
		}
		if len(want) > 0 && !want[job.Status] {
			continue
		}
		cp := *job
		out = append(out, &cp)
	}
	return out, nil
}

func (f *Fake) ListDependencies(_ context.Context, jobID int64) ([]jobmodel.JobDependency, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deps := f.deps[jobID]
	out := make([]jobmodel.JobDependency, len(deps))
	for i, d := range deps {
		if d.Predecessor != nil {
			pred := *f.jobs[d.Predecessor.ID]
			d.Predecessor = &pred
		}
		out[i] = d
	}
	return out, nil
}

func (f *Fake) CountJobsByStatus(_ context.Context, pipelineID int64) (jobmodel.StatusCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := jobmodel.StatusCounts{}
	for _, job := range f.jobs {
		if job.PipelineID != nil && *job.PipelineID == pipelineID {
			counts[job.Status]++
		}
	}
	return counts, nil
}

func (f *Fake) InsertJob(_ context.Context, job *jobmodel.JobRun) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextJobID++
	job.ID = f.nextJobID
	if job.Status == "" {
		job.Status = jobmodel.JobPending
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = 3
	}
	if job.ProgressTotal == 0 {
		job.ProgressTotal = 100
	}
	cp := *job
	f.jobs[job.ID] = &cp
	return job.ID, nil
}

func (f *Fake) InsertPipeline(_ context.Context, p *jobmodel.Pipeline) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextPipeID++
	p.ID = f.nextPipeID
	if p.Status == "" {
		p.Status = jobmodel.PipelineCreated
	}
	cp := *p
	f.pipelines[p.ID] = &cp
	return p.ID, nil
}

func (f *Fake) InsertDependency(_ context.Context, dep jobmodel.JobDependency) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pred, ok := f.jobs[dep.DependsOnJobID]; ok {
		predCopy := *pred
		dep.Predecessor = &predCopy
	}
	f.deps[dep.JobID] = append(f.deps[dep.JobID], dep)
	return nil
}

func (f *Fake) UpdateJob(_ context.Context, job *jobmodel.JobRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[job.ID]; !ok {
		return jobmodel.ErrNotFound
	}
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *Fake) UpdatePipeline(_ context.Context, p *jobmodel.Pipeline) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pipelines[p.ID]; !ok {
		return jobmodel.ErrNotFound
	}
	cp := *p
	f.pipelines[p.ID] = &cp
	return nil
}

func (f *Fake) BeginTx(_ context.Context) (persistence.Tx, error) {
	return &fakeTx{Fake: f}, nil
}

// fakeTx wraps the same Fake so writes are visible immediately (the fake
// does not model true transactional isolation); Commit/Rollback only set
// unexported flags and undo nothing.
type fakeTx struct {
	*Fake
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(_ context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(_ context.Context) error {
	t.rolledBack = true
	return nil
}
