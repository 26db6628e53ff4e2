// Package jobs hosts the registered job functions described in spec §4.6:
// variant creation, VRS mapping, and the six external-service integration
// jobs that submit to and link against CAR, LDH, gnomAD, UniProt, and
// ClinVar. Each function reads its inputs solely from job_params and is
// independently retryable, per the contract every job function shares.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mavedb/worker/internal/jobmodel"
	"github.com/mavedb/worker/internal/jobserr"
	"github.com/mavedb/worker/internal/workerctx"
)

// chainJob inserts a new JobRun for functionName in the same pipeline as the
// caller's own job, if any, and enqueues it with the given defer. A job
// function that chains a successor, or that re-enqueues itself with backoff
// (link_clingen_variants), always goes through this path rather than
// prepare_retry on its own row: prepare_retry only operates on a job
// already in a terminal status, and the caller's job is still RUNNING at
// the point it decides to chain.
func chainJob(ctx context.Context, wc *workerctx.Context, functionName string, params any, deferBy time.Duration) (int64, string, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return 0, "", fmt.Errorf("jobs: encode %s params: %w", functionName, err)
	}

	urn := "urn:mavedb:job:" + uuid.NewString()
	job := &jobmodel.JobRun{
		URN:         urn,
		JobFunction: functionName,
		PipelineID:  wc.PipelineID,
		Status:      jobmodel.JobPending,
		JobParams:   payload,
		MaxRetries:  wc.Config.Worker.DefaultMaxRetries,
	}

	id, err := wc.Tx.InsertJob(ctx, job)
	if err != nil {
		return 0, "", fmt.Errorf("jobs: insert follow-on job %s: %w", functionName, err)
	}

	if _, err := wc.Queue.Enqueue(ctx, functionName, id, urn, deferBy); err != nil {
		return 0, "", &jobserr.EnqueueError{JobID: id, Err: err}
	}

	return id, urn, nil
}

// decodeParams unmarshals jobParams into a fresh *T, wrapping decode
// failures as a ValidationError since malformed job_params is always an
// operator-visible input problem, not a transient one.
func decodeParams[T any](jobParams []byte) (*T, error) {
	var params T
	if err := json.Unmarshal(jobParams, &params); err != nil {
		return nil, &jobserr.ValidationError{Classification: "malformed job_params", Err: err}
	}
	return &params, nil
}
