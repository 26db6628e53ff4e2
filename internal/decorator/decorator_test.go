package decorator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mavedb/worker/internal/jobmodel"
	"github.com/mavedb/worker/internal/persistence/persistencetest"
	"github.com/mavedb/worker/internal/queue"
	"github.com/mavedb/worker/internal/workerctx"
)

func newTestDispatcher(gw *persistencetest.Fake, reg *Registry) *Dispatcher {
	return NewDispatcher(gw, noopQueue{}, reg, nil, nil, nil, nil)
}

type noopQueue struct{}

func (noopQueue) Enqueue(context.Context, string, int64, string, time.Duration) (bool, error) {
	return true, nil
}
func (noopQueue) Dequeue(context.Context, string, time.Duration) (queue.Message, bool, error) {
	return queue.Message{}, false, nil
}
func (noopQueue) Ack(context.Context, string, string) error { return nil }

func newTestJob(t *testing.T, gw *persistencetest.Fake, jobFunction string, pipelineID *int64) int64 {
	t.Helper()
	id, err := gw.InsertJob(context.Background(), &jobmodel.JobRun{
		URN:         "urn:mavedb:job:decorator-test",
		JobFunction: jobFunction,
		PipelineID:  pipelineID,
		Status:      jobmodel.JobPending,
		MaxRetries:  3,
	})
	require.NoError(t, err)
	return id
}

func TestDispatch_SucceedsAndCommitsOnNormalReturn(t *testing.T) {
	ctx := context.Background()
	gw := persistencetest.New()
	id := newTestJob(t, gw, "echo", nil)

	reg := NewRegistry()
	reg.Register("echo", func(_ context.Context, _ []byte, _ *workerctx.Context) (JobResult, error) {
		return Ok(map[string]any{"done": true}), nil
	})

	d := newTestDispatcher(gw, reg)
	require.NoError(t, d.Dispatch(ctx, id))

	job, err := gw.GetJobByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, jobmodel.JobSucceeded, job.Status)
	assert.NotNil(t, job.FinishedAt)
}

func TestDispatch_StructuredFailureFailsJob(t *testing.T) {
	ctx := context.Background()
	gw := persistencetest.New()
	id := newTestJob(t, gw, "fails_cleanly", nil)

	reg := NewRegistry()
	reg.Register("fails_cleanly", func(_ context.Context, _ []byte, _ *workerctx.Context) (JobResult, error) {
		return Failed(nil, errors.New("upstream rejected the batch")), nil
	})

	d := newTestDispatcher(gw, reg)
	require.NoError(t, d.Dispatch(ctx, id))

	job, err := gw.GetJobByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, jobmodel.JobFailed, job.Status)
	assert.Equal(t, "upstream rejected the batch", job.ErrorMessage)
}

func TestDispatch_UncaughtErrorFailsJobAndReraises(t *testing.T) {
	ctx := context.Background()
	gw := persistencetest.New()
	id := newTestJob(t, gw, "explodes", nil)

	boom := errors.New("connection reset")
	reg := NewRegistry()
	reg.Register("explodes", func(_ context.Context, _ []byte, _ *workerctx.Context) (JobResult, error) {
		return JobResult{}, boom
	})

	d := newTestDispatcher(gw, reg)
	err := d.Dispatch(ctx, id)
	require.ErrorIs(t, err, boom, "the uncaught error is re-raised only after state has been persisted")

	job, jerr := gw.GetJobByID(ctx, id)
	require.NoError(t, jerr)
	assert.Equal(t, jobmodel.JobFailed, job.Status, "state must already be FAILED by the time the error is re-raised")
}

func TestDispatch_PanicIsRecoveredAndFailsJob(t *testing.T) {
	ctx := context.Background()
	gw := persistencetest.New()
	id := newTestJob(t, gw, "panics", nil)

	reg := NewRegistry()
	reg.Register("panics", func(context.Context, []byte, *workerctx.Context) (JobResult, error) {
		panic("unexpected nil pointer")
	})

	d := newTestDispatcher(gw, reg)
	err := d.Dispatch(ctx, id)
	require.Error(t, err)
	var panicErr PanicError
	require.ErrorAs(t, err, &panicErr)

	job, jerr := gw.GetJobByID(ctx, id)
	require.NoError(t, jerr)
	assert.Equal(t, jobmodel.JobFailed, job.Status)
}

func TestDispatch_CoordinatesPipelineAfterCompletion(t *testing.T) {
	ctx := context.Background()
	gw := persistencetest.New()
	pipelineID, err := gw.InsertPipeline(ctx, &jobmodel.Pipeline{Status: jobmodel.PipelineRunning})
	require.NoError(t, err)

	id := newTestJob(t, gw, "finishes_pipeline", &pipelineID)

	reg := NewRegistry()
	reg.Register("finishes_pipeline", func(_ context.Context, _ []byte, _ *workerctx.Context) (JobResult, error) {
		return Ok(nil), nil
	})

	d := newTestDispatcher(gw, reg)
	require.NoError(t, d.Dispatch(ctx, id))

	p, err := gw.GetPipeline(ctx, pipelineID)
	require.NoError(t, err)
	assert.Equal(t, jobmodel.PipelineSucceeded, p.Status, "the only job in the pipeline succeeded, so coordination should settle it")
}

func TestDispatch_UnregisteredFunctionErrorsWithoutCommitting(t *testing.T) {
	ctx := context.Background()
	gw := persistencetest.New()
	id := newTestJob(t, gw, "nonexistent", nil)

	d := newTestDispatcher(gw, NewRegistry())
	err := d.Dispatch(ctx, id)
	require.Error(t, err)

	job, jerr := gw.GetJobByID(ctx, id)
	require.NoError(t, jerr)
	assert.Equal(t, jobmodel.JobPending, job.Status, "nothing should have been mutated for an unknown job function")
}
