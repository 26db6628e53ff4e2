package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mavedb/worker/internal/jobserr"
)

func TestDecodeParams(t *testing.T) {
	t.Run("decodes valid json into the target type", func(t *testing.T) {
		params, err := decodeParams[MapVariantsParams]([]byte(`{"score_set_id": 42}`))
		require.NoError(t, err)
		assert.Equal(t, int64(42), params.ScoreSetID)
	})

	t.Run("wraps malformed json as a ValidationError", func(t *testing.T) {
		_, err := decodeParams[MapVariantsParams]([]byte(`{not json`))
		require.Error(t, err)
		var valErr *jobserr.ValidationError
		assert.ErrorAs(t, err, &valErr)
	})
}

func TestChainJob(t *testing.T) {
	t.Run("inserts a pending follow-on job and enqueues it", func(t *testing.T) {
		s := newFakeStore()
		jobID := newJob(s, "submit_score_set_mappings_to_car")
		q := &fakeQueue{}
		wc := newWorkerCtx(s, jobID, q, nil, nil, testConfig())
		wc.PipelineID = nil

		newID, urn, err := chainJob(context.Background(), wc, "submit_score_set_mappings_to_ldh", SubmitLDHParams{ScoreSetID: 7}, 0)
		require.NoError(t, err)
		assert.NotEmpty(t, urn)

		inserted, err := s.GetJobByID(context.Background(), newID)
		require.NoError(t, err)
		assert.Equal(t, "submit_score_set_mappings_to_ldh", inserted.JobFunction)

		require.Len(t, q.enqueued, 1)
		assert.Equal(t, "submit_score_set_mappings_to_ldh", q.enqueued[0].FunctionName)
		assert.Equal(t, newID, q.enqueued[0].JobID)
	})

	t.Run("wraps a queue rejection as an EnqueueError", func(t *testing.T) {
		s := newFakeStore()
		jobID := newJob(s, "submit_score_set_mappings_to_car")
		q := &fakeQueue{fail: true}
		wc := newWorkerCtx(s, jobID, q, nil, nil, testConfig())

		_, _, err := chainJob(context.Background(), wc, "submit_score_set_mappings_to_ldh", SubmitLDHParams{ScoreSetID: 7}, 0)
		require.Error(t, err)
		var enqErr *jobserr.EnqueueError
		assert.ErrorAs(t, err, &enqErr)
	})
}
