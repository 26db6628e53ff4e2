package jobs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mavedb/worker/internal/decorator"
	"github.com/mavedb/worker/internal/externalclients"
	"github.com/mavedb/worker/internal/scoreset"
)

func TestPollUniprotMappingJobsForScoreSet(t *testing.T) {
	t.Run("skipped when there are no outstanding submissions", func(t *testing.T) {
		s := newFakeStore()
		jobID := newJob(s, "poll_uniprot_mapping_jobs_for_score_set")
		wc := newWorkerCtx(s, jobID, &fakeQueue{}, nil, &externalclients.Clients{}, testConfig())

		payload, _ := json.Marshal(PollUniprotParams{ScoreSetID: 1})
		result, err := PollUniprotMappingJobsForScoreSet(context.Background(), payload, wc)
		require.NoError(t, err)
		assert.Equal(t, decorator.StatusSkipped, result.Status)
	})

	t.Run("resolved mapping updates the target gene's UniProt data", func(t *testing.T) {
		s := newFakeStore()
		seedScoreSet(s, 1)
		s.targetGenes[1] = []scoreset.TargetGene{{ID: 1, ScoreSetID: 1}}
		jobID := newJob(s, "poll_uniprot_mapping_jobs_for_score_set")
		results := json.RawMessage(`{"results":[{"from":"P12345","to":"Q9Y6K9"}]}`)
		mapper := &fakeUniProtMapper{
			ready:    map[string]bool{"job-1": true},
			results:  map[string]json.RawMessage{"job-1": results},
			mappings: map[string]map[string]string{"job-1": {"P12345": "Q9Y6K9"}},
		}
		clients := &externalclients.Clients{UniProt: mapper}
		wc := newWorkerCtx(s, jobID, &fakeQueue{}, nil, clients, testConfig())

		payload, _ := json.Marshal(PollUniprotParams{
			ScoreSetID:      1,
			SubmittedJobIDs: map[string]string{"1": "job-1"},
			Accessions:      map[string]string{"1": "P12345"},
		})
		result, err := PollUniprotMappingJobsForScoreSet(context.Background(), payload, wc)
		require.NoError(t, err)
		assert.Equal(t, decorator.StatusOK, result.Status)

		genes, _ := s.ListTargetGenes(context.Background(), 1)
		require.Len(t, genes, 1)
		assert.Equal(t, "Q9Y6K9", genes[0].UniProtAccID)
	})

	t.Run("not-ready jobs are skipped, not errors", func(t *testing.T) {
		s := newFakeStore()
		seedScoreSet(s, 1)
		s.targetGenes[1] = []scoreset.TargetGene{{ID: 1, ScoreSetID: 1}}
		jobID := newJob(s, "poll_uniprot_mapping_jobs_for_score_set")
		mapper := &fakeUniProtMapper{ready: map[string]bool{"job-1": false}}
		clients := &externalclients.Clients{UniProt: mapper}
		wc := newWorkerCtx(s, jobID, &fakeQueue{}, nil, clients, testConfig())

		payload, _ := json.Marshal(PollUniprotParams{
			ScoreSetID:      1,
			SubmittedJobIDs: map[string]string{"1": "job-1"},
			Accessions:      map[string]string{"1": "P12345"},
		})
		result, err := PollUniprotMappingJobsForScoreSet(context.Background(), payload, wc)
		require.NoError(t, err)
		assert.Equal(t, decorator.StatusSkipped, result.Status)
	})

	t.Run("ambiguous mapping leaves the target gene untouched", func(t *testing.T) {
		s := newFakeStore()
		seedScoreSet(s, 1)
		s.targetGenes[1] = []scoreset.TargetGene{{ID: 1, ScoreSetID: 1}}
		jobID := newJob(s, "poll_uniprot_mapping_jobs_for_score_set")
		results := json.RawMessage(`{"results":[{"from":"P12345","to":"Q1"},{"from":"P12345","to":"Q2"}]}`)
		mapper := &fakeUniProtMapper{
			ready:    map[string]bool{"job-1": true},
			results:  map[string]json.RawMessage{"job-1": results},
			mappings: map[string]map[string]string{"job-1": {}},
		}
		clients := &externalclients.Clients{UniProt: mapper}
		wc := newWorkerCtx(s, jobID, &fakeQueue{}, nil, clients, testConfig())

		payload, _ := json.Marshal(PollUniprotParams{
			ScoreSetID:      1,
			SubmittedJobIDs: map[string]string{"1": "job-1"},
			Accessions:      map[string]string{"1": "P12345"},
		})
		result, err := PollUniprotMappingJobsForScoreSet(context.Background(), payload, wc)
		require.NoError(t, err)
		assert.Equal(t, decorator.StatusSkipped, result.Status)

		genes, _ := s.ListTargetGenes(context.Background(), 1)
		assert.Empty(t, genes[0].UniProtAccID)
	})
}
