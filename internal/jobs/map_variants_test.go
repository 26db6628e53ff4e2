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

func seedVariants(s *fakeStore, scoreSetID int64, urns ...string) []scoreset.Variant {
	variants := make([]scoreset.Variant, len(urns))
	for i, urn := range urns {
		variants[i] = scoreset.Variant{URN: urn}
	}
	out, _ := s.ReplaceVariants(context.Background(), scoreSetID, variants)
	return out
}

func refSeqs() map[string]json.RawMessage {
	return map[string]json.RawMessage{
		"genomic": json.RawMessage(`{"ref":"genomic"}`),
	}
}

func TestMapVariantsForScoreSet(t *testing.T) {
	t.Run("maps every variant and marks success", func(t *testing.T) {
		s := newFakeStore()
		seedScoreSet(s, 1)
		variants := seedVariants(s, 1, "urn:v1", "urn:v2")
		s.targetGenes[1] = []scoreset.TargetGene{{ID: 1, ScoreSetID: 1}}
		jobID := newJob(s, "map_variants_for_score_set")

		mapper := &fakeVRSMapper{result: &externalclients.MappingResult{
			MappedScores: []externalclients.MappedScore{
				{VariantURN: "urn:v1", PostMapped: json.RawMessage(`{"hgvs":"c.1A>T"}`)},
				{VariantURN: "urn:v2", PostMapped: json.RawMessage(`{"hgvs":"c.2A>T"}`)},
			},
			ReferenceSequences: refSeqs(),
		}}
		clients := &externalclients.Clients{VRS: mapper}
		wc := newWorkerCtx(s, jobID, &fakeQueue{}, nil, clients, testConfig())

		payload, _ := json.Marshal(MapVariantsParams{ScoreSetID: 1})
		result, err := MapVariantsForScoreSet(context.Background(), payload, wc)
		require.NoError(t, err)
		assert.Equal(t, decorator.StatusOK, result.Status)

		ss, _ := s.GetScoreSet(context.Background(), 1)
		assert.Equal(t, scoreset.MappingSuccess, ss.MappingState)

		mapped, _ := s.ListCurrentMappedVariants(context.Background(), 1)
		assert.Len(t, mapped, 2)
		_ = variants
	})

	t.Run("partial mapping is incomplete but still ok", func(t *testing.T) {
		s := newFakeStore()
		seedScoreSet(s, 1)
		seedVariants(s, 1, "urn:v1", "urn:v2")
		s.targetGenes[1] = []scoreset.TargetGene{{ID: 1, ScoreSetID: 1}}
		jobID := newJob(s, "map_variants_for_score_set")

		mapper := &fakeVRSMapper{result: &externalclients.MappingResult{
			MappedScores: []externalclients.MappedScore{
				{VariantURN: "urn:v1", PostMapped: json.RawMessage(`{"hgvs":"c.1A>T"}`)},
			},
			ReferenceSequences: refSeqs(),
		}}
		clients := &externalclients.Clients{VRS: mapper}
		wc := newWorkerCtx(s, jobID, &fakeQueue{}, nil, clients, testConfig())

		payload, _ := json.Marshal(MapVariantsParams{ScoreSetID: 1})
		result, err := MapVariantsForScoreSet(context.Background(), payload, wc)
		require.NoError(t, err)
		assert.Equal(t, decorator.StatusOK, result.Status)

		ss, _ := s.GetScoreSet(context.Background(), 1)
		assert.Equal(t, scoreset.MappingIncomplete, ss.MappingState)
	})

	t.Run("nil mapping result is a fatal document-level failure", func(t *testing.T) {
		s := newFakeStore()
		seedScoreSet(s, 1)
		seedVariants(s, 1, "urn:v1")
		jobID := newJob(s, "map_variants_for_score_set")

		clients := &externalclients.Clients{VRS: &fakeVRSMapper{result: nil}}
		wc := newWorkerCtx(s, jobID, &fakeQueue{}, nil, clients, testConfig())

		payload, _ := json.Marshal(MapVariantsParams{ScoreSetID: 1})
		result, err := MapVariantsForScoreSet(context.Background(), payload, wc)
		require.NoError(t, err)
		assert.Equal(t, decorator.StatusFailed, result.Status)

		ss, _ := s.GetScoreSet(context.Background(), 1)
		assert.Equal(t, scoreset.MappingFailed, ss.MappingState)
	})

	t.Run("empty mapped scores is a fatal document-level failure", func(t *testing.T) {
		s := newFakeStore()
		seedScoreSet(s, 1)
		seedVariants(s, 1, "urn:v1")
		jobID := newJob(s, "map_variants_for_score_set")

		clients := &externalclients.Clients{VRS: &fakeVRSMapper{result: &externalclients.MappingResult{
			ReferenceSequences: refSeqs(),
		}}}
		wc := newWorkerCtx(s, jobID, &fakeQueue{}, nil, clients, testConfig())

		payload, _ := json.Marshal(MapVariantsParams{ScoreSetID: 1})
		result, err := MapVariantsForScoreSet(context.Background(), payload, wc)
		require.NoError(t, err)
		assert.Equal(t, decorator.StatusFailed, result.Status)
	})

	t.Run("empty reference sequences is a fatal document-level failure", func(t *testing.T) {
		s := newFakeStore()
		seedScoreSet(s, 1)
		seedVariants(s, 1, "urn:v1")
		jobID := newJob(s, "map_variants_for_score_set")

		clients := &externalclients.Clients{VRS: &fakeVRSMapper{result: &externalclients.MappingResult{
			MappedScores: []externalclients.MappedScore{{VariantURN: "urn:v1", PostMapped: json.RawMessage(`{}`)}},
		}}}
		wc := newWorkerCtx(s, jobID, &fakeQueue{}, nil, clients, testConfig())

		payload, _ := json.Marshal(MapVariantsParams{ScoreSetID: 1})
		result, err := MapVariantsForScoreSet(context.Background(), payload, wc)
		require.NoError(t, err)
		assert.Equal(t, decorator.StatusFailed, result.Status)
	})
}
