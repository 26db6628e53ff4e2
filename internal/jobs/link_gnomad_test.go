package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mavedb/worker/internal/annotation"
	"github.com/mavedb/worker/internal/decorator"
	"github.com/mavedb/worker/internal/externalclients"
)

func TestLinkGnomadVariants(t *testing.T) {
	t.Run("links records by caid and records a success annotation", func(t *testing.T) {
		s := newFakeStore()
		seedScoreSet(s, 1)
		variants := seedVariants(s, 1, "urn:v1", "urn:v2")
		mv1 := seedMappedVariant(s, variants[0].ID, json.RawMessage(`{}`))
		_ = mv1
		if err := s.UpdateMappedVariantCAID(context.Background(), mv1, "CA001"); err != nil {
			t.Fatal(err)
		}
		jobID := newJob(s, "link_gnomad_variants")
		clients := &externalclients.Clients{Gnomad: &fakeGnomadClient{records: []externalclients.GnomadRecord{
			{CAID: "CA001", Frequency: json.RawMessage(`{"af":0.01}`)},
		}}}
		wc := newWorkerCtx(s, jobID, &fakeQueue{}, nil, clients, testConfig())

		payload, _ := json.Marshal(LinkGnomadParams{ScoreSetID: 1})
		result, err := LinkGnomadVariants(context.Background(), payload, wc)
		require.NoError(t, err)
		assert.Equal(t, decorator.StatusOK, result.Status)

		rec, err := s.CurrentAnnotation(context.Background(), variants[0].ID, annotation.TypeGnomadLinkage)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, annotation.StatusSuccess, rec.Status)
	})

	t.Run("gnomAD client error is a failed result", func(t *testing.T) {
		s := newFakeStore()
		seedScoreSet(s, 1)
		variants := seedVariants(s, 1, "urn:v1")
		mv1 := seedMappedVariant(s, variants[0].ID, json.RawMessage(`{}`))
		require.NoError(t, s.UpdateMappedVariantCAID(context.Background(), mv1, "CA001"))
		jobID := newJob(s, "link_gnomad_variants")
		clients := &externalclients.Clients{Gnomad: &fakeGnomadClient{err: errors.New("gnomad down")}}
		wc := newWorkerCtx(s, jobID, &fakeQueue{}, nil, clients, testConfig())

		payload, _ := json.Marshal(LinkGnomadParams{ScoreSetID: 1})
		result, err := LinkGnomadVariants(context.Background(), payload, wc)
		require.NoError(t, err)
		assert.Equal(t, decorator.StatusFailed, result.Status)
	})
}
