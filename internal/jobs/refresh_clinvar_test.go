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

func TestRefreshClinvarControls(t *testing.T) {
	newFixture := func(t *testing.T, caids []string) (*fakeStore, []int64) {
		s := newFakeStore()
		seedScoreSet(s, 1)
		urns := make([]string, len(caids))
		for i := range caids {
			urns[i] = "urn:v" + string(rune('1'+i))
		}
		variants := seedVariants(s, 1, urns...)
		mvIDs := make([]int64, len(variants))
		for i, v := range variants {
			mvID := seedMappedVariant(s, v.ID, json.RawMessage(`{}`))
			if caids[i] != "" {
				require.NoError(t, s.UpdateMappedVariantCAID(context.Background(), mvID, caids[i]))
			}
			mvIDs[i] = mvID
		}
		return s, mvIDs
	}

	t.Run("resolves a clinical control for a variant with a unique allele id", func(t *testing.T) {
		s, variants := newFixture(t, []string{"CA001"})
		jobID := newJob(s, "refresh_clinvar_controls")
		registry := &fakeAlleleRegistry{clinvarByCAID: map[string]string{"CA001": "A1"}}
		clinvar := &fakeClinvarClient{records: map[string]externalclients.ClinvarVariantRecord{
			"A1": {AlleleID: "A1", ClinicalSig: "Pathogenic"},
		}}
		clients := &externalclients.Clients{CAR: registry, ClinVar: clinvar}
		wc := newWorkerCtx(s, jobID, &fakeQueue{}, nil, clients, testConfig())

		payload, _ := json.Marshal(RefreshClinvarControlsParams{ScoreSetID: 1, Year: 2026, Month: 1})
		result, err := RefreshClinvarControls(context.Background(), payload, wc)
		require.NoError(t, err)
		assert.Equal(t, decorator.StatusOK, result.Status)

		rec, err := s.CurrentAnnotation(context.Background(), variantIDFor(s, variants[0]), annotation.TypeClinvarControl)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, annotation.StatusSuccess, rec.Status)
	})

	t.Run("variant with no CAID is skipped as missing_clingen_allele_id", func(t *testing.T) {
		s, variants := newFixture(t, []string{""})
		jobID := newJob(s, "refresh_clinvar_controls")
		clients := &externalclients.Clients{CAR: &fakeAlleleRegistry{}, ClinVar: &fakeClinvarClient{records: map[string]externalclients.ClinvarVariantRecord{}}}
		wc := newWorkerCtx(s, jobID, &fakeQueue{}, nil, clients, testConfig())

		payload, _ := json.Marshal(RefreshClinvarControlsParams{ScoreSetID: 1, Year: 2026, Month: 1})
		result, err := RefreshClinvarControls(context.Background(), payload, wc)
		require.NoError(t, err)
		assert.Equal(t, decorator.StatusOK, result.Status)

		rec, err := s.CurrentAnnotation(context.Background(), variantIDFor(s, variants[0]), annotation.TypeClinvarControl)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, annotation.StatusSkipped, rec.Status)
		assertFailureCategory(t, rec, "missing_clingen_allele_id")
	})

	t.Run("CAR lookup error records clingen_api_error", func(t *testing.T) {
		s, variants := newFixture(t, []string{"CA001"})
		jobID := newJob(s, "refresh_clinvar_controls")
		registry := &fakeAlleleRegistry{resolveErr: errors.New("CAR resolve failed")}
		clients := &externalclients.Clients{CAR: registry, ClinVar: &fakeClinvarClient{records: map[string]externalclients.ClinvarVariantRecord{}}}
		wc := newWorkerCtx(s, jobID, &fakeQueue{}, nil, clients, testConfig())

		payload, _ := json.Marshal(RefreshClinvarControlsParams{ScoreSetID: 1, Year: 2026, Month: 1})
		result, err := RefreshClinvarControls(context.Background(), payload, wc)
		require.NoError(t, err)
		assert.Equal(t, decorator.StatusOK, result.Status)

		rec, err := s.CurrentAnnotation(context.Background(), variantIDFor(s, variants[0]), annotation.TypeClinvarControl)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assertFailureCategory(t, rec, "clingen_api_error")
	})

	t.Run("no associated ClinVar allele id is skipped", func(t *testing.T) {
		s, variants := newFixture(t, []string{"CA001"})
		jobID := newJob(s, "refresh_clinvar_controls")
		registry := &fakeAlleleRegistry{clinvarByCAID: map[string]string{}}
		clients := &externalclients.Clients{CAR: registry, ClinVar: &fakeClinvarClient{records: map[string]externalclients.ClinvarVariantRecord{}}}
		wc := newWorkerCtx(s, jobID, &fakeQueue{}, nil, clients, testConfig())

		payload, _ := json.Marshal(RefreshClinvarControlsParams{ScoreSetID: 1, Year: 2026, Month: 1})
		result, err := RefreshClinvarControls(context.Background(), payload, wc)
		require.NoError(t, err)
		assert.Equal(t, decorator.StatusOK, result.Status)

		rec, err := s.CurrentAnnotation(context.Background(), variantIDFor(s, variants[0]), annotation.TypeClinvarControl)
		require.NoError(t, err)
		assertFailureCategory(t, rec, "no_associated_clinvar_allele_id")
	})

	t.Run("no matching ClinVar variant data is skipped", func(t *testing.T) {
		s, variants := newFixture(t, []string{"CA001"})
		jobID := newJob(s, "refresh_clinvar_controls")
		registry := &fakeAlleleRegistry{clinvarByCAID: map[string]string{"CA001": "A1"}}
		clients := &externalclients.Clients{CAR: registry, ClinVar: &fakeClinvarClient{records: map[string]externalclients.ClinvarVariantRecord{}}}
		wc := newWorkerCtx(s, jobID, &fakeQueue{}, nil, clients, testConfig())

		payload, _ := json.Marshal(RefreshClinvarControlsParams{ScoreSetID: 1, Year: 2026, Month: 1})
		result, err := RefreshClinvarControls(context.Background(), payload, wc)
		require.NoError(t, err)
		assert.Equal(t, decorator.StatusOK, result.Status)

		rec, err := s.CurrentAnnotation(context.Background(), variantIDFor(s, variants[0]), annotation.TypeClinvarControl)
		require.NoError(t, err)
		assertFailureCategory(t, rec, "no_clinvar_variant_data")
	})

	t.Run("a second mapped variant resolving the same allele id is skipped as ambiguous", func(t *testing.T) {
		s, variants := newFixture(t, []string{"CA001", "CA002"})
		jobID := newJob(s, "refresh_clinvar_controls")
		registry := &fakeAlleleRegistry{clinvarByCAID: map[string]string{"CA001": "A1", "CA002": "A1"}}
		clinvar := &fakeClinvarClient{records: map[string]externalclients.ClinvarVariantRecord{
			"A1": {AlleleID: "A1"},
		}}
		clients := &externalclients.Clients{CAR: registry, ClinVar: clinvar}
		wc := newWorkerCtx(s, jobID, &fakeQueue{}, nil, clients, testConfig())

		payload, _ := json.Marshal(RefreshClinvarControlsParams{ScoreSetID: 1, Year: 2026, Month: 1})
		result, err := RefreshClinvarControls(context.Background(), payload, wc)
		require.NoError(t, err)
		assert.Equal(t, decorator.StatusOK, result.Status)

		// Iteration order over the two mapped variants isn't guaranteed, so
		// exactly one resolves the shared allele id and the other is
		// rejected as ambiguous -- which one depends on processing order,
		// not variant identity.
		firstRec, err := s.CurrentAnnotation(context.Background(), variantIDFor(s, variants[0]), annotation.TypeClinvarControl)
		require.NoError(t, err)
		secondRec, err := s.CurrentAnnotation(context.Background(), variantIDFor(s, variants[1]), annotation.TypeClinvarControl)
		require.NoError(t, err)

		statuses := []annotation.Status{firstRec.Status, secondRec.Status}
		assert.ElementsMatch(t, []annotation.Status{annotation.StatusSuccess, annotation.StatusSkipped}, statuses)
		if firstRec.Status == annotation.StatusSkipped {
			assertFailureCategory(t, firstRec, "multi_variant_clingen_allele_id")
		} else {
			assertFailureCategory(t, secondRec, "multi_variant_clingen_allele_id")
		}
	})
}

// variantIDFor looks up the VariantID backing a known mapped variant id.
func variantIDFor(s *fakeStore, mappedVariantID int64) int64 {
	return s.mapped[mappedVariantID].VariantID
}

func assertFailureCategory(t *testing.T, rec *annotation.Record, want string) {
	t.Helper()
	var data struct {
		FailureCategory string `json:"failure_category"`
	}
	require.NoError(t, json.Unmarshal(rec.AnnotationData, &data))
	assert.Equal(t, want, data.FailureCategory)
}
