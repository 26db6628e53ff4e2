package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mavedb/worker/internal/config"
	"github.com/mavedb/worker/internal/externalclients"
)

// testConfig returns a Config with every external-job knob set to a
// permissive, deterministic default; individual tests override the fields
// they care about.
func testConfig() *config.Config {
	return &config.Config{
		Worker: config.WorkerConfig{ExecutorPoolSize: 4, DefaultMaxRetries: 3},
		External: config.ExternalConfig{
			ClinGenSubmissionEnabled:      true,
			CARSubmissionEndpoint:         "https://car.example.test",
			LDHSubmissionEndpoint:         "https://ldh.example.test",
			LinkedDataRetryThreshold:      0.5,
			EnqueueBackoffAttemptLimit:    3,
			LinkingBackoffSeconds:        30,
			DefaultLDHSubmissionBatchSize: 50,
		},
	}
}

// fakeVRSMapper returns a fixed MappingResult or error.
type fakeVRSMapper struct {
	result *externalclients.MappingResult
	err    error
}

func (f *fakeVRSMapper) Map(context.Context, json.RawMessage) (*externalclients.MappingResult, error) {
	return f.result, f.err
}

// fakeAlleleRegistry stubs CAR: DispatchSubmissions and the ClinVar-allele
// lookup refresh_clinvar_controls needs.
type fakeAlleleRegistry struct {
	alleles         []externalclients.RegisteredAllele
	dispatchErr     error
	clinvarByCAID   map[string]string
	resolveErr      error
}

func (f *fakeAlleleRegistry) DispatchSubmissions(context.Context, []string) ([]externalclients.RegisteredAllele, error) {
	return f.alleles, f.dispatchErr
}
func (f *fakeAlleleRegistry) ResolveClinvarAlleleID(_ context.Context, caid string) (string, error) {
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return f.clinvarByCAID[caid], nil
}

// fakeLinkedDataHub stubs LDH's auth/dispatch/variation lookup surface.
type fakeLinkedDataHub struct {
	authErr      error
	successes    int
	failures     int
	dispatchErr  error
	variationsByURN map[string]*externalclients.Variation
	variationErr    error
}

func (f *fakeLinkedDataHub) Authenticate(context.Context) error { return f.authErr }
func (f *fakeLinkedDataHub) DispatchSubmissions(context.Context, []externalclients.LDHSubmission, int) (int, int, error) {
	return f.successes, f.failures, f.dispatchErr
}
func (f *fakeLinkedDataHub) GetClinGenVariation(_ context.Context, urn string) (*externalclients.Variation, error) {
	if f.variationErr != nil {
		return nil, f.variationErr
	}
	v, ok := f.variationsByURN[urn]
	if !ok {
		return nil, fmt.Errorf("no variation stubbed for %s", urn)
	}
	return v, nil
}

// fakeGnomadClient stubs the gnomAD batch lookup.
type fakeGnomadClient struct {
	records []externalclients.GnomadRecord
	err     error
}

func (f *fakeGnomadClient) DataForCAIDs(context.Context, []string) ([]externalclients.GnomadRecord, error) {
	return f.records, f.err
}

// fakeUniProtMapper stubs the async submit/poll/extract flow.
type fakeUniProtMapper struct {
	ready       map[string]bool
	results     map[string]json.RawMessage
	mappings    map[string]map[string]string
	readyErr    error
	resultsErr  error
	extractErr  error
}

func (f *fakeUniProtMapper) Submit(context.Context, string, string, []string) (string, error) {
	return "", fmt.Errorf("not used by these tests")
}
func (f *fakeUniProtMapper) CheckReady(_ context.Context, jobID string) (bool, error) {
	if f.readyErr != nil {
		return false, f.readyErr
	}
	return f.ready[jobID], nil
}
func (f *fakeUniProtMapper) GetResults(_ context.Context, jobID string) (json.RawMessage, error) {
	if f.resultsErr != nil {
		return nil, f.resultsErr
	}
	return f.results[jobID], nil
}
func (f *fakeUniProtMapper) ExtractID(results json.RawMessage) (map[string]string, error) {
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	for jobID, raw := range f.results {
		if string(raw) == string(results) {
			return f.mappings[jobID], nil
		}
	}
	return nil, fmt.Errorf("no mapping stubbed for result")
}

// fakeClinvarClient stubs the monthly variant summary fetch/parse.
type fakeClinvarClient struct {
	tsv     []byte
	fetchErr error
	records map[string]externalclients.ClinvarVariantRecord
}

func (f *fakeClinvarClient) FetchVariantSummaryTSV(context.Context, int, int) ([]byte, error) {
	return f.tsv, f.fetchErr
}
func (f *fakeClinvarClient) Parse([]byte) (map[string]externalclients.ClinvarVariantRecord, error) {
	return f.records, nil
}
