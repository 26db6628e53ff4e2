package externalclients

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// ClinvarVariantRecord is one row of the monthly ClinVar variant summary,
// keyed by allele id.
type ClinvarVariantRecord struct {
	AlleleID      string
	ClinicalSig   string
	ReviewStatus  string
	Phenotype     string
	ChromosomeAcc string
	Raw           map[string]string
}

// ClinvarClient is the ClinVar client from spec §6: fetch the month's
// variant summary TSV and parse it into a lookup table keyed by allele id.
type ClinvarClient interface {
	FetchVariantSummaryTSV(ctx context.Context, year, month int) ([]byte, error)
	Parse(tsv []byte) (map[string]ClinvarVariantRecord, error)
}

type HTTPClinvarClient struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
}

func NewHTTPClinvarClient(endpoint string) *HTTPClinvarClient {
	return &HTTPClinvarClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Minute},
		breaker:  newBreaker("clinvar", time.Minute),
	}
}

func (c *HTTPClinvarClient) FetchVariantSummaryTSV(ctx context.Context, year, month int) ([]byte, error) {
	u := fmt.Sprintf("%s/variant_summary/%04d-%02d.txt.gz", c.endpoint, year, month)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("externalclients: build ClinVar fetch request: %w", err)
	}

	body, resp, err := doJSON(ctx, c.client, c.breaker, req)
	if err != nil {
		return nil, fmt.Errorf("externalclients: ClinVar fetch failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("externalclients: ClinVar summary fetch returned status %d", resp.StatusCode)
	}
	return body, nil
}

// Parse reads a tab-separated ClinVar variant summary, keyed by the
// #AlleleID column, into the no_clinvar_variant_data-eligible lookup map
// refresh_clinvar_controls walks per variant.
func (c *HTTPClinvarClient) Parse(tsv []byte) (map[string]ClinvarVariantRecord, error) {
	scanner := bufio.NewScanner(bytes.NewReader(tsv))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var header []string
	records := map[string]ClinvarVariantRecord{}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if header == nil {
			header = fields
			continue
		}

		raw := make(map[string]string, len(fields))
		for i, col := range header {
			if i < len(fields) {
				raw[col] = fields[i]
			}
		}

		alleleID := raw["#AlleleID"]
		if alleleID == "" {
			alleleID = raw["AlleleID"]
		}
		if alleleID == "" {
			continue
		}

		records[alleleID] = ClinvarVariantRecord{
			AlleleID:      alleleID,
			ClinicalSig:   raw["ClinicalSignificance"],
			ReviewStatus:  raw["ReviewStatus"],
			Phenotype:     raw["PhenotypeList"],
			ChromosomeAcc: raw["ChromosomeAccession"],
			Raw:           raw,
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("externalclients: scan ClinVar TSV: %w", err)
	}
	return records, nil
}
