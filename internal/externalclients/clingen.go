package externalclients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// RegisteredAllele is one ClinGen Allele Registry dispatch result.
type RegisteredAllele struct {
	HGVS string `json:"hgvs"`
	CAID string `json:"caid"`
}

// AlleleRegistry is the ClinGen Allele Registry (CAR) client from spec §6.
// ResolveClinvarAlleleID looks up the ClinVar allele id CAR has on file for
// a CAID, used by refresh_clinvar_controls to join a MappedVariant against
// the monthly ClinVar variant summary.
type AlleleRegistry interface {
	DispatchSubmissions(ctx context.Context, hgvsList []string) ([]RegisteredAllele, error)
	ResolveClinvarAlleleID(ctx context.Context, caid string) (string, error)
}

// HTTPAlleleRegistry calls CAR over HTTP. An empty endpoint disables
// submission, per spec §6's CAR_SUBMISSION_ENDPOINT knob — callers check
// Enabled() before calling DispatchSubmissions.
type HTTPAlleleRegistry struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
}

func NewHTTPAlleleRegistry(endpoint string) *HTTPAlleleRegistry {
	return &HTTPAlleleRegistry{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
		breaker:  newBreaker("clingen-car", 30*time.Second),
	}
}

// Enabled reports whether a submission endpoint was configured.
func (c *HTTPAlleleRegistry) Enabled() bool { return c.endpoint != "" }

func (c *HTTPAlleleRegistry) DispatchSubmissions(ctx context.Context, hgvsList []string) ([]RegisteredAllele, error) {
	payload, err := json.Marshal(struct {
		HGVS []string `json:"hgvs"`
	}{HGVS: hgvsList})
	if err != nil {
		return nil, fmt.Errorf("externalclients: encode CAR submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/alleles", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("externalclients: build CAR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, resp, err := doJSON(ctx, c.client, c.breaker, req)
	if err != nil {
		return nil, fmt.Errorf("externalclients: CAR submission failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("externalclients: CAR returned status %d", resp.StatusCode)
	}

	var alleles []RegisteredAllele
	if err := json.Unmarshal(body, &alleles); err != nil {
		return nil, fmt.Errorf("externalclients: decode CAR response: %w", err)
	}
	return alleles, nil
}

func (c *HTTPAlleleRegistry) ResolveClinvarAlleleID(ctx context.Context, caid string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/alleles/"+caid+"/clinvar", nil)
	if err != nil {
		return "", fmt.Errorf("externalclients: build CAR ClinVar lookup request: %w", err)
	}

	body, resp, err := doJSON(ctx, c.client, c.breaker, req)
	if err != nil {
		return "", fmt.Errorf("externalclients: CAR ClinVar lookup failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("externalclients: CAR ClinVar lookup returned status %d", resp.StatusCode)
	}

	var result struct {
		ClinvarAlleleID string `json:"clinvar_allele_id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("externalclients: decode CAR ClinVar lookup response: %w", err)
	}
	return result.ClinvarAlleleID, nil
}

// LDHSubmission is one document submitted to the Linked Data Hub, built
// from a (variant, mapped_variant, hgvs) triple per spec §4.6.
type LDHSubmission struct {
	VariantURN string          `json:"variant_urn"`
	HGVS       string          `json:"hgvs"`
	Document   json.RawMessage `json:"document"`
}

// Variation is the ClinGen variation document returned for a variant URN,
// used by link_clingen_variants to extract a CAID.
type Variation struct {
	URN  string `json:"urn"`
	CAID string `json:"caid"`
}

// LinkedDataHub is the ClinGen LDH client from spec §6: authenticate once,
// dispatch batched submissions, and look up a variation by URN.
type LinkedDataHub interface {
	Authenticate(ctx context.Context) error
	DispatchSubmissions(ctx context.Context, submissions []LDHSubmission, batchSize int) (successes, failures int, err error)
	GetClinGenVariation(ctx context.Context, urn string) (*Variation, error)
}

// HTTPLinkedDataHub calls LDH over HTTP. An empty endpoint disables
// submission, per spec §6's LDH_SUBMISSION_ENDPOINT knob.
type HTTPLinkedDataHub struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	token    string
}

func NewHTTPLinkedDataHub(endpoint string) *HTTPLinkedDataHub {
	return &HTTPLinkedDataHub{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
		breaker:  newBreaker("clingen-ldh", 30*time.Second),
	}
}

func (l *HTTPLinkedDataHub) Enabled() bool { return l.endpoint != "" }

func (l *HTTPLinkedDataHub) Authenticate(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint+"/auth", nil)
	if err != nil {
		return fmt.Errorf("externalclients: build LDH auth request: %w", err)
	}

	body, resp, err := doJSON(ctx, l.client, l.breaker, req)
	if err != nil {
		return fmt.Errorf("externalclients: LDH authentication failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("externalclients: LDH auth returned status %d", resp.StatusCode)
	}

	var auth struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &auth); err != nil {
		return fmt.Errorf("externalclients: decode LDH auth response: %w", err)
	}
	l.token = auth.Token
	return nil
}

func (l *HTTPLinkedDataHub) DispatchSubmissions(ctx context.Context, submissions []LDHSubmission, batchSize int) (int, int, error) {
	if batchSize <= 0 {
		batchSize = len(submissions)
	}

	var successes, failures int
	for start := 0; start < len(submissions); start += batchSize {
		end := min(start+batchSize, len(submissions))
		batch := submissions[start:end]

		payload, err := json.Marshal(batch)
		if err != nil {
			return successes, failures, fmt.Errorf("externalclients: encode LDH batch: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint+"/submissions", bytes.NewReader(payload))
		if err != nil {
			return successes, failures, fmt.Errorf("externalclients: build LDH submission request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if l.token != "" {
			req.Header.Set("Authorization", "Bearer "+l.token)
		}

		body, resp, err := doJSON(ctx, l.client, l.breaker, req)
		if err != nil {
			failures += len(batch)
			continue
		}
		if resp.StatusCode >= 300 {
			failures += len(batch)
			continue
		}

		var result struct {
			Accepted int `json:"accepted"`
			Rejected int `json:"rejected"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			failures += len(batch)
			continue
		}
		successes += result.Accepted
		failures += result.Rejected
	}
	return successes, failures, nil
}

func (l *HTTPLinkedDataHub) GetClinGenVariation(ctx context.Context, urn string) (*Variation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint+"/variations/"+urn, nil)
	if err != nil {
		return nil, fmt.Errorf("externalclients: build LDH variation request: %w", err)
	}
	if l.token != "" {
		req.Header.Set("Authorization", "Bearer "+l.token)
	}

	body, resp, err := doJSON(ctx, l.client, l.breaker, req)
	if err != nil {
		return nil, fmt.Errorf("externalclients: LDH variation lookup failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("externalclients: LDH variation lookup returned status %d", resp.StatusCode)
	}

	var v Variation
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("externalclients: decode LDH variation response: %w", err)
	}
	return &v, nil
}
