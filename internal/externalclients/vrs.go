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

// MappingResult is the VRS mapping service's response shape from spec §6:
// `{ mapped_scores: [...], reference_sequences: {...}, error_message?: str }`.
type MappingResult struct {
	MappedScores       []MappedScore             `json:"mapped_scores"`
	ReferenceSequences map[string]json.RawMessage `json:"reference_sequences"`
	ErrorMessage       string                     `json:"error_message,omitempty"`
}

// MappedScore is one variant's VRS mapping outcome.
type MappedScore struct {
	VariantURN        string          `json:"variant_urn"`
	PreMapped         json.RawMessage `json:"pre_mapped,omitempty"`
	PostMapped        json.RawMessage `json:"post_mapped,omitempty"`
	VRSRepresentation json.RawMessage `json:"vrs,omitempty"`
}

// VRSMapper calls the VRS mapping service. Score set is passed as an opaque
// JSON document; the job function is responsible for shaping it.
type VRSMapper interface {
	Map(ctx context.Context, scoreSet json.RawMessage) (*MappingResult, error)
}

// HTTPVRSMapper is the blocking-HTTP-backed VRSMapper, intended to be
// invoked only from an executor-pool goroutine per spec §4.6 ("calls the
// mapping service... off the event loop using an executor pool").
type HTTPVRSMapper struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
}

// NewHTTPVRSMapper builds a client against endpoint.
func NewHTTPVRSMapper(endpoint string) *HTTPVRSMapper {
	return &HTTPVRSMapper{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
		breaker:  newBreaker("vrs-mapping", 30*time.Second),
	}
}

func (m *HTTPVRSMapper) Map(ctx context.Context, scoreSet json.RawMessage) (*MappingResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+"/map", bytes.NewReader(scoreSet))
	if err != nil {
		return nil, fmt.Errorf("externalclients: build VRS mapping request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, resp, err := doJSON(ctx, m.client, m.breaker, req)
	if err != nil {
		return nil, fmt.Errorf("externalclients: VRS mapping request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("externalclients: VRS mapping service returned status %d", resp.StatusCode)
	}

	var result MappingResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("externalclients: decode VRS mapping response: %w", err)
	}
	return &result, nil
}
