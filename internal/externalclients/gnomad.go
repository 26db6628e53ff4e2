package externalclients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// GnomadRecord is one gnomAD frequency/context record keyed by CAID.
type GnomadRecord struct {
	CAID      string          `json:"caid"`
	Frequency json.RawMessage `json:"frequency"`
	Context   json.RawMessage `json:"context"`
}

// GnomadClient is the gnomAD client from spec §6: look up records by CAID,
// then persist them against current MappedVariants.
type GnomadClient interface {
	DataForCAIDs(ctx context.Context, caids []string) ([]GnomadRecord, error)
}

type HTTPGnomadClient struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
}

func NewHTTPGnomadClient(endpoint string) *HTTPGnomadClient {
	return &HTTPGnomadClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
		breaker:  newBreaker("gnomad", 30*time.Second),
	}
}

func (g *HTTPGnomadClient) DataForCAIDs(ctx context.Context, caids []string) ([]GnomadRecord, error) {
	u := g.endpoint + "/variants?caids=" + url.QueryEscape(strings.Join(caids, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("externalclients: build gnomAD request: %w", err)
	}

	body, resp, err := doJSON(ctx, g.client, g.breaker, req)
	if err != nil {
		return nil, fmt.Errorf("externalclients: gnomAD lookup failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("externalclients: gnomAD returned status %d", resp.StatusCode)
	}

	var records []GnomadRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("externalclients: decode gnomAD response: %w", err)
	}
	return records, nil
}
