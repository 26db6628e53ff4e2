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

// UniProtMapper is the UniProt ID-mapping client from spec §6. Submissions
// are asynchronous: Submit returns a job id, CheckReady polls it, and
// GetResults/ExtractID fetch and shape the final mapping once ready.
type UniProtMapper interface {
	Submit(ctx context.Context, fromDB, toDB string, accessions []string) (jobID string, err error)
	CheckReady(ctx context.Context, jobID string) (bool, error)
	GetResults(ctx context.Context, jobID string) (json.RawMessage, error)
	ExtractID(results json.RawMessage) (map[string]string, error)
}

type HTTPUniProtMapper struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
}

func NewHTTPUniProtMapper(endpoint string) *HTTPUniProtMapper {
	return &HTTPUniProtMapper{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		breaker:  newBreaker("uniprot", 30*time.Second),
	}
}

func (u *HTTPUniProtMapper) Submit(ctx context.Context, fromDB, toDB string, accessions []string) (string, error) {
	form := url.Values{
		"from": {fromDB},
		"to":   {toDB},
		"ids":  {strings.Join(accessions, ",")},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint+"/idmapping/run", nil)
	if err != nil {
		return "", fmt.Errorf("externalclients: build UniProt submit request: %w", err)
	}
	req.URL.RawQuery = form.Encode()

	body, resp, err := doJSON(ctx, u.client, u.breaker, req)
	if err != nil {
		return "", fmt.Errorf("externalclients: UniProt submission failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("externalclients: UniProt submit returned status %d", resp.StatusCode)
	}

	var submitResp struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(body, &submitResp); err != nil {
		return "", fmt.Errorf("externalclients: decode UniProt submit response: %w", err)
	}
	return submitResp.JobID, nil
}

func (u *HTTPUniProtMapper) CheckReady(ctx context.Context, jobID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.endpoint+"/idmapping/status/"+jobID, nil)
	if err != nil {
		return false, fmt.Errorf("externalclients: build UniProt status request: %w", err)
	}

	body, resp, err := doJSON(ctx, u.client, u.breaker, req)
	if err != nil {
		return false, fmt.Errorf("externalclients: UniProt status check failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("externalclients: UniProt status returned status %d", resp.StatusCode)
	}

	var status struct {
		JobStatus string `json:"jobStatus"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return false, fmt.Errorf("externalclients: decode UniProt status response: %w", err)
	}
	return status.JobStatus == "FINISHED", nil
}

func (u *HTTPUniProtMapper) GetResults(ctx context.Context, jobID string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.endpoint+"/idmapping/results/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("externalclients: build UniProt results request: %w", err)
	}

	body, resp, err := doJSON(ctx, u.client, u.breaker, req)
	if err != nil {
		return nil, fmt.Errorf("externalclients: UniProt results fetch failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("externalclients: UniProt results returned status %d", resp.StatusCode)
	}
	return body, nil
}

// ExtractID shapes a results payload of {results: [{from, to}, ...]} into an
// accession-to-UniProt-id map; ambiguous (multi-hit) accessions are dropped
// since only unambiguous mappings are applied, per spec §4.6.
func (u *HTTPUniProtMapper) ExtractID(results json.RawMessage) (map[string]string, error) {
	var parsed struct {
		Results []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"results"`
	}
	if err := json.Unmarshal(results, &parsed); err != nil {
		return nil, fmt.Errorf("externalclients: decode UniProt results: %w", err)
	}

	counts := map[string]int{}
	mapping := map[string]string{}
	for _, r := range parsed.Results {
		counts[r.From]++
		mapping[r.From] = r.To
	}
	for from, count := range counts {
		if count > 1 {
			delete(mapping, from)
		}
	}
	return mapping, nil
}
