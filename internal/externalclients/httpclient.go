package externalclients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker"
)

// doJSON performs req through breaker with exponential-backoff retry on
// transient network errors (not on 4xx/5xx application responses, which
// callers classify themselves), returning the raw response body.
func doJSON(ctx context.Context, client *http.Client, breaker *gobreaker.CircuitBreaker, req *http.Request) ([]byte, *http.Response, error) {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))

	var body []byte
	var resp *http.Response
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		result, breakerErr := breaker.Execute(func() (any, error) {
			r, err := client.Do(req.Clone(ctx))
			if err != nil {
				return nil, retry.RetryableError(err)
			}
			return r, nil
		})
		if breakerErr != nil {
			if breakerErr == gobreaker.ErrOpenState || breakerErr == gobreaker.ErrTooManyRequests {
				return breakerErr
			}
			return retry.RetryableError(breakerErr)
		}
		resp = result.(*http.Response)
		defer resp.Body.Close()
		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return retry.RetryableError(fmt.Errorf("read response body: %w", readErr))
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return body, resp, nil
}
