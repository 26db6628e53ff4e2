// Package externalclients implements the narrow third-party client
// interfaces named in spec §6: VRS mapping, ClinGen Allele Registry (CAR),
// ClinGen Linked Data Hub (LDH), gnomAD, UniProt ID-mapping, and ClinVar.
// Each HTTP-backed implementation runs its calls through a per-service
// circuit breaker, grounded on the gobreaker.Settings shape the kubernaut
// pack repo wires up for its outbound notification channels.
package externalclients

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// newBreaker builds a gobreaker.CircuitBreaker that trips after three
// consecutive failures and probes again after timeout, logging every state
// transition — the same shape kubernaut's circuit breaker manager wires for
// its outbound notification channels.
func newBreaker(name string, timeout time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    10 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "client", name, "from", from, "to", to)
		},
	})
}
