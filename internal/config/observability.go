package config

// ObservabilityConfig toggles the OpenTelemetry bridge for slog, mirroring
// the teacher's MONO_OTEL_ENABLED knob.
type ObservabilityConfig struct {
	OTelEnabled   bool   `env:"MAVEDB_WORKER_OTEL_ENABLED"`
	OTelCollector string `env:"MAVEDB_WORKER_OTEL_COLLECTOR"`
}
