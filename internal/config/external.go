package config

import "fmt"

// ExternalConfig holds the configuration knobs spec §6 names for the
// external-service clients and the linking job functions that call them.
type ExternalConfig struct {
	// LDHSubmissionEndpoint and CARSubmissionEndpoint disable their
	// respective submission when empty.
	LDHSubmissionEndpoint string `env:"LDH_SUBMISSION_ENDPOINT"`
	CARSubmissionEndpoint string `env:"CAR_SUBMISSION_ENDPOINT"`

	// ClinGenSubmissionEnabled is the global on/off switch; both CAR and
	// LDH submission are skipped when false regardless of endpoint.
	ClinGenSubmissionEnabled bool `env:"CLIN_GEN_SUBMISSION_ENABLED"`

	// VRSMappingEndpoint, GnomadEndpoint, UniProtEndpoint, and
	// ClinVarEndpoint are the remaining external-service base URLs.
	VRSMappingEndpoint string `env:"VRS_MAPPING_ENDPOINT"`
	GnomadEndpoint     string `env:"GNOMAD_ENDPOINT"`
	UniProtEndpoint    string `env:"UNIPROT_ENDPOINT"`
	ClinVarEndpoint    string `env:"CLINVAR_ENDPOINT"`

	// LinkedDataRetryThreshold is the ratio of linkage failures above
	// which link_clingen_variants re-enqueues itself instead of chaining
	// link_gnomad_variants; must be in [0, 1].
	LinkedDataRetryThreshold float64 `env:"LINKED_DATA_RETRY_THRESHOLD"`

	// EnqueueBackoffAttemptLimit bounds how many times link_clingen_variants
	// may re-enqueue itself before giving up; must be >= 1.
	EnqueueBackoffAttemptLimit int `env:"ENQUEUE_BACKOFF_ATTEMPT_LIMIT"`

	// LinkingBackoffSeconds is the defer delay applied to each
	// re-enqueue; must be >= 0.
	LinkingBackoffSeconds int `env:"LINKING_BACKOFF_IN_SECONDS"`

	// DefaultLDHSubmissionBatchSize bounds how many LDHSubmissions are
	// sent per LinkedDataHub.DispatchSubmissions call; must be > 0.
	DefaultLDHSubmissionBatchSize int `env:"DEFAULT_LDH_SUBMISSION_BATCH_SIZE"`
}

// Validate validates the external-service configuration.
func (c *ExternalConfig) Validate() error {
	if c.LinkedDataRetryThreshold < 0 || c.LinkedDataRetryThreshold > 1 {
		return fmt.Errorf("LINKED_DATA_RETRY_THRESHOLD must be in [0, 1], got %v", c.LinkedDataRetryThreshold)
	}
	if c.EnqueueBackoffAttemptLimit < 1 {
		return fmt.Errorf("ENQUEUE_BACKOFF_ATTEMPT_LIMIT must be >= 1, got %d", c.EnqueueBackoffAttemptLimit)
	}
	if c.LinkingBackoffSeconds < 0 {
		return fmt.Errorf("LINKING_BACKOFF_IN_SECONDS must be >= 0, got %d", c.LinkingBackoffSeconds)
	}
	if c.DefaultLDHSubmissionBatchSize < 1 {
		return fmt.Errorf("DEFAULT_LDH_SUBMISSION_BATCH_SIZE must be > 0, got %d", c.DefaultLDHSubmissionBatchSize)
	}
	return nil
}

// LDHEnabled reports whether LDH submission is turned on.
func (c *ExternalConfig) LDHEnabled() bool {
	return c.ClinGenSubmissionEnabled && c.LDHSubmissionEndpoint != ""
}

// CAREnabled reports whether CAR submission is turned on.
func (c *ExternalConfig) CAREnabled() bool {
	return c.ClinGenSubmissionEnabled && c.CARSubmissionEndpoint != ""
}
