package jobs

import "encoding/json"

// ColumnMetadata describes one expected column of a scores or counts file:
// the header name the uploader declared for it and the kind of value it
// holds. create_variants_for_score_set validates the uploaded file's header
// against this before touching row data.
type ColumnMetadata struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // "hgvs", "score", "count", or "auxiliary"
}

// CreateVariantsParams is create_variants_for_score_set's job_params shape.
type CreateVariantsParams struct {
	ScoreSetID          int64            `json:"score_set_id"`
	ScoresFileKey       string           `json:"scores_file_key"`
	CountsFileKey       string           `json:"counts_file_key,omitempty"`
	ScoreColumnsMeta    []ColumnMetadata `json:"score_columns_metadata"`
	CountColumnsMeta    []ColumnMetadata `json:"count_columns_metadata,omitempty"`
	ObjectStorageBucket string           `json:"object_storage_bucket"`
}

// MapVariantsParams is map_variants_for_score_set's job_params shape.
type MapVariantsParams struct {
	ScoreSetID int64 `json:"score_set_id"`
}

// SubmitCARParams is submit_score_set_mappings_to_car's job_params shape.
type SubmitCARParams struct {
	ScoreSetID    int64  `json:"score_set_id"`
	CorrelationID string `json:"correlation_id"`
}

// SubmitLDHParams is submit_score_set_mappings_to_ldh's job_params shape.
type SubmitLDHParams struct {
	ScoreSetID    int64  `json:"score_set_id"`
	CorrelationID string `json:"correlation_id"`
}

// LinkClingenParams is link_clingen_variants's job_params shape.
type LinkClingenParams struct {
	ScoreSetID    int64  `json:"score_set_id"`
	CorrelationID string `json:"correlation_id"`
	Attempt       int    `json:"attempt"`
}

// LinkGnomadParams is link_gnomad_variants's job_params shape.
type LinkGnomadParams struct {
	ScoreSetID    int64  `json:"score_set_id"`
	CorrelationID string `json:"correlation_id"`
}

// PollUniprotParams is poll_uniprot_mapping_jobs_for_score_set's job_params
// shape. SubmittedJobIDs maps a target gene id to the UniProt job id the
// submitting step stored for it. The poll job never rewrites this map: each
// run re-checks every id and skips the ones still pending.
type PollUniprotParams struct {
	ScoreSetID int64 `json:"score_set_id"`

	// SubmittedJobIDs maps target_gene_id (as a string) to the UniProt
	// job id the submitting step received for it.
	SubmittedJobIDs map[string]string `json:"submitted_job_ids"`

	// Accessions maps target_gene_id (as a string) to the UniProt
	// accession that was submitted for it, so a ready result's
	// from-accession can be matched back to the originating target gene.
	Accessions map[string]string `json:"accessions"`
}

// RefreshClinvarControlsParams is refresh_clinvar_controls's job_params shape.
type RefreshClinvarControlsParams struct {
	ScoreSetID int64 `json:"score_set_id"`
	Year       int   `json:"year"`
	Month      int   `json:"month"`
}

// mustJSON marshals v, falling back to an empty object on failure; used
// only for building processing_errors/clinical-control payloads from
// values that are always marshalable in practice.
func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
