// Package scoreset is the narrow, opaque-record view onto the MaveDB
// domain schema (score sets, variants, mapped variants, target genes,
// clinical controls) that the job functions need. Per spec §1's Non-goals,
// the domain schema itself — experiments, score sets, target genes,
// variants, mapped variants, clinical controls — is an external
// collaborator; this package only exposes what the job functions touch,
// reached through a persistence interface the same way JobRun/Pipeline are.
package scoreset

import (
	"context"
	"encoding/json"
)

// ProcessingState tracks create_variants_for_score_set's outcome.
type ProcessingState string

const (
	ProcessingNotAttempted ProcessingState = "not_attempted"
	ProcessingSuccess      ProcessingState = "success"
	ProcessingFailed       ProcessingState = "failed"
)

// MappingState tracks map_variants_for_score_set's outcome.
type MappingState string

const (
	MappingNotAttempted MappingState = "not_attempted"
	MappingQueued       MappingState = "queued"
	MappingIncomplete   MappingState = "incomplete"
	MappingFailed       MappingState = "failed"
	MappingSuccess      MappingState = "success"
)

// AnnotationLayer is the closed set of reference-metadata layers a
// MappedVariant's pre/post-mapped representation is keyed by.
type AnnotationLayer string

const (
	LayerGenomic AnnotationLayer = "genomic"
	LayerCDNA    AnnotationLayer = "cdna"
	LayerProtein AnnotationLayer = "protein"
)

// ScoreSet is the opaque score set row job functions read and update.
type ScoreSet struct {
	ID               int64
	URN              string
	TargetGeneIDs    []int64
	ProcessingState  ProcessingState
	MappingState     MappingState
	ProcessingErrors json.RawMessage
}

// Variant is one row of a score set's variant table.
type Variant struct {
	ID         int64
	ScoreSetID int64
	URN        string
}

// MappedVariant is a variant's VRS mapping outcome. Current is the
// "one-current-at-a-time" flag create/map jobs maintain per variant.
type MappedVariant struct {
	ID         int64
	VariantID  int64
	Current    bool
	PreMapped  json.RawMessage
	PostMapped json.RawMessage
	CAID       string
}

// TargetGene carries the reference-sequence metadata keyed by annotation
// layer, plus whatever UniProt-derived metadata has been resolved for it.
type TargetGene struct {
	ID           int64
	ScoreSetID   int64
	RefMetadata  map[AnnotationLayer]json.RawMessage
	UniProtData  json.RawMessage
	UniProtAccID string
}

// ClinicalControl is a ClinVar-derived control row versioned MM_YYYY,
// linked to the MappedVariant it was resolved for.
type ClinicalControl struct {
	ID              int64
	MappedVariantID int64
	Version         string
	Data            json.RawMessage
}

// Gateway is the opaque domain-side persistence surface the job functions
// use. Implementations must flush writes within the caller's transaction
// but never commit, mirroring persistence.Gateway's contract.
type Gateway interface {
	GetScoreSet(ctx context.Context, scoreSetID int64) (*ScoreSet, error)
	UpdateScoreSet(ctx context.Context, ss *ScoreSet) error

	ReplaceVariants(ctx context.Context, scoreSetID int64, variants []Variant) ([]Variant, error)
	ListVariants(ctx context.Context, scoreSetID int64) ([]Variant, error)

	CurrentMappedVariant(ctx context.Context, variantID int64) (*MappedVariant, error)
	ListCurrentMappedVariants(ctx context.Context, scoreSetID int64) ([]MappedVariant, error)
	AddMappedVariant(ctx context.Context, mv *MappedVariant) (int64, error)
	UpdateMappedVariantCAID(ctx context.Context, mappedVariantID int64, caid string) error

	ListTargetGenes(ctx context.Context, scoreSetID int64) ([]TargetGene, error)
	UpdateTargetGeneRefMetadata(ctx context.Context, targetGeneID int64, layer AnnotationLayer, data json.RawMessage) error
	UpdateTargetGeneUniProtData(ctx context.Context, targetGeneID int64, accession string, data json.RawMessage) error

	UpsertClinicalControl(ctx context.Context, cc *ClinicalControl) (int64, error)
}
