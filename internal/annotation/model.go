// Package annotation implements the Annotation Status Manager described in
// spec §4.7: a narrow helper used by external-service jobs to record one
// versioned annotation outcome per (variant, annotation_type), enforcing the
// "at most one current row" invariant on write.
package annotation

import (
	"context"
	"encoding/json"
	"time"
)

// Type is the closed-ish set of annotation kinds named in spec §4.7. The set
// is marked open ("…") there, so new values are valid without a model
// change — this type exists for the three concrete layers the job functions
// actually populate.
type Type string

const (
	TypeClinvarControl Type = "CLINVAR_CONTROL"
	TypeUniprotMapping Type = "UNIPROT_MAPPING"
	TypeGnomadLinkage  Type = "GNOMAD_LINKAGE"
)

// Status is the outcome of one annotation attempt.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

// Record is one row of the annotation_status table.
type Record struct {
	ID             int64
	VariantID      int64
	AnnotationType Type
	Version        string
	Status         Status
	AnnotationData json.RawMessage
	Current        bool
	CreatedAt      time.Time
}

// Gateway records annotation outcomes. AddAnnotation, when rec.Current is
// true, flips any existing current row for (VariantID, AnnotationType) to
// current=false before inserting rec, inside the same flush scope as the
// caller's transaction — the decorator's enclosing job transaction commits
// this alongside the job's own terminal state, per spec §7's "domain-side
// state is updated in the same commit as the job's terminal transition".
type Gateway interface {
	AddAnnotation(ctx context.Context, rec *Record) (int64, error)
	CurrentAnnotation(ctx context.Context, variantID int64, annotationType Type) (*Record, error)
}

// Manager is a thin wrapper over Gateway kept for symmetry with the Job and
// Pipeline Managers; the invariant itself is enforced at the Gateway/SQL
// layer since it must hold atomically against the partial unique index.
type Manager struct {
	gw Gateway
}

// New constructs a Manager over gw.
func New(gw Gateway) *Manager {
	return &Manager{gw: gw}
}

// AddAnnotation records one outcome, flipping the prior current row first
// when current is true.
func (m *Manager) AddAnnotation(ctx context.Context, variantID int64, annotationType Type, version string, status Status, data any, current bool) (int64, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return 0, err
	}
	return m.gw.AddAnnotation(ctx, &Record{
		VariantID:      variantID,
		AnnotationType: annotationType,
		Version:        version,
		Status:         status,
		AnnotationData: raw,
		Current:        current,
	})
}

// Current returns the current annotation row, if any, for the pair.
func (m *Manager) Current(ctx context.Context, variantID int64, annotationType Type) (*Record, error) {
	return m.gw.CurrentAnnotation(ctx, variantID, annotationType)
}
