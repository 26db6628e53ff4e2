package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mavedb/worker/internal/annotation"
)

// TestAnnotation_CurrentFlipInvariant grounds spec §4.7: adding a second
// current annotation for the same (variant_id, annotation_type) flips the
// prior row to current=false rather than violating the partial unique index.
func TestAnnotation_CurrentFlipInvariant(t *testing.T) {
	store, ctx := SetupTestStore(t)
	mgr := annotation.New(store)

	firstID, err := mgr.AddAnnotation(ctx, 1, annotation.TypeClinvarControl, "07_2024", annotation.StatusSuccess, map[string]any{"allele_id": "CA123"}, true)
	require.NoError(t, err)

	secondID, err := mgr.AddAnnotation(ctx, 1, annotation.TypeClinvarControl, "08_2024", annotation.StatusSuccess, map[string]any{"allele_id": "CA456"}, true)
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID)

	current, err := mgr.Current(ctx, 1, annotation.TypeClinvarControl)
	require.NoError(t, err)
	assert.Equal(t, secondID, current.ID)
	assert.Equal(t, "08_2024", current.Version)
}
