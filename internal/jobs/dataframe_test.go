package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateColumnsMetadata(t *testing.T) {
	t.Run("exactly one hgvs and at least one numeric column passes", func(t *testing.T) {
		err := validateColumnsMetadata([]ColumnMetadata{
			{Name: "hgvs_nt", Kind: "hgvs"},
			{Name: "score", Kind: "score"},
			{Name: "notes", Kind: "auxiliary"},
		})
		require.NoError(t, err)
	})

	t.Run("rejects zero hgvs columns", func(t *testing.T) {
		err := validateColumnsMetadata([]ColumnMetadata{{Name: "score", Kind: "score"}})
		assert.Error(t, err)
	})

	t.Run("rejects more than one hgvs column", func(t *testing.T) {
		err := validateColumnsMetadata([]ColumnMetadata{
			{Name: "a", Kind: "hgvs"},
			{Name: "b", Kind: "hgvs"},
			{Name: "score", Kind: "score"},
		})
		assert.Error(t, err)
	})

	t.Run("rejects no numeric columns", func(t *testing.T) {
		err := validateColumnsMetadata([]ColumnMetadata{{Name: "hgvs_nt", Kind: "hgvs"}})
		assert.Error(t, err)
	})

	t.Run("rejects unrecognized kind", func(t *testing.T) {
		err := validateColumnsMetadata([]ColumnMetadata{
			{Name: "hgvs_nt", Kind: "hgvs"},
			{Name: "score", Kind: "score"},
			{Name: "weird", Kind: "percentage"},
		})
		assert.Error(t, err)
	})
}

func TestParseDataframe(t *testing.T) {
	meta := []ColumnMetadata{
		{Name: "hgvs_nt", Kind: "hgvs"},
		{Name: "score", Kind: "score"},
	}

	t.Run("parses rows keyed by declared columns", func(t *testing.T) {
		data := "hgvs_nt,score,ignored\nc.1A>T,1.5,x\nc.2A>T,,y\n"
		rows, err := parseDataframe([]byte(data), meta)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "c.1A>T", rows[0].HGVS)
		assert.Equal(t, 1.5, rows[0].Values["score"])
		assert.Equal(t, "c.2A>T", rows[1].HGVS)
		_, hasScore := rows[1].Values["score"]
		assert.False(t, hasScore, "blank numeric cell should be omitted, not zero-valued")
	})

	t.Run("fails when declared hgvs column is missing from the header", func(t *testing.T) {
		_, err := parseDataframe([]byte("wrong_header,score\nx,1\n"), meta)
		assert.Error(t, err)
	})

	t.Run("fails on a non-numeric value in a declared numeric column", func(t *testing.T) {
		_, err := parseDataframe([]byte("hgvs_nt,score\nc.1A>T,not-a-number\n"), meta)
		assert.Error(t, err)
	})

	t.Run("fails on a file with no data rows", func(t *testing.T) {
		_, err := parseDataframe([]byte("hgvs_nt,score\n"), meta)
		assert.Error(t, err)
	})
}
