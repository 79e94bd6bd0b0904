package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() *DocumentRecord {
	return &DocumentRecord{
		DocumentID: "doc-1",
		OwnerID:    "owner-1",
		Filename:   "lease.pdf",
		Status:     StatusUploaded,
	}
}

func TestDocumentRecordValidate(t *testing.T) {
	require.NoError(t, validRecord().Validate())

	cases := []struct {
		name   string
		mutate func(*DocumentRecord)
	}{
		{"missing document id", func(r *DocumentRecord) { r.DocumentID = "" }},
		{"missing owner id", func(r *DocumentRecord) { r.OwnerID = "" }},
		{"missing filename", func(r *DocumentRecord) { r.Filename = "" }},
		{"empty status", func(r *DocumentRecord) { r.Status = "" }},
		{"unknown status", func(r *DocumentRecord) { r.Status = "summarizing" }},
		{"negative size", func(r *DocumentRecord) { r.SizeBytes = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := validRecord()
			tc.mutate(rec)
			assert.ErrorIs(t, rec.Validate(), ErrValidation)
		})
	}
}

func TestQueryValidate(t *testing.T) {
	require.NoError(t, Query{Text: "term?", OwnerID: "owner-1"}.Validate())

	assert.ErrorIs(t, Query{OwnerID: "owner-1"}.Validate(), ErrValidation)
	assert.ErrorIs(t, Query{Text: "   ", OwnerID: "owner-1"}.Validate(), ErrValidation)
	assert.ErrorIs(t, Query{Text: "term?"}.Validate(), ErrValidation)
	assert.ErrorIs(t, Query{Text: "term?", OwnerID: "owner-1", TopK: -1}.Validate(), ErrValidation)
}

func TestDocumentStatusValid(t *testing.T) {
	for _, s := range []DocumentStatus{StatusUploaded, StatusExtracting, StatusExtracted, StatusIndexing, StatusReady, StatusFailed} {
		assert.True(t, s.Valid(), "status %s", s)
	}
	assert.False(t, DocumentStatus("").Valid())
	assert.False(t, DocumentStatus("summarizing").Valid())
}

func TestDocumentStatusTerminal(t *testing.T) {
	assert.True(t, StatusReady.Terminal())
	assert.True(t, StatusFailed.Terminal())
	for _, s := range []DocumentStatus{StatusUploaded, StatusExtracting, StatusExtracted, StatusIndexing} {
		assert.False(t, s.Terminal(), "status %s", s)
	}
}

func TestAppendLocationVersionsKeys(t *testing.T) {
	rec := validRecord()

	first := rec.AppendLocation("text", "processed/doc-1/a.json")
	second := rec.AppendLocation("text", "processed/doc-1/b.json")

	assert.Equal(t, "text.v1", first)
	assert.Equal(t, "text.v2", second)
	assert.Equal(t, "processed/doc-1/a.json", rec.StorageLocations["text.v1"],
		"earlier versions stay untouched")
	assert.Equal(t, "processed/doc-1/b.json", rec.LatestLocation("text"))
	assert.Empty(t, rec.LatestLocation("raw"))
}
