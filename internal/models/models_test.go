package models_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/pdfcal/internal/models"
)

func TestRawDocumentIsPDF(t *testing.T) {
	tests := []struct {
		mediaType string
		want      bool
	}{
		{"application/pdf", true},
		{"Application/PDF", true},
		{"application/pdf; charset=binary", true},
		{"text/plain", false},
		{"", false},
		{"application/pdfx", false},
	}

	for _, tt := range tests {
		t.Run(tt.mediaType, func(t *testing.T) {
			doc := models.RawDocument{MediaType: tt.mediaType}
			require.Equal(t, tt.want, doc.IsPDF())
		})
	}
}

func TestPublishResultErr(t *testing.T) {
	require.NoError(t, models.Created("abc").Err())
	require.ErrorIs(t, models.AuthMissing().Err(), models.ErrAuthMissing)

	var rejected *models.RejectedError
	require.True(t, errors.As(models.Rejected("Forbidden").Err(), &rejected))
	require.Equal(t, "Forbidden", rejected.Reason)
}

func TestStageErrorUnwrap(t *testing.T) {
	err := &models.StageError{Stage: models.StageExtracted, Err: models.ErrCorruptDocument}
	require.ErrorIs(t, err, models.ErrCorruptDocument)
	require.Contains(t, err.Error(), "extracted")
}

func TestOutcomeSummary(t *testing.T) {
	o := &models.PipelineOutcome{
		Candidates: 3,
		Published:  2,
		Failed:     1,
		Failures: []models.Failure{
			{Index: 1, Stage: models.StageNormalized, Reason: `unparsable date: "soon"`},
		},
	}

	summary := o.Summary()
	require.Contains(t, summary, "Detected 3 event(s): 2 created, 1 failed.")
	require.Contains(t, summary, `#2 (normalized): unparsable date: "soon"`)

	empty := &models.PipelineOutcome{Message: "No dates found"}
	require.Equal(t, "Detected 0 event(s): 0 created, 0 failed. No dates found", empty.Summary())
}
