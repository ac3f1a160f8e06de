package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/pdfcal/internal/metrics"
	"github.com/DeafMist/pdfcal/internal/models"
)

func TestObserveOutcomeCountsItems(t *testing.T) {
	m := metrics.New()

	m.ObserveOutcome(&models.PipelineOutcome{
		Duration: 120 * time.Millisecond,
		Items: []models.ItemResult{
			{Status: string(models.PublishCreated)},
			{Status: string(models.PublishCreated)},
			{Status: models.ItemInvalid},
		},
	})
	m.ObserveAbort(models.StageExtracted)

	count, err := testutil.GatherAndCount(m.Registry(), "pdfcal_items_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(m.Registry(), "pdfcal_runs_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestRunStartedTracksInflight(t *testing.T) {
	m := metrics.New()

	done := m.RunStarted()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), "pdfcal_runs_inflight 1")

	done()
	m.ObserveStage(models.StageDetected, time.Second)

	resp, err = srv.Client().Get(srv.URL)
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), "pdfcal_runs_inflight 0")
	require.Contains(t, string(body), `pdfcal_stage_duration_seconds_count{stage="detected"} 1`)
}
