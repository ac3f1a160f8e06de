package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/pdfcal/internal/config"
	"github.com/DeafMist/pdfcal/internal/logger"
	"github.com/DeafMist/pdfcal/internal/normalize"
)

func TestFromConfig(t *testing.T) {
	cfg := config.Common{
		DetectorURL:     "http://detector.local/detect_date",
		DetectorTimeout: time.Second,
		CalendarID:      "primary",
		CalendarTimeout: time.Second,
		Timezone:        "Asia/Tokyo",
		Workers:         3,
		PublishPolicy:   config.PolicyConfirm,
		Dedupe:          true,
	}

	p, closeFn, err := FromConfig(cfg, logger.OrDiscard(nil), nil)
	require.NoError(t, err)
	require.NoError(t, closeFn())

	require.Equal(t, 3, p.workers)
	require.Equal(t, PolicyConfirm, p.policy)
	require.True(t, p.dedupe)
	require.Nil(t, p.notifier)
	require.IsType(t, nopRecorder{}, p.recorder)

	n, ok := p.normalizer.(*normalize.Normalizer)
	require.True(t, ok)
	require.Equal(t, "Asia/Tokyo", n.Location().String())
}

func TestFromConfigWithKafka(t *testing.T) {
	cfg := config.Common{
		CalendarID:   "primary",
		Workers:      1,
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "pdfcal_outcomes",
	}

	p, closeFn, err := FromConfig(cfg, logger.OrDiscard(nil), nil)
	require.NoError(t, err)
	require.NotNil(t, p.notifier)
	require.NoError(t, closeFn())
}

func TestFromConfigRejectsUnknownZone(t *testing.T) {
	_, _, err := FromConfig(config.Common{Timezone: "Nowhere/Special"}, nil, nil)
	require.Error(t, err)
}
