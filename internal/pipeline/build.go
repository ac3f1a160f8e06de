package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/DeafMist/pdfcal/internal/calendar"
	"github.com/DeafMist/pdfcal/internal/config"
	"github.com/DeafMist/pdfcal/internal/detector"
	"github.com/DeafMist/pdfcal/internal/extract"
	"github.com/DeafMist/pdfcal/internal/logger"
	"github.com/DeafMist/pdfcal/internal/normalize"
	"github.com/DeafMist/pdfcal/internal/notify"
)

// FromConfig assembles a pipeline backed by the real extractor, detector and calendar
// clients. The returned close func releases the outcome notifier.
func FromConfig(cfg config.Common, log *slog.Logger, rec Recorder) (*Pipeline, func() error, error) {
	log = logger.OrDiscard(log)
	loc, err := normalize.ResolveZone(cfg.Timezone)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve time zone: %w", err)
	}

	calOpts := []calendar.Option{
		calendar.WithCalendarID(cfg.CalendarID),
		calendar.WithTimeout(cfg.CalendarTimeout),
	}
	if cfg.CalendarEndpoint != "" {
		calOpts = append(calOpts, calendar.WithEndpoint(cfg.CalendarEndpoint))
	}

	opts := []Option{
		WithLogger(log),
		WithRecorder(rec),
		WithWorkers(cfg.Workers),
		WithPolicy(Policy(cfg.PublishPolicy)),
		WithDedupe(cfg.Dedupe),
	}

	closeFn := func() error { return nil }
	if len(cfg.KafkaBrokers) > 0 {
		n := notify.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		opts = append(opts, WithNotifier(n))
		closeFn = n.Close
		log.Info("outcome notifications enabled",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.String("topic", cfg.KafkaTopic),
		)
	}

	p := New(
		extract.New(log, extract.WithMaxPages(cfg.MaxPages)),
		detector.New(cfg.DetectorURL, log,
			detector.WithTimeout(cfg.DetectorTimeout),
			detector.WithAPIKey(cfg.DetectorAPIKey),
		),
		normalize.New(loc),
		calendar.New(log, calOpts...),
		opts...,
	)
	return p, closeFn, nil
}
