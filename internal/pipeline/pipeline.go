// Package pipeline sequences extraction, detection, normalization and publication of one
// uploaded document and aggregates the per-event results.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/DeafMist/pdfcal/internal/dedupe"
	"github.com/DeafMist/pdfcal/internal/detector"
	"github.com/DeafMist/pdfcal/internal/logger"
	"github.com/DeafMist/pdfcal/internal/models"
	"github.com/DeafMist/pdfcal/internal/normalize"
	"github.com/DeafMist/pdfcal/internal/processing"
)

// TextExtractor turns a raw upload into text.
type TextExtractor interface {
	Extract(ctx context.Context, doc models.RawDocument) (models.ExtractedText, error)
}

// EventDetector finds event candidates in text.
type EventDetector interface {
	Detect(ctx context.Context, text models.ExtractedText) (detector.Detection, error)
}

// EventNormalizer validates a candidate into a canonical event.
type EventNormalizer interface {
	Normalize(c models.EventCandidate) (models.CanonicalEvent, error)
}

// CalendarProvider creates one event on the user's calendar.
type CalendarProvider interface {
	Publish(ctx context.Context, ev models.CanonicalEvent, auth models.AuthContext) models.PublishResult
}

// OutcomeNotifier receives every completed outcome.
type OutcomeNotifier interface {
	Notify(ctx context.Context, outcome *models.PipelineOutcome) error
}

// Recorder collects run metrics.
type Recorder interface {
	RunStarted() func()
	ObserveStage(stage models.Stage, d time.Duration)
	ObserveAbort(stage models.Stage)
	ObserveOutcome(outcome *models.PipelineOutcome)
}

// Policy decides whether normalized events are published right away.
type Policy string

const (
	// PolicyAuto publishes every normalized event immediately.
	PolicyAuto Policy = "auto"
	// PolicyConfirm stops after normalization and returns the events as pending.
	PolicyConfirm Policy = "confirm"
)

const defaultWorkers = 4

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers bounds the number of concurrent publish calls.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithPolicy sets the default publish policy.
func WithPolicy(policy Policy) Option {
	return func(p *Pipeline) {
		if policy != "" {
			p.policy = policy
		}
	}
}

// WithDedupe enables duplicate suppression within a run.
func WithDedupe(enabled bool) Option {
	return func(p *Pipeline) { p.dedupe = enabled }
}

// WithNotifier sets the outcome notifier.
func WithNotifier(n OutcomeNotifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = logger.OrDiscard(l) }
}

// Pipeline runs documents through the extract, detect, normalize and publish stages.
type Pipeline struct {
	extractor  TextExtractor
	detector   EventDetector
	normalizer EventNormalizer
	provider   CalendarProvider
	notifier   OutcomeNotifier
	recorder   Recorder
	log        *slog.Logger
	workers    int
	policy     Policy
	dedupe     bool
}

// New wires the pipeline stages together.
func New(ex TextExtractor, det EventDetector, norm EventNormalizer, cal CalendarProvider, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:  ex,
		detector:   det,
		normalizer: norm,
		provider:   cal,
		recorder:   nopRecorder{},
		log:        logger.OrDiscard(nil),
		workers:    defaultWorkers,
		policy:     PolicyAuto,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunOption overrides pipeline defaults for a single run.
type RunOption func(*runConfig)

type runConfig struct {
	policy     Policy
	normalizer EventNormalizer
}

// OverridePolicy uses policy for this run only.
func OverridePolicy(policy Policy) RunOption {
	return func(rc *runConfig) {
		if policy != "" {
			rc.policy = policy
		}
	}
}

// OverrideNormalizer uses n for this run only, typically one bound to the caller's zone.
func OverrideNormalizer(n EventNormalizer) RunOption {
	return func(rc *runConfig) {
		if n != nil {
			rc.normalizer = n
		}
	}
}

// slot holds the state of one candidate. Each publish goroutine owns exactly one slot.
type slot struct {
	item    models.ItemResult
	event   models.CanonicalEvent
	publish bool
}

// Run processes one document. Extraction and detection failures abort the run with a
// *models.StageError; per-event failures are collected in the outcome.
func (p *Pipeline) Run(ctx context.Context, doc models.RawDocument, auth models.AuthContext, opts ...RunOption) (*models.PipelineOutcome, error) {
	rc := runConfig{policy: p.policy, normalizer: p.normalizer}
	for _, opt := range opts {
		opt(&rc)
	}

	done := p.recorder.RunStarted()
	defer done()

	out := newOutcome(doc.Name)
	log := p.log.With(slog.String("run_id", out.RunID), slog.String("document", doc.Name))

	start := time.Now()
	text, err := p.extractor.Extract(ctx, doc)
	p.recorder.ObserveStage(models.StageExtracted, time.Since(start))
	if err != nil {
		return nil, p.abort(log, models.StageExtracted, err)
	}
	out.Stage = models.StageExtracted
	log.Debug("text extracted", slog.Int("pages", text.Pages), slog.Int("chars", len(text.Text)))

	start = time.Now()
	det, err := p.detector.Detect(ctx, text)
	p.recorder.ObserveStage(models.StageDetected, time.Since(start))
	if err != nil {
		return nil, p.abort(log, models.StageDetected, err)
	}
	out.Stage = models.StageDetected
	out.Candidates = len(det.Candidates)
	out.Message = det.Message
	log.Info("candidates detected", slog.Int("count", out.Candidates))

	start = time.Now()
	seen := p.newSeen(len(det.Candidates))
	slots := make([]slot, len(det.Candidates))
	for i, c := range det.Candidates {
		ev, err := rc.normalizer.Normalize(c)
		if err != nil {
			log.Warn("candidate rejected", slog.Int("index", i), slog.Any("err", err))
			slots[i] = slot{item: models.ItemResult{
				Index:  i,
				Title:  c.EventName,
				Status: models.ItemInvalid,
				Reason: err.Error(),
			}}
			continue
		}
		slots[i] = claim(seen, i, ev)
	}
	p.recorder.ObserveStage(models.StageNormalized, time.Since(start))
	out.Stage = models.StageNormalized

	if rc.policy == PolicyConfirm {
		for i := range slots {
			if slots[i].publish {
				slots[i].publish = false
				slots[i].item.Status = models.ItemPending
				out.Pending = append(out.Pending, slots[i].event)
			}
		}
		p.finish(ctx, log, out, slots)
		return out, nil
	}

	p.publish(ctx, log, slots, auth)
	out.Stage = models.StageCompleted
	p.finish(ctx, log, out, slots)
	return out, nil
}

// PublishAll publishes events the caller has already confirmed, with the same fan-out and
// aggregation as Run.
func (p *Pipeline) PublishAll(ctx context.Context, events []models.CanonicalEvent, auth models.AuthContext) *models.PipelineOutcome {
	done := p.recorder.RunStarted()
	defer done()

	out := newOutcome("")
	out.Candidates = len(events)
	log := p.log.With(slog.String("run_id", out.RunID))

	seen := p.newSeen(len(events))
	slots := make([]slot, len(events))
	for i, ev := range events {
		canonical, err := confirmed(ev)
		if err != nil {
			slots[i] = slot{item: models.ItemResult{
				Index:  i,
				Title:  ev.Title,
				Status: models.ItemInvalid,
				Reason: err.Error(),
			}}
			continue
		}
		slots[i] = claim(seen, i, canonical)
	}
	out.Stage = models.StageNormalized

	p.publish(ctx, log, slots, auth)
	out.Stage = models.StageCompleted
	p.finish(ctx, log, out, slots)
	return out
}

func (p *Pipeline) newSeen(capacity int) *dedupe.Set {
	if !p.dedupe {
		return nil
	}
	return dedupe.NewSet(capacity)
}

func (p *Pipeline) abort(log *slog.Logger, stage models.Stage, err error) error {
	p.recorder.ObserveAbort(stage)
	log.Error("pipeline aborted", slog.String("stage", string(stage)), slog.Any("err", err))
	return &models.StageError{Stage: stage, Err: err}
}

func (p *Pipeline) publish(ctx context.Context, log *slog.Logger, slots []slot, auth models.AuthContext) {
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i := range slots {
		s := &slots[i]
		if !s.publish {
			continue
		}
		g.Go(func() error {
			var res models.PublishResult
			if err := ctx.Err(); err != nil {
				res = models.Rejected(fmt.Sprintf("not sent: %v", err))
			} else {
				res = p.provider.Publish(ctx, s.event, auth)
			}
			s.item.Status = string(res.Status)
			s.item.RemoteID = res.RemoteID
			s.item.Reason = res.Reason
			if !res.OK() {
				log.Warn("event not published",
					slog.Int("index", s.item.Index),
					slog.String("status", string(res.Status)),
					slog.String("reason", res.Reason),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	p.recorder.ObserveStage(models.StagePublished, time.Since(start))
}

// finish aggregates the slots in candidate order and hands the outcome to the notifier.
func (p *Pipeline) finish(ctx context.Context, log *slog.Logger, out *models.PipelineOutcome, slots []slot) {
	for _, s := range slots {
		item := s.item
		out.Items = append(out.Items, item)
		if item.Status != models.ItemInvalid {
			out.Normalized++
		}

		switch item.Status {
		case models.ItemInvalid:
			out.Failed++
			out.Failures = append(out.Failures, models.Failure{Index: item.Index, Stage: models.StageNormalized, Reason: item.Reason})
		case models.ItemDuplicate:
			out.Skipped++
		case models.ItemPending:
		case string(models.PublishCreated):
			out.Published++
		default:
			out.Rejected++
			out.Failures = append(out.Failures, models.Failure{Index: item.Index, Stage: models.StagePublished, Reason: item.Reason})
		}
	}
	if out.Candidates == 0 {
		out.Stage = models.StageCompleted
	}
	out.Duration = time.Since(out.StartedAt)

	p.recorder.ObserveOutcome(out)
	log.Info("pipeline finished",
		slog.String("stage", string(out.Stage)),
		slog.Int("published", out.Published),
		slog.Int("pending", len(out.Pending)),
		slog.Int("failed", out.FailureCount()),
		slog.Int("skipped", out.Skipped),
		slog.Duration("duration", out.Duration),
	)

	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(context.WithoutCancel(ctx), out); err != nil {
		log.Warn("outcome notification failed", slog.Any("err", err))
	}
}

func newOutcome(document string) *models.PipelineOutcome {
	return &models.PipelineOutcome{
		RunID:     uuid.NewString(),
		Document:  document,
		Stage:     models.StageUploaded,
		Items:     []models.ItemResult{},
		Failures:  []models.Failure{},
		StartedAt: time.Now().UTC(),
	}
}

// claim registers ev in seen and marks it for publication unless an earlier candidate
// already holds the same fingerprint.
func claim(seen *dedupe.Set, index int, ev models.CanonicalEvent) slot {
	start := ev.Start
	s := slot{
		event: ev,
		item:  models.ItemResult{Index: index, Title: ev.Title, Start: &start},
	}
	if seen != nil {
		if first, dup := seen.Claim(processing.EventFingerprint(ev.Title, ev.Start), index); dup {
			s.item.Status = models.ItemDuplicate
			s.item.Reason = fmt.Sprintf("duplicate of #%d", first+1)
			return s
		}
	}
	s.publish = true
	return s
}

// confirmed re-establishes the canonical invariants on an event supplied by a caller.
func confirmed(ev models.CanonicalEvent) (models.CanonicalEvent, error) {
	if ev.Start.IsZero() {
		return ev, fmt.Errorf("%w: missing start", models.ErrUnparsableDate)
	}
	if ev.TimeZone != "" {
		loc, err := normalize.ResolveZone(ev.TimeZone)
		if err != nil {
			return ev, fmt.Errorf("unknown time zone %q: %w", ev.TimeZone, err)
		}
		ev.Start = ev.Start.In(loc)
		ev.TimeZone = loc.String()
	} else {
		ev.Start = ev.Start.UTC()
		ev.TimeZone = "UTC"
	}
	ev.End = ev.Start.Add(models.EventDuration)
	return ev, nil
}

type nopRecorder struct{}

func (nopRecorder) RunStarted() func()                       { return func() {} }
func (nopRecorder) ObserveStage(models.Stage, time.Duration) {}
func (nopRecorder) ObserveAbort(models.Stage)                {}
func (nopRecorder) ObserveOutcome(*models.PipelineOutcome)   {}
