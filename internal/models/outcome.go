package models

import (
	"fmt"
	"strings"
	"time"
)

// Stage names the pipeline state reached by a run.
type Stage string

const (
	StageUploaded   Stage = "uploaded"
	StageExtracted  Stage = "extracted"
	StageDetected   Stage = "detected"
	StageNormalized Stage = "normalized"
	StagePublished  Stage = "published"
	StageCompleted  Stage = "completed"
)

// StageError is a whole-document failure that aborted the pipeline.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ItemResult reports what happened to one candidate.
type ItemResult struct {
	Index    int        `json:"index"`
	Title    string     `json:"title,omitempty"`
	Start    *time.Time `json:"start,omitempty"`
	Status   string     `json:"status"`
	RemoteID string     `json:"remoteId,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// Item statuses that are not publish statuses.
const (
	ItemInvalid   = "invalid"
	ItemDuplicate = "duplicate"
	ItemPending   = "pending"
)

// Failure is one per-item failure collected by the orchestrator.
type Failure struct {
	Index  int    `json:"index"`
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
}

// PipelineOutcome aggregates the result of processing one document.
type PipelineOutcome struct {
	RunID      string           `json:"runId"`
	Document   string           `json:"document,omitempty"`
	Stage      Stage            `json:"stage"`
	Candidates int              `json:"candidates"`
	Normalized int              `json:"normalized"`
	Published  int              `json:"published"`
	Rejected   int              `json:"rejected"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	Message    string           `json:"message,omitempty"`
	Items      []ItemResult     `json:"items"`
	Failures   []Failure        `json:"failures"`
	Pending    []CanonicalEvent `json:"pending,omitempty"`
	StartedAt  time.Time        `json:"startedAt"`
	Duration   time.Duration    `json:"durationNs"`
}

// FailureCount is the number of candidates that did not end up as calendar events,
// excluding suppressed duplicates and events still awaiting confirmation.
func (o *PipelineOutcome) FailureCount() int {
	return o.Failed + o.Rejected
}

// Summary renders the user-visible report of a run.
func (o *PipelineOutcome) Summary() string {
	var b strings.Builder
	if len(o.Pending) > 0 {
		fmt.Fprintf(&b, "Detected %d event(s): %d awaiting confirmation, %d failed.",
			o.Candidates, len(o.Pending), o.FailureCount())
	} else {
		fmt.Fprintf(&b, "Detected %d event(s): %d created, %d failed.",
			o.Candidates, o.Published, o.FailureCount())
	}
	if o.Skipped > 0 {
		fmt.Fprintf(&b, " %d duplicate(s) skipped.", o.Skipped)
	}
	if o.Candidates == 0 && o.Message != "" {
		b.WriteString(" ")
		b.WriteString(o.Message)
	}
	for _, f := range o.Failures {
		fmt.Fprintf(&b, "\n  #%d (%s): %s", f.Index+1, f.Stage, f.Reason)
	}
	return b.String()
}
