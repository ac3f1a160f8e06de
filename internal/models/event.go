package models

import "time"

// EventDuration is the fixed length of every generated event.
const EventDuration = time.Hour

// EventCandidate is an unvalidated event as returned by the detector.
type EventCandidate struct {
	DateText         string `json:"date"`
	EventName        string `json:"eventName"`
	EventDescription string `json:"eventDescription"`
}

// CanonicalEvent is a validated, zone-resolved event ready for publication.
type CanonicalEvent struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	TimeZone    string    `json:"timeZone"`
}

// PublishStatus enumerates the outcomes of a single publish call.
type PublishStatus string

const (
	PublishCreated     PublishStatus = "created"
	PublishRejected    PublishStatus = "rejected"
	PublishAuthMissing PublishStatus = "auth_missing"
)

// PublishResult is the per-event result of the calendar publisher.
type PublishResult struct {
	Status   PublishStatus `json:"status"`
	RemoteID string        `json:"remoteId,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

// Created builds a successful result carrying the provider-assigned id.
func Created(remoteID string) PublishResult {
	return PublishResult{Status: PublishCreated, RemoteID: remoteID}
}

// Rejected builds a failed result carrying the provider's reason.
func Rejected(reason string) PublishResult {
	return PublishResult{Status: PublishRejected, Reason: reason}
}

// AuthMissing builds the result for a publish attempted without a token.
func AuthMissing() PublishResult {
	return PublishResult{Status: PublishAuthMissing, Reason: ErrAuthMissing.Error()}
}

// OK reports whether the event was created remotely.
func (r PublishResult) OK() bool {
	return r.Status == PublishCreated
}

// Err converts a failed result into an error from the taxonomy. It returns nil for created events.
func (r PublishResult) Err() error {
	switch r.Status {
	case PublishCreated:
		return nil
	case PublishAuthMissing:
		return ErrAuthMissing
	default:
		return &RejectedError{Reason: r.Reason}
	}
}
