// Package ics renders canonical events as an iCalendar document.
package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/DeafMist/pdfcal/internal/models"
	"github.com/DeafMist/pdfcal/internal/processing"
)

const productID = "-//DeafMist//pdfcal//EN"

// ContentType is the media type of Render's output.
const ContentType = "text/calendar; charset=utf-8"

// Render serializes events into a PUBLISH calendar. UIDs are derived from the event
// fingerprint, so re-rendering the same events yields the same UIDs.
func Render(name string, events []models.CanonicalEvent, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}
	if len(events) > 0 && events[0].TimeZone != "" {
		cal.SetXWRTimezone(events[0].TimeZone)
	}

	for _, ev := range events {
		fp := processing.EventFingerprint(ev.Title, ev.Start)
		vev := cal.AddEvent(uuid.NewSHA1(uuid.NameSpaceOID, []byte(fp)).String() + "@pdfcal")
		vev.SetDtStampTime(now)
		vev.SetStartAt(ev.Start)
		vev.SetEndAt(ev.End)
		vev.SetSummary(ev.Title)
		if ev.Description != "" {
			vev.SetDescription(ev.Description)
		}
	}
	return cal.Serialize()
}
