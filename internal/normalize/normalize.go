// Package normalize validates detector candidates and turns them into canonical events.
package normalize

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/DeafMist/pdfcal/internal/models"
)

// Normalizer converts candidates in a fixed time zone. It holds no mutable state.
type Normalizer struct {
	loc *time.Location
}

// New creates a Normalizer for loc. A nil loc means UTC.
func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc}
}

// Location returns the zone attached to every normalized event.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Normalize parses the candidate date in the normalizer's zone and fixes the end one
// hour after the start. Dates without a clock time start at local midnight.
func (n *Normalizer) Normalize(c models.EventCandidate) (models.CanonicalEvent, error) {
	raw := strings.TrimSpace(c.DateText)
	if raw == "" {
		return models.CanonicalEvent{}, fmt.Errorf("%w: empty date", models.ErrUnparsableDate)
	}

	start, err := dateparse.ParseIn(raw, n.loc)
	if err != nil || start.IsZero() {
		return models.CanonicalEvent{}, fmt.Errorf("%w: %q", models.ErrUnparsableDate, raw)
	}
	start = start.In(n.loc)

	return models.CanonicalEvent{
		Title:       strings.TrimSpace(c.EventName),
		Description: strings.TrimSpace(c.EventDescription),
		Start:       start,
		End:         start.Add(models.EventDuration),
		TimeZone:    n.loc.String(),
	}, nil
}

// localtimePath is the host zone link consulted when TZ is unset.
var localtimePath = "/etc/localtime"

// ResolveZone loads an IANA zone by name. An empty name or "Local" resolves the host
// zone through TZ, then the /etc/localtime link, and falls back to UTC. The result
// always carries a real zone id.
func ResolveZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		name = hostZone()
	}
	if name == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("resolve time zone %q: %w", name, err)
	}
	return loc, nil
}

// hostZone names the host zone or returns "" when it cannot be determined.
func hostZone() string {
	if tz := strings.TrimPrefix(strings.TrimSpace(os.Getenv("TZ")), ":"); tz != "" && tz != "Local" {
		return tz
	}

	target, err := os.Readlink(localtimePath)
	if err != nil {
		return ""
	}
	i := strings.LastIndex(target, "zoneinfo/")
	if i < 0 {
		return ""
	}
	zone := target[i+len("zoneinfo/"):]
	if _, err := time.LoadLocation(zone); err != nil {
		return ""
	}
	return zone
}
