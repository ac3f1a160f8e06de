package normalize_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/pdfcal/internal/models"
	"github.com/DeafMist/pdfcal/internal/normalize"
)

func mustZone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestNormalizeDateOnlyStartsAtLocalMidnight(t *testing.T) {
	loc := mustZone(t, "America/New_York")
	n := normalize.New(loc)

	ev, err := n.Normalize(models.EventCandidate{DateText: "2025-03-01", EventName: "Meeting with Bob"})
	require.NoError(t, err)

	require.Equal(t, "Meeting with Bob", ev.Title)
	require.Equal(t, "", ev.Description)
	require.Equal(t, "America/New_York", ev.TimeZone)
	require.True(t, ev.Start.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, loc)))
	require.True(t, ev.End.Equal(time.Date(2025, 3, 1, 1, 0, 0, 0, loc)))
}

func TestNormalizeFormats(t *testing.T) {
	loc := mustZone(t, "Europe/Berlin")
	n := normalize.New(loc)

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{name: "detector datetime", in: "2025-03-01 14:30:00", want: time.Date(2025, 3, 1, 14, 30, 0, 0, loc)},
		{name: "iso date", in: "2025-12-24", want: time.Date(2025, 12, 24, 0, 0, 0, 0, loc)},
		{name: "rfc3339 utc", in: "2025-06-01T08:00:00Z", want: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)},
		{name: "long month", in: "March 3, 2025", want: time.Date(2025, 3, 3, 0, 0, 0, 0, loc)},
		{name: "surrounding whitespace", in: "  2025-03-01  ", want: time.Date(2025, 3, 1, 0, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := n.Normalize(models.EventCandidate{DateText: tt.in})
			require.NoError(t, err)
			require.True(t, ev.Start.Equal(tt.want), "got %s want %s", ev.Start, tt.want)
			require.Equal(t, loc, ev.Start.Location())
		})
	}
}

func TestNormalizeUnparsableDate(t *testing.T) {
	n := normalize.New(time.UTC)

	for _, in := range []string{"not-a-date", "", "   ", "soon"} {
		t.Run(in, func(t *testing.T) {
			_, err := n.Normalize(models.EventCandidate{DateText: in, EventName: "x"})
			require.ErrorIs(t, err, models.ErrUnparsableDate)
		})
	}
}

func TestNormalizeDurationIsAlwaysOneHour(t *testing.T) {
	zones := []string{"UTC", "Asia/Kolkata", "America/Los_Angeles", "Australia/Lord_Howe"}
	dates := []string{"2025-03-09 01:30:00", "2025-11-02 01:30:00", "2025-04-06 01:45:00", "2024-02-29"}

	for _, z := range zones {
		n := normalize.New(mustZone(t, z))
		for _, d := range dates {
			ev, err := n.Normalize(models.EventCandidate{DateText: d})
			require.NoError(t, err)
			require.Equal(t, 3600*time.Second, ev.End.Sub(ev.Start), "%s in %s", d, z)
		}
	}
}

func TestNormalizeTrimsText(t *testing.T) {
	ev, err := normalize.New(nil).Normalize(models.EventCandidate{
		DateText:         "2025-03-01",
		EventName:        "  Launch  ",
		EventDescription: "\tProduct launch party\n",
	})
	require.NoError(t, err)
	require.Equal(t, "Launch", ev.Title)
	require.Equal(t, "Product launch party", ev.Description)
	require.Equal(t, "UTC", ev.TimeZone)
}

func TestResolveZone(t *testing.T) {
	loc, err := normalize.ResolveZone("Asia/Seoul")
	require.NoError(t, err)
	require.Equal(t, "Asia/Seoul", loc.String())

	t.Setenv("TZ", "Europe/Paris")
	loc, err = normalize.ResolveZone("")
	require.NoError(t, err)
	require.Equal(t, "Europe/Paris", loc.String())

	_, err = normalize.ResolveZone("Nowhere/Special")
	require.Error(t, err)
}
