package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/pdfcal/internal/models"
)

type capturedRequest struct {
	Path          string
	Authorization string
	Body          map[string]any
}

func newCalendarServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest, *int32) {
	t.Helper()
	var (
		calls    int32
		captured capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		captured.Path = r.URL.Path
		captured.Authorization = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&captured.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, &captured, &calls
}

func sampleEvent(t *testing.T) models.CanonicalEvent {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, loc)
	return models.CanonicalEvent{
		Title:    "Meeting with Bob",
		Start:    start,
		End:      start.Add(models.EventDuration),
		TimeZone: "America/New_York",
	}
}

func TestPublishCreated(t *testing.T) {
	srv, captured, calls := newCalendarServer(t, http.StatusOK, `{"id":"evt-123","status":"confirmed"}`)
	p := New(nil, WithEndpoint(srv.URL+"/"))

	res := p.Publish(context.Background(), sampleEvent(t), models.AuthContext{Token: "ya29.token"})

	require.Equal(t, models.Created("evt-123"), res)
	require.EqualValues(t, 1, atomic.LoadInt32(calls))
	require.True(t, strings.HasSuffix(captured.Path, "/calendars/primary/events"), captured.Path)
	require.Equal(t, "Bearer ya29.token", captured.Authorization)

	require.Equal(t, "Meeting with Bob", captured.Body["summary"])
	require.Equal(t, "", captured.Body["description"])
	start := captured.Body["start"].(map[string]any)
	end := captured.Body["end"].(map[string]any)
	require.Equal(t, "2025-03-01T00:00:00-05:00", start["dateTime"])
	require.Equal(t, "America/New_York", start["timeZone"])
	require.Equal(t, "2025-03-01T01:00:00-05:00", end["dateTime"])
	require.Equal(t, "America/New_York", end["timeZone"])
}

func TestPublishCustomCalendar(t *testing.T) {
	srv, captured, _ := newCalendarServer(t, http.StatusOK, `{"id":"evt-9"}`)
	p := New(nil, WithEndpoint(srv.URL+"/"), WithCalendarID("team@example.com"))

	res := p.Publish(context.Background(), sampleEvent(t), models.AuthContext{Token: "tok"})
	require.True(t, res.OK())
	require.Contains(t, captured.Path, "/calendars/team@example.com/events")
}

func TestPublishAuthMissingMakesNoCall(t *testing.T) {
	srv, _, calls := newCalendarServer(t, http.StatusOK, `{"id":"never"}`)
	p := New(nil, WithEndpoint(srv.URL+"/"))

	for _, tok := range []string{"", "   "} {
		res := p.Publish(context.Background(), sampleEvent(t), models.AuthContext{Token: tok})
		require.Equal(t, models.PublishAuthMissing, res.Status)
		require.ErrorIs(t, res.Err(), models.ErrAuthMissing)
	}
	require.EqualValues(t, 0, atomic.LoadInt32(calls))
}

func TestPublishRejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		reason string
	}{
		{
			name:   "provider message",
			status: http.StatusForbidden,
			body:   `{"error":{"code":403,"message":"Insufficient Permission"}}`,
			reason: "403 Forbidden: Insufficient Permission",
		},
		{
			name:   "status text only",
			status: http.StatusUnauthorized,
			body:   `not json`,
			reason: "401 Unauthorized",
		},
		{
			name:   "success without id",
			status: http.StatusOK,
			body:   `{}`,
			reason: "provider response missing event id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, calls := newCalendarServer(t, tt.status, tt.body)
			p := New(nil, WithEndpoint(srv.URL+"/"))

			res := p.Publish(context.Background(), sampleEvent(t), models.AuthContext{Token: "tok"})
			require.Equal(t, models.PublishRejected, res.Status)
			require.Contains(t, res.Reason, tt.reason)
			require.EqualValues(t, 1, atomic.LoadInt32(calls), "publish must not retry")
		})
	}
}

func TestPublishServerErrorIsNotRetried(t *testing.T) {
	srv, _, calls := newCalendarServer(t, http.StatusServiceUnavailable, `{"error":{"code":503,"message":"Backend Error"}}`)
	p := New(nil, WithEndpoint(srv.URL+"/"))

	res := p.Publish(context.Background(), sampleEvent(t), models.AuthContext{Token: "tok"})
	require.Equal(t, models.PublishRejected, res.Status)
	require.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestPublishTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := New(nil, WithEndpoint(url+"/")).Publish(context.Background(), sampleEvent(t), models.AuthContext{Token: "tok"})
	require.Equal(t, models.PublishRejected, res.Status)
	require.NotEmpty(t, res.Reason)
}
