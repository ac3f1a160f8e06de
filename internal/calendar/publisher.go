// Package calendar publishes canonical events to Google Calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/DeafMist/pdfcal/internal/logger"
	"github.com/DeafMist/pdfcal/internal/models"
)

// DefaultCalendarID targets the signed-in user's main calendar.
const DefaultCalendarID = "primary"

// Publisher creates events with a caller-supplied bearer token.
type Publisher struct {
	calendarID string
	endpoint   string
	baseClient *http.Client
	log        *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithCalendarID selects the target calendar.
func WithCalendarID(id string) Option {
	return func(p *Publisher) {
		if id != "" {
			p.calendarID = id
		}
	}
}

// WithEndpoint overrides the Calendar API base URL.
func WithEndpoint(url string) Option {
	return func(p *Publisher) { p.endpoint = url }
}

// WithTimeout bounds every create request.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) { p.baseClient.Timeout = d }
}

// WithHTTPClient replaces the transport used underneath the OAuth2 wrapper.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Publisher) {
		if hc != nil {
			p.baseClient = hc
		}
	}
}

// New creates a Publisher.
func New(log *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		calendarID: DefaultCalendarID,
		baseClient: &http.Client{Timeout: 30 * time.Second},
		log:        logger.OrDiscard(log),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish issues a single create-event request. A missing token short-circuits to
// AuthMissing without touching the network. Failures are reported, never retried.
func (p *Publisher) Publish(ctx context.Context, ev models.CanonicalEvent, auth models.AuthContext) models.PublishResult {
	if !auth.HasToken() {
		return models.AuthMissing()
	}

	svc, err := p.service(ctx, auth.Token)
	if err != nil {
		return models.Rejected(fmt.Sprintf("calendar client: %v", err))
	}

	created, err := svc.Events.Insert(p.calendarID, toEvent(ev)).Context(ctx).Do()
	if err != nil {
		reason := rejectionReason(err)
		p.log.Warn("calendar rejected event",
			slog.String("title", ev.Title),
			slog.Time("start", ev.Start),
			slog.String("reason", reason),
		)
		return models.Rejected(reason)
	}
	if created == nil || created.Id == "" {
		return models.Rejected("provider response missing event id")
	}

	p.log.Info("calendar event created",
		slog.String("id", created.Id),
		slog.String("title", ev.Title),
		slog.Time("start", ev.Start),
	)
	return models.Created(created.Id)
}

func (p *Publisher) service(ctx context.Context, token string) (*gcal.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: strings.TrimSpace(token), TokenType: "Bearer"})
	hc := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, p.baseClient), ts)
	hc.Timeout = p.baseClient.Timeout

	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if p.endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.endpoint))
	}
	return gcal.NewService(ctx, opts...)
}

// toEvent builds the provider payload. Times are sent in RFC 3339 with the zone id
// alongside, matching how the provider interprets dateTime/timeZone pairs.
func toEvent(ev models.CanonicalEvent) *gcal.Event {
	return &gcal.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Start: &gcal.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: ev.TimeZone,
		},
		End: &gcal.EventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: ev.TimeZone,
		},
		// Empty summary and description are sent explicitly.
		ForceSendFields: []string{"Summary", "Description"},
	}
}

func rejectionReason(err error) string {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		reason := fmt.Sprintf("%d %s", gerr.Code, http.StatusText(gerr.Code))
		if msg := strings.TrimSpace(gerr.Message); msg != "" {
			reason += ": " + msg
		}
		return reason
	}
	return err.Error()
}
