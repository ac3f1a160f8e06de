// Package detector talks to the external date/event classification service.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DeafMist/pdfcal/internal/logger"
	"github.com/DeafMist/pdfcal/internal/models"
)

const (
	// NoEventsMessage is reported when the service finds nothing and says nothing.
	NoEventsMessage = "No dates found"

	maxResponseBytes = 8 << 20
)

// Detection is the successful result of a detect call.
type Detection struct {
	Candidates []models.EventCandidate
	// Message is the informational text returned when no events were found.
	Message string
}

// Client posts extracted text to the detector endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithAPIKey sends the key as a bearer token on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a detector client for endpoint.
func New(endpoint string, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		log: logger.OrDiscard(log),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type detectRequest struct {
	Text string `json:"text"`
}

type detectResponse struct {
	Events  []models.EventCandidate `json:"events"`
	Message string                  `json:"message"`
}

// Detect sends text to the detector and returns its candidates. Empty text is sent as is.
// Transport failures and 5xx/429 responses wrap models.ErrDetectorUnavailable; malformed
// bodies and other non-2xx responses wrap models.ErrDetectorProtocol. Nothing is retried.
func (c *Client) Detect(ctx context.Context, text models.ExtractedText) (Detection, error) {
	body, err := json.Marshal(detectRequest{Text: text.Text})
	if err != nil {
		return Detection{}, fmt.Errorf("%w: marshal request: %v", models.ErrDetectorProtocol, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Detection{}, fmt.Errorf("%w: build request: %v", models.ErrDetectorUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Detection{}, fmt.Errorf("%w: %w", models.ErrDetectorUnavailable, ctxErr)
		}
		return Detection{}, fmt.Errorf("%w: %v", models.ErrDetectorUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return Detection{}, fmt.Errorf("%w: read response: %v", models.ErrDetectorUnavailable, err)
	}
	if len(raw) > maxResponseBytes {
		return Detection{}, fmt.Errorf("%w: response exceeds %d bytes", models.ErrDetectorProtocol, maxResponseBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Detection{}, statusError(resp.StatusCode, raw)
	}

	var parsed detectResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Detection{}, fmt.Errorf("%w: decode response: %v", models.ErrDetectorProtocol, err)
	}

	det := Detection{Candidates: parsed.Events}
	if len(det.Candidates) == 0 {
		det.Candidates = nil
		det.Message = strings.TrimSpace(parsed.Message)
		if det.Message == "" {
			det.Message = NoEventsMessage
		}
	}

	c.log.Debug("detector responded",
		slog.Int("candidates", len(det.Candidates)),
		slog.Duration("took", time.Since(started)),
	)

	return det, nil
}

func statusError(code int, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 512 {
		snippet = snippet[:512]
	}

	kind := models.ErrDetectorProtocol
	if code == http.StatusTooManyRequests || code >= 500 {
		kind = models.ErrDetectorUnavailable
	}
	return fmt.Errorf("%w: HTTP %d: %s", kind, code, snippet)
}
