package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/DeafMist/pdfcal/internal/config"
	"github.com/DeafMist/pdfcal/internal/ics"
	"github.com/DeafMist/pdfcal/internal/models"
	"github.com/DeafMist/pdfcal/internal/normalize"
	"github.com/DeafMist/pdfcal/internal/pipeline"
)

const (
	maxMemoryBytes  = 8 << 20
	maxPublishBytes = 1 << 20

	statusClientClosedRequest = 499
)

type server struct {
	log      *slog.Logger
	cfg      *config.API
	pipeline *pipeline.Pipeline
	metrics  http.Handler
}

type errorResponse struct {
	Error string       `json:"error"`
	Stage models.Stage `json:"stage,omitempty"`
}

type outcomeResponse struct {
	*models.PipelineOutcome
	Summary string `json:"summary"`
}

type publishRequest struct {
	Events []models.CanonicalEvent `json:"events"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("request_id", middleware.GetReqID(r.Context())))

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(maxMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: fmt.Sprintf("upload exceeds %d bytes", s.cfg.MaxUploadBytes)})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart form: " + err.Error()})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	doc, err := readDocument(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	policy := pipeline.Policy(s.cfg.PublishPolicy)
	if raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("policy"))); raw != "" {
		switch pipeline.Policy(raw) {
		case pipeline.PolicyAuto, pipeline.PolicyConfirm:
			policy = pipeline.Policy(raw)
		default:
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown policy %q", raw)})
			return
		}
	}

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	switch format {
	case "", "json":
	case "ics":
		if policy != pipeline.PolicyConfirm {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "format=ics requires policy=confirm"})
			return
		}
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown format %q", format)})
		return
	}

	opts := []pipeline.RunOption{pipeline.OverridePolicy(policy)}
	if zone := clientZone(r); zone != "" {
		loc, err := normalize.ResolveZone(zone)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown time zone %q", zone)})
			return
		}
		opts = append(opts, pipeline.OverrideNormalizer(normalize.New(loc)))
	}

	clearWriteDeadline(w, log)
	out, err := s.pipeline.Run(r.Context(), doc, bearerToken(r), opts...)
	if err != nil {
		status := statusFor(err)
		if status == statusClientClosedRequest {
			log.Info("upload abandoned by client", slog.String("document", doc.Name), slog.Any("err", err))
			return
		}
		log.Warn("upload failed", slog.String("document", doc.Name), slog.Int("status", status), slog.Any("err", err))
		resp := errorResponse{Error: err.Error()}
		var stageErr *models.StageError
		if errors.As(err, &stageErr) {
			resp.Stage = stageErr.Stage
		}
		writeJSON(w, status, resp)
		return
	}

	if format == "ics" {
		w.Header().Set("Content-Type", ics.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", icsName(doc.Name)))
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, ics.Render(doc.Name, out.Pending, time.Now()))
		return
	}

	writeJSON(w, http.StatusOK, outcomeResponse{PipelineOutcome: out, Summary: out.Summary()})
}

func (s *server) handlePublish(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPublishBytes)

	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if len(req.Events) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no events to publish"})
		return
	}

	clearWriteDeadline(w, s.log)
	out := s.pipeline.PublishAll(r.Context(), req.Events, bearerToken(r))
	writeJSON(w, http.StatusOK, outcomeResponse{PipelineOutcome: out, Summary: out.Summary()})
}

func readDocument(r *http.Request) (models.RawDocument, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("missing file field: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("read upload: %w", err)
	}

	mediaType := header.Header.Get("Content-Type")
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(data)
	}
	return models.RawDocument{Name: header.Filename, MediaType: mediaType, Data: data}, nil
}

func bearerToken(r *http.Request) models.AuthContext {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return models.AuthContext{}
	}
	return models.AuthContext{Token: strings.TrimSpace(token)}
}

func clientZone(r *http.Request) string {
	if zone := strings.TrimSpace(r.Header.Get("X-Timezone")); zone != "" {
		return zone
	}
	return strings.TrimSpace(r.FormValue("timezone"))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, models.ErrCorruptDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrDetectorUnavailable), errors.Is(err, models.ErrDetectorProtocol):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// clearWriteDeadline lifts the server write timeout for handlers whose duration grows
// with the number of detected events. The request context and the per-call detector
// and calendar timeouts still bound the run.
func clearWriteDeadline(w http.ResponseWriter, log *slog.Logger) {
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("write deadline unchanged", slog.Any("err", err))
	}
}

func icsName(document string) string {
	base := strings.TrimSuffix(document, ".pdf")
	if base == "" {
		base = "events"
	}
	return base + ".ics"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
