// Package extract turns PDF payloads into page-ordered plain text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"

	"github.com/DeafMist/pdfcal/internal/logger"
	"github.com/DeafMist/pdfcal/internal/models"
	"github.com/DeafMist/pdfcal/internal/processing"
)

// document is the subset of *pdf.Reader the extractor needs.
type document interface {
	NumPage() int
	Page(num int) pdf.Page
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxPages limits how many leading pages are read. Zero means no limit.
func WithMaxPages(n int) Option {
	return func(e *Extractor) { e.maxPages = n }
}

// Extractor reads the text layer of PDF documents.
type Extractor struct {
	maxPages int
	log      *slog.Logger
	open     func(data []byte) (document, error)
	pageText func(p pdf.Page) ([]string, error)
}

// New creates an Extractor.
func New(log *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		log:      logger.OrDiscard(log),
		open:     openReader,
		pageText: pageRuns,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract validates the media type, parses the document and joins the text of every
// page with models.PageSeparator. A parsable document without text yields empty text.
func (e *Extractor) Extract(ctx context.Context, doc models.RawDocument) (models.ExtractedText, error) {
	if !doc.IsPDF() {
		return models.ExtractedText{}, fmt.Errorf("%w: %q", models.ErrUnsupportedMediaType, doc.MediaType)
	}
	if len(doc.Data) == 0 {
		return models.ExtractedText{}, fmt.Errorf("%w: empty payload", models.ErrCorruptDocument)
	}

	r, err := e.open(doc.Data)
	if err != nil {
		return models.ExtractedText{}, fmt.Errorf("%w: %v", models.ErrCorruptDocument, err)
	}

	total := r.NumPage()
	limit := total
	if e.maxPages > 0 && total > e.maxPages {
		limit = e.maxPages
		e.log.Warn("page limit reached, ignoring trailing pages",
			slog.String("document", doc.Name),
			slog.Int("pages", total),
			slog.Int("limit", e.maxPages),
		)
	}

	pages := make([]string, 0, limit)
	for i := 1; i <= limit; i++ {
		if err := ctx.Err(); err != nil {
			return models.ExtractedText{}, err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		runs, err := e.pageText(page)
		if err != nil {
			e.log.Debug("page text unreadable",
				slog.String("document", doc.Name),
				slog.Int("page", i),
				slog.Any("err", err),
			)
		}
		pages = append(pages, processing.JoinRuns(runs))
	}

	text := processing.JoinPages(pages, models.PageSeparator)
	e.log.Debug("document extracted",
		slog.String("document", doc.Name),
		slog.Int("pages", len(pages)),
		slog.Int("chars", len(text)),
	)

	return models.ExtractedText{Text: text, Pages: len(pages)}, nil
}

func openReader(data []byte) (doc document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("parse pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return r, nil
}

// pageRuns returns the positioned text runs of a page, top row first and left to right.
func pageRuns(p pdf.Page) (runs []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			runs, err = nil, fmt.Errorf("read page content: %v", r)
		}
	}()

	rows, err := p.GetTextByRow()
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		for _, text := range row.Content {
			runs = append(runs, text.S)
		}
	}
	return runs, nil
}
