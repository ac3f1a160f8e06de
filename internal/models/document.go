package models

import (
	"mime"
	"strings"
)

// MediaTypePDF is the only media type the pipeline accepts.
const MediaTypePDF = "application/pdf"

// RawDocument is an uploaded file as handed over by the upload collaborator.
type RawDocument struct {
	Name      string
	MediaType string
	Data      []byte
}

// IsPDF reports whether the declared media type is application/pdf.
// Parameters are ignored and the comparison is case-insensitive.
func (d RawDocument) IsPDF() bool {
	mt, _, err := mime.ParseMediaType(d.MediaType)
	if err != nil {
		mt = strings.TrimSpace(d.MediaType)
	}
	return strings.EqualFold(mt, MediaTypePDF)
}

// PageSeparator joins the text of consecutive pages.
const PageSeparator = "\n\n"

// ExtractedText is the concatenated text of a document, pages in document order.
type ExtractedText struct {
	Text  string `json:"text"`
	Pages int    `json:"pages"`
}

// Empty reports whether no text was extracted.
func (t ExtractedText) Empty() bool {
	return strings.TrimSpace(t.Text) == ""
}

// AuthContext carries the caller's calendar credentials for one invocation.
type AuthContext struct {
	Token string
}

// HasToken reports whether a usable bearer token is present.
func (a AuthContext) HasToken() bool {
	return strings.TrimSpace(a.Token) != ""
}
