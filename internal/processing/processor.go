package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
	"unicode"
)

var whitespace = regexp.MustCompile(`\s+`)

// CollapseWhitespace squeezes every whitespace run into a single space and trims the ends.
func CollapseWhitespace(input string) string {
	if input == "" {
		return ""
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(input, " "))
}

// StripControl drops non-printable runes that some PDF encoders leave in text runs.
func StripControl(input string) string {
	return strings.Map(func(r rune) rune {
		if r == unicode.ReplacementChar {
			return -1
		}
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, input)
}

// JoinRuns cleans each text run and joins the non-empty ones with a single space.
func JoinRuns(runs []string) string {
	out := make([]string, 0, len(runs))
	for _, run := range runs {
		cleaned := CollapseWhitespace(StripControl(run))
		if cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return strings.Join(out, " ")
}

// JoinPages concatenates page texts with sep, keeping empty pages as empty segments.
func JoinPages(pages []string, sep string) string {
	return strings.Join(pages, sep)
}

// EventFingerprint hashes the fields that identify an event to form deterministic keys.
func EventFingerprint(title string, start time.Time) string {
	normalized := strings.ToLower(CollapseWhitespace(title))
	s := sha1.Sum([]byte(normalized + "|" + start.UTC().Format(time.RFC3339)))
	return hex.EncodeToString(s[:])
}
