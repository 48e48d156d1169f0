// Package extract converts uploaded document payloads into ordered text
// segments. Each supported media kind has its own Extractor strategy;
// adding a format means adding a strategy, never branching inside shared
// code.
//
// Partial-failure policy: spreadsheet extraction records unreadable sheets
// as warnings and continues with the readable ones. Every other format
// fails the whole extraction, because a partially read body cannot be told
// apart from a truncated one.
package extract

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MaxPayloadSize caps extractable payloads at 10 MiB, matching the upload
// endpoint.
const MaxPayloadSize = 10 * 1024 * 1024

// ErrExtraction wraps every extraction failure.
var ErrExtraction = errors.New("extraction failed")

// Segment is one ordered piece of extracted text.
type Segment struct {
	// Text is the markdown-rendered content of this piece.
	Text string
	// Marker names the structural context the segment came from, e.g.
	// "Page 3", "Sheet: Q1 Forecast", "Email Headers". Empty for body
	// text with no structure of its own.
	Marker string
	// Atomic segments (table rows, header blocks) should not be split
	// mid-segment by the chunker when avoidable.
	Atomic bool
}

// Document is the extraction result, consumed once by the chunker.
type Document struct {
	// SourceType names the originating format ("text", "pdf", "docx",
	// "spreadsheet", "csv", "email").
	SourceType string
	// MediaKind is the declared extension the payload arrived with.
	MediaKind string
	Segments  []Segment
	// Warnings records per-segment failures the strategy chose to skip
	// rather than abort on.
	Warnings []string
}

// Text joins all segments into the flat representation, markers included.
func (d *Document) Text() string {
	var b strings.Builder
	for i, seg := range d.Segments {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}

// Empty reports whether extraction produced no text at all. The pipeline
// treats this as a valid empty result, not an error.
func (d *Document) Empty() bool {
	for _, seg := range d.Segments {
		if strings.TrimSpace(seg.Text) != "" {
			return false
		}
	}
	return true
}

// Extractor turns raw bytes of one media kind into ordered segments.
type Extractor interface {
	// Extensions lists the lowercase dotted extensions this strategy
	// handles.
	Extensions() []string
	Extract(data []byte) (*Document, error)
}

// Service dispatches extraction by declared media kind.
type Service struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
}

// NewService builds a Service with all built-in strategies registered.
func NewService() *Service {
	s := &Service{extractors: make(map[string]Extractor)}
	for _, e := range []Extractor{
		&PlainTextExtractor{},
		&WordExtractor{},
		&PDFExtractor{},
		&SpreadsheetExtractor{},
		&DelimitedTextExtractor{},
		&EmailExtractor{},
	} {
		s.Register(e)
	}
	return s
}

// Register adds a strategy, replacing any previous one for its extensions.
func (s *Service) Register(e Extractor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ext := range e.Extensions() {
		s.extractors[strings.ToLower(ext)] = e
	}
}

// SupportedExtensions returns the sorted list of registered extensions.
func (s *Service) SupportedExtensions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exts := make([]string, 0, len(s.extractors))
	for ext := range s.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract converts data of the declared media kind (a dotted extension,
// e.g. ".pdf") into a Document.
func (s *Service) Extract(data []byte, mediaKind string) (*Document, error) {
	if len(data) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload exceeds maximum size of %dMB",
			ErrExtraction, MaxPayloadSize/(1024*1024))
	}

	ext := strings.ToLower(mediaKind)
	s.mu.RLock()
	e, ok := s.extractors[ext]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file type %q (supported: %s)",
			ErrExtraction, mediaKind, strings.Join(s.SupportedExtensions(), ", "))
	}

	doc, err := e.Extract(data)
	if err != nil {
		return nil, err
	}
	doc.MediaKind = ext
	return doc, nil
}

// markdownRow renders one table row, escaping pipes so cell content cannot
// break the table.
func markdownRow(cells []string) string {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		c = strings.ReplaceAll(c, "|", `\|`)
		escaped[i] = strings.ReplaceAll(c, "\n", " ")
	}
	return "| " + strings.Join(escaped, " | ") + " |"
}

// markdownSeparator renders the header separator row for n columns.
func markdownSeparator(n int) string {
	return "|" + strings.Repeat("---|", n)
}
