package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor handles .pdf payloads, one segment per non-empty page.
type PDFExtractor struct{}

func (e *PDFExtractor) Extensions() []string { return []string{".pdf"} }

// Extract recovers from parser panics: the pdf library panics on some
// malformed inputs instead of returning an error.
func (e *PDFExtractor) Extract(data []byte) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: failed to read PDF document: %v", ErrExtraction, r)
		}
	}()
	return e.extract(data)
}

func (e *PDFExtractor) extract(data []byte) (*Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read PDF document: %v", ErrExtraction, err)
	}

	var segments []Segment
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to extract text from page %d: %v", ErrExtraction, i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		marker := fmt.Sprintf("Page %d", i)
		segments = append(segments, Segment{
			Text:   fmt.Sprintf("## %s\n\n%s", marker, text),
			Marker: marker,
		})
	}

	return &Document{
		SourceType: "pdf",
		Segments:   segments,
	}, nil
}
