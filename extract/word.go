package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
)

// WordExtractor handles .docx payloads. Paragraphs become plain segments;
// tables become atomic segments so the chunker keeps them whole when it
// can.
type WordExtractor struct{}

func (e *WordExtractor) Extensions() []string { return []string{".docx"} }

func (e *WordExtractor) Extract(data []byte) (*Document, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read Word document: %v", ErrExtraction, err)
	}

	var segments []Segment
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			text := strings.TrimSpace(it.String())
			if text == "" {
				continue
			}
			segments = append(segments, Segment{Text: text})
		case *docx.Table:
			text := strings.TrimSpace(it.String())
			if text == "" {
				continue
			}
			segments = append(segments, Segment{Text: text, Marker: "Table", Atomic: true})
		}
	}

	return &Document{
		SourceType: "docx",
		Segments:   segments,
	}, nil
}
