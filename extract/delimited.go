package extract

import (
	"encoding/csv"
	"fmt"
	"strings"
)

// DelimitedTextExtractor handles .csv payloads, rendering them as a single
// markdown table with one atomic segment per record.
type DelimitedTextExtractor struct{}

func (e *DelimitedTextExtractor) Extensions() []string { return []string{".csv"} }

func (e *DelimitedTextExtractor) Extract(data []byte) (*Document, error) {
	r := csv.NewReader(strings.NewReader(decodeText(data)))
	r.FieldsPerRecord = -1 // ragged exports are common, render them as-is

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse CSV file: %v", ErrExtraction, err)
	}

	doc := &Document{SourceType: "csv"}
	for i, record := range records {
		doc.Segments = append(doc.Segments, Segment{
			Text:   markdownRow(record),
			Atomic: true,
		})
		if i == 0 {
			doc.Segments = append(doc.Segments, Segment{
				Text:   markdownSeparator(len(record)),
				Atomic: true,
			})
		}
	}

	return doc, nil
}
