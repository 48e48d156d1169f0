package extract

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// SpreadsheetExtractor handles .xlsx and .xls payloads. Each sheet renders
// as a markdown table, one atomic segment per row so the chunker never
// splits mid-row. An unreadable sheet is recorded as a warning and skipped;
// the remaining sheets still extract.
type SpreadsheetExtractor struct{}

func (e *SpreadsheetExtractor) Extensions() []string { return []string{".xlsx", ".xls"} }

func (e *SpreadsheetExtractor) Extract(data []byte) (*Document, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read spreadsheet: %v", ErrExtraction, err)
	}
	defer f.Close()

	doc := &Document{SourceType: "spreadsheet"}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("sheet %q unreadable: %v", sheet, err))
			continue
		}
		if len(rows) == 0 {
			continue
		}

		marker := fmt.Sprintf("Sheet: %s", sheet)
		doc.Segments = append(doc.Segments, Segment{
			Text:   fmt.Sprintf("## %s\n", marker),
			Marker: marker,
		})
		for i, row := range rows {
			doc.Segments = append(doc.Segments, Segment{
				Text:   markdownRow(row),
				Marker: marker,
				Atomic: true,
			})
			if i == 0 {
				doc.Segments = append(doc.Segments, Segment{
					Text:   markdownSeparator(len(row)),
					Marker: marker,
					Atomic: true,
				})
			}
		}
	}

	return doc, nil
}
