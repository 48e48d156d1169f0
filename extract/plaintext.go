package extract

import (
	"unicode/utf8"
)

// PlainTextExtractor handles .txt payloads. Invalid UTF-8 falls back to a
// Latin-1 interpretation so legacy exports still extract.
type PlainTextExtractor struct{}

func (e *PlainTextExtractor) Extensions() []string { return []string{".txt"} }

func (e *PlainTextExtractor) Extract(data []byte) (*Document, error) {
	text := decodeText(data)
	return &Document{
		SourceType: "text",
		Segments:   []Segment{{Text: text}},
	}, nil
}

func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}
