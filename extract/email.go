package extract

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// EmailExtractor handles .eml payloads. The addressing headers and the body
// become separate segments so prompt construction keeps the distinction.
// For multipart messages the text/plain part wins, falling back to
// text/html when no plain part exists.
type EmailExtractor struct{}

func (e *EmailExtractor) Extensions() []string { return []string{".eml"} }

var emailHeaders = []string{"From", "To", "Cc", "Subject", "Date"}

func (e *EmailExtractor) Extract(data []byte) (*Document, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse email file: %v", ErrExtraction, err)
	}

	var head strings.Builder
	head.WriteString("## Email Headers\n")
	for _, h := range emailHeaders {
		if v := msg.Header.Get(h); v != "" {
			fmt.Fprintf(&head, "\n**%s:** %s", h, v)
		}
	}

	body, err := emailBody(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read email body: %v", ErrExtraction, err)
	}

	return &Document{
		SourceType: "email",
		Segments: []Segment{
			{Text: head.String(), Marker: "Email Headers", Atomic: true},
			{Text: "## Email Body\n\n" + strings.TrimSpace(body), Marker: "Email Body"},
		},
	}, nil
}

func emailBody(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		return readEncoded(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return readEncoded(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
	}

	if !strings.HasPrefix(mediaType, "multipart/") {
		return readEncoded(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
	}

	mr := multipart.NewReader(msg.Body, params["boundary"])
	var htmlFallback string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		switch partType {
		case "text/plain":
			return readEncoded(part, part.Header.Get("Content-Transfer-Encoding"))
		case "text/html":
			if htmlFallback == "" {
				htmlFallback, _ = readEncoded(part, part.Header.Get("Content-Transfer-Encoding"))
			}
		}
	}
	return htmlFallback, nil
}

func readEncoded(r io.Reader, transferEncoding string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return decodeText(data), nil
}
