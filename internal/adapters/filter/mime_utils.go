package filter

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// extractTextFromMessage returns the text/plain content of a message.
// Multipart messages are walked recursively; other parts are skipped.
func extractTextFromMessage(msg *mail.Message) (string, error) {
	var buf bytes.Buffer
	if err := extractPart(&buf, msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func extractPart(buf *bytes.Buffer, contentType, encoding string, body io.Reader) error {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || contentType == "" {
		// Unlabelled or unparsable bodies are treated as plain text
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary, ok := params["boundary"]
		if !ok {
			return copyText(buf, encoding, body)
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				// keep what was read so far
				if buf.Len() > 0 {
					return nil
				}
				return err
			}
			if err := extractPart(buf, part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part); err != nil {
				return err
			}
		}
	}

	if mediaType != "text/plain" {
		return nil
	}
	return copyText(buf, encoding, body)
}

func copyText(buf *bytes.Buffer, encoding string, body io.Reader) error {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		body = quotedprintable.NewReader(body)
	case "base64":
		body = base64.NewDecoder(base64.StdEncoding, body)
	}
	if buf.Len() > 0 {
		buf.WriteString("\n")
	}
	_, err := io.Copy(buf, body)
	return err
}

// decodeEncodedHeader decodes RFC 2047 encoded words
func decodeEncodedHeader(value string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
