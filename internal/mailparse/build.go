package mailparse

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
)

// Outgoing is the input to BuildRawEmail
type Outgoing struct {
	From       string
	To         []string
	Cc         []string
	Bcc        []string
	Subject    string
	BodyText   string
	BodyHTML   string
	InReplyTo  string
	References string

	// Extra headers written before MIME-Version, in order.
	Extra [][2]string
}

// BuildRawEmail assembles RFC 2822 text with CRLF line endings.
// An HTML body takes precedence over the text body. Header values holding
// a CR or LF are rejected.
func BuildRawEmail(msg Outgoing) (string, error) {
	var lines []string
	var bad string
	add := func(name, value string) {
		if bad == "" && strings.ContainsAny(value, "\r\n") {
			bad = name
		}
		lines = append(lines, name+": "+value)
	}

	add("From", msg.From)
	add("To", strings.Join(msg.To, ", "))
	if len(msg.Cc) > 0 {
		add("Cc", strings.Join(msg.Cc, ", "))
	}
	if len(msg.Bcc) > 0 {
		add("Bcc", strings.Join(msg.Bcc, ", "))
	}
	add("Subject", encodeHeader(msg.Subject))
	if msg.InReplyTo != "" {
		add("In-Reply-To", msg.InReplyTo)
	}
	if msg.References != "" {
		add("References", msg.References)
	}
	for _, h := range msg.Extra {
		add(h[0], h[1])
	}
	if bad != "" {
		return "", fmt.Errorf("header %s contains a line break", bad)
	}
	add("MIME-Version", "1.0")

	body := msg.BodyText
	if msg.BodyHTML != "" {
		add("Content-Type", `text/html; charset="UTF-8"`)
		body = msg.BodyHTML
	} else {
		add("Content-Type", `text/plain; charset="UTF-8"`)
	}

	lines = append(lines, "", normalizeNewlines(body))
	return strings.Join(lines, "\r\n"), nil
}

// EncodeBase64URL encodes s as base64url without padding.
func EncodeBase64URL(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// DecodeBase64URL accepts padded and unpadded base64url input.
func DecodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func encodeHeader(v string) string {
	for i := 0; i < len(v); i++ {
		if v[i] >= 0x80 {
			return mime.QEncoding.Encode("UTF-8", v)
		}
	}
	return v
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
