package mailparse

import (
	"bytes"
	"fmt"

	"github.com/jhillyerd/enmime"
)

// Message is a parsed raw RFC 2822 source
type Message struct {
	env  *enmime.Envelope
	Root *Part
}

// ParseRaw parses raw message source and converts enmime's part tree.
func ParseRaw(raw []byte) (*Message, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &Message{env: env, Root: convertEnmime(env.Root)}, nil
}

// Header returns the decoded value of the named header.
func (m *Message) Header(name string) string {
	return m.env.GetHeader(name)
}

// Extract runs the shared extractor over the converted tree.
func (m *Message) Extract() *Extracted {
	return Extract(m.Root)
}

func convertEnmime(root *enmime.Part) *Part {
	if root == nil {
		return nil
	}

	type pair struct {
		src *enmime.Part
		dst *Part
	}

	out := fromEnmime(root)
	queue := []pair{{root, out}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for c := cur.src.FirstChild; c != nil; c = c.NextSibling {
			child := fromEnmime(c)
			cur.dst.Parts = append(cur.dst.Parts, child)
			queue = append(queue, pair{c, child})
		}
	}
	return out
}

func fromEnmime(p *enmime.Part) *Part {
	return &Part{
		MimeType:    p.ContentType,
		Filename:    p.FileName,
		ContentID:   CleanContentID(p.ContentID),
		Disposition: p.Disposition,
		Size:        len(p.Content),
		Body:        p.Content,
	}
}
