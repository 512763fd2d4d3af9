// Package mailparse recovers bodies and attachment descriptors from MIME
// part trees, parses address headers and builds outbound RFC 2822 text.
package mailparse

import (
	"strings"
)

// Part is one node of a MIME part tree. Trees are built once by a converter
// (raw source or a provider payload) and only read afterwards.
type Part struct {
	MimeType     string
	Filename     string
	ContentID    string
	Disposition  string
	AttachmentID string
	Size         int
	Body         []byte
	Parts        []*Part
}

// Leaf reports whether the part has no children.
func (p *Part) Leaf() bool {
	return len(p.Parts) == 0
}

// IsAttachment reports whether a leaf carries attachment content rather than a body.
// A remote attachment handle always marks an attachment.
func (p *Part) IsAttachment() bool {
	if p.AttachmentID != "" {
		return true
	}
	if strings.EqualFold(p.Disposition, "attachment") || p.Filename != "" {
		return true
	}
	return p.ContentID != "" && !strings.HasPrefix(p.mediaType(), "text/")
}

func (p *Part) mediaType() string {
	mt := strings.ToLower(strings.TrimSpace(p.MimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

// CleanContentID strips surrounding whitespace and angle brackets.
func CleanContentID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "<")
	return strings.TrimSuffix(id, ">")
}
