package mailparse

import "strings"

// AttachmentRef describes one attachment leaf found in a part tree.
// Data is set when the content was embedded in the tree; otherwise
// AttachmentID is the handle for a second fetch.
type AttachmentRef struct {
	AttachmentID string
	ContentID    string
	Filename     string
	MimeType     string
	Size         int
	Data         []byte
}

// InlineImage reports whether the attachment can resolve a cid: image reference.
func (a AttachmentRef) InlineImage() bool {
	return a.ContentID != "" && strings.HasPrefix(strings.ToLower(a.MimeType), "image/")
}

// Extracted holds the bodies and attachments recovered from a part tree
type Extracted struct {
	Text        string
	HTML        string
	Attachments []AttachmentRef
}

// InlineImages returns the attachments that are inline-referenced images.
func (e *Extracted) InlineImages() []AttachmentRef {
	var out []AttachmentRef
	for _, a := range e.Attachments {
		if a.InlineImage() {
			out = append(out, a)
		}
	}
	return out
}

// Extract walks the tree depth-first in document order using an explicit
// stack. The first text/plain and the first text/html body leaves win;
// every attachment leaf is collected regardless of depth.
func Extract(root *Part) *Extracted {
	out := &Extracted{}
	if root == nil {
		return out
	}

	var textSeen, htmlSeen bool
	stack := []*Part{root}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p == nil {
			continue
		}

		if !p.Leaf() {
			// Reverse push keeps left-to-right visiting order.
			for i := len(p.Parts) - 1; i >= 0; i-- {
				stack = append(stack, p.Parts[i])
			}
			continue
		}

		if p.IsAttachment() {
			size := p.Size
			if size == 0 {
				size = len(p.Body)
			}
			out.Attachments = append(out.Attachments, AttachmentRef{
				AttachmentID: p.AttachmentID,
				ContentID:    CleanContentID(p.ContentID),
				Filename:     p.Filename,
				MimeType:     p.mediaType(),
				Size:         size,
				Data:         p.Body,
			})
			continue
		}

		switch p.mediaType() {
		case "text/plain":
			if !textSeen {
				out.Text = string(p.Body)
				textSeen = true
			}
		case "text/html":
			if !htmlSeen {
				out.HTML = string(p.Body)
				htmlSeen = true
			}
		}
	}

	return out
}
