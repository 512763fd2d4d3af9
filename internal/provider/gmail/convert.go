package gmail

import (
	"html"
	"strings"

	"google.golang.org/api/gmail/v1"

	"github.com/brandon/mail-sync/internal/mailparse"
	"github.com/brandon/mail-sync/pkg/types"
)

type headers []*gmail.MessagePartHeader

// get looks a header up case-insensitively.
func (h headers) get(name string) string {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value
		}
	}
	return ""
}

func hasLabel(ids []string, want string) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}

// convertPayload copies the API part tree into the extractor's model
// without recursion.
func convertPayload(root *gmail.MessagePart) *mailparse.Part {
	if root == nil {
		return nil
	}

	type pair struct {
		src *gmail.MessagePart
		dst *mailparse.Part
	}

	out := convertPart(root)
	stack := []pair{{root, out}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range cur.src.Parts {
			if child == nil {
				continue
			}
			dst := convertPart(child)
			cur.dst.Parts = append(cur.dst.Parts, dst)
			stack = append(stack, pair{child, dst})
		}
	}
	return out
}

func convertPart(p *gmail.MessagePart) *mailparse.Part {
	h := headers(p.Headers)
	part := &mailparse.Part{
		MimeType:    p.MimeType,
		Filename:    p.Filename,
		ContentID:   h.get("Content-ID"),
		Disposition: disposition(h.get("Content-Disposition")),
	}
	if p.Body != nil {
		part.AttachmentID = p.Body.AttachmentId
		part.Size = int(p.Body.Size)
		if p.Body.Data != "" {
			if data, err := mailparse.DecodeBase64URL(p.Body.Data); err == nil {
				part.Body = data
			}
		}
	}
	return part
}

func disposition(v string) string {
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = v[:i]
	}
	return strings.ToLower(strings.TrimSpace(v))
}

// convertMessage maps a full-format message onto the local model.
func convertMessage(accountID string, msg *gmail.Message, folder string) (*types.Email, *mailparse.Extracted) {
	var h headers
	var root *mailparse.Part
	if msg.Payload != nil {
		h = headers(msg.Payload.Headers)
		root = convertPayload(msg.Payload)
	}
	extracted := mailparse.Extract(root)
	from := mailparse.ParseAddress(h.get("From"))

	snippet := html.UnescapeString(msg.Snippet)
	if snippet == "" {
		snippet = mailparse.Snippet(extracted.Text, extracted.HTML)
	}

	labelIDs := msg.LabelIds
	if labelIDs == nil {
		labelIDs = []string{}
	}

	email := &types.Email{
		ID:         msg.Id,
		AccountID:  accountID,
		ThreadID:   msg.ThreadId,
		MessageID:  h.get("Message-ID"),
		Subject:    h.get("Subject"),
		Snippet:    snippet,
		FromName:   from.Name,
		FromEmail:  from.Email,
		To:         h.get("To"),
		Cc:         h.get("Cc"),
		Bcc:        h.get("Bcc"),
		BodyText:   extracted.Text,
		BodyHTML:   extracted.HTML,
		LabelIDs:   labelIDs,
		IsRead:     !hasLabel(msg.LabelIds, labelUnread),
		IsStarred:  hasLabel(msg.LabelIds, labelStarred),
		ReceivedAt: msg.InternalDate / 1000,
		Folder:     folder,
	}
	return email, extracted
}

// convertDraft maps a draft's message onto the local draft model.
func convertDraft(accountID string, d *gmail.Draft) *types.Draft {
	draft := &types.Draft{
		ID:        d.Id,
		AccountID: accountID,
		RemoteID:  d.Id,
	}
	if d.Message == nil {
		return draft
	}
	email, _ := convertMessage(accountID, d.Message, "")
	draft.To = email.To
	draft.Cc = email.Cc
	draft.Bcc = email.Bcc
	draft.Subject = email.Subject
	draft.BodyText = email.BodyText
	draft.BodyHTML = email.BodyHTML
	draft.UpdatedAt = email.ReceivedAt
	return draft
}
