package outlook

import (
	"strings"
	"time"

	"github.com/brandon/mail-sync/internal/mailparse"
	"github.com/brandon/mail-sync/pkg/types"
)

// messageSelect is the field projection requested for listings.
var messageSelect = []string{
	"id",
	"conversationId",
	"internetMessageId",
	"subject",
	"bodyPreview",
	"from",
	"toRecipients",
	"ccRecipients",
	"bccRecipients",
	"body",
	"categories",
	"isRead",
	"flag",
	"receivedDateTime",
	"lastModifiedDateTime",
	"hasAttachments",
}

type emailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type followupFlag struct {
	FlagStatus string `json:"flagStatus"`
}

type message struct {
	ID                   string        `json:"id"`
	ConversationID       string        `json:"conversationId"`
	InternetMessageID    string        `json:"internetMessageId"`
	Subject              string        `json:"subject"`
	BodyPreview          string        `json:"bodyPreview"`
	From                 *recipient    `json:"from"`
	ToRecipients         []recipient   `json:"toRecipients"`
	CcRecipients         []recipient   `json:"ccRecipients"`
	BccRecipients        []recipient   `json:"bccRecipients"`
	Body                 *itemBody     `json:"body"`
	Categories           []string      `json:"categories"`
	IsRead               bool          `json:"isRead"`
	Flag                 *followupFlag `json:"flag"`
	ReceivedDateTime     string        `json:"receivedDateTime"`
	LastModifiedDateTime string        `json:"lastModifiedDateTime"`
	HasAttachments       bool          `json:"hasAttachments"`
}

type messageList struct {
	Value []message `json:"value"`
}

type attachment struct {
	ODataType    string `json:"@odata.type"`
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	Size         int    `json:"size"`
	IsInline     bool   `json:"isInline"`
	ContentID    string `json:"contentId"`
	ContentBytes []byte `json:"contentBytes"`
}

type attachmentList struct {
	Value []attachment `json:"value"`
}

type category struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
}

type categoryList struct {
	Value []category `json:"value"`
}

type outgoingMessage struct {
	Subject       string      `json:"subject"`
	Body          itemBody    `json:"body"`
	ToRecipients  []recipient `json:"toRecipients"`
	CcRecipients  []recipient `json:"ccRecipients,omitempty"`
	BccRecipients []recipient `json:"bccRecipients,omitempty"`
}

type sendMailRequest struct {
	Message         outgoingMessage `json:"message"`
	SaveToSentItems bool            `json:"saveToSentItems"`
}

func joinRecipients(rs []recipient) string {
	addrs := make([]mailparse.Address, 0, len(rs))
	for _, r := range rs {
		addrs = append(addrs, mailparse.Address{Name: r.EmailAddress.Name, Email: r.EmailAddress.Address})
	}
	return mailparse.JoinAddresses(addrs)
}

func toRecipients(addrs []string) []recipient {
	out := make([]recipient, 0, len(addrs))
	for _, a := range addrs {
		parsed := mailparse.ParseAddress(a)
		if parsed.Email == "" {
			continue
		}
		out = append(out, recipient{EmailAddress: emailAddress{Name: parsed.Name, Address: parsed.Email}})
	}
	return out
}

func parseTime(s string) int64 {
	if s == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}
	return t.Unix()
}

func (m *message) bodies() (text, html string) {
	if m.Body == nil {
		return "", ""
	}
	if strings.EqualFold(m.Body.ContentType, "html") {
		return "", m.Body.Content
	}
	return m.Body.Content, ""
}

// convertMessage maps a Graph message onto the local model. LabelIDs carries
// the raw category names.
func convertMessage(accountID string, m *message, folder string) *types.Email {
	text, html := m.bodies()

	var from mailparse.Address
	if m.From != nil {
		from = mailparse.Address{Name: m.From.EmailAddress.Name, Email: m.From.EmailAddress.Address}
	}

	snippet := strings.TrimSpace(m.BodyPreview)
	if snippet == "" {
		snippet = mailparse.Snippet(text, html)
	}

	categories := m.Categories
	if categories == nil {
		categories = []string{}
	}

	return &types.Email{
		ID:         m.ID,
		AccountID:  accountID,
		ThreadID:   m.ConversationID,
		MessageID:  m.InternetMessageID,
		Subject:    m.Subject,
		Snippet:    snippet,
		FromName:   from.Name,
		FromEmail:  from.Email,
		To:         joinRecipients(m.ToRecipients),
		Cc:         joinRecipients(m.CcRecipients),
		Bcc:        joinRecipients(m.BccRecipients),
		BodyText:   text,
		BodyHTML:   html,
		LabelIDs:   categories,
		IsRead:     m.IsRead,
		IsStarred:  m.Flag != nil && strings.EqualFold(m.Flag.FlagStatus, "flagged"),
		ReceivedAt: parseTime(m.ReceivedDateTime),
		Folder:     folder,
	}
}

func convertDraft(accountID string, m *message) *types.Draft {
	text, html := m.bodies()
	updated := parseTime(m.LastModifiedDateTime)
	if updated == 0 {
		updated = parseTime(m.ReceivedDateTime)
	}
	return &types.Draft{
		ID:        m.ID,
		AccountID: accountID,
		RemoteID:  m.ID,
		To:        joinRecipients(m.ToRecipients),
		Cc:        joinRecipients(m.CcRecipients),
		Bcc:       joinRecipients(m.BccRecipients),
		Subject:   m.Subject,
		BodyText:  text,
		BodyHTML:  html,
		UpdatedAt: updated,
	}
}

// inlineRef adapts a file attachment to the extractor's descriptor.
func (a *attachment) inlineRef() mailparse.AttachmentRef {
	return mailparse.AttachmentRef{
		AttachmentID: a.ID,
		ContentID:    mailparse.CleanContentID(a.ContentID),
		Filename:     a.Name,
		MimeType:     strings.ToLower(a.ContentType),
		Size:         a.Size,
		Data:         a.ContentBytes,
	}
}
