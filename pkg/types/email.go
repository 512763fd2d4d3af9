package types

// Folder scopes carried on every synced email.
const (
	FolderInbox = "inbox"
	FolderSent  = "sent"
)

// Email represents a synced message in the local canonical store
type Email struct {
	ID         string   `json:"id"`
	AccountID  string   `json:"account_id"`
	ThreadID   string   `json:"thread_id"`
	MessageID  string   `json:"message_id"`
	Subject    string   `json:"subject"`
	Snippet    string   `json:"snippet"`
	FromName   string   `json:"from_name"`
	FromEmail  string   `json:"from_email"`
	To         string   `json:"to"`
	Cc         string   `json:"cc,omitempty"`
	Bcc        string   `json:"bcc,omitempty"`
	BodyText   string   `json:"body_text,omitempty"`
	BodyHTML   string   `json:"body_html,omitempty"`
	LabelIDs   []string `json:"label_ids"`
	IsRead     bool     `json:"is_read"`
	IsStarred  bool     `json:"is_starred"`
	IsArchived bool     `json:"is_archived"`
	ReceivedAt int64    `json:"received_at"`
	Folder     string   `json:"folder"`
}

// EmailSummary represents a summary of an email (for search results)
type EmailSummary struct {
	ID         string `json:"id"`
	AccountID  string `json:"account_id"`
	Folder     string `json:"folder"`
	Subject    string `json:"subject"`
	FromName   string `json:"from_name"`
	FromEmail  string `json:"from_email"`
	ReceivedAt int64  `json:"received_at"`
	Snippet    string `json:"snippet"`
	IsArchived bool   `json:"is_archived"`
}

// Attachment is an inline image referenced from an HTML body by cid.
// Only parts with a Content-ID and an image/* type are ever stored.
type Attachment struct {
	ID        string `json:"id"`
	EmailID   string `json:"email_id"`
	ContentID string `json:"content_id"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mime_type"`
	Size      int    `json:"size"`
	Data      []byte `json:"-"`
}

// AttachmentID builds the composite attachment key.
func AttachmentID(emailID, contentID string) string {
	return emailID + ":" + contentID
}

// Draft represents an unsent message synced from a provider's drafts
type Draft struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	RemoteID  string `json:"remote_id"`
	To        string `json:"to"`
	Cc        string `json:"cc,omitempty"`
	Bcc       string `json:"bcc,omitempty"`
	Subject   string `json:"subject"`
	BodyText  string `json:"body_text,omitempty"`
	BodyHTML  string `json:"body_html,omitempty"`
	UpdatedAt int64  `json:"updated_at"`
}

// SyncResult reports the outcome of a bulk sync pass. It is returned, never raised.
type SyncResult struct {
	Synced      int    `json:"synced"`
	Total       int    `json:"total"`
	Error       string `json:"error,omitempty"`
	NeedsReauth bool   `json:"needs_reauth,omitempty"`
}

// OK reports whether the pass finished without error.
func (r SyncResult) OK() bool {
	return r.Error == ""
}

// SendParams describes an outbound message
type SendParams struct {
	To         []string `json:"to"`
	Cc         []string `json:"cc,omitempty"`
	Bcc        []string `json:"bcc,omitempty"`
	Subject    string   `json:"subject"`
	BodyText   string   `json:"body_text,omitempty"`
	BodyHTML   string   `json:"body_html,omitempty"`
	InReplyTo  string   `json:"in_reply_to,omitempty"`
	References string   `json:"references,omitempty"`
	ThreadID   string   `json:"thread_id,omitempty"`
}

// SendResult is returned by a successful send
type SendResult struct {
	ID       string `json:"id,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`
}
