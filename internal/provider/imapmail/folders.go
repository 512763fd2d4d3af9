package imapmail

import (
	"fmt"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

const mailboxInbox = "INBOX"

// folderRole is a special-use mailbox located by well-known names first and
// the server's special-use attribute second.
type folderRole struct {
	name   string
	names  []string
	attr   string
	create string
}

var (
	archiveRole = folderRole{
		name:   "archive",
		names:  []string{"Archive", "Archives", "[Gmail]/All Mail", "INBOX.Archive"},
		attr:   imap.ArchiveAttr,
		create: "Archive",
	}
	trashRole = folderRole{
		name:  "trash",
		names: []string{"Trash", "Deleted Items", "Deleted Messages", "[Gmail]/Trash", "INBOX.Trash", "Bin"},
		attr:  imap.TrashAttr,
	}
	sentRole = folderRole{
		name:  "sent",
		names: []string{"Sent", "Sent Items", "Sent Messages", "Sent Mail", "[Gmail]/Sent Mail", "INBOX.Sent"},
		attr:  imap.SentAttr,
	}
	draftsRole = folderRole{
		name:  "drafts",
		names: []string{"Drafts", "Draft", "[Gmail]/Drafts", "INBOX.Drafts"},
		attr:  imap.DraftsAttr,
	}
)

func listMailboxes(c *client.Client) ([]*imap.MailboxInfo, error) {
	ch := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.List("", "*", ch)
	}()

	var out []*imap.MailboxInfo
	for m := range ch {
		out = append(out, m)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to list mailboxes: %w", err)
	}
	return out, nil
}

// resolve picks the role's mailbox from a listing, or "" when absent.
func (r folderRole) resolve(mailboxes []*imap.MailboxInfo) string {
	for _, want := range r.names {
		for _, m := range mailboxes {
			if strings.EqualFold(m.Name, want) {
				return m.Name
			}
		}
	}
	for _, m := range mailboxes {
		for _, attr := range m.Attributes {
			if strings.EqualFold(attr, r.attr) {
				return m.Name
			}
		}
	}
	return ""
}

func findFolder(c *client.Client, role folderRole) (string, error) {
	mailboxes, err := listMailboxes(c)
	if err != nil {
		return "", err
	}
	return role.resolve(mailboxes), nil
}
