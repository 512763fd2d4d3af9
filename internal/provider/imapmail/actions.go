package imapmail

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-sync/internal/provider"
	"github.com/brandon/mail-sync/pkg/types"
)

// parseID splits "<account>:[scope:]<uid>" into the scope and UID.
func parseID(accountID, id string) (string, uint32, error) {
	rest, ok := strings.CutPrefix(id, accountID+":")
	if !ok {
		return "", 0, fmt.Errorf("message id %q does not belong to account %s: %w", id, accountID, provider.ErrNotFound)
	}
	scope := ""
	if i := strings.LastIndex(rest, ":"); i >= 0 {
		scope, rest = rest[:i], rest[i+1:]
	}
	uid, err := strconv.ParseUint(rest, 10, 32)
	if err != nil || uid == 0 {
		return "", 0, fmt.Errorf("message id %q has no valid uid: %w", id, provider.ErrNotFound)
	}
	return scope, uint32(uid), nil
}

func mailboxFor(c *client.Client, scope string) (string, error) {
	var role folderRole
	switch scope {
	case "":
		return mailboxInbox, nil
	case scopeSent:
		role = sentRole
	case scopeDraft:
		role = draftsRole
	default:
		return scope, nil
	}
	name, err := findFolder(c, role)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", &provider.ProtocolError{Op: "locate", Folder: role.name, Err: provider.ErrNotFound}
	}
	return name, nil
}

func uidSet(uid uint32) *imap.SeqSet {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	return seqset
}

// storedMessageID returns the Message-ID cached for id, if any.
func (a *Adapter) storedMessageID(ctx context.Context, id string) (string, error) {
	email, err := a.store.GetEmail(ctx, id)
	if err != nil {
		return "", err
	}
	if email == nil {
		return "", nil
	}
	return email.MessageID, nil
}

func searchMessageID(c *client.Client, messageID string) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("Message-Id", messageID)
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search by message id: %w", err)
	}
	return uids, nil
}

// selectMessage opens the id's mailbox read-write and resolves its UID.
// When the Message-ID is cached the UID is re-resolved by search, since
// moves elsewhere renumber the message.
func (a *Adapter) selectMessage(ctx context.Context, c *client.Client, id string) (string, *imap.SeqSet, error) {
	scope, uid, err := parseID(a.account.ID, id)
	if err != nil {
		return "", nil, err
	}
	mailbox, err := mailboxFor(c, scope)
	if err != nil {
		return "", nil, err
	}
	if _, err := c.Select(mailbox, false); err != nil {
		return "", nil, &provider.ProtocolError{Op: "select", Folder: mailbox, Err: err}
	}

	messageID, err := a.storedMessageID(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if messageID == "" {
		return mailbox, uidSet(uid), nil
	}
	uids, err := searchMessageID(c, messageID)
	if err != nil {
		return "", nil, err
	}
	if len(uids) == 0 {
		return "", nil, fmt.Errorf("message %s in %s: %w", id, mailbox, provider.ErrNotFound)
	}
	return mailbox, uidSet(uids[0]), nil
}

func storeFlag(c *client.Client, seqset *imap.SeqSet, op imap.FlagsOp, flag string) error {
	item := imap.FormatFlagsOp(op, true)
	if err := c.UidStore(seqset, item, []interface{}{flag}, nil); err != nil {
		return fmt.Errorf("failed to store flag %s: %w", flag, err)
	}
	return nil
}

// move relies on the client falling back to COPY, \Deleted and EXPUNGE
// when the server lacks MOVE.
func move(c *client.Client, seqset *imap.SeqSet, dest string) error {
	if err := c.UidMove(seqset, dest); err != nil {
		return &provider.ProtocolError{Op: "move", Folder: dest, Err: err}
	}
	return nil
}

func expungeSet(c *client.Client, seqset *imap.SeqSet) error {
	if err := storeFlag(c, seqset, imap.AddFlags, imap.DeletedFlag); err != nil {
		return err
	}
	if err := c.Expunge(nil); err != nil {
		return fmt.Errorf("failed to expunge: %w", err)
	}
	return nil
}

func (a *Adapter) setFlag(ctx context.Context, id string, op imap.FlagsOp, flag string) error {
	return a.withSession(ctx, func(c *client.Client) error {
		_, seqset, err := a.selectMessage(ctx, c, id)
		if err != nil {
			return err
		}
		return storeFlag(c, seqset, op, flag)
	})
}

// MarkRead adds \Seen.
func (a *Adapter) MarkRead(ctx context.Context, id string) error {
	return a.setFlag(ctx, id, imap.AddFlags, imap.SeenFlag)
}

// MarkUnread removes \Seen.
func (a *Adapter) MarkUnread(ctx context.Context, id string) error {
	return a.setFlag(ctx, id, imap.RemoveFlags, imap.SeenFlag)
}

// Star adds \Flagged.
func (a *Adapter) Star(ctx context.Context, id string) error {
	return a.setFlag(ctx, id, imap.AddFlags, imap.FlaggedFlag)
}

// Unstar removes \Flagged.
func (a *Adapter) Unstar(ctx context.Context, id string) error {
	return a.setFlag(ctx, id, imap.RemoveFlags, imap.FlaggedFlag)
}

// archiveFolder locates the archive mailbox, creating it when the server
// has none.
func archiveFolder(c *client.Client) (string, error) {
	name, err := findFolder(c, archiveRole)
	if err != nil {
		return "", err
	}
	if name != "" {
		return name, nil
	}
	if err := c.Create(archiveRole.create); err != nil {
		return "", &provider.ProtocolError{
			Op:     "create",
			Folder: archiveRole.create,
			Err:    errors.Join(provider.ErrNoArchiveFolder, err),
		}
	}
	return archiveRole.create, nil
}

// Archive moves the message out of its mailbox into the archive mailbox.
func (a *Adapter) Archive(ctx context.Context, id string) error {
	return a.withSession(ctx, func(c *client.Client) error {
		dest, err := archiveFolder(c)
		if err != nil {
			return err
		}
		_, seqset, err := a.selectMessage(ctx, c, id)
		if err != nil {
			return err
		}
		return move(c, seqset, dest)
	})
}

// restore finds the message by Message-ID in the role's mailbox and moves
// it back to INBOX.
func (a *Adapter) restore(ctx context.Context, id string, role folderRole) error {
	messageID, err := a.storedMessageID(ctx, id)
	if err != nil {
		return err
	}
	if messageID == "" {
		return fmt.Errorf("message %s has no cached Message-ID: %w", id, provider.ErrNotFound)
	}

	var restored uint32
	err = a.withSession(ctx, func(c *client.Client) error {
		mailbox, err := findFolder(c, role)
		if err != nil {
			return err
		}
		if mailbox == "" {
			if role.name == archiveRole.name {
				return &provider.ProtocolError{Op: "locate", Folder: role.name, Err: provider.ErrNoArchiveFolder}
			}
			return &provider.ProtocolError{Op: "locate", Folder: role.name, Err: provider.ErrNotFound}
		}
		if _, err := c.Select(mailbox, false); err != nil {
			return &provider.ProtocolError{Op: "select", Folder: mailbox, Err: err}
		}
		uids, err := searchMessageID(c, messageID)
		if err != nil {
			return err
		}
		if len(uids) == 0 {
			return fmt.Errorf("message %s in %s: %w", id, mailbox, provider.ErrNotFound)
		}
		if err := move(c, uidSet(uids[0]), mailboxInbox); err != nil {
			return err
		}

		if _, err := c.Select(mailboxInbox, true); err != nil {
			return &provider.ProtocolError{Op: "select", Folder: mailboxInbox, Err: err}
		}
		uids, err = searchMessageID(c, messageID)
		if err != nil {
			return err
		}
		for _, uid := range uids {
			restored = max(restored, uid)
		}
		return nil
	})
	if err != nil || restored == 0 {
		return err
	}
	return a.rekey(ctx, id, a.emailID("", restored))
}

// rekey moves a cached row to the id its message now has in INBOX, so the
// next sync updates it instead of inserting a duplicate.
func (a *Adapter) rekey(ctx context.Context, oldID, newID string) error {
	if oldID == newID {
		return nil
	}
	email, err := a.store.GetEmail(ctx, oldID)
	if err != nil || email == nil {
		return err
	}
	moved := *email
	moved.ID = newID
	moved.Folder = types.FolderInbox
	moved.IsArchived = false
	if err := a.store.UpsertEmail(ctx, &moved); err != nil {
		return fmt.Errorf("failed to store restored email: %w", err)
	}
	if err := a.store.DeleteEmail(ctx, oldID); err != nil {
		return fmt.Errorf("failed to drop previous email row: %w", err)
	}
	a.log().WithFields(logrus.Fields{"from": oldID, "to": newID}).Debug("Re-keyed restored email")
	return nil
}

// Unarchive moves the message from the archive mailbox back to INBOX.
func (a *Adapter) Unarchive(ctx context.Context, id string) error {
	return a.restore(ctx, id, archiveRole)
}

// Trash moves the message to the trash mailbox, or flags and expunges it
// when the server has none.
func (a *Adapter) Trash(ctx context.Context, id string) error {
	return a.withSession(ctx, func(c *client.Client) error {
		dest, err := findFolder(c, trashRole)
		if err != nil {
			return err
		}
		mailbox, seqset, err := a.selectMessage(ctx, c, id)
		if err != nil {
			return err
		}
		if dest == "" || strings.EqualFold(dest, mailbox) {
			return expungeSet(c, seqset)
		}
		return move(c, seqset, dest)
	})
}

// Untrash moves the message from the trash mailbox back to INBOX.
func (a *Adapter) Untrash(ctx context.Context, id string) error {
	return a.restore(ctx, id, trashRole)
}

// PermanentDelete flags the message \Deleted and expunges its mailbox.
func (a *Adapter) PermanentDelete(ctx context.Context, id string) error {
	return a.withSession(ctx, func(c *client.Client) error {
		_, seqset, err := a.selectMessage(ctx, c, id)
		if err != nil {
			return err
		}
		return expungeSet(c, seqset)
	})
}

// DeleteDraft expunges a draft by its draft-scoped id.
func (a *Adapter) DeleteDraft(ctx context.Context, id string) error {
	scope, uid, err := parseID(a.account.ID, id)
	if err != nil {
		return err
	}
	if scope != scopeDraft {
		return fmt.Errorf("id %q is not a draft: %w", id, provider.ErrNotFound)
	}
	return a.withSession(ctx, func(c *client.Client) error {
		mailbox, err := mailboxFor(c, scopeDraft)
		if err != nil {
			return err
		}
		if _, err := c.Select(mailbox, false); err != nil {
			return &provider.ProtocolError{Op: "select", Folder: mailbox, Err: err}
		}
		return expungeSet(c, uidSet(uid))
	})
}
