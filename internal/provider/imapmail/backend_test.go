package imapmail

import (
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend"
)

// moveBackend adds MOVE to a backend whose mailboxes lack it, since the
// server advertises the extension unconditionally.
type moveBackend struct {
	backend.Backend
}

func (b moveBackend) Login(info *imap.ConnInfo, username, password string) (backend.User, error) {
	u, err := b.Backend.Login(info, username, password)
	if err != nil {
		return nil, err
	}
	return moveUser{u}, nil
}

type moveUser struct {
	backend.User
}

func (u moveUser) GetMailbox(name string) (backend.Mailbox, error) {
	mbox, err := u.User.GetMailbox(name)
	if err != nil {
		return nil, err
	}
	return moveMailbox{mbox}, nil
}

func (u moveUser) ListMailboxes(subscribed bool) ([]backend.Mailbox, error) {
	mailboxes, err := u.User.ListMailboxes(subscribed)
	if err != nil {
		return nil, err
	}
	wrapped := make([]backend.Mailbox, len(mailboxes))
	for i, mbox := range mailboxes {
		wrapped[i] = moveMailbox{mbox}
	}
	return wrapped, nil
}

type moveMailbox struct {
	backend.Mailbox
}

func (m moveMailbox) MoveMessages(uid bool, seqset *imap.SeqSet, dest string) error {
	if err := m.CopyMessages(uid, seqset, dest); err != nil {
		return err
	}
	if err := m.UpdateMessagesFlags(uid, seqset, imap.AddFlags, []string{imap.DeletedFlag}); err != nil {
		return err
	}
	return m.Expunge()
}

var _ backend.MoveMailbox = moveMailbox{}
