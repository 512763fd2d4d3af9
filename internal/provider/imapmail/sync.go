package imapmail

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-sync/internal/labels"
	"github.com/brandon/mail-sync/internal/mailparse"
	"github.com/brandon/mail-sync/internal/provider"
	"github.com/brandon/mail-sync/pkg/types"
)

// Id scopes for non-inbox mailboxes. Inbox ids carry no scope.
const (
	scopeSent  = "sent"
	scopeDraft = "draft"
)

// target describes which mailbox a pass reads and how its ids are built.
type target struct {
	mailbox   string
	role      *folderRole
	scope     string
	folder    string
	reconcile bool
}

// window returns the first sequence number of the newest max messages.
func window(total, max uint32) uint32 {
	if max == 0 || total <= max {
		return 1
	}
	return total - max + 1
}

func (a *Adapter) emailID(scope string, uid uint32) string {
	if scope == "" {
		return a.account.ID + ":" + strconv.FormatUint(uint64(uid), 10)
	}
	return a.account.ID + ":" + scope + ":" + strconv.FormatUint(uint64(uid), 10)
}

// Sync reads the newest messages of INBOX and reconciles local active state.
// A Folder option reads that mailbox instead, without reconciliation.
func (a *Adapter) Sync(ctx context.Context, opts provider.SyncOptions) types.SyncResult {
	t := target{mailbox: mailboxInbox, folder: types.FolderInbox, reconcile: true}
	if opts.Folder != "" && !strings.EqualFold(opts.Folder, mailboxInbox) {
		t = target{mailbox: opts.Folder, scope: opts.Folder, folder: types.FolderInbox}
	}
	return a.syncMailbox(ctx, opts, t)
}

// SyncSent reads the sent mailbox. Sent mail is never reconciled.
func (a *Adapter) SyncSent(ctx context.Context, opts provider.SyncOptions) types.SyncResult {
	return a.syncMailbox(ctx, opts, target{role: &sentRole, scope: scopeSent, folder: types.FolderSent})
}

// fetchWindow selects mailbox read-only and fetches its newest messages with
// envelope, flags and the full body peeked so nothing is marked seen.
func fetchWindow(c *client.Client, mailbox string, max int) ([]*imap.Message, *imap.BodySectionName, error) {
	mbox, err := c.Select(mailbox, true)
	if err != nil {
		return nil, nil, &provider.ProtocolError{Op: "select", Folder: mailbox, Err: err}
	}
	section := &imap.BodySectionName{Peek: true}
	if mbox.Messages == 0 {
		return nil, section, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddRange(window(mbox.Messages, uint32(max)), mbox.Messages)
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchUid,
		imap.FetchInternalDate,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	var out []*imap.Message
	for msg := range messages {
		out = append(out, msg)
	}
	if err := <-done; err != nil {
		return nil, nil, &provider.ProtocolError{Op: "fetch", Folder: mailbox, Err: err}
	}
	return out, section, nil
}

func (a *Adapter) syncMailbox(ctx context.Context, opts provider.SyncOptions, t target) types.SyncResult {
	log := a.log().WithField("folder", t.folder)

	var synced, total int
	var seen []string
	err := a.withSession(ctx, func(c *client.Client) error {
		if a.folderLabels && t.reconcile {
			if err := a.syncFolderLabels(ctx, c); err != nil {
				return err
			}
		}

		mailbox := t.mailbox
		if t.role != nil {
			name, err := findFolder(c, *t.role)
			if err != nil {
				return err
			}
			if name == "" {
				log.Warnf("No %s mailbox found, skipping", t.role.name)
				return nil
			}
			mailbox = name
		}

		messages, section, err := fetchWindow(c, mailbox, opts.Limit())
		if err != nil {
			return err
		}
		total = len(messages)
		seen = make([]string, 0, total)

		for _, msg := range messages {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := a.emailID(t.scope, msg.Uid)
			seen = append(seen, id)

			parsed, err := parseFetched(msg, section)
			if err != nil {
				log.WithFields(logrus.Fields{"uid": msg.Uid}).WithError(err).Warn("Skipping message that failed to parse")
				continue
			}
			if err := a.persistMessage(ctx, id, t.folder, msg, parsed); err != nil {
				log.WithError(err).Error("Store write failed, aborting sync")
				return err
			}
			synced++
		}
		return nil
	})
	if err != nil {
		res := provider.Failed(err, total)
		res.Synced = synced
		return res
	}

	if t.reconcile {
		if _, err := provider.Reconcile(ctx, a.store, a.logger, a.account.ID, seen); err != nil {
			return types.SyncResult{Synced: synced, Total: total, Error: err.Error()}
		}
	}

	log.WithFields(logrus.Fields{"synced": synced, "total": total}).Info("Sync complete")
	return types.SyncResult{Synced: synced, Total: total}
}

func parseFetched(msg *imap.Message, section *imap.BodySectionName) (*mailparse.Message, error) {
	body := msg.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("server returned no body for uid %d", msg.Uid)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return mailparse.ParseRaw(raw)
}

func (a *Adapter) persistMessage(ctx context.Context, id, folder string, msg *imap.Message, parsed *mailparse.Message) error {
	email, extracted := convertMessage(a.account.ID, id, folder, msg, parsed)
	if err := a.store.UpsertEmail(ctx, email); err != nil {
		return err
	}
	for _, ref := range extracted.InlineImages() {
		if len(ref.Data) == 0 {
			continue
		}
		att := &types.Attachment{
			ID:        types.AttachmentID(id, ref.ContentID),
			EmailID:   id,
			ContentID: ref.ContentID,
			Filename:  ref.Filename,
			MimeType:  ref.MimeType,
			Size:      len(ref.Data),
			Data:      ref.Data,
		}
		if err := a.store.UpsertAttachment(ctx, att); err != nil {
			return err
		}
	}
	return nil
}

func envelopeAddresses(list []*imap.Address) []mailparse.Address {
	out := make([]mailparse.Address, 0, len(list))
	for _, addr := range list {
		if addr == nil {
			continue
		}
		out = append(out, mailparse.Address{Name: addr.PersonalName, Email: addr.Address()})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// header is the parsed-source view of the envelope fields.
type header struct {
	messageID string
	inReplyTo string
	subject   string
	from      mailparse.Address
	to        string
	cc        string
	bcc       string
}

func readHeader(msg *imap.Message, parsed *mailparse.Message) header {
	h := header{
		messageID: parsed.Header("Message-Id"),
		inReplyTo: parsed.Header("In-Reply-To"),
		subject:   parsed.Header("Subject"),
		from:      mailparse.ParseAddress(parsed.Header("From")),
		to:        parsed.Header("To"),
		cc:        parsed.Header("Cc"),
		bcc:       parsed.Header("Bcc"),
	}
	env := msg.Envelope
	if env == nil {
		return h
	}
	h.messageID = firstNonEmpty(env.MessageId, h.messageID)
	h.inReplyTo = firstNonEmpty(env.InReplyTo, h.inReplyTo)
	h.subject = firstNonEmpty(env.Subject, h.subject)
	if from := envelopeAddresses(env.From); len(from) > 0 {
		h.from = from[0]
	}
	if len(env.To) > 0 {
		h.to = mailparse.JoinAddresses(envelopeAddresses(env.To))
	}
	if len(env.Cc) > 0 {
		h.cc = mailparse.JoinAddresses(envelopeAddresses(env.Cc))
	}
	if len(env.Bcc) > 0 {
		h.bcc = mailparse.JoinAddresses(envelopeAddresses(env.Bcc))
	}
	return h
}

// threadKey approximates a thread by the first In-Reply-To id, falling
// back to the message's own Message-ID.
func threadKey(h header) string {
	if fields := strings.Fields(h.inReplyTo); len(fields) > 0 {
		return fields[0]
	}
	return h.messageID
}

func receivedAt(msg *imap.Message) int64 {
	if !msg.InternalDate.IsZero() {
		return msg.InternalDate.Unix()
	}
	if msg.Envelope != nil && !msg.Envelope.Date.IsZero() {
		return msg.Envelope.Date.Unix()
	}
	return 0
}

func convertMessage(accountID, id, folder string, msg *imap.Message, parsed *mailparse.Message) (*types.Email, *mailparse.Extracted) {
	h := readHeader(msg, parsed)
	extracted := parsed.Extract()

	email := &types.Email{
		ID:         id,
		AccountID:  accountID,
		ThreadID:   threadKey(h),
		MessageID:  h.messageID,
		Subject:    h.subject,
		Snippet:    mailparse.Snippet(extracted.Text, extracted.HTML),
		FromName:   h.from.Name,
		FromEmail:  h.from.Email,
		To:         h.to,
		Cc:         h.cc,
		Bcc:        h.bcc,
		BodyText:   extracted.Text,
		BodyHTML:   extracted.HTML,
		LabelIDs:   []string{},
		ReceivedAt: receivedAt(msg),
		Folder:     folder,
	}
	for _, flag := range msg.Flags {
		switch flag {
		case imap.SeenFlag:
			email.IsRead = true
		case imap.FlaggedFlag:
			email.IsStarred = true
		}
	}
	return email, extracted
}

// SyncDrafts reads the drafts mailbox into the local draft table.
func (a *Adapter) SyncDrafts(ctx context.Context, opts provider.SyncOptions) types.SyncResult {
	var synced, total int
	err := a.withSession(ctx, func(c *client.Client) error {
		mailbox, err := findFolder(c, draftsRole)
		if err != nil {
			return err
		}
		if mailbox == "" {
			return nil
		}
		messages, section, err := fetchWindow(c, mailbox, opts.Limit())
		if err != nil {
			return err
		}
		total = len(messages)
		for _, msg := range messages {
			parsed, err := parseFetched(msg, section)
			if err != nil {
				a.log().WithField("uid", msg.Uid).WithError(err).Warn("Skipping draft that failed to parse")
				continue
			}
			h := readHeader(msg, parsed)
			extracted := parsed.Extract()
			draft := &types.Draft{
				ID:        a.emailID(scopeDraft, msg.Uid),
				AccountID: a.account.ID,
				RemoteID:  strconv.FormatUint(uint64(msg.Uid), 10),
				To:        h.to,
				Cc:        h.cc,
				Bcc:       h.bcc,
				Subject:   h.subject,
				BodyText:  extracted.Text,
				BodyHTML:  extracted.HTML,
				UpdatedAt: receivedAt(msg),
			}
			if err := a.store.UpsertDraft(ctx, draft); err != nil {
				return err
			}
			synced++
		}
		return nil
	})
	if err != nil {
		res := provider.Failed(err, total)
		res.Synced = synced
		return res
	}
	return types.SyncResult{Synced: synced, Total: total}
}

// SyncFolders maps every non-special mailbox onto a folder label.
func (a *Adapter) SyncFolders(ctx context.Context) error {
	return a.withSession(ctx, func(c *client.Client) error {
		return a.syncFolderLabels(ctx, c)
	})
}

func (a *Adapter) syncFolderLabels(ctx context.Context, c *client.Client) error {
	mailboxes, err := listMailboxes(c)
	if err != nil {
		return err
	}
	for _, m := range mailboxes {
		label, ok := labels.MapFolder(a.account.ID, m.Name, m.Delimiter, m.Attributes)
		if !ok {
			continue
		}
		if err := a.store.UpsertLabel(ctx, &label); err != nil {
			return err
		}
	}
	return nil
}
