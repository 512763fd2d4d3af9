package gmail

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/gmail/v1"

	"github.com/brandon/mail-sync/internal/mailparse"
	"github.com/brandon/mail-sync/internal/provider"
	"github.com/brandon/mail-sync/pkg/types"
)

// SyncDrafts pulls the drafts listing into the local draft table.
func (a *Adapter) SyncDrafts(ctx context.Context, opts provider.SyncOptions) types.SyncResult {
	log := a.log().WithField("folder", "drafts")

	svc, err := a.service(ctx)
	if err != nil {
		return provider.Failed(err, 0)
	}

	var list *gmail.ListDraftsResponse
	err = a.breaker.Do("drafts.list", func() error {
		var apiErr error
		list, apiErr = svc.Users.Drafts.List(user).MaxResults(int64(opts.Limit())).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return provider.Failed(wrapError(err, "list drafts"), 0)
	}

	ids := make([]string, 0, len(list.Drafts))
	for _, d := range list.Drafts {
		ids = append(ids, d.Id)
	}

	drafts, err := provider.FetchBatched(ctx, ids,
		func(ctx context.Context, id string) (*gmail.Draft, error) {
			var d *gmail.Draft
			err := a.breaker.Do("drafts.get", func() error {
				var apiErr error
				d, apiErr = svc.Users.Drafts.Get(user, id).Format("full").Context(ctx).Do()
				return apiErr
			})
			return d, err
		},
		func(id string, err error) {
			log.WithField("draft_id", id).WithError(err).Warn("Skipping draft that failed to fetch")
		})
	if err != nil {
		return provider.Failed(err, len(ids))
	}

	synced := 0
	for _, d := range drafts {
		if d == nil {
			continue
		}
		if err := a.store.UpsertDraft(ctx, convertDraft(a.account.ID, d)); err != nil {
			return types.SyncResult{Synced: synced, Total: len(ids), Error: err.Error()}
		}
		synced++
	}
	return types.SyncResult{Synced: synced, Total: len(ids)}
}

func (a *Adapter) modify(ctx context.Context, op, id string, add, remove []string) error {
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	req := &gmail.ModifyMessageRequest{AddLabelIds: add, RemoveLabelIds: remove}
	err = a.breaker.Do("messages.modify", func() error {
		_, apiErr := svc.Users.Messages.Modify(user, id, req).Context(ctx).Do()
		return apiErr
	})
	return wrapError(err, op)
}

// MarkRead removes the UNREAD label.
func (a *Adapter) MarkRead(ctx context.Context, id string) error {
	return a.modify(ctx, "mark read", id, nil, []string{labelUnread})
}

// MarkUnread adds the UNREAD label.
func (a *Adapter) MarkUnread(ctx context.Context, id string) error {
	return a.modify(ctx, "mark unread", id, []string{labelUnread}, nil)
}

// Star adds the STARRED label.
func (a *Adapter) Star(ctx context.Context, id string) error {
	return a.modify(ctx, "star", id, []string{labelStarred}, nil)
}

// Unstar removes the STARRED label.
func (a *Adapter) Unstar(ctx context.Context, id string) error {
	return a.modify(ctx, "unstar", id, nil, []string{labelStarred})
}

// Archive removes the INBOX label.
func (a *Adapter) Archive(ctx context.Context, id string) error {
	return a.modify(ctx, "archive", id, nil, []string{labelInbox})
}

// Unarchive restores the INBOX label.
func (a *Adapter) Unarchive(ctx context.Context, id string) error {
	return a.modify(ctx, "unarchive", id, []string{labelInbox}, nil)
}

// Trash moves a message to the trash.
func (a *Adapter) Trash(ctx context.Context, id string) error {
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	err = a.breaker.Do("messages.trash", func() error {
		_, apiErr := svc.Users.Messages.Trash(user, id).Context(ctx).Do()
		return apiErr
	})
	return wrapError(err, "trash message")
}

// Untrash restores a message from the trash.
func (a *Adapter) Untrash(ctx context.Context, id string) error {
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	err = a.breaker.Do("messages.untrash", func() error {
		_, apiErr := svc.Users.Messages.Untrash(user, id).Context(ctx).Do()
		return apiErr
	})
	return wrapError(err, "untrash message")
}

// PermanentDelete deletes a message, bypassing the trash.
func (a *Adapter) PermanentDelete(ctx context.Context, id string) error {
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	err = a.breaker.Do("messages.delete", func() error {
		return svc.Users.Messages.Delete(user, id).Context(ctx).Do()
	})
	return wrapError(err, "delete message")
}

// DeleteDraft deletes a draft by draft id.
func (a *Adapter) DeleteDraft(ctx context.Context, id string) error {
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	err = a.breaker.Do("drafts.delete", func() error {
		return svc.Users.Drafts.Delete(user, id).Context(ctx).Do()
	})
	return wrapError(err, "delete draft")
}

// Send submits a hand-built RFC 2822 message as base64url.
func (a *Adapter) Send(ctx context.Context, params types.SendParams) (*types.SendResult, error) {
	svc, err := a.service(ctx)
	if err != nil {
		return nil, err
	}

	from := mailparse.Address{Name: a.account.DisplayName, Email: a.account.Email}
	raw, err := mailparse.BuildRawEmail(mailparse.Outgoing{
		From:       from.Header(),
		To:         params.To,
		Cc:         params.Cc,
		Bcc:        params.Bcc,
		Subject:    params.Subject,
		BodyText:   params.BodyText,
		BodyHTML:   params.BodyHTML,
		InReplyTo:  params.InReplyTo,
		References: params.References,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}

	msg := &gmail.Message{
		Raw:      mailparse.EncodeBase64URL(raw),
		ThreadId: params.ThreadID,
	}

	var sent *gmail.Message
	err = a.breaker.Do("messages.send", func() error {
		var apiErr error
		sent, apiErr = svc.Users.Messages.Send(user, msg).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return nil, wrapError(err, "send message")
	}

	a.log().WithField("message_id", sent.Id).Info("Message sent")
	return &types.SendResult{ID: sent.Id, ThreadID: sent.ThreadId}, nil
}

// ValidateCredentials reports whether the profile endpoint accepts the token.
func (a *Adapter) ValidateCredentials(ctx context.Context) bool {
	svc, err := a.service(ctx)
	if err != nil {
		return false
	}
	profile, err := svc.Users.GetProfile(user).Context(ctx).Do()
	if err != nil {
		a.log().WithError(err).Debug("Credential check failed")
		return false
	}
	a.log().WithFields(logrus.Fields{"email": profile.EmailAddress}).Debug("Credentials valid")
	return true
}
