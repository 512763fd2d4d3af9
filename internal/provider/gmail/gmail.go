// Package gmail implements the provider contract over the Gmail REST API.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/brandon/mail-sync/internal/labels"
	"github.com/brandon/mail-sync/internal/mailparse"
	"github.com/brandon/mail-sync/internal/provider"
	"github.com/brandon/mail-sync/pkg/types"
)

const (
	labelInbox   = "INBOX"
	labelSent    = "SENT"
	labelUnread  = "UNREAD"
	labelStarred = "STARRED"
	user         = "me"
)

// Adapter syncs one Gmail account
type Adapter struct {
	account    types.Account
	store      provider.Store
	tokens     provider.TokenProvider
	logger     *logrus.Logger
	breaker    *provider.Breaker
	endpoint   string
	httpClient *http.Client
}

// Option customizes an Adapter
type Option func(*Adapter)

// WithEndpoint overrides the API base URL.
func WithEndpoint(endpoint string) Option {
	return func(a *Adapter) { a.endpoint = endpoint }
}

// WithHTTPClient sets the base transport the bearer client wraps.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.httpClient = c }
}

// New creates a Gmail adapter for account
func New(account types.Account, store provider.Store, tokens provider.TokenProvider, logger *logrus.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		account: account,
		store:   store,
		tokens:  tokens,
		logger:  logger,
		breaker: provider.NewBreaker("gmail-api", logger, tripping),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func tripping(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return provider.TripsOnStatus(apiErr.Code)
	}
	return true
}

func (a *Adapter) log() *logrus.Entry {
	return a.logger.WithFields(logrus.Fields{
		"account":  a.account.ID,
		"provider": string(types.ProviderGmail),
	})
}

// service builds a Gmail client authorized with the account's current token.
func (a *Adapter) service(ctx context.Context) (*gmail.Service, error) {
	token, err := provider.ResolveToken(ctx, a.tokens, a.account.ID)
	if err != nil {
		return nil, err
	}

	base := a.httpClient
	if base == nil {
		base = http.DefaultClient
	}
	client := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, base),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
	)

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if a.endpoint != "" {
		opts = append(opts, option.WithEndpoint(a.endpoint))
	}
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return svc, nil
}

// wrapError classifies API failures. 401 and non-quota 403 need re-authorization.
func wrapError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized:
			return &provider.AuthError{Op: op, Err: err}
		case apiErr.Code == http.StatusForbidden && !strings.Contains(strings.ToLower(apiErr.Message), "rate limit"):
			return &provider.AuthError{Op: op, Err: err}
		case apiErr.Code == http.StatusNotFound:
			return fmt.Errorf("failed to %s: %w: %v", op, provider.ErrNotFound, err)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// Sync pulls the INBOX listing and reconciles local active state against it.
func (a *Adapter) Sync(ctx context.Context, opts provider.SyncOptions) types.SyncResult {
	return a.syncFolder(ctx, opts, labelInbox, types.FolderInbox)
}

// SyncSent pulls the SENT listing. Sent mail is never reconciled.
func (a *Adapter) SyncSent(ctx context.Context, opts provider.SyncOptions) types.SyncResult {
	return a.syncFolder(ctx, opts, labelSent, types.FolderSent)
}

func (a *Adapter) syncFolder(ctx context.Context, opts provider.SyncOptions, labelID, folder string) types.SyncResult {
	log := a.log().WithField("folder", folder)

	svc, err := a.service(ctx)
	if err != nil {
		return provider.Failed(err, 0)
	}

	if err := a.syncLabels(ctx, svc); err != nil {
		log.WithError(err).Error("Label sync failed")
		return provider.Failed(err, 0)
	}

	var list *gmail.ListMessagesResponse
	err = a.breaker.Do("messages.list", func() error {
		var apiErr error
		list, apiErr = svc.Users.Messages.List(user).
			LabelIds(labelID).
			MaxResults(int64(opts.Limit())).
			Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return provider.Failed(wrapError(err, "list messages"), 0)
	}

	ids := make([]string, 0, len(list.Messages))
	for _, m := range list.Messages {
		ids = append(ids, m.Id)
	}
	total := len(ids)

	messages, err := provider.FetchBatched(ctx, ids,
		func(ctx context.Context, id string) (*gmail.Message, error) {
			var msg *gmail.Message
			err := a.breaker.Do("messages.get", func() error {
				var apiErr error
				msg, apiErr = svc.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
				return apiErr
			})
			return msg, err
		},
		func(id string, err error) {
			log.WithField("message_id", id).WithError(err).Warn("Skipping message that failed to fetch")
		})
	if err != nil {
		return provider.Failed(err, total)
	}

	synced := 0
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		if err := a.persistMessage(ctx, svc, msg, folder); err != nil {
			log.WithError(err).Error("Store write failed, aborting sync")
			return types.SyncResult{Synced: synced, Total: total, Error: err.Error()}
		}
		synced++
	}

	if folder == types.FolderInbox {
		// Listed ids count as seen even when their fetch failed.
		if _, err := provider.Reconcile(ctx, a.store, a.logger, a.account.ID, ids); err != nil {
			return types.SyncResult{Synced: synced, Total: total, Error: err.Error()}
		}
	}

	log.WithFields(logrus.Fields{"synced": synced, "total": total}).Info("Sync complete")
	return types.SyncResult{Synced: synced, Total: total}
}

// syncLabels upserts every non-system label so message edges can resolve.
func (a *Adapter) syncLabels(ctx context.Context, svc *gmail.Service) error {
	var resp *gmail.ListLabelsResponse
	err := a.breaker.Do("labels.list", func() error {
		var apiErr error
		resp, apiErr = svc.Users.Labels.List(user).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return wrapError(err, "list labels")
	}

	for _, l := range resp.Labels {
		color := ""
		if l.Color != nil {
			color = l.Color.BackgroundColor
		}
		label, ok := labels.MapGmail(a.account.ID, l.Id, l.Name, color)
		if !ok {
			continue
		}
		if err := a.store.UpsertLabel(ctx, &label); err != nil {
			return err
		}
	}
	return nil
}

// persistMessage writes the email, its label edges and its inline images.
func (a *Adapter) persistMessage(ctx context.Context, svc *gmail.Service, msg *gmail.Message, folder string) error {
	email, extracted := convertMessage(a.account.ID, msg, folder)

	if err := a.store.UpsertEmail(ctx, email); err != nil {
		return err
	}

	var labelIDs []string
	for _, remote := range msg.LabelIds {
		id := labels.GmailLabelID(a.account.ID, remote)
		label, err := a.store.GetLabel(ctx, id)
		if err != nil {
			return err
		}
		if label != nil {
			labelIDs = append(labelIDs, id)
		}
	}
	if err := provider.ReplaceLabels(ctx, a.store, email.ID, labelIDs); err != nil {
		return err
	}

	for _, ref := range extracted.InlineImages() {
		data := ref.Data
		if len(data) == 0 && ref.AttachmentID != "" {
			fetched, err := a.fetchAttachment(ctx, svc, msg.Id, ref.AttachmentID)
			if err != nil {
				a.log().WithFields(logrus.Fields{
					"message_id": msg.Id,
					"content_id": ref.ContentID,
				}).WithError(err).Warn("Skipping inline image")
				continue
			}
			data = fetched
		}
		att := &types.Attachment{
			ID:        types.AttachmentID(email.ID, ref.ContentID),
			EmailID:   email.ID,
			ContentID: ref.ContentID,
			Filename:  ref.Filename,
			MimeType:  ref.MimeType,
			Size:      len(data),
			Data:      data,
		}
		if err := a.store.UpsertAttachment(ctx, att); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) fetchAttachment(ctx context.Context, svc *gmail.Service, messageID, attachmentID string) ([]byte, error) {
	var body *gmail.MessagePartBody
	err := a.breaker.Do("attachments.get", func() error {
		var apiErr error
		body, apiErr = svc.Users.Messages.Attachments.Get(user, messageID, attachmentID).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return nil, wrapError(err, "get attachment")
	}
	data, err := mailparse.DecodeBase64URL(body.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attachment: %w", err)
	}
	return data, nil
}
