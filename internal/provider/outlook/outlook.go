// Package outlook implements the provider contract over Microsoft Graph.
package outlook

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-sync/internal/labels"
	"github.com/brandon/mail-sync/internal/provider"
	"github.com/brandon/mail-sync/pkg/types"
)

// Well-known Graph folder names.
const (
	folderInbox   = "inbox"
	folderSent    = "sentitems"
	folderDrafts  = "drafts"
	folderArchive = "archive"
	folderDeleted = "deleteditems"
)

// Adapter syncs one Microsoft account
type Adapter struct {
	account    types.Account
	store      provider.Store
	tokens     provider.TokenProvider
	logger     *logrus.Logger
	breaker    *provider.Breaker
	baseURL    string
	httpClient *http.Client
}

// Option customizes an Adapter
type Option func(*Adapter)

// WithBaseURL overrides the Graph root.
func WithBaseURL(u string) Option {
	return func(a *Adapter) { a.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the base transport the bearer client wraps.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.httpClient = c }
}

// New creates a Graph adapter for account
func New(account types.Account, store provider.Store, tokens provider.TokenProvider, logger *logrus.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		account: account,
		store:   store,
		tokens:  tokens,
		logger:  logger,
		breaker: provider.NewBreaker("graph-api", logger, tripping),
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) log() *logrus.Entry {
	return a.logger.WithFields(logrus.Fields{
		"account":  a.account.ID,
		"provider": string(types.ProviderMicrosoft),
	})
}

func listPath(folder string, limit int) string {
	q := url.Values{}
	q.Set("$top", strconv.Itoa(limit))
	q.Set("$select", strings.Join(messageSelect, ","))
	q.Set("$orderby", "receivedDateTime desc")
	return "/me/mailFolders/" + folder + "/messages?" + q.Encode()
}

// Sync pulls the inbox folder and reconciles local active state against it.
func (a *Adapter) Sync(ctx context.Context, opts provider.SyncOptions) types.SyncResult {
	return a.syncFolder(ctx, opts, folderInbox, types.FolderInbox)
}

// SyncSent pulls the sent items folder. Sent mail is never reconciled.
func (a *Adapter) SyncSent(ctx context.Context, opts provider.SyncOptions) types.SyncResult {
	return a.syncFolder(ctx, opts, folderSent, types.FolderSent)
}

func (a *Adapter) syncFolder(ctx context.Context, opts provider.SyncOptions, remoteFolder, folder string) types.SyncResult {
	log := a.log().WithField("folder", folder)

	c, err := a.client(ctx)
	if err != nil {
		return provider.Failed(err, 0)
	}

	if err := a.syncCategories(ctx, c, log); err != nil {
		log.WithError(err).Error("Store write failed, aborting sync")
		return provider.Failed(err, 0)
	}

	var list messageList
	if err := c.do(ctx, http.MethodGet, listPath(remoteFolder, opts.Limit()), nil, &list); err != nil {
		return provider.Failed(classify(err, "list messages"), 0)
	}

	total := len(list.Value)
	seen := make([]string, 0, total)
	synced := 0
	for i := range list.Value {
		if err := ctx.Err(); err != nil {
			return types.SyncResult{Synced: synced, Total: total, Error: err.Error()}
		}
		m := &list.Value[i]
		seen = append(seen, m.ID)
		if err := a.persistMessage(ctx, c, m, folder); err != nil {
			log.WithError(err).Error("Store write failed, aborting sync")
			return types.SyncResult{Synced: synced, Total: total, Error: err.Error()}
		}
		synced++
	}

	if folder == types.FolderInbox {
		if _, err := provider.Reconcile(ctx, a.store, a.logger, a.account.ID, seen); err != nil {
			return types.SyncResult{Synced: synced, Total: total, Error: err.Error()}
		}
	}

	log.WithFields(logrus.Fields{"synced": synced, "total": total}).Info("Sync complete")
	return types.SyncResult{Synced: synced, Total: total}
}

// syncCategories upserts the master category list as labels. A failed
// listing is logged and skipped; messages still match categories against
// label rows stored by earlier passes. Only store errors are returned.
func (a *Adapter) syncCategories(ctx context.Context, c *client, log *logrus.Entry) error {
	var list categoryList
	if err := c.do(ctx, http.MethodGet, "/me/outlook/masterCategories", nil, &list); err != nil {
		log.WithError(classify(err, "list categories")).Warn("Category listing failed, using stored labels")
		return nil
	}
	for _, cat := range list.Value {
		label, ok := labels.MapCategory(a.account.ID, cat.DisplayName, cat.Color)
		if !ok {
			continue
		}
		if err := a.store.UpsertLabel(ctx, &label); err != nil {
			return err
		}
	}
	return nil
}

// persistMessage writes the email, its name-matched category edges and
// inline images. Attachments are only requested when the message has any.
func (a *Adapter) persistMessage(ctx context.Context, c *client, m *message, folder string) error {
	email := convertMessage(a.account.ID, m, folder)
	if err := a.store.UpsertEmail(ctx, email); err != nil {
		return err
	}

	var labelIDs []string
	for _, name := range m.Categories {
		label, err := a.store.GetLabelByName(ctx, a.account.ID, name)
		if err != nil {
			return err
		}
		if label != nil {
			labelIDs = append(labelIDs, label.ID)
		}
	}
	if err := provider.ReplaceLabels(ctx, a.store, email.ID, labelIDs); err != nil {
		return err
	}

	if !m.HasAttachments {
		return nil
	}

	var atts attachmentList
	if err := c.do(ctx, http.MethodGet, "/me/messages/"+url.PathEscape(m.ID)+"/attachments", nil, &atts); err != nil {
		a.log().WithField("message_id", m.ID).WithError(err).Warn("Skipping attachments that failed to fetch")
		return nil
	}
	for i := range atts.Value {
		ref := atts.Value[i].inlineRef()
		if !ref.InlineImage() || len(ref.Data) == 0 {
			continue
		}
		att := &types.Attachment{
			ID:        types.AttachmentID(email.ID, ref.ContentID),
			EmailID:   email.ID,
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

// SyncDrafts pulls the drafts folder into the local draft table.
func (a *Adapter) SyncDrafts(ctx context.Context, opts provider.SyncOptions) types.SyncResult {
	c, err := a.client(ctx)
	if err != nil {
		return provider.Failed(err, 0)
	}

	var list messageList
	if err := c.do(ctx, http.MethodGet, listPath(folderDrafts, opts.Limit()), nil, &list); err != nil {
		return provider.Failed(classify(err, "list drafts"), 0)
	}

	synced := 0
	for i := range list.Value {
		if err := a.store.UpsertDraft(ctx, convertDraft(a.account.ID, &list.Value[i])); err != nil {
			return types.SyncResult{Synced: synced, Total: len(list.Value), Error: err.Error()}
		}
		synced++
	}
	return types.SyncResult{Synced: synced, Total: len(list.Value)}
}

func (a *Adapter) call(ctx context.Context, op, method, path string, in any) error {
	c, err := a.client(ctx)
	if err != nil {
		return err
	}
	return classify(c.do(ctx, method, path, in, nil), op)
}

func messagePath(id string) string {
	return "/me/messages/" + url.PathEscape(id)
}

func (a *Adapter) patch(ctx context.Context, op, id string, fields map[string]any) error {
	return a.call(ctx, op, http.MethodPatch, messagePath(id), fields)
}

func (a *Adapter) move(ctx context.Context, op, id, destination string) error {
	return a.call(ctx, op, http.MethodPost, messagePath(id)+"/move", map[string]string{"destinationId": destination})
}

// MarkRead sets isRead.
func (a *Adapter) MarkRead(ctx context.Context, id string) error {
	return a.patch(ctx, "mark read", id, map[string]any{"isRead": true})
}

// MarkUnread clears isRead.
func (a *Adapter) MarkUnread(ctx context.Context, id string) error {
	return a.patch(ctx, "mark unread", id, map[string]any{"isRead": false})
}

// Star flags the message.
func (a *Adapter) Star(ctx context.Context, id string) error {
	return a.patch(ctx, "star", id, map[string]any{"flag": followupFlag{FlagStatus: "flagged"}})
}

// Unstar clears the flag.
func (a *Adapter) Unstar(ctx context.Context, id string) error {
	return a.patch(ctx, "unstar", id, map[string]any{"flag": followupFlag{FlagStatus: "notFlagged"}})
}

// Archive moves the message to the archive folder.
func (a *Adapter) Archive(ctx context.Context, id string) error {
	return a.move(ctx, "archive", id, folderArchive)
}

// Unarchive moves the message back to the inbox.
func (a *Adapter) Unarchive(ctx context.Context, id string) error {
	return a.move(ctx, "unarchive", id, folderInbox)
}

// Trash moves the message to deleted items.
func (a *Adapter) Trash(ctx context.Context, id string) error {
	return a.move(ctx, "trash", id, folderDeleted)
}

// Untrash moves the message back to the inbox.
func (a *Adapter) Untrash(ctx context.Context, id string) error {
	return a.move(ctx, "untrash", id, folderInbox)
}

// PermanentDelete deletes the message.
func (a *Adapter) PermanentDelete(ctx context.Context, id string) error {
	return a.call(ctx, "delete message", http.MethodDelete, messagePath(id), nil)
}

// DeleteDraft deletes a draft message.
func (a *Adapter) DeleteDraft(ctx context.Context, id string) error {
	return a.call(ctx, "delete draft", http.MethodDelete, messagePath(id), nil)
}

// Send submits through sendMail. Graph returns no message id.
func (a *Adapter) Send(ctx context.Context, params types.SendParams) (*types.SendResult, error) {
	body := itemBody{ContentType: "text", Content: params.BodyText}
	if params.BodyHTML != "" {
		body = itemBody{ContentType: "html", Content: params.BodyHTML}
	}
	req := sendMailRequest{
		Message: outgoingMessage{
			Subject:       params.Subject,
			Body:          body,
			ToRecipients:  toRecipients(params.To),
			CcRecipients:  toRecipients(params.Cc),
			BccRecipients: toRecipients(params.Bcc),
		},
		SaveToSentItems: true,
	}
	if len(req.Message.ToRecipients) == 0 {
		return nil, fmt.Errorf("failed to send message: no recipients")
	}
	if err := a.call(ctx, "send message", http.MethodPost, "/me/sendMail", req); err != nil {
		return nil, err
	}
	a.log().Info("Message sent")
	return &types.SendResult{ThreadID: params.ThreadID}, nil
}

// ValidateCredentials reports whether /me accepts the token.
func (a *Adapter) ValidateCredentials(ctx context.Context) bool {
	if err := a.call(ctx, "get profile", http.MethodGet, "/me", nil); err != nil {
		a.log().WithError(err).Debug("Credential check failed")
		return false
	}
	return true
}
