// Package provider defines the contract every mail adapter satisfies and the
// shared machinery they compose: reconciliation, bounded batch fetching and
// error classification.
package provider

import (
	"context"

	"github.com/brandon/mail-sync/pkg/types"
)

// DefaultMaxMessages bounds a listing when the caller does not.
const DefaultMaxMessages = 100

// BatchSize bounds concurrent per-message requests in REST adapters.
const BatchSize = 20

// SyncOptions controls a sync pass
type SyncOptions struct {
	MaxMessages int
	Folder      string
}

// Limit returns MaxMessages or the default.
func (o SyncOptions) Limit() int {
	if o.MaxMessages <= 0 {
		return DefaultMaxMessages
	}
	return o.MaxMessages
}

// Provider is the uniform contract implemented by every adapter.
//
// Sync, SyncSent and SyncDrafts never fail: every error is reported through
// the returned SyncResult so one account cannot halt a multi-account pass.
// Message actions return an error since callers invoke them one at a time.
type Provider interface {
	Sync(ctx context.Context, opts SyncOptions) types.SyncResult
	SyncSent(ctx context.Context, opts SyncOptions) types.SyncResult
	SyncDrafts(ctx context.Context, opts SyncOptions) types.SyncResult

	MarkRead(ctx context.Context, id string) error
	MarkUnread(ctx context.Context, id string) error
	Star(ctx context.Context, id string) error
	Unstar(ctx context.Context, id string) error
	Archive(ctx context.Context, id string) error
	Unarchive(ctx context.Context, id string) error
	Trash(ctx context.Context, id string) error
	Untrash(ctx context.Context, id string) error
	PermanentDelete(ctx context.Context, id string) error
	DeleteDraft(ctx context.Context, id string) error

	Send(ctx context.Context, params types.SendParams) (*types.SendResult, error)
	ValidateCredentials(ctx context.Context) bool
}

// Store is the persistence contract the adapters write through. Every method
// is individually atomic and idempotent; a sync pass is not a transaction.
// Lookups return (nil, nil) when the row does not exist.
type Store interface {
	UpsertEmail(ctx context.Context, email *types.Email) error
	GetEmail(ctx context.Context, id string) (*types.Email, error)
	DeleteEmail(ctx context.Context, id string) error
	ArchiveEmail(ctx context.Context, id string) error
	UnarchiveEmail(ctx context.Context, id string) error
	ActiveEmailIDs(ctx context.Context, accountID string) ([]string, error)

	UpsertAttachment(ctx context.Context, att *types.Attachment) error

	UpsertLabel(ctx context.Context, label *types.Label) error
	GetLabel(ctx context.Context, id string) (*types.Label, error)
	GetLabelByName(ctx context.Context, accountID, name string) (*types.Label, error)
	RemoveAllLabelsFromEmail(ctx context.Context, emailID string) error
	AddLabelToEmail(ctx context.Context, emailID, labelID string) error

	UpsertDraft(ctx context.Context, draft *types.Draft) error
	DeleteDraft(ctx context.Context, id string) error
}

// Token is the outcome of resolving an account's bearer credential
type Token struct {
	AccessToken string
	Err         error
	NeedsReauth bool
}

// TokenProvider resolves a usable bearer credential per account, refreshing as needed.
type TokenProvider interface {
	AccessToken(ctx context.Context, accountID string) Token
}

// ResolveToken turns a Token into an access token or a classified error.
func ResolveToken(ctx context.Context, tokens TokenProvider, accountID string) (string, error) {
	if tokens == nil {
		return "", &AuthError{Op: "token", Err: ErrNoCredentials}
	}
	tok := tokens.AccessToken(ctx, accountID)
	switch {
	case tok.NeedsReauth:
		err := tok.Err
		if err == nil {
			err = ErrNoCredentials
		}
		return "", &AuthError{Op: "token", Err: err}
	case tok.Err != nil:
		return "", tok.Err
	case tok.AccessToken == "":
		return "", &AuthError{Op: "token", Err: ErrNoCredentials}
	}
	return tok.AccessToken, nil
}

// ReplaceLabels fully replaces the label edge set of an email. Only labels
// that already exist locally are attached.
func ReplaceLabels(ctx context.Context, store Store, emailID string, labelIDs []string) error {
	if err := store.RemoveAllLabelsFromEmail(ctx, emailID); err != nil {
		return err
	}
	for _, id := range labelIDs {
		if err := store.AddLabelToEmail(ctx, emailID, id); err != nil {
			return err
		}
	}
	return nil
}
