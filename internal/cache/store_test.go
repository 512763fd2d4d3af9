package cache

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandon/mail-sync/internal/provider"
	"github.com/brandon/mail-sync/pkg/types"
)

var _ provider.Store = (*Store)(nil)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	c, err := NewCache(context.Background(), MemoryPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return NewStore(c, logger)
}

func inboxEmail(id, account string) *types.Email {
	return &types.Email{
		ID:         id,
		AccountID:  account,
		ThreadID:   "t-" + id,
		Subject:    "Subject " + id,
		FromEmail:  "alice@example.com",
		To:         "bob@example.com",
		BodyText:   "quarterly report attached",
		LabelIDs:   []string{"INBOX"},
		ReceivedAt: 1700000000,
		Folder:     types.FolderInbox,
	}
}

func TestUpsertEmail_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	email := inboxEmail("m1", "acc")
	require.NoError(t, store.UpsertEmail(ctx, email))

	email.Subject = "Updated"
	email.IsRead = true
	require.NoError(t, store.UpsertEmail(ctx, email))

	got, err := store.GetEmail(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Updated", got.Subject)
	assert.True(t, got.IsRead)
	assert.Equal(t, []string{"INBOX"}, got.LabelIDs)

	ids, err := store.ActiveEmailIDs(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, ids)
}

func TestGetEmail_Missing(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetEmail(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInboxUpsertClearsArchived(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.UpsertEmail(ctx, inboxEmail("m1", "acc")))
	require.NoError(t, store.ArchiveEmail(ctx, "m1"))

	ids, err := store.ActiveEmailIDs(ctx, "acc")
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, store.UpsertEmail(ctx, inboxEmail("m1", "acc")))
	got, err := store.GetEmail(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, got.IsArchived)
}

func TestSentUpsertKeepsInboxFolder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.UpsertEmail(ctx, inboxEmail("m1", "acc")))
	sent := inboxEmail("m1", "acc")
	sent.Folder = types.FolderSent
	require.NoError(t, store.UpsertEmail(ctx, sent))

	got, err := store.GetEmail(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, types.FolderInbox, got.Folder)

	only := inboxEmail("s1", "acc")
	only.Folder = types.FolderSent
	require.NoError(t, store.UpsertEmail(ctx, only))

	ids, err := store.ActiveEmailIDs(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, ids)
}

func TestReconcileAgainstStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.UpsertEmail(ctx, inboxEmail(id, "acc")))
	}

	archived, err := provider.Reconcile(ctx, store, nil, "acc", []string{"b"})
	require.NoError(t, err)
	assert.Equal(t, 2, archived)

	ids, err := store.ActiveEmailIDs(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	a, err := store.GetEmail(ctx, "a")
	require.NoError(t, err)
	assert.True(t, a.IsArchived)
}

func TestLabels_ReplaceEdges(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.UpsertEmail(ctx, inboxEmail("m1", "acc")))
	for _, id := range []string{"l1", "l2", "l3"} {
		require.NoError(t, store.UpsertLabel(ctx, &types.Label{
			ID: id, AccountID: "acc", Name: "Name " + id, Type: types.LabelUser, RemoteID: id,
		}))
	}

	require.NoError(t, provider.ReplaceLabels(ctx, store, "m1", []string{"l1", "l2"}))
	require.NoError(t, provider.ReplaceLabels(ctx, store, "m1", []string{"l2", "l3"}))

	got, err := store.EmailLabels(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"l2", "l3"}, got)

	byName, err := store.GetLabelByName(ctx, "acc", "Name l3")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, "l3", byName.ID)

	missing, err := store.GetLabel(ctx, "l9")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeleteEmailCascades(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.UpsertEmail(ctx, inboxEmail("m1", "acc")))
	require.NoError(t, store.UpsertAttachment(ctx, &types.Attachment{
		ID:        types.AttachmentID("m1", "img1"),
		EmailID:   "m1",
		ContentID: "img1",
		MimeType:  "image/png",
		Size:      3,
		Data:      []byte{1, 2, 3},
	}))

	atts, err := store.GetAttachments(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "m1:img1", atts[0].ID)
	assert.Equal(t, []byte{1, 2, 3}, atts[0].Data)

	require.NoError(t, store.DeleteEmail(ctx, "m1"))

	atts, err = store.GetAttachments(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, atts)
}

func TestDrafts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	draft := &types.Draft{ID: "d1", AccountID: "acc", RemoteID: "r1", Subject: "WIP", UpdatedAt: 10}
	require.NoError(t, store.UpsertDraft(ctx, draft))
	draft.Subject = "WIP 2"
	require.NoError(t, store.UpsertDraft(ctx, draft))

	drafts, err := store.ListDrafts(ctx, "acc")
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "WIP 2", drafts[0].Subject)

	require.NoError(t, store.DeleteDraft(ctx, "d1"))
	drafts, err = store.ListDrafts(ctx, "acc")
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestAccountProviderIsFixed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.UpsertAccount(ctx, &types.Account{ID: "acc", Kind: types.ProviderGmail, Email: "a@example.com"}))
	require.NoError(t, store.UpsertAccount(ctx, &types.Account{ID: "acc", Kind: types.ProviderIMAP, Email: "b@example.com"}))

	kind, err := store.AccountProvider(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, types.ProviderGmail, kind)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := inboxEmail("m1", "acc")
	first.Subject = "Invoice for March"
	first.BodyText = "please pay the invoice"
	second := inboxEmail("m2", "acc")
	second.Subject = "Lunch"
	second.BodyText = "tacos on friday"
	second.FromEmail = "carol@example.com"
	require.NoError(t, store.UpsertEmail(ctx, first))
	require.NoError(t, store.UpsertEmail(ctx, second))

	results, err := store.SearchFTS(ctx, "tacos", nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "m2", results[0].ID)

	sender := "carol"
	results, err = store.Search(ctx, SearchOptions{Sender: &sender})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Lunch", results[0].Subject)

	// updated rows stay searchable under their new text
	second.BodyText = "burritos instead"
	require.NoError(t, store.UpsertEmail(ctx, second))
	results, err = store.SearchFTS(ctx, "tacos", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, store.ArchiveEmail(ctx, "m1"))
	subject := "Invoice"
	results, err = store.Search(ctx, SearchOptions{Subject: &subject})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = store.Search(ctx, SearchOptions{Subject: &subject, IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
