package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandon/mail-sync/internal/cache"
	"github.com/brandon/mail-sync/internal/email"
	"github.com/brandon/mail-sync/internal/provider"
	"github.com/brandon/mail-sync/pkg/types"
)

// stubProvider succeeds at everything and remembers the last send
type stubProvider struct {
	sent    types.SendParams
	failure error
}

func (s *stubProvider) Sync(context.Context, provider.SyncOptions) types.SyncResult {
	return types.SyncResult{Synced: 2, Total: 2}
}
func (s *stubProvider) SyncSent(context.Context, provider.SyncOptions) types.SyncResult {
	return types.SyncResult{}
}
func (s *stubProvider) SyncDrafts(context.Context, provider.SyncOptions) types.SyncResult {
	return types.SyncResult{}
}
func (s *stubProvider) MarkRead(context.Context, string) error        { return s.failure }
func (s *stubProvider) MarkUnread(context.Context, string) error      { return s.failure }
func (s *stubProvider) Star(context.Context, string) error            { return s.failure }
func (s *stubProvider) Unstar(context.Context, string) error          { return s.failure }
func (s *stubProvider) Archive(context.Context, string) error         { return s.failure }
func (s *stubProvider) Unarchive(context.Context, string) error       { return s.failure }
func (s *stubProvider) Trash(context.Context, string) error           { return s.failure }
func (s *stubProvider) Untrash(context.Context, string) error         { return s.failure }
func (s *stubProvider) PermanentDelete(context.Context, string) error { return s.failure }
func (s *stubProvider) DeleteDraft(context.Context, string) error     { return s.failure }
func (s *stubProvider) ValidateCredentials(context.Context) bool      { return true }

func (s *stubProvider) Send(_ context.Context, params types.SendParams) (*types.SendResult, error) {
	if s.failure != nil {
		return nil, s.failure
	}
	s.sent = params
	return &types.SendResult{ID: "m1", ThreadID: "t1"}, nil
}

func setupRegistry(t *testing.T) (*Registry, *cache.Store, *stubProvider) {
	t.Helper()
	ctx := context.Background()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	c, err := cache.NewCache(ctx, cache.MemoryPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	store := cache.NewStore(c, logger)

	manager := email.NewManager(store, logger, provider.SyncOptions{MaxMessages: 10})
	stub := &stubProvider{}
	acc := types.Account{ID: "acc", Kind: types.ProviderIMAP, Email: "me@example.com"}
	require.NoError(t, manager.AddAccount(ctx, acc, stub))

	require.NoError(t, store.UpsertEmail(ctx, &types.Email{
		ID: "e1", AccountID: "acc", Folder: types.FolderInbox,
		Subject: "Quarterly report", FromEmail: "boss@example.com", FromName: "Boss",
		To: "me@example.com", BodyText: "numbers attached", ReceivedAt: 1700000000,
	}))
	require.NoError(t, store.UpsertEmail(ctx, &types.Email{
		ID: "e2", AccountID: "acc", Folder: types.FolderInbox,
		Subject: "Lunch", FromEmail: "friend@example.com",
		To: "me@example.com", BodyText: "tacos today", ReceivedAt: 1700000100,
	}))

	return NewRegistry(manager, store, logger, 50), store, stub
}

func execute(t *testing.T, r *Registry, name string, params map[string]interface{}) (interface{}, error) {
	t.Helper()
	tool, ok := r.GetTool(name)
	require.True(t, ok, "tool %s not registered", name)
	return tool.Execute(context.Background(), params)
}

func TestRegistry_ListsEveryTool(t *testing.T) {
	r, _, _ := setupRegistry(t)

	var names []string
	for _, def := range r.GetToolDefinitions() {
		names = append(names, def["name"].(string))
		assert.NotNil(t, def["inputSchema"])
	}

	assert.Equal(t, []string{
		"delete_draft", "email_action", "get_email", "list_labels",
		"search_emails", "send_email", "sync_accounts",
	}, names)
}

func TestSearchEmails(t *testing.T) {
	r, _, _ := setupRegistry(t)

	res, err := execute(t, r, "search_emails", map[string]interface{}{"query": "tacos"})
	require.NoError(t, err)
	summaries := res.([]types.EmailSummary)
	require.Len(t, summaries, 1)
	assert.Equal(t, "e2", summaries[0].ID)

	res, err = execute(t, r, "search_emails", map[string]interface{}{"sender": "boss"})
	require.NoError(t, err)
	summaries = res.([]types.EmailSummary)
	require.Len(t, summaries, 1)
	assert.Equal(t, "e1", summaries[0].ID)

	_, err = execute(t, r, "search_emails", map[string]interface{}{"date_from": "yesterday"})
	assert.Error(t, err)
}

func TestGetEmail(t *testing.T) {
	r, _, _ := setupRegistry(t)

	res, err := execute(t, r, "get_email", map[string]interface{}{"email_id": "e1"})
	require.NoError(t, err)
	detail := res.(emailDetail)
	assert.Equal(t, "Quarterly report", detail.Subject)
	assert.Empty(t, detail.InlineImages)

	_, err = execute(t, r, "get_email", map[string]interface{}{"email_id": "nope"})
	assert.Error(t, err)
	_, err = execute(t, r, "get_email", map[string]interface{}{})
	assert.Error(t, err)
}

func TestSendEmail(t *testing.T) {
	r, _, stub := setupRegistry(t)

	res, err := execute(t, r, "send_email", map[string]interface{}{
		"account_id": "acc",
		"to":         "a@example.com, b@example.com",
		"cc":         []interface{}{"c@example.com"},
		"subject":    "Hi",
		"body_text":  "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "m1", res.(map[string]interface{})["id"])
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, stub.sent.To)
	assert.Equal(t, []string{"c@example.com"}, stub.sent.Cc)

	_, err = execute(t, r, "send_email", map[string]interface{}{
		"account_id": "acc", "to": "a@example.com", "subject": "Hi",
	})
	assert.Error(t, err)

	_, err = execute(t, r, "send_email", map[string]interface{}{
		"account_id": "acc", "to": " , ", "subject": "Hi", "body_text": "x",
	})
	assert.Error(t, err)
}

func TestEmailAction(t *testing.T) {
	r, store, stub := setupRegistry(t)
	ctx := context.Background()

	_, err := execute(t, r, "email_action", map[string]interface{}{"email_id": "e1", "action": "archive"})
	require.NoError(t, err)
	e, err := store.GetEmail(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, e.IsArchived)

	stub.failure = errors.New("offline")
	_, err = execute(t, r, "email_action", map[string]interface{}{"email_id": "e2", "action": "star"})
	assert.Error(t, err)
	e, err = store.GetEmail(ctx, "e2")
	require.NoError(t, err)
	assert.False(t, e.IsStarred)
}

func TestSyncAccounts(t *testing.T) {
	r, _, _ := setupRegistry(t)

	res, err := execute(t, r, "sync_accounts", map[string]interface{}{})
	require.NoError(t, err)
	reports := res.([]email.Report)
	require.Len(t, reports, 1)
	assert.Equal(t, 2, reports[0].Inbox.Synced)

	_, err = execute(t, r, "sync_accounts", map[string]interface{}{"account_id": "missing"})
	assert.Error(t, err)
}

func TestListLabels(t *testing.T) {
	r, store, _ := setupRegistry(t)
	require.NoError(t, store.UpsertLabel(context.Background(), &types.Label{
		ID: "acc:work", AccountID: "acc", Name: "Work", Type: types.LabelUser,
	}))

	res, err := execute(t, r, "list_labels", map[string]interface{}{})
	require.NoError(t, err)
	labels := res.(map[string][]*types.Label)
	require.Len(t, labels["acc"], 1)
	assert.Equal(t, "Work", labels["acc"][0].Name)

	_, err = execute(t, r, "list_labels", map[string]interface{}{"account_id": "other"})
	assert.Error(t, err)
}

func TestListParam(t *testing.T) {
	params := map[string]interface{}{
		"csv":   "a, b,,c ",
		"array": []interface{}{"x", 3, " y "},
	}
	assert.Equal(t, []string{"a", "b", "c"}, listParam(params, "csv"))
	assert.Equal(t, []string{"x", "y"}, listParam(params, "array"))
	assert.Nil(t, listParam(params, "missing"))
}
