package outlook

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandon/mail-sync/internal/cache"
	"github.com/brandon/mail-sync/internal/provider"
	"github.com/brandon/mail-sync/pkg/types"
)

var _ provider.Provider = (*Adapter)(nil)

// staticTokens always resolves to the same token
type staticTokens struct{ token provider.Token }

func (s staticTokens) AccessToken(context.Context, string) provider.Token { return s.token }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type recorded struct {
	method string
	path   string
	body   string
}

type fakeGraph struct {
	mu              sync.Mutex
	calls           []recorded
	attachmentCalls int
	status          int
	categoryStatus  int
}

func (f *fakeGraph) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/outlook/masterCategories", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		status := f.categoryStatus
		f.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]any{"error": map[string]string{"code": "ErrorAccessDenied"}})
			return
		}
		writeJSON(w, 200, map[string]any{"value": []map[string]string{
			{"id": "c1", "displayName": "Red category", "color": "preset0"},
			{"id": "c2", "displayName": "Travel", "color": "preset7"},
		}})
	})
	mux.HandleFunc("/me/mailFolders/inbox/messages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"value": []map[string]any{
			{
				"id":                "AAA",
				"conversationId":    "conv1",
				"internetMessageId": "<a@mail>",
				"subject":           "Trip",
				"bodyPreview":       "See attached map",
				"from":              map[string]any{"emailAddress": map[string]string{"name": "Smith, John", "address": "john@company.com"}},
				"toRecipients":      []map[string]any{{"emailAddress": map[string]string{"address": "me@example.com"}}},
				"body":              map[string]string{"contentType": "html", "content": `<img src="cid:map1">`},
				"categories":        []string{"Travel", "Unknown"},
				"isRead":            true,
				"flag":              map[string]string{"flagStatus": "flagged"},
				"receivedDateTime":  "2024-01-02T03:04:05Z",
				"hasAttachments":    true,
			},
			{
				"id":               "BBB",
				"subject":          "Plain",
				"body":             map[string]string{"contentType": "text", "content": "just text"},
				"isRead":           false,
				"receivedDateTime": "2024-01-01T00:00:00Z",
				"hasAttachments":   false,
			},
		}})
	})
	mux.HandleFunc("/me/messages/AAA/attachments", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.attachmentCalls++
		f.mu.Unlock()
		writeJSON(w, 200, map[string]any{"value": []map[string]any{
			{
				"@odata.type":  "#microsoft.graph.fileAttachment",
				"id":           "att1",
				"name":         "map.png",
				"contentType":  "image/png",
				"size":         3,
				"isInline":     true,
				"contentId":    "<map1>",
				"contentBytes": base64.StdEncoding.EncodeToString([]byte{7, 8, 9}),
			},
			{
				"@odata.type":  "#microsoft.graph.fileAttachment",
				"id":           "att2",
				"name":         "itinerary.pdf",
				"contentType":  "application/pdf",
				"size":         2,
				"contentBytes": base64.StdEncoding.EncodeToString([]byte{1, 2}),
			},
		}})
	})
	mux.HandleFunc("/me/messages/BBB/attachments", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.attachmentCalls++
		f.mu.Unlock()
		writeJSON(w, 200, map[string]any{"value": []any{}})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.calls = append(f.calls, recorded{r.Method, r.URL.Path, string(body)})
		f.mu.Unlock()
		if r.URL.Path == "/me/sendMail" {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		writeJSON(w, 200, map[string]string{"id": "ok"})
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		status := f.status
		f.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]any{"error": map[string]string{"code": "InvalidAuthenticationToken"}})
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func setup(t *testing.T) (*Adapter, *cache.Store, *fakeGraph) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	c, err := cache.NewCache(context.Background(), cache.MemoryPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	store := cache.NewStore(c, logger)

	fake := &fakeGraph{}
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	account := types.Account{ID: "acc", Kind: types.ProviderMicrosoft, Email: "me@example.com"}
	adapter := New(account, store, staticTokens{token: provider.Token{AccessToken: "tok"}}, logger,
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()))
	return adapter, store, fake
}

func TestSync_MapsMessagesAndCategories(t *testing.T) {
	ctx := context.Background()
	adapter, store, fake := setup(t)
	require.NoError(t, store.UpsertEmail(ctx, &types.Email{ID: "gone", AccountID: "acc", Folder: types.FolderInbox}))

	res := adapter.Sync(ctx, provider.SyncOptions{MaxMessages: 25})

	require.True(t, res.OK(), res.Error)
	assert.Equal(t, 2, res.Synced)
	assert.Equal(t, 2, res.Total)

	a, err := store.GetEmail(ctx, "AAA")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "conv1", a.ThreadID)
	assert.Equal(t, "Smith, John", a.FromName)
	assert.Equal(t, "john@company.com", a.FromEmail)
	assert.Equal(t, "me@example.com", a.To)
	assert.Equal(t, `<img src="cid:map1">`, a.BodyHTML)
	assert.Empty(t, a.BodyText)
	assert.True(t, a.IsRead)
	assert.True(t, a.IsStarred)
	assert.Equal(t, int64(1704164645), a.ReceivedAt)
	assert.Equal(t, []string{"Travel", "Unknown"}, a.LabelIDs)

	edges, err := store.EmailLabels(ctx, "AAA")
	require.NoError(t, err)
	assert.Equal(t, []string{"microsoft:acc:Travel"}, edges)

	atts, err := store.GetAttachments(ctx, "AAA")
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, "AAA:map1", atts[0].ID)
	assert.Equal(t, []byte{7, 8, 9}, atts[0].Data)

	b, err := store.GetEmail(ctx, "BBB")
	require.NoError(t, err)
	assert.Equal(t, "just text", b.BodyText)

	// only the message flagged hasAttachments costs a round trip
	assert.Equal(t, 1, fake.attachmentCalls)

	gone, err := store.GetEmail(ctx, "gone")
	require.NoError(t, err)
	assert.True(t, gone.IsArchived)
}

func TestSync_CategoryListingFailureKeepsSyncing(t *testing.T) {
	ctx := context.Background()
	adapter, store, fake := setup(t)
	fake.mu.Lock()
	fake.categoryStatus = http.StatusForbidden
	fake.mu.Unlock()
	require.NoError(t, store.UpsertLabel(ctx, &types.Label{
		ID: "microsoft:acc:Travel", AccountID: "acc", Name: "Travel", Type: types.LabelUser,
	}))

	res := adapter.Sync(ctx, provider.SyncOptions{MaxMessages: 25})

	require.True(t, res.OK(), res.Error)
	assert.False(t, res.NeedsReauth)
	assert.Equal(t, 2, res.Synced)

	a, err := store.GetEmail(ctx, "AAA")
	require.NoError(t, err)
	require.NotNil(t, a)
	edges, err := store.EmailLabels(ctx, "AAA")
	require.NoError(t, err)
	assert.Equal(t, []string{"microsoft:acc:Travel"}, edges)
}

func TestSync_AuthStatusNeedsReauth(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		adapter, _, fake := setup(t)
		fake.status = status

		res := adapter.Sync(context.Background(), provider.SyncOptions{})

		assert.False(t, res.OK())
		assert.True(t, res.NeedsReauth, status)
	}
}

func TestSync_ServerErrorIsNotReauth(t *testing.T) {
	adapter, _, fake := setup(t)
	fake.status = http.StatusServiceUnavailable

	res := adapter.Sync(context.Background(), provider.SyncOptions{})

	assert.False(t, res.OK())
	assert.False(t, res.NeedsReauth)
}

func TestActions(t *testing.T) {
	ctx := context.Background()
	adapter, _, fake := setup(t)

	require.NoError(t, adapter.MarkRead(ctx, "AAA"))
	require.NoError(t, adapter.Star(ctx, "AAA"))
	require.NoError(t, adapter.Archive(ctx, "AAA"))
	require.NoError(t, adapter.Untrash(ctx, "AAA"))
	require.NoError(t, adapter.PermanentDelete(ctx, "AAA"))

	require.Len(t, fake.calls, 5)
	assert.Equal(t, recorded{"PATCH", "/me/messages/AAA", `{"isRead":true}`}, fake.calls[0])
	assert.Equal(t, recorded{"PATCH", "/me/messages/AAA", `{"flag":{"flagStatus":"flagged"}}`}, fake.calls[1])
	assert.Equal(t, recorded{"POST", "/me/messages/AAA/move", `{"destinationId":"archive"}`}, fake.calls[2])
	assert.Equal(t, recorded{"POST", "/me/messages/AAA/move", `{"destinationId":"inbox"}`}, fake.calls[3])
	assert.Equal(t, "DELETE", fake.calls[4].method)
}

func TestSend(t *testing.T) {
	adapter, _, fake := setup(t)

	_, err := adapter.Send(context.Background(), types.SendParams{
		To:       []string{`"Doe, Jane" <jane@example.com>`},
		Subject:  "Hello",
		BodyHTML: "<b>hi</b>",
	})
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	var req sendMailRequest
	require.NoError(t, json.Unmarshal([]byte(fake.calls[0].body), &req))
	assert.Equal(t, "html", req.Message.Body.ContentType)
	assert.Equal(t, "Doe, Jane", req.Message.ToRecipients[0].EmailAddress.Name)
	assert.Equal(t, "jane@example.com", req.Message.ToRecipients[0].EmailAddress.Address)
	assert.True(t, req.SaveToSentItems)

	_, err = adapter.Send(context.Background(), types.SendParams{Subject: "nobody"})
	assert.Error(t, err)
}
