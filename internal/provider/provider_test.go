package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandon/mail-sync/pkg/types"
)

// memStore is a minimal Store for reconciliation tests.
type memStore struct {
	mu     sync.Mutex
	emails map[string]*types.Email
	edges  map[string][]string
}

func newMemStore() *memStore {
	return &memStore{emails: map[string]*types.Email{}, edges: map[string][]string{}}
}

func (s *memStore) UpsertEmail(_ context.Context, e *types.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.emails[e.ID] = &cp
	return nil
}

func (s *memStore) GetEmail(_ context.Context, id string) (*types.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emails[id], nil
}

func (s *memStore) DeleteEmail(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.emails, id)
	return nil
}

func (s *memStore) ArchiveEmail(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.emails[id]; ok {
		e.IsArchived = true
	}
	return nil
}

func (s *memStore) UnarchiveEmail(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.emails[id]; ok {
		e.IsArchived = false
	}
	return nil
}

func (s *memStore) ActiveEmailIDs(_ context.Context, accountID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, e := range s.emails {
		if e.AccountID == accountID && !e.IsArchived && e.Folder == types.FolderInbox {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *memStore) UpsertAttachment(context.Context, *types.Attachment) error { return nil }
func (s *memStore) UpsertLabel(context.Context, *types.Label) error           { return nil }
func (s *memStore) GetLabel(context.Context, string) (*types.Label, error)    { return nil, nil }
func (s *memStore) GetLabelByName(context.Context, string, string) (*types.Label, error) {
	return nil, nil
}

func (s *memStore) RemoveAllLabelsFromEmail(_ context.Context, emailID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.edges, emailID)
	return nil
}

func (s *memStore) AddLabelToEmail(_ context.Context, emailID, labelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges[emailID] = append(s.edges[emailID], labelID)
	return nil
}

func (s *memStore) UpsertDraft(context.Context, *types.Draft) error { return nil }
func (s *memStore) DeleteDraft(context.Context, string) error       { return nil }

func seed(t *testing.T, s *memStore, account string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, s.UpsertEmail(context.Background(), &types.Email{
			ID: id, AccountID: account, Folder: types.FolderInbox,
		}))
	}
}

func TestReconcile_ArchivesUnseen(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seed(t, store, "acc", "a", "b", "c", "d")
	seed(t, store, "other", "x")

	archived, err := Reconcile(ctx, store, nil, "acc", []string{"a", "c"})
	require.NoError(t, err)
	assert.Equal(t, 2, archived)

	active, err := store.ActiveEmailIDs(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, active)

	// other accounts are untouched
	other, _ := store.ActiveEmailIDs(ctx, "other")
	assert.Equal(t, []string{"x"}, other)
}

func TestReconcile_Converges(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seed(t, store, "acc", "a", "b", "c")

	first, err := Reconcile(ctx, store, nil, "acc", []string{"b"})
	require.NoError(t, err)
	assert.Equal(t, 2, first)

	second, err := Reconcile(ctx, store, nil, "acc", []string{"b"})
	require.NoError(t, err)
	assert.Zero(t, second)
}

func TestReconcile_EmptyListingArchivesAll(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seed(t, store, "acc", "a", "b")

	archived, err := Reconcile(ctx, store, nil, "acc", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, archived)

	active, _ := store.ActiveEmailIDs(ctx, "acc")
	assert.Empty(t, active)
}

func TestReconcile_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := newMemStore()
	seed(t, store, "acc", "a")
	cancel()

	_, err := Reconcile(ctx, store, nil, "acc", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchBatched_FailureLeavesNilSlot(t *testing.T) {
	ids := []string{"m1", "m2", "m3"}
	var failures []string
	var mu sync.Mutex

	results, err := FetchBatched(context.Background(), ids,
		func(_ context.Context, id string) (*string, error) {
			if id == "m2" {
				return nil, errors.New("boom")
			}
			v := "body-" + id
			return &v, nil
		},
		func(id string, _ error) {
			mu.Lock()
			failures = append(failures, id)
			mu.Unlock()
		})

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "body-m1", *results[0])
	assert.Nil(t, results[1])
	assert.Equal(t, "body-m3", *results[2])
	assert.Equal(t, []string{"m2"}, failures)
}

func TestFetchBatched_BoundsConcurrency(t *testing.T) {
	ids := make([]string, 55)
	for i := range ids {
		ids[i] = fmt.Sprintf("m%d", i)
	}

	var inFlight, peak int32
	_, err := FetchBatched(context.Background(), ids,
		func(_ context.Context, id string) (*string, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			atomic.AddInt32(&inFlight, -1)
			return &id, nil
		}, nil)

	require.NoError(t, err)
	assert.LessOrEqual(t, int(peak), BatchSize)
}

func TestFailed_ClassifiesAuth(t *testing.T) {
	res := Failed(&AuthError{Op: "login", Err: errors.New("bad password")}, 0)
	assert.True(t, res.NeedsReauth)
	assert.False(t, res.OK())
	assert.Contains(t, res.Error, "bad password")

	res = Failed(fmt.Errorf("wrapped: %w", &ProtocolError{Op: "select", Folder: "Archive", Err: ErrNotFound}), 3)
	assert.False(t, res.NeedsReauth)
	assert.Equal(t, 3, res.Total)
}

func TestLooksLikeAuthError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("NO [AUTHENTICATIONFAILED] Invalid credentials (Failure)"), true},
		{errors.New("LOGIN failed."), true},
		{errors.New("oauth2: invalid_grant"), true},
		{errors.New("connection reset by peer"), false},
		{context.DeadlineExceeded, false},
		{nil, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LooksLikeAuthError(tt.err), fmt.Sprint(tt.err))
	}
}

// staticTokens always resolves to the same token
type staticTokens struct{ token Token }

func (s staticTokens) AccessToken(context.Context, string) Token { return s.token }

func TestResolveToken(t *testing.T) {
	ctx := context.Background()

	tok, err := ResolveToken(ctx, staticTokens{token: Token{AccessToken: "abc"}}, "acc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = ResolveToken(ctx, staticTokens{token: Token{NeedsReauth: true}}, "acc")
	assert.True(t, IsAuthError(err))

	_, err = ResolveToken(ctx, staticTokens{token: Token{Err: errors.New("network")}}, "acc")
	assert.False(t, IsAuthError(err))

	_, err = ResolveToken(ctx, nil, "acc")
	assert.True(t, IsAuthError(err))
}

func TestBreaker_PassesClientErrors(t *testing.T) {
	clientErr := errors.New("400")
	b := NewBreaker("test", nil, func(err error) bool { return err != clientErr })

	for i := 0; i < 20; i++ {
		err := b.Do("op", func() error { return clientErr })
		assert.Equal(t, clientErr, err)
	}
	assert.False(t, b.Open())

	serverErr := errors.New("503")
	for i := 0; i < 6; i++ {
		_ = b.Do("op", func() error { return serverErr })
	}
	assert.True(t, b.Open())
}

func TestReplaceLabels(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	require.NoError(t, store.AddLabelToEmail(ctx, "e1", "old"))

	require.NoError(t, ReplaceLabels(ctx, store, "e1", []string{"l1", "l2"}))
	assert.Equal(t, []string{"l1", "l2"}, store.edges["e1"])
}
