package email

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/brandon/mail-sync/internal/cache"
	"github.com/brandon/mail-sync/internal/provider"
	"github.com/brandon/mail-sync/pkg/types"
)

const maxParallelAccounts = 4

// Account pairs a configured account with its adapter
type Account struct {
	Config   types.Account
	Provider provider.Provider
}

// Report collects the results of one account's sync passes
type Report struct {
	AccountID string           `json:"account_id"`
	Inbox     types.SyncResult `json:"inbox"`
	Sent      types.SyncResult `json:"sent"`
	Drafts    types.SyncResult `json:"drafts"`
}

// NeedsReauth reports whether any pass asked for re-authorization.
func (r Report) NeedsReauth() bool {
	return r.Inbox.NeedsReauth || r.Sent.NeedsReauth || r.Drafts.NeedsReauth
}

// Manager manages email operations across accounts
type Manager struct {
	store  *cache.Store
	logger *logrus.Logger
	opts   provider.SyncOptions

	mu       sync.RWMutex
	accounts map[string]*Account
}

// NewManager creates a new email manager
func NewManager(store *cache.Store, logger *logrus.Logger, opts provider.SyncOptions) *Manager {
	return &Manager{
		store:    store,
		logger:   logger,
		opts:     opts,
		accounts: make(map[string]*Account),
	}
}

// AddAccount registers an account and records it in the cache. An account's
// provider kind is fixed once recorded.
func (m *Manager) AddAccount(ctx context.Context, acc types.Account, p provider.Provider) error {
	kind, err := m.store.AccountProvider(ctx, acc.ID)
	if err != nil {
		return err
	}
	if kind != "" && kind != acc.Kind {
		return fmt.Errorf("account %s is bound to provider %s, not %s", acc.ID, kind, acc.Kind)
	}
	if err := m.store.UpsertAccount(ctx, &acc); err != nil {
		return fmt.Errorf("failed to create account in cache: %w", err)
	}

	m.mu.Lock()
	m.accounts[acc.ID] = &Account{Config: acc, Provider: p}
	m.mu.Unlock()
	return nil
}

// GetAccount returns an account by id
func (m *Manager) GetAccount(id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account not found: %s", id)
	}
	return account, nil
}

// AccountIDs returns all account ids in sorted order
func (m *Manager) AccountIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SyncAccount runs the inbox, sent and drafts passes for one account. The
// later passes are skipped once the inbox asks for re-authorization.
func (m *Manager) SyncAccount(ctx context.Context, id string) (Report, error) {
	account, err := m.GetAccount(id)
	if err != nil {
		return Report{}, err
	}
	log := m.logger.WithFields(logrus.Fields{"account": id, "provider": string(account.Config.Kind)})

	report := Report{AccountID: id}
	report.Inbox = account.Provider.Sync(ctx, m.opts)
	if report.Inbox.NeedsReauth {
		log.Warn("Account needs re-authorization")
		return report, nil
	}
	report.Sent = account.Provider.SyncSent(ctx, m.opts)
	report.Drafts = account.Provider.SyncDrafts(ctx, m.opts)

	entry := log.WithFields(logrus.Fields{
		"inbox":  report.Inbox.Synced,
		"sent":   report.Sent.Synced,
		"drafts": report.Drafts.Synced,
	})
	for _, res := range []types.SyncResult{report.Inbox, report.Sent, report.Drafts} {
		if !res.OK() {
			entry.WithField("error", res.Error).Warn("Synced account with errors")
			return report, nil
		}
	}
	entry.Info("Synced account")
	return report, nil
}

// SyncAll syncs every account. A failure in one account never affects another.
func (m *Manager) SyncAll(ctx context.Context) []Report {
	ids := m.AccountIDs()
	reports := make([]Report, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelAccounts)
	for i, id := range ids {
		g.Go(func() error {
			report, err := m.SyncAccount(gctx, id)
			if err != nil {
				report = Report{AccountID: id, Inbox: provider.Failed(err, 0)}
			}
			reports[i] = report
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

// Run syncs all accounts immediately and then on every interval tick until
// ctx is done. A non-positive interval runs once.
func (m *Manager) Run(ctx context.Context, interval time.Duration, onReport func([]Report)) {
	reports := m.SyncAll(ctx)
	if onReport != nil {
		onReport(reports)
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reports := m.SyncAll(ctx)
			if onReport != nil {
				onReport(reports)
			}
		}
	}
}

// accountFor resolves the account owning a synced email
func (m *Manager) accountFor(ctx context.Context, emailID string) (*Account, error) {
	email, err := m.store.GetEmail(ctx, emailID)
	if err != nil {
		return nil, fmt.Errorf("failed to get email: %w", err)
	}
	if email == nil {
		return nil, fmt.Errorf("email %s: %w", emailID, provider.ErrNotFound)
	}
	return m.GetAccount(email.AccountID)
}

// Send sends a message from an account
func (m *Manager) Send(ctx context.Context, accountID string, params types.SendParams) (*types.SendResult, error) {
	account, err := m.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	res, err := account.Provider.Send(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}
	return res, nil
}

// DeleteDraft deletes a draft remotely and then locally
func (m *Manager) DeleteDraft(ctx context.Context, accountID, draftID string) error {
	account, err := m.GetAccount(accountID)
	if err != nil {
		return err
	}
	if err := account.Provider.DeleteDraft(ctx, draftID); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return m.store.DeleteDraft(ctx, draftID)
}
