package email

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-sync/internal/provider"
)

// Action is a remote mutation mirrored into the cache once it succeeds
type Action string

const (
	ActionMarkRead        Action = "mark_read"
	ActionMarkUnread      Action = "mark_unread"
	ActionStar            Action = "star"
	ActionUnstar          Action = "unstar"
	ActionArchive         Action = "archive"
	ActionUnarchive       Action = "unarchive"
	ActionTrash           Action = "trash"
	ActionUntrash         Action = "untrash"
	ActionPermanentDelete Action = "permanent_delete"
)

// Actions lists every supported action.
var Actions = []Action{
	ActionMarkRead, ActionMarkUnread, ActionStar, ActionUnstar,
	ActionArchive, ActionUnarchive, ActionTrash, ActionUntrash, ActionPermanentDelete,
}

type actionFuncs struct {
	remote func(p provider.Provider) func(ctx context.Context, id string) error
	mirror func(m *Manager, ctx context.Context, id string) error
}

var actionTable = map[Action]actionFuncs{
	ActionMarkRead: {
		remote: func(p provider.Provider) func(context.Context, string) error { return p.MarkRead },
		mirror: func(m *Manager, ctx context.Context, id string) error { return m.store.SetRead(ctx, id, true) },
	},
	ActionMarkUnread: {
		remote: func(p provider.Provider) func(context.Context, string) error { return p.MarkUnread },
		mirror: func(m *Manager, ctx context.Context, id string) error { return m.store.SetRead(ctx, id, false) },
	},
	ActionStar: {
		remote: func(p provider.Provider) func(context.Context, string) error { return p.Star },
		mirror: func(m *Manager, ctx context.Context, id string) error { return m.store.SetStarred(ctx, id, true) },
	},
	ActionUnstar: {
		remote: func(p provider.Provider) func(context.Context, string) error { return p.Unstar },
		mirror: func(m *Manager, ctx context.Context, id string) error { return m.store.SetStarred(ctx, id, false) },
	},
	ActionArchive: {
		remote: func(p provider.Provider) func(context.Context, string) error { return p.Archive },
		mirror: func(m *Manager, ctx context.Context, id string) error { return m.store.ArchiveEmail(ctx, id) },
	},
	ActionUnarchive: {
		remote: func(p provider.Provider) func(context.Context, string) error { return p.Unarchive },
		mirror: func(m *Manager, ctx context.Context, id string) error { return m.store.UnarchiveEmail(ctx, id) },
	},
	// Trashed mail leaves the active inbox the same way archived mail does.
	ActionTrash: {
		remote: func(p provider.Provider) func(context.Context, string) error { return p.Trash },
		mirror: func(m *Manager, ctx context.Context, id string) error { return m.store.ArchiveEmail(ctx, id) },
	},
	ActionUntrash: {
		remote: func(p provider.Provider) func(context.Context, string) error { return p.Untrash },
		mirror: func(m *Manager, ctx context.Context, id string) error { return m.store.UnarchiveEmail(ctx, id) },
	},
	ActionPermanentDelete: {
		remote: func(p provider.Provider) func(context.Context, string) error { return p.PermanentDelete },
		mirror: func(m *Manager, ctx context.Context, id string) error { return m.store.DeleteEmail(ctx, id) },
	},
}

// Apply performs action on the owning provider and then mirrors it locally.
// Nothing is written locally when the remote call fails.
func (m *Manager) Apply(ctx context.Context, action Action, emailID string) error {
	funcs, ok := actionTable[action]
	if !ok {
		return fmt.Errorf("unknown action: %q", action)
	}
	account, err := m.accountFor(ctx, emailID)
	if err != nil {
		return err
	}

	log := m.logger.WithFields(logrus.Fields{
		"account":  account.Config.ID,
		"action":   string(action),
		"email_id": emailID,
	})
	if err := funcs.remote(account.Provider)(ctx, emailID); err != nil {
		log.WithError(err).Warn("Remote action failed")
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	if err := funcs.mirror(m, ctx, emailID); err != nil {
		return fmt.Errorf("failed to update cache after %s: %w", action, err)
	}
	log.Debug("Applied action")
	return nil
}
