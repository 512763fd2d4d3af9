package provider

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Reconcile archives every locally active email of the account that was not
// seen in the latest inbox listing. It converges: a second pass with the same
// seen set archives nothing.
//
// The listing is bounded by MaxMessages, so an active email outside the
// window is indistinguishable from a removed one and gets archived too.
func Reconcile(ctx context.Context, store Store, logger *logrus.Logger, accountID string, seen []string) (int, error) {
	active, err := store.ActiveEmailIDs(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to list active emails: %w", err)
	}

	seenSet := make(map[string]struct{}, len(seen))
	for _, id := range seen {
		seenSet[id] = struct{}{}
	}

	archived := 0
	for _, id := range active {
		if _, ok := seenSet[id]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return archived, err
		}
		if err := store.ArchiveEmail(ctx, id); err != nil {
			return archived, fmt.Errorf("failed to archive %s: %w", id, err)
		}
		archived++
	}

	if archived > 0 && logger != nil {
		logger.WithFields(logrus.Fields{
			"account":  accountID,
			"archived": archived,
			"seen":     len(seen),
		}).Info("Reconciled inbox")
	}
	return archived, nil
}
