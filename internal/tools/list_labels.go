package tools

import (
	"context"
	"fmt"

	"github.com/brandon/mail-sync/internal/cache"
	"github.com/brandon/mail-sync/internal/email"
	"github.com/brandon/mail-sync/pkg/types"
)

// ListLabelsTool lists the labels mapped for each account
type ListLabelsTool struct {
	emailManager *email.Manager
	cacheStore   *cache.Store
}

// Name returns the tool name
func (t *ListLabelsTool) Name() string {
	return "list_labels"
}

// Description returns the tool description
func (t *ListLabelsTool) Description() string {
	return "List labels, categories and folders mapped for configured accounts"
}

// InputSchema returns the JSON schema for tool inputs
func (t *ListLabelsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"account_id": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Specific account, or all accounts if omitted",
			},
		},
	}
}

// Execute executes the tool
func (t *ListLabelsTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	accountIDs := t.emailManager.AccountIDs()
	if id := stringParam(params, "account_id"); id != "" {
		if _, err := t.emailManager.GetAccount(id); err != nil {
			return nil, err
		}
		accountIDs = []string{id}
	}

	result := make(map[string][]*types.Label, len(accountIDs))
	for _, id := range accountIDs {
		labels, err := t.cacheStore.ListLabels(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to list labels: %w", err)
		}
		if labels == nil {
			labels = []*types.Label{}
		}
		result[id] = labels
	}
	return result, nil
}
