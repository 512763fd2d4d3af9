package tools

import (
	"context"

	"github.com/brandon/mail-sync/internal/email"
)

// SyncTool pulls remote mail into the cache
type SyncTool struct {
	emailManager *email.Manager
}

// Name returns the tool name
func (t *SyncTool) Name() string {
	return "sync_accounts"
}

// Description returns the tool description
func (t *SyncTool) Description() string {
	return "Sync inbox, sent mail and drafts from the provider into the local cache"
}

// InputSchema returns the JSON schema for tool inputs
func (t *SyncTool) InputSchema() map[string]interface{} {
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
func (t *SyncTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	if id := stringParam(params, "account_id"); id != "" {
		report, err := t.emailManager.SyncAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		return []email.Report{report}, nil
	}
	return t.emailManager.SyncAll(ctx), nil
}
