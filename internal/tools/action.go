package tools

import (
	"context"
	"fmt"

	"github.com/brandon/mail-sync/internal/email"
)

// ActionTool applies a mailbox action to a synced email
type ActionTool struct {
	emailManager *email.Manager
}

// Name returns the tool name
func (t *ActionTool) Name() string {
	return "email_action"
}

// Description returns the tool description
func (t *ActionTool) Description() string {
	return "Mark read/unread, star, archive, trash, restore or permanently delete an email on its provider"
}

// InputSchema returns the JSON schema for tool inputs
func (t *ActionTool) InputSchema() map[string]interface{} {
	actions := make([]string, len(email.Actions))
	for i, a := range email.Actions {
		actions[i] = string(a)
	}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"email_id": map[string]interface{}{
				"type":        "string",
				"description": "Email ID (from search results)",
			},
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        actions,
				"description": "Action to apply",
			},
		},
		"required": []string{"email_id", "action"},
	}
}

// Execute executes the tool
func (t *ActionTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	emailID, err := requireString(params, "email_id")
	if err != nil {
		return nil, err
	}
	action, err := requireString(params, "action")
	if err != nil {
		return nil, err
	}

	if err := t.emailManager.Apply(ctx, email.Action(action), emailID); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Applied %s to %s", action, emailID),
	}, nil
}

// DeleteDraftTool deletes a synced draft
type DeleteDraftTool struct {
	emailManager *email.Manager
}

// Name returns the tool name
func (t *DeleteDraftTool) Name() string {
	return "delete_draft"
}

// Description returns the tool description
func (t *DeleteDraftTool) Description() string {
	return "Delete a draft on its provider and remove it from the cache"
}

// InputSchema returns the JSON schema for tool inputs
func (t *DeleteDraftTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"account_id": map[string]interface{}{
				"type":        "string",
				"description": "Account owning the draft",
			},
			"draft_id": map[string]interface{}{
				"type":        "string",
				"description": "Draft ID",
			},
		},
		"required": []string{"account_id", "draft_id"},
	}
}

// Execute executes the tool
func (t *DeleteDraftTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	accountID, err := requireString(params, "account_id")
	if err != nil {
		return nil, err
	}
	draftID, err := requireString(params, "draft_id")
	if err != nil {
		return nil, err
	}
	if err := t.emailManager.DeleteDraft(ctx, accountID, draftID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true}, nil
}
