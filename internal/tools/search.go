package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/brandon/mail-sync/internal/cache"
)

// SearchEmailsTool searches cached emails
type SearchEmailsTool struct {
	cacheStore   *cache.Store
	defaultLimit int
}

// Name returns the tool name
func (t *SearchEmailsTool) Name() string {
	return "search_emails"
}

// Description returns the tool description
func (t *SearchEmailsTool) Description() string {
	return "Search synced emails by free text or with filters (sender, recipient, subject, body, date range)"
}

// InputSchema returns the JSON schema for tool inputs
func (t *SearchEmailsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Free-text query over subject, sender, recipients and body",
			},
			"account_id": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Filter by specific account",
			},
			"folder": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Filter by folder scope (inbox or sent)",
			},
			"sender": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Filter by sender email/name",
			},
			"recipient": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Filter by recipient email",
			},
			"subject": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Filter by subject (substring match)",
			},
			"body": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Filter by body content (full-text search)",
			},
			"date_from": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Start date (ISO 8601 format)",
			},
			"date_to": map[string]interface{}{
				"type":        "string",
				"description": "Optional: End date (ISO 8601 format)",
			},
			"include_archived": map[string]interface{}{
				"type":        "boolean",
				"description": "Optional: Include archived emails",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Optional: Result limit (default: 100, max: 1000)",
				"minimum":     1,
				"maximum":     1000,
			},
		},
	}
}

// Execute executes the tool
func (t *SearchEmailsTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	limit := intParam(params, "limit")
	if limit == 0 {
		limit = t.defaultLimit
	}

	if query := stringParam(params, "query"); query != "" {
		results, err := t.cacheStore.SearchFTS(ctx, query, optionalString(params, "account_id"), limit)
		if err != nil {
			return nil, fmt.Errorf("failed to search emails: %w", err)
		}
		return results, nil
	}

	opts := cache.SearchOptions{
		AccountID:       optionalString(params, "account_id"),
		Folder:          optionalString(params, "folder"),
		Sender:          optionalString(params, "sender"),
		Recipient:       optionalString(params, "recipient"),
		Subject:         optionalString(params, "subject"),
		Body:            optionalString(params, "body"),
		IncludeArchived: boolParam(params, "include_archived"),
		Limit:           limit,
	}

	// Parse date_from
	if dateFromStr := stringParam(params, "date_from"); dateFromStr != "" {
		dateFrom, err := time.Parse(time.RFC3339, dateFromStr)
		if err != nil {
			return nil, fmt.Errorf("invalid date_from format: %w", err)
		}
		opts.DateFrom = &dateFrom
	}

	// Parse date_to
	if dateToStr := stringParam(params, "date_to"); dateToStr != "" {
		dateTo, err := time.Parse(time.RFC3339, dateToStr)
		if err != nil {
			return nil, fmt.Errorf("invalid date_to format: %w", err)
		}
		opts.DateTo = &dateTo
	}

	results, err := t.cacheStore.Search(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search emails: %w", err)
	}
	return results, nil
}
