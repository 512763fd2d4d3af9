package tools

import (
	"context"
	"fmt"

	"github.com/brandon/mail-sync/internal/cache"
	"github.com/brandon/mail-sync/pkg/types"
)

// GetEmailTool retrieves a full email by ID
type GetEmailTool struct {
	cacheStore *cache.Store
}

// Name returns the tool name
func (t *GetEmailTool) Name() string {
	return "get_email"
}

// Description returns the tool description
func (t *GetEmailTool) Description() string {
	return "Retrieve a full synced email by ID, with its labels and inline images"
}

// InputSchema returns the JSON schema for tool inputs
func (t *GetEmailTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"email_id": map[string]interface{}{
				"type":        "string",
				"description": "Email ID (from search results)",
			},
		},
		"required": []string{"email_id"},
	}
}

type inlineImage struct {
	ContentID string `json:"content_id"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mime_type"`
	Size      int    `json:"size"`
}

type emailDetail struct {
	*types.Email
	Labels       []string      `json:"labels"`
	InlineImages []inlineImage `json:"inline_images"`
}

// Execute executes the tool
func (t *GetEmailTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	emailID, err := requireString(params, "email_id")
	if err != nil {
		return nil, err
	}

	cachedEmail, err := t.cacheStore.GetEmail(ctx, emailID)
	if err != nil {
		return nil, fmt.Errorf("failed to get email: %w", err)
	}
	if cachedEmail == nil {
		return nil, fmt.Errorf("email not found: %s", emailID)
	}

	labels, err := t.cacheStore.EmailLabels(ctx, emailID)
	if err != nil {
		return nil, fmt.Errorf("failed to get labels: %w", err)
	}

	attachments, err := t.cacheStore.GetAttachments(ctx, emailID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attachments: %w", err)
	}
	images := make([]inlineImage, 0, len(attachments))
	for _, att := range attachments {
		images = append(images, inlineImage{
			ContentID: att.ContentID,
			Filename:  att.Filename,
			MimeType:  att.MimeType,
			Size:      att.Size,
		})
	}

	return emailDetail{Email: cachedEmail, Labels: labels, InlineImages: images}, nil
}
