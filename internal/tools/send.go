package tools

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-sync/internal/email"
	"github.com/brandon/mail-sync/pkg/types"
)

// SendEmailTool sends a new email
type SendEmailTool struct {
	emailManager *email.Manager
	logger       *logrus.Logger
}

// Name returns the tool name
func (t *SendEmailTool) Name() string {
	return "send_email"
}

// Description returns the tool description
func (t *SendEmailTool) Description() string {
	return "Send a new email or a reply with text or HTML body, CC and BCC"
}

// InputSchema returns the JSON schema for tool inputs
func (t *SendEmailTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"account_id": map[string]interface{}{
				"type":        "string",
				"description": "Account to send from",
			},
			"to": map[string]interface{}{
				"type":        "string",
				"description": "Recipient email address(es) (comma-separated)",
			},
			"cc": map[string]interface{}{
				"type":        "string",
				"description": "Optional: CC recipients (comma-separated)",
			},
			"bcc": map[string]interface{}{
				"type":        "string",
				"description": "Optional: BCC recipients (comma-separated)",
			},
			"subject": map[string]interface{}{
				"type":        "string",
				"description": "Email subject",
			},
			"body_text": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Plain text body",
			},
			"body_html": map[string]interface{}{
				"type":        "string",
				"description": "Optional: HTML body",
			},
			"in_reply_to": map[string]interface{}{
				"type":        "string",
				"description": "Optional: In-Reply-To header (for replies)",
			},
			"references": map[string]interface{}{
				"type":        "string",
				"description": "Optional: References header (for replies)",
			},
			"thread_id": map[string]interface{}{
				"type":        "string",
				"description": "Optional: Provider thread to reply in",
			},
		},
		"required": []string{"account_id", "to", "subject"},
	}
}

// Execute executes the tool
func (t *SendEmailTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	accountID, err := requireString(params, "account_id")
	if err != nil {
		return nil, err
	}

	to := listParam(params, "to")
	if len(to) == 0 {
		return nil, fmt.Errorf("to is required")
	}

	subject, err := requireString(params, "subject")
	if err != nil {
		return nil, err
	}

	msg := types.SendParams{
		To:         to,
		Cc:         listParam(params, "cc"),
		Bcc:        listParam(params, "bcc"),
		Subject:    subject,
		BodyText:   stringParam(params, "body_text"),
		BodyHTML:   stringParam(params, "body_html"),
		InReplyTo:  stringParam(params, "in_reply_to"),
		References: stringParam(params, "references"),
		ThreadID:   stringParam(params, "thread_id"),
	}

	// Ensure at least one body is set
	if msg.BodyText == "" && msg.BodyHTML == "" {
		return nil, fmt.Errorf("either body_text or body_html is required")
	}

	res, err := t.emailManager.Send(ctx, accountID, msg)
	if err != nil {
		return nil, err
	}
	t.logger.WithField("account", accountID).Info("Sent email")

	return map[string]interface{}{
		"success":   true,
		"id":        res.ID,
		"thread_id": res.ThreadID,
	}, nil
}
