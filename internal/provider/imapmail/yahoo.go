package imapmail

import (
	"context"

	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-sync/internal/provider"
	"github.com/brandon/mail-sync/pkg/types"
)

// Yahoo server endpoints.
const (
	YahooIMAPHost = "imap.mail.yahoo.com"
	YahooSMTPHost = "smtp.mail.yahoo.com"
)

// NewYahoo creates an XOAUTH2 adapter for a Yahoo account. Folders are
// mapped onto labels before each inbox pass.
func NewYahoo(account types.Account, store provider.Store, tokens provider.TokenProvider, logger *logrus.Logger) *Adapter {
	if account.IMAPHost == "" {
		account.IMAPHost, account.IMAPPort, account.IMAPTLS = YahooIMAPHost, 993, true
	}
	if account.SMTPHost == "" {
		account.SMTPHost, account.SMTPPort, account.SMTPTLS = YahooSMTPHost, 465, true
	}

	a := New(account, store, logger)
	a.kind = types.ProviderYahoo
	a.folderLabels = true
	a.classify = classifyByText
	a.authenticate = func(ctx context.Context, c *client.Client) error {
		token, err := provider.ResolveToken(ctx, tokens, account.ID)
		if err != nil {
			return err
		}
		if err := c.Authenticate(NewXoauth2Client(a.username(), token)); err != nil {
			return &provider.AuthError{Op: "xoauth2", Err: err}
		}
		return nil
	}
	a.smtpAuth = func(ctx context.Context) (sasl.Client, error) {
		token, err := provider.ResolveToken(ctx, tokens, account.ID)
		if err != nil {
			return nil, err
		}
		return NewXoauth2Client(a.username(), token), nil
	}
	return a
}

// classifyByText promotes errors whose text reads like an auth failure.
// The IMAP library surfaces no structured auth codes.
func classifyByText(err error) error {
	if err == nil || provider.IsAuthError(err) {
		return err
	}
	if provider.LooksLikeAuthError(err) {
		return &provider.AuthError{Op: "session", Err: err}
	}
	return err
}
