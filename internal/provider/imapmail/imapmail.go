// Package imapmail implements the provider contract over raw IMAP and SMTP,
// for generic password accounts and for XOAUTH2 accounts such as Yahoo.
package imapmail

import (
	"context"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-sync/internal/provider"
	"github.com/brandon/mail-sync/pkg/types"
)

const defaultDialTimeout = 30 * time.Second

// Authenticator logs an IMAP connection in
type Authenticator func(ctx context.Context, c *client.Client) error

// SMTPAuth returns the SASL client used for SMTP submission, or nil for none.
type SMTPAuth func(ctx context.Context) (sasl.Client, error)

// Adapter syncs one IMAP account. Every operation runs in its own session
// under the account's mailbox lock.
type Adapter struct {
	account     types.Account
	store       provider.Store
	logger      *logrus.Logger
	kind        types.ProviderKind
	dialTimeout time.Duration

	authenticate Authenticator
	smtpAuth     SMTPAuth

	// classify maps a session error onto the error taxonomy.
	classify func(err error) error

	// folderLabels enables the folder-to-label pass before inbox sync.
	folderLabels bool
}

// New creates a password-authenticated IMAP/SMTP adapter
func New(account types.Account, store provider.Store, logger *logrus.Logger) *Adapter {
	a := &Adapter{
		account:     account,
		store:       store,
		logger:      logger,
		kind:        types.ProviderIMAP,
		dialTimeout: defaultDialTimeout,
		classify:    func(err error) error { return err },
	}
	a.authenticate = a.passwordLogin
	a.smtpAuth = a.plainAuth
	return a
}

func (a *Adapter) log() *logrus.Entry {
	return a.logger.WithFields(logrus.Fields{
		"account":  a.account.ID,
		"provider": string(a.kind),
	})
}

func (a *Adapter) username() string {
	if a.account.Username != "" {
		return a.account.Username
	}
	return a.account.Email
}

func (a *Adapter) passwordLogin(_ context.Context, c *client.Client) error {
	if a.account.Password == "" {
		return &provider.AuthError{Op: "login", Err: provider.ErrNoCredentials}
	}
	if err := c.Login(a.username(), a.account.Password); err != nil {
		return &provider.AuthError{Op: "login", Err: err}
	}
	return nil
}

func (a *Adapter) plainAuth(context.Context) (sasl.Client, error) {
	if a.account.Password == "" {
		return nil, nil
	}
	return sasl.NewPlainClient("", a.username(), a.account.Password), nil
}

// ValidateCredentials opens and authenticates a session.
func (a *Adapter) ValidateCredentials(ctx context.Context) bool {
	err := a.withSession(ctx, func(*client.Client) error { return nil })
	if err != nil {
		a.log().WithError(err).Debug("Credential check failed")
		return false
	}
	return true
}
