// Package auth refreshes OAuth access tokens for configured accounts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"

	"github.com/brandon/mail-sync/internal/provider"
	"github.com/brandon/mail-sync/pkg/types"
)

// Scopes requested per provider when an authorization URL is built.
var (
	GmailScopes     = []string{"https://mail.google.com/"}
	MicrosoftScopes = []string{"offline_access", "https://graph.microsoft.com/Mail.ReadWrite", "https://graph.microsoft.com/Mail.Send", "https://graph.microsoft.com/MailboxSettings.Read"}
	YahooScopes     = []string{"mail-w"}
)

// YahooEndpoint is Yahoo's OAuth 2.0 endpoint.
var YahooEndpoint = oauth2.Endpoint{
	AuthURL:  "https://api.login.yahoo.com/oauth2/request_auth",
	TokenURL: "https://api.login.yahoo.com/oauth2/get_token",
}

// Client holds the OAuth application credentials for one provider
type Client struct {
	ID     string `toml:"client_id"`
	Secret string `toml:"client_secret"`
	Tenant string `toml:"tenant"`
}

// Configured reports whether the client has an id.
func (c Client) Configured() bool {
	return c.ID != ""
}

// Tokens refreshes and caches access tokens per account
type Tokens struct {
	logger     *logrus.Logger
	httpClient *http.Client
	configs    map[types.ProviderKind]*oauth2.Config

	mu       sync.Mutex
	accounts map[string]types.Account
	cached   map[string]*oauth2.Token
}

// Option customizes Tokens
type Option func(*Tokens)

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Tokens) { t.httpClient = c }
}

// WithEndpoint overrides a provider's token endpoint.
func WithEndpoint(kind types.ProviderKind, endpoint oauth2.Endpoint) Option {
	return func(t *Tokens) {
		if cfg, ok := t.configs[kind]; ok {
			cfg.Endpoint = endpoint
		}
	}
}

// NewTokens creates a token provider for the configured OAuth clients
func NewTokens(logger *logrus.Logger, clients map[types.ProviderKind]Client, opts ...Option) *Tokens {
	t := &Tokens{
		logger:   logger,
		configs:  make(map[types.ProviderKind]*oauth2.Config),
		accounts: make(map[string]types.Account),
		cached:   make(map[string]*oauth2.Token),
	}
	for kind, c := range clients {
		if !c.Configured() {
			continue
		}
		cfg := &oauth2.Config{ClientID: c.ID, ClientSecret: c.Secret}
		switch kind {
		case types.ProviderGmail:
			cfg.Endpoint, cfg.Scopes = google.Endpoint, GmailScopes
		case types.ProviderMicrosoft:
			tenant := c.Tenant
			if tenant == "" {
				tenant = "common"
			}
			cfg.Endpoint, cfg.Scopes = microsoft.AzureADEndpoint(tenant), MicrosoftScopes
		case types.ProviderYahoo:
			cfg.Endpoint, cfg.Scopes = YahooEndpoint, YahooScopes
		default:
			continue
		}
		t.configs[kind] = cfg
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register records an account's refresh token.
func (t *Tokens) Register(account types.Account) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accounts[account.ID] = account
	delete(t.cached, account.ID)
}

// AccessToken returns a valid access token, refreshing when the cached one expired.
func (t *Tokens) AccessToken(ctx context.Context, accountID string) provider.Token {
	t.mu.Lock()
	defer t.mu.Unlock()

	account, ok := t.accounts[accountID]
	if !ok || account.RefreshToken == "" {
		return provider.Token{Err: provider.ErrNoCredentials, NeedsReauth: true}
	}
	if tok := t.cached[accountID]; tok.Valid() {
		return provider.Token{AccessToken: tok.AccessToken}
	}

	cfg, ok := t.configs[account.Kind]
	if !ok {
		return provider.Token{Err: fmt.Errorf("no OAuth client configured for %s", account.Kind)}
	}

	if t.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, t.httpClient)
	}
	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: account.RefreshToken}).Token()
	if err != nil {
		log := t.logger.WithField("account", accountID).WithError(err)
		if revoked(err) {
			log.Warn("Refresh token rejected, re-authorization required")
			return provider.Token{Err: err, NeedsReauth: true}
		}
		log.Error("Token refresh failed")
		return provider.Token{Err: fmt.Errorf("failed to refresh token: %w", err)}
	}

	if tok.RefreshToken != "" && tok.RefreshToken != account.RefreshToken {
		account.RefreshToken = tok.RefreshToken
		t.accounts[accountID] = account
	}
	t.cached[accountID] = tok
	t.logger.WithField("account", accountID).Debug("Access token refreshed")
	return provider.Token{AccessToken: tok.AccessToken}
}

// revoked reports whether the token endpoint rejected the refresh token itself.
func revoked(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}
	switch re.ErrorCode {
	case "invalid_grant", "unauthorized_client", "invalid_client":
		return true
	}
	return re.Response != nil && re.Response.StatusCode == http.StatusUnauthorized
}

// AuthCodeURL builds the consent URL for a provider.
func (t *Tokens) AuthCodeURL(kind types.ProviderKind, state, redirectURL string) (string, error) {
	cfg, ok := t.configs[kind]
	if !ok {
		return "", fmt.Errorf("no OAuth client configured for %s", kind)
	}
	c := *cfg
	c.RedirectURL = redirectURL
	return c.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}
