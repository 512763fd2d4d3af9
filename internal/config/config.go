package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/brandon/mail-sync/internal/auth"
	"github.com/brandon/mail-sync/pkg/types"
)

// Config holds the application configuration
type Config struct {
	// Cache settings
	CachePath         string `toml:"cache_path"`
	SearchResultLimit int    `toml:"search_result_limit"`
	LogLevel          string `toml:"log_level"`

	// Sync settings
	MaxMessages     int `toml:"max_messages"`
	IntervalSeconds int `toml:"sync_interval"`

	// OAuth clients keyed by provider kind
	Clients map[string]auth.Client `toml:"clients"`

	// Accounts
	Accounts []types.Account `toml:"accounts"`
}

// LoadConfig loads configuration from the file named by MAILSYNC_CONFIG,
// then from environment variables, which take precedence
func LoadConfig() (*Config, error) {
	cfg := &Config{
		CachePath:         "/data/mail_sync.db",
		SearchResultLimit: 100,
		LogLevel:          "info",
		MaxMessages:       100,
		Clients:           make(map[string]auth.Client),
	}

	if path := getEnv("MAILSYNC_CONFIG", ""); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.CachePath = getEnv("CACHE_PATH", cfg.CachePath)
	cfg.SearchResultLimit = getEnvInt("SEARCH_RESULT_LIMIT", cfg.SearchResultLimit)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.MaxMessages = getEnvInt("SYNC_MAX_MESSAGES", cfg.MaxMessages)
	cfg.IntervalSeconds = getEnvInt("SYNC_INTERVAL", cfg.IntervalSeconds)
	loadClients(cfg.Clients)

	cfg.Accounts = append(cfg.Accounts, loadAccounts()...)
	if len(cfg.Accounts) == 0 {
		return nil, fmt.Errorf("no email accounts configured")
	}
	for i := range cfg.Accounts {
		applyDefaults(&cfg.Accounts[i])
	}

	return cfg, nil
}

// loadFile decodes a TOML configuration file into cfg
func loadFile(path string, cfg *Config) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// loadClients reads OAuth client credentials from the environment
func loadClients(clients map[string]auth.Client) {
	for _, kind := range []types.ProviderKind{types.ProviderGmail, types.ProviderMicrosoft, types.ProviderYahoo} {
		prefix := strings.ToUpper(string(kind)) + "_"
		c := clients[string(kind)]
		c.ID = getEnv(prefix+"CLIENT_ID", c.ID)
		c.Secret = getEnv(prefix+"CLIENT_SECRET", c.Secret)
		c.Tenant = getEnv(prefix+"TENANT", c.Tenant)
		if c.Configured() {
			clients[string(kind)] = c
		}
	}
}

// loadAccounts loads accounts from environment variables
func loadAccounts() []types.Account {
	var accounts []types.Account

	// Single account configuration
	if hasSingleAccount() {
		acc := loadAccount("", getEnv("ACCOUNT_NAME", "default"))
		return append(accounts, acc)
	}

	// Multiple accounts (ACCOUNT_1_*, ACCOUNT_2_*, etc.)
	for num := 1; ; num++ {
		prefix := fmt.Sprintf("ACCOUNT_%d_", num)
		id := getEnv(prefix+"ID", getEnv(prefix+"NAME", ""))
		if id == "" {
			break
		}
		accounts = append(accounts, loadAccount(prefix, id))
	}
	return accounts
}

// hasSingleAccount checks if single account configuration exists
func hasSingleAccount() bool {
	return getEnv("IMAP_HOST", "") != "" || getEnv("PROVIDER", "") != ""
}

func loadAccount(prefix, id string) types.Account {
	return types.Account{
		ID:           id,
		Kind:         types.ProviderKind(getEnv(prefix+"PROVIDER", string(types.ProviderIMAP))),
		Email:        getEnv(prefix+"EMAIL", ""),
		DisplayName:  getEnv(prefix+"DISPLAY_NAME", ""),
		RefreshToken: getEnv(prefix+"REFRESH_TOKEN", ""),
		IMAPHost:     getEnv(prefix+"IMAP_HOST", ""),
		IMAPPort:     getEnvInt(prefix+"IMAP_PORT", 0),
		IMAPTLS:      getEnvBool(prefix+"IMAP_TLS", true),
		SMTPHost:     getEnv(prefix+"SMTP_HOST", ""),
		SMTPPort:     getEnvInt(prefix+"SMTP_PORT", 0),
		SMTPTLS:      getEnvBool(prefix+"SMTP_TLS", true),
		Username:     getEnv(prefix+"USERNAME", getEnv(prefix+"IMAP_USERNAME", "")),
		Password:     getEnv(prefix+"PASSWORD", getEnv(prefix+"IMAP_PASSWORD", "")),
	}
}

// applyDefaults fills the ports and the TLS-implied defaults of an IMAP account
func applyDefaults(acc *types.Account) {
	if acc.Kind == "" {
		acc.Kind = types.ProviderIMAP
	}
	if acc.Kind != types.ProviderIMAP {
		return
	}
	if acc.IMAPPort == 0 {
		acc.IMAPPort = 993
		if !acc.IMAPTLS {
			acc.IMAPPort = 143
		}
	}
	if acc.SMTPPort == 0 {
		acc.SMTPPort = 587
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// SyncInterval returns the polling interval, zero for a one-shot run
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// OAuthClients returns the configured OAuth clients by provider kind
func (c *Config) OAuthClients() map[types.ProviderKind]auth.Client {
	out := make(map[types.ProviderKind]auth.Client, len(c.Clients))
	for kind, client := range c.Clients {
		out[types.ProviderKind(kind)] = client
	}
	return out
}

// GetAccount finds an account by id
func (c *Config) GetAccount(id string) (*types.Account, error) {
	for i := range c.Accounts {
		if c.Accounts[i].ID == id {
			return &c.Accounts[i], nil
		}
	}
	return nil, fmt.Errorf("account not found: %s", id)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.CachePath == "" {
		return fmt.Errorf("CACHE_PATH is required")
	}

	if c.SearchResultLimit < 1 || c.SearchResultLimit > 1000 {
		return fmt.Errorf("SEARCH_RESULT_LIMIT must be between 1 and 1000")
	}

	if c.MaxMessages < 1 {
		return fmt.Errorf("SYNC_MAX_MESSAGES must be positive")
	}

	if c.IntervalSeconds < 0 {
		return fmt.Errorf("SYNC_INTERVAL must not be negative")
	}

	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account must be configured")
	}

	seen := make(map[string]bool, len(c.Accounts))
	for i := range c.Accounts {
		acc := &c.Accounts[i]
		if seen[acc.ID] {
			return fmt.Errorf("account %s: duplicate id", acc.ID)
		}
		seen[acc.ID] = true
		if err := validateAccount(acc); err != nil {
			return err
		}
		if acc.Kind.OAuth() && !c.Clients[string(acc.Kind)].Configured() {
			return fmt.Errorf("account %s: no OAuth client configured for %s", acc.ID, acc.Kind)
		}
	}

	return nil
}

func validateAccount(acc *types.Account) error {
	if acc.ID == "" {
		return fmt.Errorf("account id is required")
	}
	if _, err := types.ParseProviderKind(string(acc.Kind)); err != nil {
		return fmt.Errorf("account %s: %w", acc.ID, err)
	}
	if acc.Email == "" {
		return fmt.Errorf("account %s: EMAIL is required", acc.ID)
	}

	switch acc.Kind {
	case types.ProviderIMAP:
		if acc.IMAPHost == "" {
			return fmt.Errorf("account %s: IMAP_HOST is required", acc.ID)
		}
		if acc.SMTPHost == "" {
			return fmt.Errorf("account %s: SMTP_HOST is required", acc.ID)
		}
		if acc.Password == "" {
			return fmt.Errorf("account %s: PASSWORD is required", acc.ID)
		}
	default:
		if acc.RefreshToken == "" {
			return fmt.Errorf("account %s: REFRESH_TOKEN is required", acc.ID)
		}
	}

	if acc.IMAPPort < 0 || acc.IMAPPort > 65535 {
		return fmt.Errorf("account %s: invalid IMAP_PORT", acc.ID)
	}
	if acc.SMTPPort < 0 || acc.SMTPPort > 65535 {
		return fmt.Errorf("account %s: invalid SMTP_PORT", acc.ID)
	}
	return nil
}

// AccountIDs returns a list of all account ids
func (c *Config) AccountIDs() []string {
	ids := make([]string, len(c.Accounts))
	for i := range c.Accounts {
		ids[i] = c.Accounts[i].ID
	}
	return ids
}
