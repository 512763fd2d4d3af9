package types

import "fmt"

// ProviderKind identifies which adapter serves an account
type ProviderKind string

const (
	ProviderGmail     ProviderKind = "gmail"
	ProviderMicrosoft ProviderKind = "microsoft"
	ProviderYahoo     ProviderKind = "yahoo"
	ProviderIMAP      ProviderKind = "imap"
)

// ParseProviderKind validates a provider kind string.
func ParseProviderKind(s string) (ProviderKind, error) {
	switch k := ProviderKind(s); k {
	case ProviderGmail, ProviderMicrosoft, ProviderYahoo, ProviderIMAP:
		return k, nil
	}
	return "", fmt.Errorf("unknown provider kind: %q", s)
}

// OAuth reports whether the kind authenticates with bearer tokens.
func (k ProviderKind) OAuth() bool {
	return k == ProviderGmail || k == ProviderMicrosoft || k == ProviderYahoo
}

// Account is a configured remote mailbox. The provider kind never changes after creation.
type Account struct {
	ID          string       `json:"id" toml:"id"`
	Kind        ProviderKind `json:"provider" toml:"provider"`
	Email       string       `json:"email" toml:"email"`
	DisplayName string       `json:"display_name" toml:"display_name"`

	// OAuth providers
	RefreshToken string `json:"-" toml:"refresh_token"`

	// IMAP/SMTP providers
	IMAPHost string `json:"imap_host,omitempty" toml:"imap_host"`
	IMAPPort int    `json:"imap_port,omitempty" toml:"imap_port"`
	IMAPTLS  bool   `json:"imap_tls,omitempty" toml:"imap_tls"`
	SMTPHost string `json:"smtp_host,omitempty" toml:"smtp_host"`
	SMTPPort int    `json:"smtp_port,omitempty" toml:"smtp_port"`
	SMTPTLS  bool   `json:"smtp_tls,omitempty" toml:"smtp_tls"`
	Username string `json:"username,omitempty" toml:"username"`
	Password string `json:"-" toml:"password"`
}

// Label maps a provider's native categorization onto a local entity
type Label struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	Type      LabelType `json:"type"`
	RemoteID  string    `json:"remote_id,omitempty"`
}

// LabelType classifies a Label by origin.
type LabelType string

const (
	LabelUser   LabelType = "user"
	LabelSystem LabelType = "system"
	LabelFolder LabelType = "folder"
)
