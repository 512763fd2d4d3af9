package email

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mail-sync/internal/provider"
	"github.com/brandon/mail-sync/internal/provider/gmail"
	"github.com/brandon/mail-sync/internal/provider/imapmail"
	"github.com/brandon/mail-sync/internal/provider/outlook"
	"github.com/brandon/mail-sync/pkg/types"
)

// NewProvider returns the adapter serving the account's provider kind
func NewProvider(acc types.Account, store provider.Store, tokens provider.TokenProvider, logger *logrus.Logger) (provider.Provider, error) {
	switch acc.Kind {
	case types.ProviderGmail:
		return gmail.New(acc, store, tokens, logger), nil
	case types.ProviderMicrosoft:
		return outlook.New(acc, store, tokens, logger), nil
	case types.ProviderYahoo:
		return imapmail.NewYahoo(acc, store, tokens, logger), nil
	case types.ProviderIMAP:
		return imapmail.New(acc, store, logger), nil
	}
	return nil, fmt.Errorf("unknown provider kind: %q", acc.Kind)
}
