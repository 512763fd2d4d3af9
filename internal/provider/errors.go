package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brandon/mail-sync/pkg/types"
)

var (
	// ErrNoCredentials is reported when no usable credential exists for an account.
	ErrNoCredentials = errors.New("no credentials available")
	// ErrNotFound is reported when a message or folder cannot be located remotely.
	ErrNotFound = errors.New("not found")
	// ErrNoArchiveFolder is reported when no archive folder exists or can be created.
	ErrNoArchiveFolder = errors.New("no archive folder available")
)

// AuthError is a missing, expired or rejected credential. Callers prompt for re-authorization.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed during %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ProtocolError is an IMAP-level failure such as a missing folder.
type ProtocolError struct {
	Op     string
	Folder string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Folder != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Folder, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err carries an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Failed converts an error into a failed SyncResult.
func Failed(err error, total int) types.SyncResult {
	return types.SyncResult{
		Total:       total,
		Error:       err.Error(),
		NeedsReauth: IsAuthError(err),
	}
}

// authHints are substrings the IMAP family uses when auth fails without a structured code.
var authHints = []string{
	"authenticationfailed",
	"authentication failed",
	"invalid credentials",
	"invalid_grant",
	"login failed",
	"not authenticated",
	"auth failure",
	"authenticate failed",
	"[auth]",
	"unauthorized",
	"invalid token",
	"token expired",
}

// LooksLikeAuthError inspects error text for authentication-related substrings.
func LooksLikeAuthError(err error) bool {
	if err == nil {
		return false
	}
	if IsAuthError(err) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range authHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
