package imapmail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/emersion/go-imap/client"

	"github.com/brandon/mail-sync/internal/provider"
)

// lockRegistry hands out one exclusive mailbox lock per account.
type lockRegistry struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

var mailboxLocks = &lockRegistry{locks: make(map[string]chan struct{})}

// acquire blocks until the account's lock is free or ctx is done.
func (r *lockRegistry) acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	ch, ok := r.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		r.locks[key] = ch
	}
	r.mu.Unlock()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Adapter) dial(ctx context.Context) (*client.Client, error) {
	host := a.account.IMAPHost
	port := a.account.IMAPPort
	if port == 0 {
		port = 993
		if !a.account.IMAPTLS {
			port = 143
		}
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := &net.Dialer{Timeout: a.dialTimeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	if a.account.IMAPTLS {
		return client.DialWithDialerTLS(dialer, addr, &tls.Config{
			ServerName: host,
			MinVersion: tls.VersionTLS12,
		})
	}
	return client.DialWithDialer(dialer, addr)
}

// withSession opens a fresh authenticated session under the mailbox lock,
// runs fn and tears the session down. Cancelling ctx terminates the connection.
func (a *Adapter) withSession(ctx context.Context, fn func(c *client.Client) error) error {
	release, err := mailboxLocks.acquire(ctx, a.account.ID)
	if err != nil {
		return err
	}
	defer release()

	c, err := a.dial(ctx)
	if err != nil {
		return a.classify(fmt.Errorf("failed to connect to IMAP server: %w", err))
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.Terminate()
	})
	defer func() {
		if stop() {
			_ = c.Logout()
		}
	}()

	if err := a.authenticate(ctx, c); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !provider.IsAuthError(err) {
			err = fmt.Errorf("failed to authenticate: %w", err)
		}
		return a.classify(err)
	}

	if err := fn(c); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return a.classify(err)
	}
	return nil
}
