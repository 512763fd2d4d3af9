package outlook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"github.com/brandon/mail-sync/internal/provider"
)

// DefaultBaseURL is the Graph v1.0 root.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// StatusError is a non-2xx Graph response
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("graph %s %s returned status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func tripping(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return provider.TripsOnStatus(statusErr.Code)
	}
	return true
}

// classify maps 401/403 to an AuthError and 404 to ErrNotFound.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &provider.AuthError{Op: op, Err: err}
		case http.StatusNotFound:
			return fmt.Errorf("failed to %s: %w: %v", op, provider.ErrNotFound, err)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// client is a bearer-authenticated Graph client bound to one token
type client struct {
	http    *http.Client
	baseURL string
	breaker *provider.Breaker
}

func (a *Adapter) client(ctx context.Context) (*client, error) {
	token, err := provider.ResolveToken(ctx, a.tokens, a.account.ID)
	if err != nil {
		return nil, err
	}
	base := a.httpClient
	if base == nil {
		base = http.DefaultClient
	}
	hc := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, base),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
	)
	return &client{http: hc, baseURL: a.baseURL, breaker: a.breaker}, nil
}

// do sends a JSON request and decodes a JSON response into out when out is non-nil.
func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	return c.breaker.Do(method+" "+path, func() error {
		var body io.Reader
		if in != nil {
			payload, err := json.Marshal(in)
			if err != nil {
				return fmt.Errorf("failed to encode request: %w", err)
			}
			body = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(msg)}
		}
		if out == nil || resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusAccepted {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}
