package imapmail

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.com/brandon/mail-sync/internal/mailparse"
	"github.com/brandon/mail-sync/internal/provider"
	"github.com/brandon/mail-sync/pkg/types"
)

// dialSMTP connects with implicit TLS on port 465, STARTTLS on other ports
// when TLS is enabled, and in plaintext otherwise.
func (a *Adapter) dialSMTP(ctx context.Context) (*smtp.Client, net.Conn, error) {
	host := a.account.SMTPHost
	port := a.account.SMTPPort
	if port == 0 {
		port = 587
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := &net.Dialer{Timeout: a.dialTimeout}
	tlsConfig := &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}

	if a.account.SMTPTLS && port == 465 {
		conn, err := (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
		}
		return smtp.NewClient(conn), conn, nil
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if !a.account.SMTPTLS {
		return smtp.NewClient(conn), conn, nil
	}
	c, err := smtp.NewClientStartTLS(conn, tlsConfig)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to start TLS: %w", err)
	}
	return c, conn, nil
}

func messageDomain(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 && i < len(email)-1 {
		return email[i+1:]
	}
	return "localhost"
}

func envelopeRecipients(lists ...[]string) []string {
	var out []string
	for _, list := range lists {
		for _, r := range list {
			if addr := mailparse.ParseAddress(r).Email; addr != "" {
				out = append(out, addr)
			}
		}
	}
	return out
}

// Send submits the message over SMTP. The generated Message-ID is the result id.
func (a *Adapter) Send(ctx context.Context, params types.SendParams) (*types.SendResult, error) {
	recipients := envelopeRecipients(params.To, params.Cc, params.Bcc)
	if len(params.To) == 0 || len(recipients) == 0 {
		return nil, fmt.Errorf("failed to send message: no recipients")
	}

	from := mailparse.Address{Name: a.account.DisplayName, Email: a.account.Email}
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), messageDomain(a.account.Email))
	raw, err := mailparse.BuildRawEmail(mailparse.Outgoing{
		From:       from.Header(),
		To:         params.To,
		Cc:         params.Cc,
		Subject:    params.Subject,
		BodyText:   params.BodyText,
		BodyHTML:   params.BodyHTML,
		InReplyTo:  params.InReplyTo,
		References: params.References,
		Extra: [][2]string{
			{"Date", time.Now().Format(time.RFC1123Z)},
			{"Message-ID", messageID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}

	c, conn, err := a.dialSMTP(ctx)
	if err != nil {
		return nil, a.classify(err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		c.Close()
	}()

	if err := a.submit(ctx, c, from.Email, recipients, raw); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, a.classify(err)
	}

	a.log().WithField("message_id", messageID).Info("Message sent")
	return &types.SendResult{ID: messageID, ThreadID: params.ThreadID}, nil
}

func (a *Adapter) submit(ctx context.Context, c *smtp.Client, from string, recipients []string, raw string) error {
	auth, err := a.smtpAuth(ctx)
	if err != nil {
		return err
	}
	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return &provider.AuthError{Op: "smtp auth", Err: err}
		}
	}

	if err := c.Mail(from, nil); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("failed to add recipient %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := io.WriteString(w, raw); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}
	return c.Quit()
}
