package imapmail

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandon/mail-sync/internal/provider"
	"github.com/brandon/mail-sync/pkg/types"
)

type delivery struct {
	from string
	to   []string
	data string
}

type smtpBackend struct {
	mu         sync.Mutex
	deliveries []delivery
}

func (b *smtpBackend) received() []delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]delivery(nil), b.deliveries...)
}

func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{backend: b}, nil
}

type smtpSession struct {
	backend *smtpBackend
	from    string
	to      []string
}

func (s *smtpSession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *smtpSession) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username != "me@example.com" || password != "secret" {
			return errors.New("invalid credentials")
		}
		return nil
	}), nil
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.to = append(s.to, to)
	return nil
}

func (s *smtpSession) Data(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.backend.mu.Lock()
	s.backend.deliveries = append(s.backend.deliveries, delivery{from: s.from, to: s.to, data: string(b)})
	s.backend.mu.Unlock()
	return nil
}

func (s *smtpSession) Reset() {
	s.from = ""
	s.to = nil
}

func (s *smtpSession) Logout() error { return nil }

func startSMTP(t *testing.T) (*smtpBackend, int) {
	t.Helper()
	be := &smtpBackend{}
	s := smtp.NewServer(be)
	s.Domain = "localhost"
	s.AllowInsecureAuth = true
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.Serve(ln)
	t.Cleanup(func() { s.Close() })
	return be, ln.Addr().(*net.TCPAddr).Port
}

func smtpAdapter(t *testing.T, password string) (*Adapter, *smtpBackend) {
	be, port := startSMTP(t)
	account := types.Account{
		ID:          "smtp",
		Kind:        types.ProviderIMAP,
		Email:       "me@example.com",
		DisplayName: "Me",
		Password:    password,
		SMTPHost:    "127.0.0.1",
		SMTPPort:    port,
	}
	return New(account, nil, testLogger()), be
}

func TestSend_DeliversOverSMTP(t *testing.T) {
	adapter, be := smtpAdapter(t, "secret")

	res, err := adapter.Send(context.Background(), types.SendParams{
		To:       []string{"Jane <jane@example.com>"},
		Bcc:      []string{"hidden@example.com"},
		Subject:  "Hello",
		BodyText: "hi there",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.ID, "<"))
	assert.True(t, strings.HasSuffix(res.ID, "@example.com>"))

	deliveries := be.received()
	require.Len(t, deliveries, 1)
	d := deliveries[0]
	assert.Equal(t, "me@example.com", d.from)
	assert.Equal(t, []string{"jane@example.com", "hidden@example.com"}, d.to)
	assert.Contains(t, d.data, "Subject: Hello")
	assert.Contains(t, d.data, "Message-ID: "+res.ID)
	assert.Contains(t, d.data, "hi there")
	assert.NotContains(t, d.data, "hidden@example.com")
}

func TestSend_RejectedCredentials(t *testing.T) {
	adapter, be := smtpAdapter(t, "wrong")

	_, err := adapter.Send(context.Background(), types.SendParams{To: []string{"jane@example.com"}, Subject: "x"})

	require.Error(t, err)
	assert.True(t, provider.IsAuthError(err))
	assert.Empty(t, be.received())
}

func TestSend_NoRecipients(t *testing.T) {
	adapter, _ := smtpAdapter(t, "secret")

	_, err := adapter.Send(context.Background(), types.SendParams{Subject: "x"})

	assert.Error(t, err)
}

func TestSend_RejectsHeaderLineBreaks(t *testing.T) {
	adapter, backend := smtpAdapter(t, "secret")

	_, err := adapter.Send(context.Background(), types.SendParams{
		To:       []string{"you@example.com"},
		Subject:  "hello\r\nBcc: attacker@evil.com",
		BodyText: "hi",
	})

	assert.Error(t, err)
	assert.Empty(t, backend.received())
}

func TestSend_EncodesNonASCIIDisplayName(t *testing.T) {
	adapter, backend := smtpAdapter(t, "secret")
	adapter.account.DisplayName = "Jürgen"

	_, err := adapter.Send(context.Background(), types.SendParams{
		To:       []string{"you@example.com"},
		Subject:  "hi",
		BodyText: "hi",
	})

	require.NoError(t, err)
	got := backend.received()
	require.Len(t, got, 1)
	assert.Contains(t, got[0].data, "From: =?UTF-8?q?J=C3=BCrgen?= <")
}
