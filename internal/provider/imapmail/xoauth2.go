package imapmail

import (
	"github.com/emersion/go-sasl"
)

// Xoauth2 is the SASL mechanism name for bearer tokens over IMAP and SMTP.
const Xoauth2 = "XOAUTH2"

type xoauth2Client struct {
	username string
	token    string
}

// NewXoauth2Client returns a SASL client for the XOAUTH2 mechanism
func NewXoauth2Client(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return Xoauth2, ir, nil
}

// Next answers the server's JSON error challenge with an empty response so
// it can complete the exchange with a tagged NO.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return []byte{}, nil
}
