package mailclient

import (
	"github.com/emersion/go-sasl"
)

// xoauth2 is the SASL mechanism name Gmail and Office 365 accept for
// bearer-token IMAP logins.
const xoauth2 = "XOAUTH2"

// xoauth2Client implements sasl.Client for XOAUTH2. The go-sasl
// package ships OAUTHBEARER but not XOAUTH2, and neither provider
// advertises OAUTHBEARER on IMAP, so the initial response is built
// here: `user=<email>\x01auth=Bearer <token>\x01\x01`.
type xoauth2Client struct {
	email string
	token string

	// answered tracks the single error challenge the server may send.
	answered bool
}

func newXOAuth2Client(email, token string) sasl.Client {
	return &xoauth2Client{email: email, token: token}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	resp := []byte("user=" + c.email + "\x01auth=Bearer " + c.token + "\x01\x01")
	return xoauth2, resp, nil
}

// Next answers the server's error challenge. A failed XOAUTH2 exchange
// delivers a JSON status blob that must be acknowledged with an empty
// response before the server issues its final NO.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	if c.answered {
		return nil, sasl.ErrUnexpectedServerChallenge
	}
	c.answered = true
	return []byte{}, nil
}
