package imap

import (
	"strings"

	"github.com/emersion/go-sasl"
)

// Supported SASL mechanisms.
const (
	MechanismXOAuth2     = "xoauth2"
	MechanismOAuthBearer = "oauthbearer"
)

// xoauth2Client implements the XOAUTH2 mechanism used by Gmail and
// Microsoft 365 IMAP endpoints.
type xoauth2Client struct {
	username string
	token    string
}

func (c *xoauth2Client) Start() (mech string, ir []byte, err error) {
	ir = []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

// Next answers the server's error challenge with an empty response so the
// server completes the exchange with a tagged NO.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return []byte{}, nil
}

// newSASLClient returns the SASL client for mechanism.
func newSASLClient(mechanism, username, token, host string, port int) (sasl.Client, error) {
	switch strings.ToLower(mechanism) {
	case "", MechanismXOAuth2:
		return &xoauth2Client{username: username, token: token}, nil
	case MechanismOAuthBearer:
		return sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
			Username: username,
			Token:    token,
			Host:     host,
			Port:     port,
		}), nil
	default:
		return nil, errUnknownMechanism(mechanism)
	}
}

type errUnknownMechanism string

func (e errUnknownMechanism) Error() string {
	return "unsupported SASL mechanism " + string(e)
}
