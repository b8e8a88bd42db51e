package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	goimap "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/nhle/mail-integration/internal/mailerr"
	"github.com/nhle/mail-integration/internal/provider"
)

// session opens one authenticated IMAP connection per operation.
type session struct {
	host      string
	port      int
	useTLS    bool
	mechanism string
	account   string
	token     string
	timeout   time.Duration
	logger    *zap.Logger
}

// connect dials, authenticates and returns the client. The caller must
// call logout.
func (s *session) connect(ctx context.Context, op string) (*imapclient.Client, error) {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialer := &net.Dialer{Deadline: deadline}
	tlsConfig := &tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}

	var (
		client *imapclient.Client
		err    error
	)
	opts := &imapclient.Options{TLSConfig: tlsConfig}

	if s.useTLS {
		var conn *tls.Conn
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, s.transportError(op, fmt.Errorf("connecting to IMAP %s: %w", addr, err))
		}
		_ = conn.SetDeadline(deadline)
		client = imapclient.New(conn, opts)
	} else {
		var conn net.Conn
		conn, err = dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, s.transportError(op, fmt.Errorf("connecting to IMAP %s: %w", addr, err))
		}
		_ = conn.SetDeadline(deadline)
		client, err = imapclient.NewStartTLS(conn, opts)
		if err != nil {
			_ = conn.Close()
			return nil, s.transportError(op, fmt.Errorf("starting TLS with %s: %w", addr, err))
		}
	}

	saslClient, err := newSASLClient(s.mechanism, s.account, s.token, s.host, s.port)
	if err != nil {
		_ = client.Close()
		return nil, mailerr.Wrap(mailerr.KindIMAPAPI, Name, "configuring authentication", err)
	}

	if err := client.Authenticate(saslClient); err != nil {
		_ = client.Close()
		var imapErr *goimap.Error
		if errors.As(err, &imapErr) {
			return nil, &mailerr.Error{
				Kind:     mailerr.KindInvalidAccessToken,
				Provider: Name,
				Op:       op,
				Message:  fmt.Sprintf("authentication failed for %s", s.account),
				Err:      err,
			}
		}
		return nil, s.transportError(op, err)
	}

	s.logger.Debug("imap session opened", zap.String("op", op), zap.String("addr", addr))
	return client, nil
}

// withMailbox runs fn against mailbox selected read-only.
func (s *session) withMailbox(
	ctx context.Context,
	op string,
	mailbox string,
	fn func(c *imapclient.Client) error,
) error {
	client, err := s.connect(ctx, op)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(mailbox, &goimap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return s.commandError(op, fmt.Errorf("selecting %s: %w", mailbox, err))
	}
	return fn(client)
}

// commandError maps a failed IMAP command. A tagged NO or BAD is a
// provider error; anything else came from the connection.
func (s *session) commandError(op string, err error) error {
	var imapErr *goimap.Error
	if errors.As(err, &imapErr) {
		return &mailerr.Error{
			Kind:     mailerr.KindIMAPAPI,
			Provider: Name,
			Op:       op,
			Message:  err.Error(),
			Err:      err,
		}
	}
	return s.transportError(op, err)
}

func (s *session) transportError(op string, err error) error {
	return provider.TransportError(Name, mailerr.KindIMAPAPI, op, err)
}
