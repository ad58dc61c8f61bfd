package mailclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/ankaboot-source/leadminer-engine/internal/credentials"
	apperrors "github.com/ankaboot-source/leadminer-engine/internal/errors"
)

// IMAPDialer opens authenticated IMAP sessions over TLS for one set
// of credentials.
type IMAPDialer struct {
	creds          credentials.Credentials
	connectTimeout time.Duration
	bodyMaxBytes   int64
	fetchBody      bool
	logger         *slog.Logger
}

// DialerConfig tunes how sessions are opened and what they fetch.
type DialerConfig struct {
	ConnectTimeout time.Duration
	BodyMaxBytes   int64
	FetchBody      bool
}

// NewIMAPDialer creates a dialer bound to one account's credentials.
func NewIMAPDialer(creds credentials.Credentials, cfg DialerConfig, logger *slog.Logger) *IMAPDialer {
	return &IMAPDialer{
		creds:          creds,
		connectTimeout: cfg.ConnectTimeout,
		bodyMaxBytes:   cfg.BodyMaxBytes,
		fetchBody:      cfg.FetchBody,
		logger:         logger,
	}
}

// Dial opens a TLS connection and authenticates with LOGIN or
// XOAUTH2 depending on the credential type.
func (d *IMAPDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := &net.Dialer{Timeout: d.connectTimeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	tlsConn, err := tls.DialWithDialer(dialer, "tcp", d.creds.Addr(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", apperrors.ErrConnection, d.creds.Addr(), err)
	}

	client := imapclient.New(tlsConn, nil)

	switch c := d.creds.(type) {
	case credentials.Password:
		if err := client.Login(c.Email, c.Password).Wait(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("%w: login failed for %s: %v", apperrors.ErrConnection, c.Email, err)
		}
	case credentials.OAuth:
		saslClient := newXOAuth2Client(c.Email, c.AccessToken)
		if err := client.Authenticate(saslClient); err != nil {
			_ = client.Close()
			// The access token was freshly validated by the credential
			// provider, so a rejected XOAUTH2 means the grant died
			// between refresh and dial.
			return nil, fmt.Errorf("%w: XOAUTH2 rejected for %s: %v", apperrors.ErrAuthExpired, c.Email, err)
		}
	default:
		_ = client.Close()
		return nil, fmt.Errorf("unsupported credential type %T", d.creds)
	}

	d.logger.Debug("imap session opened", slog.String("addr", d.creds.Addr()))

	return &imapConn{
		client:       client,
		bodyMaxBytes: d.bodyMaxBytes,
		fetchBody:    d.fetchBody,
	}, nil
}

// imapConn is one authenticated IMAP session.
type imapConn struct {
	client       *imapclient.Client
	bodyMaxBytes int64
	fetchBody    bool
}

// ListFolders lists every folder with its message count in a single
// round trip using LIST-STATUS.
func (c *imapConn) ListFolders(ctx context.Context) ([]FolderInfo, error) {
	listCmd := c.client.List("", "*", &imap.ListOptions{
		ReturnStatus: &imap.StatusOptions{NumMessages: true},
	})

	mailboxes, err := listCmd.Collect()
	if err != nil {
		return nil, fmt.Errorf("%w: list folders: %v", apperrors.ErrConnection, err)
	}

	folders := make([]FolderInfo, 0, len(mailboxes))
	for _, mbox := range mailboxes {
		info := FolderInfo{
			Name:  mbox.Mailbox,
			Delim: string(mbox.Delim),
		}
		for _, attr := range mbox.Attrs {
			info.Attrs = append(info.Attrs, string(attr))
		}
		if mbox.Status != nil && mbox.Status.NumMessages != nil {
			info.Total = *mbox.Status.NumMessages
		}
		folders = append(folders, info)
	}

	return folders, nil
}

// SelectFolder opens a folder read-only so mining never mutates
// flags on the mailbox.
func (c *imapConn) SelectFolder(ctx context.Context, path string) (uint32, error) {
	data, err := c.client.Select(path, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return 0, fmt.Errorf("%w: select %q: %v", apperrors.ErrConnection, path, err)
	}
	return data.NumMessages, nil
}

// FetchRange fetches envelopes, full headers and a bounded body
// prefix for the sequence range [start, end].
func (c *imapConn) FetchRange(ctx context.Context, start, end uint32) ([]RawMessage, error) {
	var seqSet imap.SeqSet
	seqSet.AddRange(start, end)

	headerSection := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierHeader,
		Peek:      true,
	}

	sections := []*imap.FetchItemBodySection{headerSection}

	var textSection *imap.FetchItemBodySection
	if c.fetchBody {
		textSection = &imap.FetchItemBodySection{
			Specifier: imap.PartSpecifierText,
			Peek:      true,
			Partial:   &imap.SectionPartial{Offset: 0, Size: c.bodyMaxBytes},
		}
		sections = append(sections, textSection)
	}

	fetchCmd := c.client.Fetch(seqSet, &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: sections,
	})
	defer fetchCmd.Close()

	var messages []RawMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			// One unreadable message must not sink the chunk
			continue
		}

		raw := RawMessage{
			SeqNum: buf.SeqNum,
			UID:    uint32(buf.UID),
			Header: buf.FindBodySection(headerSection),
		}
		if textSection != nil {
			raw.Body = buf.FindBodySection(textSection)
		}
		if buf.Envelope != nil {
			raw.Envelope = convertEnvelope(buf.Envelope)
			raw.MessageID = buf.Envelope.MessageID
		}

		messages = append(messages, raw)
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("%w: fetch %d:%d: %v", apperrors.ErrConnection, start, end, err)
	}

	return messages, nil
}

// Close logs out of the session.
func (c *imapConn) Close() error {
	if err := c.client.Logout().Wait(); err != nil {
		return c.client.Close()
	}
	return nil
}

func convertEnvelope(env *imap.Envelope) Envelope {
	return Envelope{
		Date:      env.Date,
		Subject:   env.Subject,
		MessageID: env.MessageID,
		From:      convertAddresses(env.From),
		To:        convertAddresses(env.To),
		Cc:        convertAddresses(env.Cc),
		Bcc:       convertAddresses(env.Bcc),
		ReplyTo:   convertAddresses(env.ReplyTo),
	}
}

func convertAddresses(addrs []imap.Address) []Address {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, Address{Name: a.Name, Email: a.Addr()})
	}
	return out
}
