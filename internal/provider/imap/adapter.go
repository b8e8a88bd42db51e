// Package imap reads mailboxes over IMAP4rev1/IMAP4rev2 with OAuth 2.0
// SASL authentication.
package imap

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	goimap "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/nhle/mail-integration/internal/mail"
	"github.com/nhle/mail-integration/internal/mailerr"
	"github.com/nhle/mail-integration/internal/provider"
)

// Name is the registry key of this provider.
const Name = "imap"

// DefaultPort is the implicit-TLS IMAP port.
const DefaultPort = 993

// mailboxRoute is the mailbox backing a logical folder. flagged narrows
// the mailbox to \Flagged messages.
type mailboxRoute struct {
	name    string
	flagged bool
}

var mailboxRoutes = map[mail.Folder]mailboxRoute{
	mail.FolderInbox:   {name: "INBOX"},
	mail.FolderSent:    {name: "Sent"},
	mail.FolderDrafts:  {name: "Drafts"},
	mail.FolderDeleted: {name: "Trash"},
	mail.FolderArchive: {name: "Archive"},
	mail.FolderSpam:    {name: "Junk"},
	mail.FolderStarred: {name: "INBOX", flagged: true},
}

// Config holds the server settings shared by every IMAP adapter.
type Config struct {
	Host      string
	Port      int
	TLS       bool
	Mechanism string
	Timeout   time.Duration
	Logger    *zap.Logger
}

// Adapter implements provider.Provider over IMAP.
type Adapter struct {
	session *session
	logger  *zap.Logger
}

// New creates an adapter authenticating as creds.Account with
// creds.AccessToken. No connection is made.
func New(creds provider.Credentials, cfg Config) (*Adapter, error) {
	if err := provider.RequireToken(Name, creds); err != nil {
		return nil, err
	}
	if strings.TrimSpace(creds.Account) == "" {
		return nil, mailerr.InvalidAccessToken(Name, "an account name is required for IMAP")
	}
	if cfg.Host == "" {
		return nil, mailerr.New(mailerr.KindIMAPAPI, Name, "IMAP host is not configured")
	}
	if _, err := newSASLClient(cfg.Mechanism, "", "", "", 0); err != nil {
		return nil, mailerr.Wrap(mailerr.KindIMAPAPI, Name, "configuring authentication", err)
	}

	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = mail.DefaultRequestTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("provider", Name))

	return &Adapter{
		session: &session{
			host:      cfg.Host,
			port:      port,
			useTLS:    cfg.TLS,
			mechanism: cfg.Mechanism,
			account:   creds.Account,
			token:     creds.AccessToken,
			timeout:   timeout,
			logger:    logger,
		},
		logger: logger,
	}, nil
}

// NewFactory returns a registry factory bound to cfg.
func NewFactory(cfg Config) provider.Factory {
	return func(creds provider.Credentials) (provider.Provider, error) {
		return New(creds, cfg)
	}
}

// Name returns the registry key.
func (a *Adapter) Name() string {
	return Name
}

// IsTokenValid connects and authenticates. A rejected SASL exchange yields
// false; connection failures are returned.
func (a *Adapter) IsTokenValid(ctx context.Context) (bool, error) {
	client, err := a.session.connect(ctx, "is_token_valid")
	if err != nil {
		if errors.Is(err, mailerr.ErrInvalidAccessToken) {
			return false, nil
		}
		return false, err
	}
	_ = client.Logout().Wait()
	return true, nil
}

// FetchEmails lists one page of messages, newest first.
func (a *Adapter) FetchEmails(
	ctx context.Context,
	opts provider.FetchOptions,
) (*provider.FetchResult, error) {
	// A recognised cursor carries its own mailbox and criteria.
	cur, ok := decodeCursor(opts.Cursor)
	if !ok {
		folder, err := mail.ResolveFolder(opts.Folder, opts.Filter)
		if err != nil {
			return nil, err
		}
		cur, err = newCursor(folder, opts)
		if err != nil {
			return nil, err
		}
	}

	var result provider.FetchResult
	err := a.session.withMailbox(ctx, "fetch_emails", cur.Mailbox, func(c *imapclient.Client) error {
		criteria := cur.Spec.criteria()
		if cur.BeforeUID > 0 {
			var below goimap.UIDSet
			below.AddRange(1, goimap.UID(cur.BeforeUID-1))
			criteria.UID = []goimap.UIDSet{below}
		}

		data, err := c.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return a.session.commandError("fetch_emails", err)
		}
		page, more := newestPage(data.AllUIDs(), cur.PageSize)
		if len(page) == 0 {
			return nil
		}

		buffers, err := c.Fetch(goimap.UIDSetNum(page...), fetchOptions()).Collect()
		if err != nil {
			return a.session.commandError("fetch_emails", err)
		}

		byUID := make(map[goimap.UID]fetched, len(buffers))
		for _, buf := range buffers {
			byUID[buf.UID] = fromBuffer(buf)
		}
		// page is ascending; callers get newest first.
		for i := len(page) - 1; i >= 0; i-- {
			f, ok := byUID[page[i]]
			if !ok {
				continue
			}
			result.Messages = append(result.Messages, toMessage(f, cur.Mailbox, mail.Folder(cur.Folder)))
		}

		if more {
			next := cur
			next.BeforeUID = uint32(page[0])
			result.NextCursor = encodeCursor(next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Messages == nil {
		result.Messages = []mail.Message{}
	}

	a.logger.Debug("listed messages",
		zap.String("mailbox", cur.Mailbox),
		zap.Int("count", len(result.Messages)),
		zap.Bool("has_more", result.NextCursor != ""),
	)
	return &result, nil
}

func newCursor(folder mail.Folder, opts provider.FetchOptions) (pageCursor, error) {
	lookup := folder
	if lookup == "" {
		lookup = mail.FolderInbox
	}
	route, ok := mailboxRoutes[lookup]
	if !ok {
		return pageCursor{}, mailerr.New(
			mailerr.KindIMAPAPI, Name,
			"folder "+strconv.Quote(string(folder))+" is not supported over IMAP",
		)
	}
	spec := specFromFilter(opts.Filter)
	spec.Flagged = route.flagged
	return pageCursor{
		Mailbox:  route.name,
		Spec:     spec,
		PageSize: mail.ClampPageSize(opts.PageSize),
		Folder:   string(folder),
	}, nil
}

// newestPage returns the size highest UIDs in ascending order and whether
// older ones remain.
func newestPage(uids []goimap.UID, size int) ([]goimap.UID, bool) {
	sorted := make([]goimap.UID, len(uids))
	copy(sorted, uids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if len(sorted) <= size {
		return sorted, false
	}
	return sorted[len(sorted)-size:], true
}

func fetchOptions() *goimap.FetchOptions {
	return &goimap.FetchOptions{
		Envelope:     true,
		Flags:        true,
		UID:          true,
		InternalDate: true,
		BodySection:  []*goimap.FetchItemBodySection{fullBody},
	}
}

var fullBody = &goimap.FetchItemBodySection{Peek: true}

func fromBuffer(buf *imapclient.FetchMessageBuffer) fetched {
	return fetched{
		UID:          buf.UID,
		Envelope:     buf.Envelope,
		Flags:        buf.Flags,
		InternalDate: buf.InternalDate,
		Raw:          buf.FindBodySection(fullBody),
	}
}

// fetchOne loads a single message addressed by id.
func (a *Adapter) fetchOne(ctx context.Context, op, id string) (fetched, string, error) {
	mailbox, uid, err := parseMessageID(id)
	if err != nil {
		return fetched{}, "", mailerr.Wrap(mailerr.KindIMAPAPI, Name, "invalid message id", err)
	}

	var out fetched
	err = a.session.withMailbox(ctx, op, mailbox, func(c *imapclient.Client) error {
		buffers, err := c.Fetch(goimap.UIDSetNum(uid), fetchOptions()).Collect()
		if err != nil {
			return a.session.commandError(op, err)
		}
		if len(buffers) == 0 {
			return mailerr.New(mailerr.KindIMAPAPI, Name, "message "+id+" not found")
		}
		out = fromBuffer(buffers[0])
		return nil
	})
	if err != nil {
		return fetched{}, "", err
	}
	return out, mailbox, nil
}

// FetchEmailDetail fetches and parses one message.
func (a *Adapter) FetchEmailDetail(ctx context.Context, messageID string) (*mail.Detail, error) {
	f, mailbox, err := a.fetchOne(ctx, "fetch_email_detail", messageID)
	if err != nil {
		return nil, err
	}
	d := toDetail(f, mailbox)
	return &d, nil
}

// ListFolders returns the logical folders mapped to IMAP mailboxes.
func (a *Adapter) ListFolders() []mail.Folder {
	out := make([]mail.Folder, 0, len(mailboxRoutes))
	for _, f := range mail.Folders() {
		if _, ok := mailboxRoutes[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// ListAttachments parses the message and lists its attachments.
func (a *Adapter) ListAttachments(ctx context.Context, messageID string) ([]mail.Attachment, error) {
	f, _, err := a.fetchOne(ctx, "list_attachments", messageID)
	if err != nil {
		return nil, err
	}
	return parseBody(f.Raw).attachmentMeta(), nil
}

// DownloadAttachment returns the decoded content of one attachment.
func (a *Adapter) DownloadAttachment(
	ctx context.Context,
	messageID string,
	attachmentID string,
) ([]byte, error) {
	f, _, err := a.fetchOne(ctx, "download_attachment", messageID)
	if err != nil {
		return nil, err
	}

	for _, att := range parseBody(f.Raw).attachments {
		if att.meta.AttachmentID != attachmentID {
			continue
		}
		if len(att.data) > mail.MaxAttachmentBytes {
			return nil, mailerr.AttachmentTooLarge(Name, int64(len(att.data)), mail.MaxAttachmentBytes)
		}
		return att.data, nil
	}
	return nil, mailerr.New(
		mailerr.KindIMAPAPI, Name,
		"attachment "+strconv.Quote(attachmentID)+" not found in message "+messageID,
	)
}
