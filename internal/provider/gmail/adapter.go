// Package gmail reads Gmail mailboxes through the Gmail REST API v1.
package gmail

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/nhle/mail-integration/internal/mail"
	"github.com/nhle/mail-integration/internal/mailerr"
	"github.com/nhle/mail-integration/internal/provider"
)

// Name is the registry key of this provider.
const Name = "gmail"

// DefaultEndpoint is the Gmail API root.
const DefaultEndpoint = "https://gmail.googleapis.com/"

const me = "me"

// Config holds the settings shared by every Gmail adapter.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// Adapter implements provider.Provider for Gmail.
type Adapter struct {
	svc    *gmailapi.Service
	logger *zap.Logger
}

// New creates an adapter for one access token. No request is made.
func New(creds provider.Credentials, cfg Config) (*Adapter, error) {
	if err := provider.RequireToken(Name, creds); err != nil {
		return nil, err
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = mail.DefaultRequestTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// The token source only decorates requests; the client is long lived.
	ctx := context.Background()
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: creds.AccessToken,
		TokenType:   "Bearer",
	}))
	httpClient.Timeout = timeout

	svc, err := gmailapi.NewService(ctx,
		option.WithHTTPClient(httpClient),
		option.WithEndpoint(endpoint),
	)
	if err != nil {
		return nil, mailerr.Wrap(mailerr.KindGmailAPI, Name, "building Gmail client", err)
	}

	return &Adapter{
		svc:    svc,
		logger: logger.With(zap.String("provider", Name)),
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

// IsTokenValid probes users.getProfile. Only a 401 yields false; other
// failures are returned.
func (a *Adapter) IsTokenValid(ctx context.Context) (bool, error) {
	_, err := a.svc.Users.GetProfile(me).Context(ctx).Do()
	if err == nil {
		return true, nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return false, nil
	}
	return false, a.mapError("is_token_valid", err)
}

// FetchEmails lists one page of messages and fetches each in full.
func (a *Adapter) FetchEmails(
	ctx context.Context,
	opts provider.FetchOptions,
) (*provider.FetchResult, error) {
	// A recognised cursor replays its own request; folder and filter of
	// the resuming call are not looked at.
	req, ok := decodeCursor(opts.Cursor)
	if !ok {
		folder, err := mail.ResolveFolder(opts.Folder, opts.Filter)
		if err != nil {
			return nil, err
		}
		req, err = a.newListRequest(opts)
		if err != nil {
			return nil, err
		}
		req.Folder = string(folder)
		// Anything else is taken as a raw Gmail page token.
		req.PageToken = opts.Cursor
	}
	folder := mail.Folder(req.Folder)

	call := a.svc.Users.Messages.List(me).MaxResults(req.MaxResults)
	if len(req.LabelIDs) > 0 {
		call = call.LabelIds(req.LabelIDs...)
	}
	if req.Query != "" {
		call = call.Q(req.Query)
	}
	if req.PageToken != "" {
		call = call.PageToken(req.PageToken)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, a.mapError("fetch_emails", err)
	}

	messages := make([]mail.Message, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		if ref == nil {
			continue
		}
		raw, err := a.getMessage(ctx, "fetch_emails", ref.Id)
		if err != nil {
			return nil, err
		}
		m, err := ToMessage(raw, folder)
		if err != nil {
			return nil, mailerr.Wrap(mailerr.KindGmailAPI, Name, "malformed message in listing", err)
		}
		messages = append(messages, m)
	}

	result := &provider.FetchResult{Messages: messages}
	if resp.NextPageToken != "" {
		next := req
		next.PageToken = resp.NextPageToken
		result.NextCursor = encodeCursor(next)
	}

	a.logger.Debug("listed messages",
		zap.Int("count", len(messages)),
		zap.Bool("has_more", result.NextCursor != ""),
	)
	return result, nil
}

// newListRequest places the navigational folder in labelIds; a folder given
// only through the filter is expressed by BuildQuery as an in: clause.
func (a *Adapter) newListRequest(opts provider.FetchOptions) (listRequest, error) {
	req := listRequest{
		MaxResults: int64(mail.ClampPageSize(opts.PageSize)),
		Query:      BuildQuery(opts.Filter),
	}
	if opts.Folder != "" {
		label, ok := folderLabels[opts.Folder]
		if !ok {
			return listRequest{}, mailerr.New(
				mailerr.KindGmailAPI, Name,
				"folder "+strconv.Quote(string(opts.Folder))+" is not supported in Gmail",
			)
		}
		req.LabelIDs = []string{label}
	}
	return req, nil
}

// FetchEmailDetail fetches one message in full.
func (a *Adapter) FetchEmailDetail(
	ctx context.Context,
	messageID string,
) (*mail.Detail, error) {
	raw, err := a.getMessage(ctx, "fetch_email_detail", messageID)
	if err != nil {
		return nil, err
	}
	d, err := ToDetail(raw, ExtractAttachments(raw))
	if err != nil {
		return nil, mailerr.Wrap(mailerr.KindGmailAPI, Name, "malformed message", err)
	}
	return &d, nil
}

// ListFolders returns the logical folders Gmail can navigate to.
func (a *Adapter) ListFolders() []mail.Folder {
	out := make([]mail.Folder, 0, len(folderLabels))
	for _, f := range mail.Folders() {
		if _, ok := folderLabels[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// ListAttachments lists attachment metadata from the message structure.
func (a *Adapter) ListAttachments(
	ctx context.Context,
	messageID string,
) ([]mail.Attachment, error) {
	raw, err := a.getMessage(ctx, "list_attachments", messageID)
	if err != nil {
		return nil, err
	}
	return ExtractAttachments(raw), nil
}

// DownloadAttachment fetches and decodes one attachment. Gmail reports no
// reliable size up front, so only the decoded length is checked.
func (a *Adapter) DownloadAttachment(
	ctx context.Context,
	messageID string,
	attachmentID string,
) ([]byte, error) {
	body, err := a.svc.Users.Messages.Attachments.
		Get(me, messageID, attachmentID).
		Context(ctx).
		Do()
	if err != nil {
		return nil, a.mapError("download_attachment", err)
	}
	if body.Data == "" {
		return nil, mailerr.New(mailerr.KindGmailAPI, Name, "attachment data missing")
	}

	content, err := decodeData(body.Data)
	if err != nil {
		return nil, mailerr.Wrap(mailerr.KindGmailAPI, Name, "attachment data is not valid base64url", err)
	}
	if len(content) > mail.MaxAttachmentBytes {
		return nil, mailerr.AttachmentTooLarge(Name, int64(len(content)), mail.MaxAttachmentBytes)
	}
	return content, nil
}

func (a *Adapter) getMessage(
	ctx context.Context,
	op string,
	messageID string,
) (*gmailapi.Message, error) {
	raw, err := a.svc.Users.Messages.Get(me, messageID).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, a.mapError(op, err)
	}
	return raw, nil
}

// mapError converts a Gmail client error into the mailerr taxonomy.
func (a *Adapter) mapError(op string, err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return provider.TransportError(Name, mailerr.KindGmailAPI, op, err)
	}

	a.logger.Debug("gmail api error",
		zap.String("op", op),
		zap.Int("status", apiErr.Code),
		zap.String("message", apiErr.Message),
	)

	if apiErr.Code == http.StatusUnauthorized {
		return &mailerr.Error{
			Kind:       mailerr.KindInvalidAccessToken,
			Provider:   Name,
			Op:         op,
			StatusCode: apiErr.Code,
			Message:    "access token expired or invalid",
		}
	}
	msg := apiErr.Message
	if msg == "" {
		msg = http.StatusText(apiErr.Code)
	}
	return &mailerr.Error{
		Kind:       mailerr.KindGmailAPI,
		Provider:   Name,
		Op:         op,
		StatusCode: apiErr.Code,
		Message:    "HTTP " + strconv.Itoa(apiErr.Code) + ": " + msg,
		Err:        err,
	}
}
