// Package outlook reads Outlook / Microsoft 365 mailboxes through the
// Microsoft Graph v1.0 REST API.
package outlook

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mail-integration/internal/mail"
	"github.com/nhle/mail-integration/internal/mailerr"
	"github.com/nhle/mail-integration/internal/provider"
)

// Name is the registry key of this provider.
const Name = "outlook"

// DefaultBaseURL is the Graph API root.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

const (
	listSelect   = "id,subject,from,receivedDateTime,bodyPreview,hasAttachments,inferenceClassification"
	listExpand   = "attachments($select=id,name,size,contentType)"
	detailSelect = "id,subject,from,toRecipients,ccRecipients,bccRecipients," +
		"receivedDateTime,body,bodyPreview,attachments"
	attachmentSelect = "id,name,size,contentType"
)

// folderRoute is the Graph well-known folder name for a logical folder and
// the $filter clauses that narrow it further.
type folderRoute struct {
	name    string
	filters []string
}

var folderRoutes = map[mail.Folder]folderRoute{
	mail.FolderInbox: {
		name:    "inbox",
		filters: []string{"InferenceClassification eq 'Focused'"},
	},
	mail.FolderSent:    {name: "sentitems"},
	mail.FolderDrafts:  {name: "drafts"},
	mail.FolderDeleted: {name: "deleteditems"},
	mail.FolderArchive: {name: "archive"},
	mail.FolderSpam:    {name: "junkemail"},
	// Graph has no starred folder; flagged inbox messages stand in for it.
	mail.FolderStarred: {
		name:    "inbox",
		filters: []string{"flag/flagStatus eq 'flagged'"},
	},
}

// Config holds the settings shared by every Outlook adapter.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Adapter implements provider.Provider for Microsoft Graph.
type Adapter struct {
	client  *Client
	baseURL string
}

// New creates an adapter for one access token.
func New(creds provider.Credentials, cfg Config) (*Adapter, error) {
	if err := provider.RequireToken(Name, creds); err != nil {
		return nil, err
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = mail.DefaultRequestTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		client: NewClient(
			baseURL, creds.AccessToken, timeout,
			logger.With(zap.String("provider", Name)),
		),
		baseURL: baseURL,
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

// IsTokenValid probes GET /me.
func (a *Adapter) IsTokenValid(ctx context.Context) (bool, error) {
	var me User
	err := a.client.Get(ctx, "is_token_valid", "/me", nil, &me)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mailerr.ErrInvalidAccessToken) {
		return false, nil
	}
	return false, err
}

// FetchEmails lists one page of messages. A next-link cursor is fetched
// verbatim; any other cursor value is ignored and a fresh query is built.
func (a *Adapter) FetchEmails(
	ctx context.Context,
	opts provider.FetchOptions,
) (*provider.FetchResult, error) {
	var page MessagePage
	if opts.Cursor != "" && a.isNextLink(opts.Cursor) {
		if err := a.client.GetURL(ctx, "fetch_emails", opts.Cursor, &page); err != nil {
			return nil, err
		}
		return a.toResult(page, folderOfNextLink(opts.Cursor))
	}

	folder, err := mail.ResolveFolder(opts.Folder, opts.Filter)
	if err != nil {
		return nil, err
	}

	path := "/me/messages"
	var special []string
	if folder != "" {
		route, ok := folderRoutes[folder]
		if !ok {
			return nil, mailerr.New(
				mailerr.KindOutlookAPI, Name,
				"folder "+strconv.Quote(string(folder))+" is not supported in Outlook",
			)
		}
		path = "/me/mailFolders/" + route.name + "/messages"
		special = route.filters
	}

	query := BuildQuery(opts.Filter, special, "")
	params := query.Values()
	switch {
	case query.Search != "":
		// Graph rejects $orderby alongside $search.
		params.Del("$orderby")
	case query.OrderBy == "":
		params.Set("$orderby", defaultOrderBy)
	}
	params.Set("$top", strconv.Itoa(mail.ClampPageSize(opts.PageSize)))
	params.Set("$select", listSelect)
	params.Set("$expand", listExpand)

	if err := a.client.Get(ctx, "fetch_emails", path, params, &page); err != nil {
		return nil, err
	}
	return a.toResult(page, folder)
}

func (a *Adapter) toResult(
	page MessagePage,
	folder mail.Folder,
) (*provider.FetchResult, error) {
	messages := make([]mail.Message, 0, len(page.Value))
	for _, raw := range page.Value {
		m, err := ToMessage(raw, folder)
		if err != nil {
			return nil, mailerr.Wrap(
				mailerr.KindOutlookAPI, Name, "malformed message in listing", err,
			)
		}
		messages = append(messages, m)
	}
	return &provider.FetchResult{
		Messages:   messages,
		NextCursor: page.NextLink,
	}, nil
}

// isNextLink is a structural check: the cursor must point at this Graph
// root, address a messages collection and carry OData parameters.
func (a *Adapter) isNextLink(cursor string) bool {
	return strings.HasPrefix(cursor, a.baseURL+"/") &&
		strings.Contains(cursor, "/messages") &&
		(strings.Contains(cursor, "$") || strings.Contains(cursor, "%24"))
}

// folderOfNextLink recovers the logical folder a next-link continues.
// Links over /me/messages, or over a folder with no logical name, yield "".
func folderOfNextLink(link string) mail.Folder {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	segments := strings.Split(u.Path, "/")
	var name string
	for i := 0; i+2 < len(segments); i++ {
		if segments[i] == "mailFolders" && segments[i+2] == "messages" {
			name = strings.ToLower(segments[i+1])
			break
		}
	}
	if name == "" {
		return ""
	}

	flagged := strings.Contains(u.Query().Get("$filter"), "flag/flagStatus")
	for _, f := range mail.Folders() {
		route, ok := folderRoutes[f]
		if !ok || strings.ToLower(route.name) != name {
			continue
		}
		// inbox and starred share a mailbox; the flag clause tells them apart.
		if hasFlagFilter(route) == flagged {
			return f
		}
	}
	return ""
}

func hasFlagFilter(route folderRoute) bool {
	for _, clause := range route.filters {
		if strings.HasPrefix(clause, "flag/flagStatus") {
			return true
		}
	}
	return false
}

// FetchEmailDetail fetches one message with attachments expanded, so no
// second call is needed for attachment metadata.
func (a *Adapter) FetchEmailDetail(
	ctx context.Context,
	messageID string,
) (*mail.Detail, error) {
	params := url.Values{}
	params.Set("$expand", "attachments")
	params.Set("$select", detailSelect)

	var raw Message
	if err := a.client.Get(
		ctx, "fetch_email_detail", messagePath(messageID), params, &raw,
	); err != nil {
		return nil, err
	}

	d, err := ToDetail(raw, ExtractAttachments(raw))
	if err != nil {
		return nil, mailerr.Wrap(mailerr.KindOutlookAPI, Name, "malformed message", err)
	}
	return &d, nil
}

// ListFolders returns the logical folders Outlook can navigate to.
func (a *Adapter) ListFolders() []mail.Folder {
	out := make([]mail.Folder, 0, len(folderRoutes))
	for _, f := range mail.Folders() {
		if _, ok := folderRoutes[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// ListAttachments lists attachment metadata for a message.
func (a *Adapter) ListAttachments(
	ctx context.Context,
	messageID string,
) ([]mail.Attachment, error) {
	params := url.Values{}
	params.Set("$select", attachmentSelect)

	var page AttachmentPage
	if err := a.client.Get(
		ctx, "list_attachments", messagePath(messageID)+"/attachments", params, &page,
	); err != nil {
		return nil, err
	}
	return toAttachments(page.Value), nil
}

// DownloadAttachment fetches and decodes one attachment. The declared size
// is checked before decoding and the decoded length after.
func (a *Adapter) DownloadAttachment(
	ctx context.Context,
	messageID string,
	attachmentID string,
) ([]byte, error) {
	params := url.Values{}
	params.Set("$select", "contentBytes,size")

	var att AttachmentResource
	path := messagePath(messageID) + "/attachments/" + url.PathEscape(attachmentID)
	if err := a.client.Get(ctx, "download_attachment", path, params, &att); err != nil {
		return nil, err
	}

	if att.Size > mail.MaxAttachmentBytes {
		return nil, mailerr.AttachmentTooLarge(Name, att.Size, mail.MaxAttachmentBytes)
	}
	if att.ContentBytes == "" {
		return nil, mailerr.New(mailerr.KindOutlookAPI, Name, "attachment content missing")
	}

	content, err := base64.StdEncoding.DecodeString(att.ContentBytes)
	if err != nil {
		return nil, mailerr.Wrap(
			mailerr.KindOutlookAPI, Name, "attachment content is not valid base64", err,
		)
	}
	if len(content) > mail.MaxAttachmentBytes {
		return nil, mailerr.AttachmentTooLarge(
			Name, int64(len(content)), mail.MaxAttachmentBytes,
		)
	}
	return content, nil
}

func messagePath(messageID string) string {
	return "/me/messages/" + url.PathEscape(messageID)
}
