// Package provider defines the contract every mail provider implements and
// the keyed registry used to construct them by name.
package provider

import (
	"context"

	"github.com/nhle/mail-integration/internal/mail"
)

// Credentials authenticate a provider instance. They are fixed for the
// lifetime of the instance; rotating a token means building a new one.
type Credentials struct {
	// AccessToken is the OAuth bearer token for the mailbox.
	AccessToken string

	// Account is the mailbox login name. Only providers that need a
	// user name alongside the token (IMAP SASL) read it.
	Account string
}

// FetchOptions controls a single page of a message listing.
type FetchOptions struct {
	// PageSize is clamped to [mail.MinPageSize, mail.MaxPageSize].
	// Zero selects mail.DefaultPageSize.
	PageSize int

	// Cursor is the opaque continuation returned by a previous page.
	// A recognized cursor replays the original query and ignores
	// PageSize, Folder and Filter.
	Cursor string

	// Folder is the navigational folder. It must agree with the
	// filter's folder when both are set.
	Folder mail.Folder

	Filter *mail.SearchFilter
}

// FetchResult is one page of message summaries.
type FetchResult struct {
	Messages []mail.Message

	// NextCursor is empty when there are no further pages.
	NextCursor string
}

// Provider is a read-only view of one mailbox on one mail service.
// Implementations hold no mutable state and issue remote calls
// sequentially, so one instance may serve concurrent callers.
type Provider interface {
	// Name returns the registry key of the provider.
	Name() string

	// IsTokenValid issues a lightweight identity probe. A rejected token
	// yields false; any other failure is returned as an error.
	IsTokenValid(ctx context.Context) (bool, error)

	// FetchEmails returns one page of message summaries.
	FetchEmails(ctx context.Context, opts FetchOptions) (*FetchResult, error)

	// FetchEmailDetail returns the full view of one message.
	FetchEmailDetail(ctx context.Context, messageID string) (*mail.Detail, error)

	// ListFolders returns the folders the provider can navigate to.
	ListFolders() []mail.Folder

	// ListAttachments returns attachment metadata for one message.
	ListAttachments(
		ctx context.Context,
		messageID string,
	) ([]mail.Attachment, error)

	// DownloadAttachment returns the decoded attachment bytes. It never
	// returns partial content and fails for attachments above
	// mail.MaxAttachmentBytes.
	DownloadAttachment(
		ctx context.Context,
		messageID string,
		attachmentID string,
	) ([]byte, error)
}
