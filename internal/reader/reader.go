// Package reader is the entry point for reading mail: it resolves a
// provider from a registry and times and records every operation.
package reader

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mail-integration/internal/mail"
	"github.com/nhle/mail-integration/internal/mailerr"
	"github.com/nhle/mail-integration/internal/metrics"
	"github.com/nhle/mail-integration/internal/provider"
	"github.com/nhle/mail-integration/internal/store"
)

// Operation names used in metrics and the access log.
const (
	OpIsTokenValid       = "is_token_valid"
	OpFetchEmails        = "fetch_emails"
	OpFetchEmailDetail   = "fetch_email_detail"
	OpListFolders        = "list_folders"
	OpListAttachments    = "list_attachments"
	OpDownloadAttachment = "download_attachment"
)

// Recorder persists access records.
type Recorder interface {
	RecordAccess(ctx context.Context, rec store.AccessRecord) error
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records operation counts and latency on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reader) { r.metrics = m }
}

// WithRecorder appends an access record per operation.
func WithRecorder(rec Recorder) Option {
	return func(r *Reader) { r.recorder = rec }
}

// Reader exposes the read operations of one provider bound to one set of
// credentials. Rotate credentials by building a new Reader.
type Reader struct {
	provider provider.Provider
	logger   *zap.Logger
	metrics  *metrics.Metrics
	recorder Recorder
}

// New resolves name in reg. An unknown name fails before creds are used.
func New(
	reg *provider.Registry,
	name string,
	creds provider.Credentials,
	opts ...Option,
) (*Reader, error) {
	p, err := reg.New(name, creds)
	if err != nil {
		return nil, err
	}
	r := &Reader{provider: p, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("provider", p.Name()))
	return r, nil
}

// Provider returns the registry key of the underlying provider.
func (r *Reader) Provider() string {
	return r.provider.Name()
}

// IsTokenValid reports whether the credentials are still accepted.
func (r *Reader) IsTokenValid(ctx context.Context) (bool, error) {
	start := time.Now()
	ok, err := r.provider.IsTokenValid(ctx)
	r.observe(ctx, OpIsTokenValid, "", start, err)
	return ok, err
}

// FetchEmails returns one page of message summaries.
func (r *Reader) FetchEmails(
	ctx context.Context,
	opts provider.FetchOptions,
) (*provider.FetchResult, error) {
	opts.PageSize = mail.ClampPageSize(opts.PageSize)

	start := time.Now()
	res, err := r.provider.FetchEmails(ctx, opts)
	r.observe(ctx, OpFetchEmails, "", start, err)
	if err != nil {
		return nil, err
	}
	if res.Messages == nil {
		res.Messages = []mail.Message{}
	}
	return res, nil
}

// EmailDetail returns the full view of one message.
func (r *Reader) EmailDetail(ctx context.Context, messageID string) (*mail.Detail, error) {
	start := time.Now()
	d, err := r.provider.FetchEmailDetail(ctx, messageID)
	r.observe(ctx, OpFetchEmailDetail, messageID, start, err)
	return d, err
}

// Folders returns the folders the provider can navigate to.
func (r *Reader) Folders(ctx context.Context) []mail.Folder {
	start := time.Now()
	folders := r.provider.ListFolders()
	r.observe(ctx, OpListFolders, "", start, nil)
	return folders
}

// Attachments lists attachment metadata for a message.
func (r *Reader) Attachments(ctx context.Context, messageID string) ([]mail.Attachment, error) {
	start := time.Now()
	atts, err := r.provider.ListAttachments(ctx, messageID)
	r.observe(ctx, OpListAttachments, messageID, start, err)
	if err != nil {
		return nil, err
	}
	if atts == nil {
		atts = []mail.Attachment{}
	}
	return atts, nil
}

// DownloadAttachment returns the decoded bytes of one attachment.
func (r *Reader) DownloadAttachment(
	ctx context.Context,
	messageID string,
	attachmentID string,
) ([]byte, error) {
	start := time.Now()
	content, err := r.provider.DownloadAttachment(ctx, messageID, attachmentID)
	r.observe(ctx, OpDownloadAttachment, messageID, start, err)
	if err != nil {
		return nil, err
	}
	r.metrics.AddAttachmentBytes(r.provider.Name(), len(content))
	return content, nil
}

func (r *Reader) observe(
	ctx context.Context,
	op string,
	messageID string,
	start time.Time,
	err error,
) {
	elapsed := time.Since(start)
	kind := ""
	if err != nil {
		kind = string(mailerr.KindOf(err))
		if kind == "" {
			kind = "unknown"
		}
	}
	name := r.provider.Name()

	r.metrics.ObserveProviderCall(name, op, kind, elapsed)

	fields := []zap.Field{
		zap.String("op", op),
		zap.Duration("elapsed", elapsed),
		zap.String("request_id", RequestIDFrom(ctx)),
	}
	if err != nil {
		r.logger.Warn("provider operation failed", append(fields, zap.Error(err))...)
	} else {
		r.logger.Debug("provider operation", fields...)
	}

	if r.recorder == nil {
		return
	}
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	rec := store.AccessRecord{
		RequestID:  RequestIDFrom(ctx),
		Provider:   name,
		Operation:  op,
		Outcome:    outcome,
		ErrorKind:  kind,
		MessageID:  messageID,
		DurationMS: elapsed.Milliseconds(),
	}
	// The access log must not fail the read itself.
	if recErr := r.recorder.RecordAccess(context.WithoutCancel(ctx), rec); recErr != nil {
		r.logger.Error("recording access", zap.Error(recErr))
	}
}
