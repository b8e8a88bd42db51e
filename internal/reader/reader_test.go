package reader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-integration/internal/config"
	"github.com/nhle/mail-integration/internal/mail"
	"github.com/nhle/mail-integration/internal/mailerr"
	"github.com/nhle/mail-integration/internal/metrics"
	"github.com/nhle/mail-integration/internal/provider"
	"github.com/nhle/mail-integration/internal/store"
)

type fakeProvider struct {
	err      error
	lastOpts provider.FetchOptions
	content  []byte
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) IsTokenValid(context.Context) (bool, error) {
	return f.err == nil, f.err
}

func (f *fakeProvider) FetchEmails(_ context.Context, opts provider.FetchOptions) (*provider.FetchResult, error) {
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &provider.FetchResult{}, nil
}

func (f *fakeProvider) FetchEmailDetail(_ context.Context, id string) (*mail.Detail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &mail.Detail{MessageID: id}, nil
}

func (f *fakeProvider) ListFolders() []mail.Folder {
	return []mail.Folder{mail.FolderInbox}
}

func (f *fakeProvider) ListAttachments(context.Context, string) ([]mail.Attachment, error) {
	return nil, f.err
}

func (f *fakeProvider) DownloadAttachment(context.Context, string, string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.content, nil
}

type memRecorder struct {
	mu      sync.Mutex
	records []store.AccessRecord
	err     error
}

func (m *memRecorder) RecordAccess(_ context.Context, rec store.AccessRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return m.err
}

func newFakeReader(t *testing.T, p *fakeProvider, opts ...Option) *Reader {
	t.Helper()
	reg := provider.NewRegistry()
	reg.Register("fake", func(provider.Credentials) (provider.Provider, error) { return p, nil })
	r, err := New(reg, "fake", provider.Credentials{AccessToken: "tok"}, opts...)
	require.NoError(t, err)
	return r
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(provider.NewRegistry(), "yahoo", provider.Credentials{})
	assert.ErrorIs(t, err, mailerr.ErrUnsupportedProvider)
	assert.ErrorIs(t, err, mailerr.ErrIntegration)
}

func TestFetchEmailsClampsAndNormalizes(t *testing.T) {
	p := &fakeProvider{}
	r := newFakeReader(t, p)

	res, err := r.FetchEmails(context.Background(), provider.FetchOptions{PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, mail.MaxPageSize, p.lastOpts.PageSize)
	assert.NotNil(t, res.Messages)

	atts, err := r.Attachments(context.Background(), "m1")
	require.NoError(t, err)
	assert.NotNil(t, atts)
}

func TestOperationsAreRecorded(t *testing.T) {
	p := &fakeProvider{content: []byte("abc")}
	rec := &memRecorder{}
	m := metrics.New(prometheus.NewRegistry())
	r := newFakeReader(t, p, WithRecorder(rec), WithMetrics(m))

	ctx := ContextWithRequestID(context.Background(), "req-1")
	_, err := r.DownloadAttachment(ctx, "m1", "a1")
	require.NoError(t, err)

	p.err = mailerr.InvalidAccessToken("fake", "expired")
	_, err = r.EmailDetail(ctx, "m2")
	require.ErrorIs(t, err, mailerr.ErrInvalidAccessToken)

	require.Len(t, rec.records, 2)
	assert.Equal(t, store.AccessRecord{
		RequestID: "req-1",
		Provider:  "fake",
		Operation: OpDownloadAttachment,
		Outcome:   metrics.OutcomeSuccess,
		MessageID: "m1",
	}, withoutDuration(rec.records[0]))
	assert.Equal(t, "invalid_access_token", rec.records[1].ErrorKind)
	assert.Equal(t, metrics.OutcomeError, rec.records[1].Outcome)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.AttachmentBytes.WithLabelValues("fake")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderCalls.WithLabelValues(
		"fake", OpFetchEmailDetail, metrics.OutcomeError, "invalid_access_token",
	)))
}

func TestRecorderFailureDoesNotFailRead(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	r := newFakeReader(t, &fakeProvider{}, WithRecorder(rec))

	d, err := r.EmailDetail(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", d.MessageID)
	assert.Len(t, rec.records, 1)
}

func TestUntypedErrorsAreLabelledUnknown(t *testing.T) {
	rec := &memRecorder{}
	r := newFakeReader(t, &fakeProvider{err: errors.New("boom")}, WithRecorder(rec))

	ok, err := r.IsTokenValid(context.Background())
	assert.False(t, ok)
	assert.Error(t, err)
	require.Len(t, rec.records, 1)
	assert.Equal(t, "unknown", rec.records[0].ErrorKind)
}

func TestNewRegistry(t *testing.T) {
	cfg := config.ProvidersConfig{
		Gmail:   config.GmailConfig{Endpoint: "https://gmail.googleapis.com/"},
		Outlook: config.OutlookConfig{BaseURL: "https://graph.microsoft.com/v1.0"},
	}
	reg := NewRegistry(cfg, nil)
	assert.Equal(t, []string{"gmail", "outlook"}, reg.Names())

	cfg.IMAP = config.IMAPConfig{Enabled: true, Host: "imap.example.com", Port: 993, TLS: true}
	reg = NewRegistry(cfg, nil)
	assert.Equal(t, []string{"gmail", "imap", "outlook"}, reg.Names())

	r, err := New(reg, "Outlook", provider.Credentials{AccessToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "outlook", r.Provider())
	assert.Equal(t, mail.Folders(), r.Folders(context.Background()))

	_, err = New(reg, "gmail", provider.Credentials{})
	assert.ErrorIs(t, err, mailerr.ErrInvalidAccessToken)
}

func withoutDuration(rec store.AccessRecord) store.AccessRecord {
	rec.DurationMS = 0
	return rec
}
