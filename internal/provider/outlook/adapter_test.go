package outlook

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-integration/internal/mail"
	"github.com/nhle/mail-integration/internal/mailerr"
	"github.com/nhle/mail-integration/internal/provider"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) (*Adapter, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a, err := New(provider.Credentials{AccessToken: "tok"}, Config{
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return a, srv
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewRejectsEmptyToken(t *testing.T) {
	_, err := New(provider.Credentials{AccessToken: "  "}, Config{})
	assert.ErrorIs(t, err, mailerr.ErrInvalidAccessToken)
}

func TestFetchEmailsInboxAndNextLink(t *testing.T) {
	var srvURL string
	calls := 0
	a, srv := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/me/mailFolders/inbox/messages", r.URL.Path)
		q := r.URL.Query()

		if q.Get("$skip") != "" {
			assert.Equal(t, "10", q.Get("$skip"))
			writeJSON(t, w, MessagePage{Value: []Message{{ID: "m2"}}})
			return
		}

		assert.Equal(t, "InferenceClassification eq 'Focused'", q.Get("$filter"))
		assert.Equal(t, "InferenceClassification,receivedDateTime desc", q.Get("$orderby"))
		assert.Equal(t, "10", q.Get("$top"))
		assert.Equal(t, listSelect, q.Get("$select"))
		assert.Equal(t, listExpand, q.Get("$expand"))
		assert.Empty(t, r.Header.Get("ConsistencyLevel"))

		writeJSON(t, w, MessagePage{
			Value: []Message{{
				ID:                      "m1",
				Subject:                 "hello",
				ReceivedDateTime:        "2024-03-05T10:15:00Z",
				InferenceClassification: "focused",
			}},
			NextLink: srvURL + "/me/mailFolders/inbox/messages?$skip=10",
		})
	})
	srvURL = srv.URL

	ctx := context.Background()
	res, err := a.FetchEmails(ctx, provider.FetchOptions{Folder: mail.FolderInbox})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "m1", res.Messages[0].MessageID)
	assert.Equal(t, mail.FolderInbox, res.Messages[0].Folder)
	assert.NotEmpty(t, res.NextCursor)

	next, err := a.FetchEmails(ctx, provider.FetchOptions{
		Folder: mail.FolderInbox,
		Cursor: res.NextCursor,
	})
	require.NoError(t, err)
	require.Len(t, next.Messages, 1)
	assert.Equal(t, "m2", next.Messages[0].MessageID)
	assert.Empty(t, next.NextCursor)
	assert.Equal(t, 2, calls)
}

func TestNextLinkIgnoresFolderAndFilter(t *testing.T) {
	a, srv := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/mailFolders/sentitems/messages", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("$skip"))
		writeJSON(t, w, MessagePage{Value: []Message{{ID: "m2"}}})
	})

	f, err := mail.NewSearchFilter(mail.WithFolder(mail.FolderSent))
	require.NoError(t, err)

	res, err := a.FetchEmails(context.Background(), provider.FetchOptions{
		Cursor: srv.URL + "/me/mailFolders/sentitems/messages?$skip=10",
		Folder: mail.FolderInbox,
		Filter: f,
	})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, mail.FolderSent, res.Messages[0].Folder)
}

func TestFolderOfNextLink(t *testing.T) {
	base := "https://graph.microsoft.com/v1.0"
	tests := []struct {
		link string
		want mail.Folder
	}{
		{base + "/me/mailFolders/inbox/messages?%24filter=InferenceClassification+eq+%27Focused%27&%24skip=10", mail.FolderInbox},
		{base + "/me/mailFolders/inbox/messages?%24filter=flag%2FflagStatus+eq+%27flagged%27&%24skip=10", mail.FolderStarred},
		{base + "/me/mailFolders/SentItems/messages?$skip=10", mail.FolderSent},
		{base + "/me/mailFolders/junkemail/messages?$skip=20", mail.FolderSpam},
		{base + "/me/messages?$skip=10", ""},
		{base + "/me/mailFolders/AAMkAGI2/messages?$skip=10", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, folderOfNextLink(tt.link), tt.link)
	}
}

func TestFetchEmailsSearchSetsConsistencyLevel(t *testing.T) {
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/messages", r.URL.Path)
		assert.Equal(t, "eventual", r.Header.Get("ConsistencyLevel"))
		q := r.URL.Query()
		assert.Equal(t, `"from:alice@example.com"`, q.Get("$search"))
		assert.Empty(t, q.Get("$orderby"))
		assert.Equal(t, "100", q.Get("$top"))
		writeJSON(t, w, MessagePage{})
	})

	f, err := mail.NewSearchFilter(mail.WithFrom("alice@example.com"))
	require.NoError(t, err)

	res, err := a.FetchEmails(context.Background(), provider.FetchOptions{
		PageSize: 500,
		Filter:   f,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Messages)
}

func TestFolderSearchOmitsOrderBy(t *testing.T) {
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/mailFolders/inbox/messages", r.URL.Path)
		assert.Equal(t, "eventual", r.Header.Get("ConsistencyLevel"))
		q := r.URL.Query()
		assert.Equal(t, `"from:alice@example.com"`, q.Get("$search"))
		assert.Equal(t, "InferenceClassification eq 'Focused'", q.Get("$filter"))
		_, hasOrder := q["$orderby"]
		assert.False(t, hasOrder)
		writeJSON(t, w, MessagePage{})
	})

	f, err := mail.NewSearchFilter(mail.WithFrom("alice@example.com"))
	require.NoError(t, err)

	_, err = a.FetchEmails(context.Background(), provider.FetchOptions{
		Folder: mail.FolderInbox,
		Filter: f,
	})
	require.NoError(t, err)
}

func TestFetchEmailsIgnoresForeignCursor(t *testing.T) {
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/mailFolders/sentitems/messages", r.URL.Path)
		assert.Equal(t, defaultOrderBy, r.URL.Query().Get("$orderby"))
		writeJSON(t, w, MessagePage{})
	})

	_, err := a.FetchEmails(context.Background(), provider.FetchOptions{
		Folder: mail.FolderSent,
		Cursor: "https://evil.example.com/me/messages?$skip=10",
	})
	require.NoError(t, err)
}

func TestFetchEmailsFolderConflict(t *testing.T) {
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	f, err := mail.NewSearchFilter(mail.WithFolder(mail.FolderSpam))
	require.NoError(t, err)

	_, err = a.FetchEmails(context.Background(), provider.FetchOptions{
		Folder: mail.FolderInbox,
		Filter: f,
	})
	assert.ErrorIs(t, err, mailerr.ErrInvalidFilter)
}

func TestUnauthorizedMapsToInvalidToken(t *testing.T) {
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := a.FetchEmails(context.Background(), provider.FetchOptions{})
	assert.ErrorIs(t, err, mailerr.ErrInvalidAccessToken)
	assert.ErrorIs(t, err, mailerr.ErrAuth)

	ok, err := a.IsTokenValid(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestServerErrorMapsToOutlookAPI(t *testing.T) {
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(t, w, map[string]interface{}{
			"error": map[string]string{"code": "ServiceUnavailable", "message": "try later"},
		})
	})

	_, err := a.FetchEmailDetail(context.Background(), "m1")
	require.ErrorIs(t, err, mailerr.ErrOutlookAPI)
	assert.Contains(t, err.Error(), "ServiceUnavailable: try later")

	var typed *mailerr.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, http.StatusServiceUnavailable, typed.StatusCode)

	ok, err := a.IsTokenValid(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, mailerr.ErrOutlookAPI)
}

func TestTimeoutMapsToNetworkTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	a, err := New(provider.Credentials{AccessToken: "tok"}, Config{
		BaseURL: srv.URL,
		Timeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = a.ListAttachments(context.Background(), "m1")
	assert.ErrorIs(t, err, mailerr.ErrNetworkTimeout)
	assert.ErrorIs(t, err, mailerr.ErrNetwork)
}

func TestFetchEmailDetail(t *testing.T) {
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/messages/m1", r.URL.Path)
		assert.Equal(t, "attachments", r.URL.Query().Get("$expand"))
		raw := sampleMessage()
		raw.ID = "m1"
		raw.Body = &ItemBody{ContentType: "text", Content: "body"}
		writeJSON(t, w, raw)
	})

	d, err := a.FetchEmailDetail(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", d.MessageID)
	assert.Equal(t, "body", d.BodyText)
	require.Len(t, d.Attachments, 1)
	assert.Equal(t, "report.pdf", d.Attachments[0].Filename)
}

func TestListAttachments(t *testing.T) {
	a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/messages/m1/attachments", r.URL.Path)
		assert.Equal(t, attachmentSelect, r.URL.Query().Get("$select"))
		writeJSON(t, w, AttachmentPage{Value: []AttachmentResource{
			{ID: "a1", Name: "x.txt", Size: 3, ContentType: "text/plain"},
		}})
	})

	atts, err := a.ListAttachments(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, []mail.Attachment{
		{AttachmentID: "a1", Filename: "x.txt", SizeBytes: 3, MIMEType: "text/plain"},
	}, atts)
}

func TestDownloadAttachment(t *testing.T) {
	payload := []byte("hello attachment")

	tests := []struct {
		name    string
		res     AttachmentResource
		want    []byte
		wantErr error
	}{
		{
			name: "ok",
			res: AttachmentResource{
				Size:         int64(len(payload)),
				ContentBytes: base64.StdEncoding.EncodeToString(payload),
			},
			want: payload,
		},
		{
			name:    "declared size over limit",
			res:     AttachmentResource{Size: mail.MaxAttachmentBytes + 1, ContentBytes: "AAAA"},
			wantErr: mailerr.ErrAttachmentTooLarge,
		},
		{
			name:    "missing content",
			res:     AttachmentResource{Size: 10},
			wantErr: mailerr.ErrOutlookAPI,
		},
		{
			name:    "bad base64",
			res:     AttachmentResource{Size: 10, ContentBytes: "%%%"},
			wantErr: mailerr.ErrOutlookAPI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/me/messages/m1/attachments/a1", r.URL.Path)
				assert.Equal(t, "contentBytes,size", r.URL.Query().Get("$select"))
				writeJSON(t, w, tt.res)
			})

			got, err := a.DownloadAttachment(context.Background(), "m1", "a1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListFolders(t *testing.T) {
	a, err := New(provider.Credentials{AccessToken: "tok"}, Config{})
	require.NoError(t, err)
	assert.Equal(t, mail.Folders(), a.ListFolders())
}

func TestIsNextLink(t *testing.T) {
	a, err := New(provider.Credentials{AccessToken: "tok"}, Config{})
	require.NoError(t, err)

	assert.True(t, a.isNextLink(DefaultBaseURL+"/me/messages?$skip=10"))
	assert.True(t, a.isNextLink(DefaultBaseURL+"/me/mailFolders/inbox/messages?%24skiptoken=x"))
	assert.False(t, a.isNextLink(DefaultBaseURL+"/me/messages"))
	assert.False(t, a.isNextLink(DefaultBaseURL+"/me/events?$skip=10"))
	assert.False(t, a.isNextLink("opaque-token"))
}
