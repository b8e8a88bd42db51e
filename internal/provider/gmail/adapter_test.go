package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/nhle/mail-integration/internal/mail"
	"github.com/nhle/mail-integration/internal/mailerr"
	"github.com/nhle/mail-integration/internal/provider"
)

const apiPrefix = "/gmail/v1/users/me"

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a, err := New(provider.Credentials{AccessToken: "tok"}, Config{
		Endpoint: srv.URL + "/",
		Timeout:  2 * time.Second,
	})
	require.NoError(t, err)
	return a
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func writeAPIError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{"code": code, "message": msg},
	})
}

func TestNewRejectsEmptyToken(t *testing.T) {
	_, err := New(provider.Credentials{}, Config{})
	assert.ErrorIs(t, err, mailerr.ErrInvalidAccessToken)
}

func TestFetchEmailsAndCursorReplay(t *testing.T) {
	var listQueries []url.Values

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		switch {
		case r.URL.Path == apiPrefix+"/messages":
			q := r.URL.Query()
			listQueries = append(listQueries, q)
			if q.Get("pageToken") == "" {
				writeJSON(t, w, &gmailapi.ListMessagesResponse{
					Messages:      []*gmailapi.Message{{Id: "18c1"}},
					NextPageToken: "page-2",
				})
				return
			}
			writeJSON(t, w, &gmailapi.ListMessagesResponse{})
		case r.URL.Path == apiPrefix+"/messages/18c1":
			assert.Equal(t, "full", r.URL.Query().Get("format"))
			writeJSON(t, w, sampleMessage())
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	f, err := mail.NewSearchFilter(mail.WithFrom("alice@example.com"))
	require.NoError(t, err)

	ctx := context.Background()
	res, err := a.FetchEmails(ctx, provider.FetchOptions{
		PageSize: 5,
		Folder:   mail.FolderInbox,
		Filter:   f,
	})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "18c1", res.Messages[0].MessageID)
	assert.Equal(t, mail.FolderInbox, res.Messages[0].Folder)
	require.NotEmpty(t, res.NextCursor)

	// The continuation carries different options; the cursor must win.
	next, err := a.FetchEmails(ctx, provider.FetchOptions{
		PageSize: 50,
		Cursor:   res.NextCursor,
		Folder:   mail.FolderSent,
	})
	require.NoError(t, err)
	assert.Empty(t, next.Messages)
	assert.Empty(t, next.NextCursor)

	require.Len(t, listQueries, 2)
	first, second := listQueries[0], listQueries[1]
	assert.Equal(t, []string{"INBOX"}, first["labelIds"])
	assert.Equal(t, "from:alice@example.com", first.Get("q"))
	assert.Equal(t, "5", first.Get("maxResults"))

	assert.Equal(t, first["labelIds"], second["labelIds"])
	assert.Equal(t, first.Get("q"), second.Get("q"))
	assert.Equal(t, first.Get("maxResults"), second.Get("maxResults"))
	assert.Equal(t, "page-2", second.Get("pageToken"))
}

func TestResumedListingKeepsItsFolder(t *testing.T) {
	var pageTokens []string
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case apiPrefix + "/messages":
			q := r.URL.Query()
			assert.Equal(t, []string{"SENT"}, q["labelIds"])
			pageTokens = append(pageTokens, q.Get("pageToken"))
			if q.Get("pageToken") == "" {
				writeJSON(t, w, &gmailapi.ListMessagesResponse{NextPageToken: "page-2"})
				return
			}
			writeJSON(t, w, &gmailapi.ListMessagesResponse{
				Messages: []*gmailapi.Message{{Id: "18c1"}},
			})
		case apiPrefix + "/messages/18c1":
			writeJSON(t, w, sampleMessage())
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	res, err := a.FetchEmails(ctx, provider.FetchOptions{Folder: mail.FolderSent})
	require.NoError(t, err)
	require.NotEmpty(t, res.NextCursor)

	// Folder and filter disagree with each other and with the cursor.
	f, err := mail.NewSearchFilter(mail.WithFolder(mail.FolderSpam))
	require.NoError(t, err)
	next, err := a.FetchEmails(ctx, provider.FetchOptions{
		Cursor: res.NextCursor,
		Folder: mail.FolderInbox,
		Filter: f,
	})
	require.NoError(t, err)
	require.Len(t, next.Messages, 1)
	assert.Equal(t, mail.FolderSent, next.Messages[0].Folder)
	assert.Equal(t, []string{"", "page-2"}, pageTokens)
}

func TestFetchEmailsRawPageToken(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "raw-token", q.Get("pageToken"))
		assert.Equal(t, []string{"SPAM"}, q["labelIds"])
		assert.Equal(t, "10", q.Get("maxResults"))
		assert.Empty(t, q.Get("q"))
		writeJSON(t, w, &gmailapi.ListMessagesResponse{})
	})

	_, err := a.FetchEmails(context.Background(), provider.FetchOptions{
		Cursor: "raw-token",
		Folder: mail.FolderSpam,
	})
	require.NoError(t, err)
}

func TestFetchEmailsUnauthorized(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusUnauthorized, "Invalid Credentials")
	})

	_, err := a.FetchEmails(context.Background(), provider.FetchOptions{})
	assert.ErrorIs(t, err, mailerr.ErrInvalidAccessToken)
}

func TestIsTokenValid(t *testing.T) {
	status := http.StatusOK
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiPrefix+"/profile", r.URL.Path)
		if status != http.StatusOK {
			writeAPIError(w, status, "nope")
			return
		}
		writeJSON(t, w, &gmailapi.Profile{EmailAddress: "me@example.com"})
	})
	ctx := context.Background()

	ok, err := a.IsTokenValid(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	status = http.StatusUnauthorized
	ok, err = a.IsTokenValid(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	status = http.StatusForbidden
	ok, err = a.IsTokenValid(ctx)
	assert.False(t, ok)
	require.ErrorIs(t, err, mailerr.ErrGmailAPI)

	var typed *mailerr.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, http.StatusForbidden, typed.StatusCode)
}

func TestFetchEmailDetail(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiPrefix+"/messages/18c1", r.URL.Path)
		writeJSON(t, w, sampleMessage())
	})

	d, err := a.FetchEmailDetail(context.Background(), "18c1")
	require.NoError(t, err)
	assert.Equal(t, "plain body", d.BodyText)
	require.Len(t, d.Attachments, 1)

	atts, err := a.ListAttachments(context.Background(), "18c1")
	require.NoError(t, err)
	assert.Equal(t, d.Attachments, atts)
}

func TestDownloadAttachment(t *testing.T) {
	exact := strings.Repeat("a", mail.MaxAttachmentBytes)

	tests := []struct {
		name    string
		data    string
		want    int
		wantErr error
	}{
		{name: "ok", data: b64("hello"), want: 5},
		{name: "exactly at limit", data: base64.URLEncoding.EncodeToString([]byte(exact)), want: mail.MaxAttachmentBytes},
		{name: "one byte over", data: base64.URLEncoding.EncodeToString([]byte(exact + "a")), wantErr: mailerr.ErrAttachmentTooLarge},
		{name: "missing data", data: "", wantErr: mailerr.ErrGmailAPI},
		{name: "bad data", data: "***", wantErr: mailerr.ErrGmailAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, apiPrefix+"/messages/m1/attachments/a1", r.URL.Path)
				writeJSON(t, w, &gmailapi.MessagePartBody{Data: tt.data})
			})

			got, err := a.DownloadAttachment(context.Background(), "m1", "a1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestTimeoutMapsToNetworkTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	a, err := New(provider.Credentials{AccessToken: "tok"}, Config{
		Endpoint: srv.URL + "/",
		Timeout:  20 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = a.FetchEmailDetail(context.Background(), "m1")
	assert.ErrorIs(t, err, mailerr.ErrNetworkTimeout)
}

func TestListFolders(t *testing.T) {
	a, err := New(provider.Credentials{AccessToken: "tok"}, Config{})
	require.NoError(t, err)
	assert.Equal(t, mail.Folders(), a.ListFolders())
}
