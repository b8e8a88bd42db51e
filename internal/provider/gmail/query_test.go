package gmail

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-integration/internal/mail"
)

func TestBuildQueryEmpty(t *testing.T) {
	assert.Equal(t, "", BuildQuery(nil))

	f, err := mail.NewSearchFilter()
	require.NoError(t, err)
	assert.Equal(t, "", BuildQuery(f))
}

func TestBuildQueryClauseOrder(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	f, err := mail.NewSearchFilter(
		mail.WithFolder(mail.FolderDrafts),
		mail.WithFrom("alice@example.com"),
		mail.WithTo("bob@example.com", "carol@example.com"),
		mail.WithSubject("invoice"),
		mail.WithBody("due soon"),
		mail.WithWords("acme", "q1"),
		mail.WithAttachments(true),
		mail.WithRead(false),
		mail.WithStartDate(start),
		mail.WithEndDate(end),
	)
	require.NoError(t, err)

	assert.Equal(t,
		"in:draft from:alice@example.com to:bob@example.com to:carol@example.com"+
			" subject:invoice due soon acme q1 has:attachment is:unread"+
			" after:1704067200 before:1706745600",
		BuildQuery(f),
	)
}

func TestBuildQuerySingleFromClause(t *testing.T) {
	f, err := mail.NewSearchFilter(mail.WithFrom("x@example.com"), mail.WithRead(true))
	require.NoError(t, err)

	q := BuildQuery(f)
	assert.Equal(t, 1, strings.Count(q, "from:"))
	assert.Contains(t, q, "from:x@example.com")
	assert.Contains(t, q, "is:read")

	f, err = mail.NewSearchFilter(mail.WithSubject("hello"))
	require.NoError(t, err)
	assert.NotContains(t, BuildQuery(f), "from:")
}

func TestBuildQueryAttachmentsFalseIsIgnored(t *testing.T) {
	f, err := mail.NewSearchFilter(mail.WithAttachments(false))
	require.NoError(t, err)
	assert.Equal(t, "", BuildQuery(f))
}
