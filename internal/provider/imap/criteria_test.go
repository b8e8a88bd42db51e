package imap

import (
	"testing"
	"time"

	goimap "github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-integration/internal/mail"
)

func TestBuildCriteriaEmpty(t *testing.T) {
	assert.Equal(t, &goimap.SearchCriteria{}, BuildCriteria(nil))
}

func TestBuildCriteria(t *testing.T) {
	start := time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC)

	f, err := mail.NewSearchFilter(
		mail.WithFrom("alice@example.com"),
		mail.WithTo("bob@example.com", "carol@example.com"),
		mail.WithSubject("invoice"),
		mail.WithBody("payment due"),
		mail.WithWords("acme"),
		mail.WithAttachments(true),
		mail.WithRead(false),
		mail.WithStartDate(start),
		mail.WithEndDate(end),
	)
	require.NoError(t, err)

	c := BuildCriteria(f)
	assert.Equal(t, []goimap.SearchCriteriaHeaderField{
		{Key: "From", Value: "alice@example.com"},
		{Key: "To", Value: "bob@example.com"},
		{Key: "To", Value: "carol@example.com"},
		{Key: "Subject", Value: "invoice"},
		{Key: "Content-Type", Value: "multipart/mixed"},
	}, c.Header)
	assert.Equal(t, []string{"payment due"}, c.Body)
	assert.Equal(t, []string{"acme"}, c.Text)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), c.Since)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), c.Before)
	assert.Equal(t, []goimap.Flag{goimap.FlagSeen}, c.NotFlag)
	assert.Empty(t, c.Flag)
}

func TestCriteriaFlagged(t *testing.T) {
	f, err := mail.NewSearchFilter(mail.WithRead(true))
	require.NoError(t, err)

	spec := specFromFilter(f)
	spec.Flagged = true
	c := spec.criteria()
	assert.Equal(t, []goimap.Flag{goimap.FlagSeen, goimap.FlagFlagged}, c.Flag)
	assert.Empty(t, c.NotFlag)
}
