package outlook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-integration/internal/mail"
)

func sampleMessage() Message {
	return Message{
		ID:      "AAMk1",
		Subject: "Quarterly report",
		From: &Recipient{EmailAddress: &EmailAddress{
			Name: "Alice", Address: "alice@example.com",
		}},
		ToRecipients: []Recipient{
			{EmailAddress: &EmailAddress{Address: "bob@example.com"}},
			{},
		},
		ReceivedDateTime: "2024-03-05T10:15:00Z",
		BodyPreview:      "Hi team",
		HasAttachments:   true,
		Attachments: []AttachmentResource{
			{ID: "att1", Name: "report.pdf", Size: 2048, ContentType: "application/pdf"},
		},
		InferenceClassification: "focused",
	}
}

func TestToMessage(t *testing.T) {
	m, err := ToMessage(sampleMessage(), mail.FolderInbox)
	require.NoError(t, err)

	assert.Equal(t, "AAMk1", m.MessageID)
	assert.Equal(t, "Alice <alice@example.com>", m.Sender)
	assert.Equal(t, time.Date(2024, 3, 5, 10, 15, 0, 0, time.UTC), m.Timestamp)
	assert.Equal(t, mail.FolderInbox, m.Folder)
	assert.Equal(t, mail.ClassificationPrimary, m.InboxClassification)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, int64(2048), m.Attachments[0].SizeBytes)
	assert.True(t, m.HasAttachments())
}

func TestToMessageMissingID(t *testing.T) {
	raw := sampleMessage()
	raw.ID = ""
	_, err := ToMessage(raw, "")
	assert.ErrorIs(t, err, errMissingID)
}

func TestToMessageBadTimestamp(t *testing.T) {
	raw := sampleMessage()
	raw.ReceivedDateTime = "yesterday"
	_, err := ToMessage(raw, "")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, mail.ClassificationPrimary, classify("Focused"))
	assert.Equal(t, mail.ClassificationOther, classify("other"))
	assert.Equal(t, mail.ClassificationOther, classify(""))
	assert.Equal(t, mail.ClassificationOther, classify("something-new"))
}

func TestToDetailHTMLBody(t *testing.T) {
	raw := sampleMessage()
	raw.Body = &ItemBody{ContentType: "HTML", Content: "<p>Hi team</p>"}

	d, err := ToDetail(raw, ExtractAttachments(raw))
	require.NoError(t, err)

	require.NotNil(t, d.BodyHTML)
	assert.Equal(t, "<p>Hi team</p>", *d.BodyHTML)
	assert.Equal(t, "Hi team", d.BodyText)
	assert.Equal(t, []string{"bob@example.com"}, d.Recipients)
	assert.Empty(t, d.Cc)
	assert.Len(t, d.Attachments, 1)
}

func TestToDetailTextBody(t *testing.T) {
	raw := sampleMessage()
	raw.Body = &ItemBody{ContentType: "text", Content: "plain body"}

	d, err := ToDetail(raw, nil)
	require.NoError(t, err)
	assert.Nil(t, d.BodyHTML)
	assert.Equal(t, "plain body", d.BodyText)
}

func TestFormatRecipientWithoutName(t *testing.T) {
	assert.Equal(t, "", formatRecipient(nil))
	assert.Equal(t, "x@example.com", formatRecipient(&Recipient{
		EmailAddress: &EmailAddress{Address: "x@example.com"},
	}))
}
