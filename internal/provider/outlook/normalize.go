package outlook

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/mail-integration/internal/mail"
)

var errMissingID = errors.New("message has no id")

// ToMessage maps a Graph message onto a summary. Attachments are only
// present when the listing expanded them; a message with hasAttachments
// set but no expansion yields an empty list and the caller lists them
// on demand.
func ToMessage(raw Message, folder mail.Folder) (mail.Message, error) {
	if raw.ID == "" {
		return mail.Message{}, errMissingID
	}
	ts, err := parseReceived(raw.ReceivedDateTime)
	if err != nil {
		return mail.Message{}, err
	}

	return mail.Message{
		MessageID:           raw.ID,
		Subject:             raw.Subject,
		Sender:              formatRecipient(raw.From),
		Timestamp:           ts,
		Preview:             raw.BodyPreview,
		Folder:              folder,
		Attachments:         ExtractAttachments(raw),
		InboxClassification: classify(raw.InferenceClassification),
	}, nil
}

// ToDetail maps a Graph message onto a detail view with the given
// attachments.
func ToDetail(raw Message, attachments []mail.Attachment) (mail.Detail, error) {
	if raw.ID == "" {
		return mail.Detail{}, errMissingID
	}
	ts, err := parseReceived(raw.ReceivedDateTime)
	if err != nil {
		return mail.Detail{}, err
	}

	d := mail.Detail{
		MessageID:   raw.ID,
		Subject:     raw.Subject,
		Sender:      formatRecipient(raw.From),
		Recipients:  formatRecipients(raw.ToRecipients),
		Cc:          formatRecipients(raw.CcRecipients),
		Bcc:         formatRecipients(raw.BccRecipients),
		Timestamp:   ts,
		Attachments: attachments,
	}

	if raw.Body != nil {
		switch strings.ToLower(raw.Body.ContentType) {
		case "text":
			d.BodyText = raw.Body.Content
		case "html":
			html := raw.Body.Content
			d.BodyHTML = &html
			// Plain text is approximated by the preview snippet.
			d.BodyText = raw.BodyPreview
		}
	}

	return d, nil
}

// ExtractAttachments materializes expanded attachment metadata.
func ExtractAttachments(raw Message) []mail.Attachment {
	return toAttachments(raw.Attachments)
}

func toAttachments(items []AttachmentResource) []mail.Attachment {
	out := make([]mail.Attachment, 0, len(items))
	for _, a := range items {
		out = append(out, mail.Attachment{
			AttachmentID: a.ID,
			Filename:     a.Name,
			SizeBytes:    a.Size,
			MIMEType:     a.ContentType,
		})
	}
	return out
}

// classify maps inferenceClassification; unknown or missing values are
// treated as "other".
func classify(v string) mail.InboxClassification {
	if strings.EqualFold(v, "focused") {
		return mail.ClassificationPrimary
	}
	return mail.ClassificationOther
}

func formatRecipient(r *Recipient) string {
	if r == nil || r.EmailAddress == nil {
		return ""
	}
	if r.EmailAddress.Name != "" {
		return r.EmailAddress.Name + " <" + r.EmailAddress.Address + ">"
	}
	return r.EmailAddress.Address
}

func formatRecipients(items []Recipient) []string {
	out := make([]string, 0, len(items))
	for i := range items {
		if items[i].EmailAddress == nil {
			continue
		}
		out = append(out, formatRecipient(&items[i]))
	}
	return out
}

func parseReceived(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing receivedDateTime %q: %w", s, err)
	}
	return ts.UTC(), nil
}
