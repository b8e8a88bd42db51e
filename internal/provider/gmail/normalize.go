package gmail

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/nhle/mail-integration/internal/mail"
)

var errMissingID = errors.New("message has no id")

// otherCategories are the Gmail category labels reported as "other".
var otherCategories = map[string]bool{
	"CATEGORY_PROMOTIONS": true,
	"CATEGORY_SOCIAL":     true,
}

// headers is a case-insensitive view over a part's header list.
type headers map[string]string

func headersOf(part *gmailapi.MessagePart) headers {
	h := headers{}
	if part == nil {
		return h
	}
	for _, hdr := range part.Headers {
		if hdr == nil {
			continue
		}
		h[strings.ToLower(hdr.Name)] = hdr.Value
	}
	return h
}

func (h headers) get(name string) string {
	return h[strings.ToLower(name)]
}

// content is what a walk over the MIME tree collects.
type content struct {
	text        string
	html        *string
	attachments []mail.Attachment
}

// walk visits part and its children depth-first in document order and
// returns the merged result. Later text/plain and text/html leaves
// replace earlier ones.
func walk(part *gmailapi.MessagePart) content {
	var c content
	if part == nil {
		return c
	}

	if body := part.Body; body != nil {
		if part.Filename != "" && body.AttachmentId != "" {
			c.attachments = append(c.attachments, mail.Attachment{
				AttachmentID: body.AttachmentId,
				Filename:     part.Filename,
				SizeBytes:    body.Size,
				MIMEType:     part.MimeType,
			})
		} else if body.Data != "" {
			if decoded, err := decodeData(body.Data); err == nil {
				s := strings.ToValidUTF8(string(decoded), "")
				switch strings.ToLower(part.MimeType) {
				case "text/plain":
					c.text = s
				case "text/html":
					c.html = &s
				}
			}
		}
	}

	for _, child := range part.Parts {
		sub := walk(child)
		if sub.text != "" {
			c.text = sub.text
		}
		if sub.html != nil {
			c.html = sub.html
		}
		c.attachments = append(c.attachments, sub.attachments...)
	}
	return c
}

// decodeData decodes Gmail body data, which is base64url with or without
// padding.
func decodeData(data string) ([]byte, error) {
	b, err := base64.URLEncoding.DecodeString(data)
	if err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}

// ToMessage maps a full-format Gmail message onto a summary.
func ToMessage(raw *gmailapi.Message, folder mail.Folder) (mail.Message, error) {
	if raw == nil || raw.Id == "" {
		return mail.Message{}, errMissingID
	}
	h := headersOf(raw.Payload)

	return mail.Message{
		MessageID:           raw.Id,
		Subject:             h.get("Subject"),
		Sender:              h.get("From"),
		Timestamp:           timestamp(raw.InternalDate),
		Preview:             raw.Snippet,
		Folder:              folder,
		Attachments:         ExtractAttachments(raw),
		InboxClassification: classify(raw.LabelIds),
	}, nil
}

// ToDetail maps a full-format Gmail message onto a detail view with the
// given attachments.
func ToDetail(raw *gmailapi.Message, attachments []mail.Attachment) (mail.Detail, error) {
	if raw == nil || raw.Id == "" {
		return mail.Detail{}, errMissingID
	}
	h := headersOf(raw.Payload)
	body := walk(raw.Payload)

	return mail.Detail{
		MessageID:   raw.Id,
		Subject:     h.get("Subject"),
		Sender:      h.get("From"),
		Recipients:  splitAddresses(h.get("To")),
		Cc:          splitAddresses(h.get("Cc")),
		Bcc:         splitAddresses(h.get("Bcc")),
		Timestamp:   timestamp(raw.InternalDate),
		BodyText:    body.text,
		BodyHTML:    body.html,
		Attachments: attachments,
	}, nil
}

// ExtractAttachments lists attachment parts in document order. Every
// occurrence is kept, including repeated attachment ids.
func ExtractAttachments(raw *gmailapi.Message) []mail.Attachment {
	if raw == nil {
		return []mail.Attachment{}
	}
	atts := walk(raw.Payload).attachments
	if atts == nil {
		return []mail.Attachment{}
	}
	return atts
}

func classify(labels []string) mail.InboxClassification {
	for _, l := range labels {
		if otherCategories[l] {
			return mail.ClassificationOther
		}
	}
	return mail.ClassificationPrimary
}

func timestamp(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func splitAddresses(v string) []string {
	out := []string{}
	for _, a := range strings.Split(v, ",") {
		a = strings.TrimSpace(a)
		if a == "" || strings.EqualFold(a, "undisclosed-recipients:;") {
			continue
		}
		out = append(out, a)
	}
	return out
}
