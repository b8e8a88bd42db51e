package imap

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	goimap "github.com/emersion/go-imap/v2"
	gomail "github.com/emersion/go-message/mail"

	"github.com/nhle/mail-integration/internal/mail"
)

const previewLength = 200

// fetched is the part of a FETCH response the normalizer reads.
type fetched struct {
	UID          goimap.UID
	Envelope     *goimap.Envelope
	Flags        []goimap.Flag
	InternalDate time.Time
	Raw          []byte
}

// attachmentPart is one attachment found while parsing a message.
type attachmentPart struct {
	meta mail.Attachment
	data []byte
}

// parsedBody is the result of parsing a raw RFC 5322 message.
type parsedBody struct {
	text        string
	html        *string
	attachments []attachmentPart
}

// parseBody walks every part of raw with go-message. Later text/plain and
// text/html inline parts replace earlier ones. Attachment ids are the
// 1-based position of the attachment in the message.
func parseBody(raw []byte) parsedBody {
	var out parsedBody
	if len(raw) == 0 {
		return out
	}

	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		out.text = strings.ToValidUTF8(string(raw), "")
		return out
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *gomail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			s := strings.ToValidUTF8(string(body), "")
			switch strings.ToLower(contentType) {
			case "text/plain", "":
				out.text = s
			case "text/html":
				out.html = &s
			}

		case *gomail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			id := strconv.Itoa(len(out.attachments) + 1)
			out.attachments = append(out.attachments, attachmentPart{
				meta: mail.Attachment{
					AttachmentID: id,
					Filename:     filename,
					SizeBytes:    int64(len(body)),
					MIMEType:     contentType,
				},
				data: body,
			})
		}
	}
	return out
}

func (p parsedBody) attachmentMeta() []mail.Attachment {
	out := make([]mail.Attachment, 0, len(p.attachments))
	for _, a := range p.attachments {
		out = append(out, a.meta)
	}
	return out
}

func (p parsedBody) preview() string {
	text := p.text
	if text == "" && p.html != nil {
		text = stripTags(*p.html)
	}
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	return string([]rune(text)[:previewLength])
}

// toMessage maps a fetched message onto a summary. IMAP has no inbox
// classification, so none is set.
func toMessage(f fetched, mailbox string, folder mail.Folder) mail.Message {
	body := parseBody(f.Raw)
	env := envelopeOf(f)

	return mail.Message{
		MessageID:   messageID(mailbox, f.UID),
		Subject:     env.Subject,
		Sender:      firstAddress(env.From),
		Timestamp:   timestampOf(f),
		Preview:     body.preview(),
		Folder:      folder,
		Attachments: body.attachmentMeta(),
	}
}

func toDetail(f fetched, mailbox string) mail.Detail {
	body := parseBody(f.Raw)
	env := envelopeOf(f)

	return mail.Detail{
		MessageID:   messageID(mailbox, f.UID),
		Subject:     env.Subject,
		Sender:      firstAddress(env.From),
		Recipients:  formatAddresses(env.To),
		Cc:          formatAddresses(env.Cc),
		Bcc:         formatAddresses(env.Bcc),
		Timestamp:   timestampOf(f),
		BodyText:    body.text,
		BodyHTML:    body.html,
		Attachments: body.attachmentMeta(),
	}
}

func envelopeOf(f fetched) *goimap.Envelope {
	if f.Envelope == nil {
		return &goimap.Envelope{}
	}
	return f.Envelope
}

// timestampOf prefers the Date header and falls back to INTERNALDATE.
func timestampOf(f fetched) time.Time {
	if f.Envelope != nil && !f.Envelope.Date.IsZero() {
		return f.Envelope.Date.UTC()
	}
	if !f.InternalDate.IsZero() {
		return f.InternalDate.UTC()
	}
	return time.Time{}
}

func formatAddress(a goimap.Address) string {
	addr := a.Addr()
	if a.Name != "" {
		return a.Name + " <" + addr + ">"
	}
	return addr
}

func firstAddress(list []goimap.Address) string {
	if len(list) == 0 {
		return ""
	}
	return formatAddress(list[0])
}

func formatAddresses(list []goimap.Address) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		// Group syntax yields entries without a host.
		if a.Host == "" {
			continue
		}
		out = append(out, formatAddress(a))
	}
	return out
}

// stripTags is a crude tag remover used only to build previews.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteByte(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
