// Package mail holds the provider-agnostic domain model: folders,
// attachments, message summaries and details, and the search filter.
// Values are built once by a normalizer or caller and never mutated.
package mail

import (
	"encoding/json"
	"math"
	"time"
)

// InboxClassification is a provider-derived relevance tag.
type InboxClassification string

const (
	ClassificationNone    InboxClassification = ""
	ClassificationPrimary InboxClassification = "primary"
	ClassificationOther   InboxClassification = "other"
)

// Attachment is read-only attachment metadata. Identity is AttachmentID.
type Attachment struct {
	AttachmentID string `json:"attachment_id"`
	Filename     string `json:"filename"`
	SizeBytes    int64  `json:"size_bytes"`
	MIMEType     string `json:"mime_type"`
}

// SizeKB returns the size in kibibytes rounded to two decimals.
func (a Attachment) SizeKB() float64 {
	return round2(float64(a.SizeBytes) / 1024)
}

// SizeMB returns the size in mebibytes rounded to two decimals.
func (a Attachment) SizeMB() float64 {
	return round2(float64(a.SizeBytes) / (1024 * 1024))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Message is the summary of an email used by list views.
// Identity is MessageID.
type Message struct {
	MessageID string    `json:"message_id"`
	Subject   string    `json:"subject"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Preview   string    `json:"preview"`

	// Folder is the folder the message was listed from, if known.
	Folder Folder `json:"folder"`

	Attachments []Attachment `json:"attachments"`

	InboxClassification InboxClassification `json:"inbox_classification"`
}

// HasAttachments reports whether any attachment metadata is present.
// Providers that load attachments lazily may report false for messages
// that do carry attachments.
func (m Message) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// MarshalJSON adds the derived has_attachments and attachment_count
// fields and renders absent values as null.
func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	out := struct {
		plain
		Folder              *Folder              `json:"folder"`
		InboxClassification *InboxClassification `json:"inbox_classification"`
		Attachments         []Attachment         `json:"attachments"`
		HasAttachments      bool                 `json:"has_attachments"`
		AttachmentCount     int                  `json:"attachment_count"`
	}{
		plain:           plain(m),
		Attachments:     nonNil(m.Attachments),
		HasAttachments:  m.HasAttachments(),
		AttachmentCount: len(m.Attachments),
	}
	if m.Folder != "" {
		out.Folder = &m.Folder
	}
	if m.InboxClassification != ClassificationNone {
		out.InboxClassification = &m.InboxClassification
	}
	return json.Marshal(out)
}

// Detail is the full view of a single email. Identity is MessageID.
type Detail struct {
	MessageID  string    `json:"message_id"`
	Subject    string    `json:"subject"`
	Sender     string    `json:"sender"`
	Recipients []string  `json:"recipients"`
	Cc         []string  `json:"cc"`
	Bcc        []string  `json:"bcc"`
	Timestamp  time.Time `json:"timestamp"`
	BodyText   string    `json:"body_text"`

	// BodyHTML is nil when the message has no HTML alternative.
	BodyHTML *string `json:"body_html"`

	Attachments []Attachment `json:"attachments"`
}

// MarshalJSON renders empty lists as [] rather than null.
func (d Detail) MarshalJSON() ([]byte, error) {
	type plain Detail
	p := plain(d)
	p.Recipients = nonNil(p.Recipients)
	p.Cc = nonNil(p.Cc)
	p.Bcc = nonNil(p.Bcc)
	p.Attachments = nonNil(p.Attachments)
	return json.Marshal(p)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
