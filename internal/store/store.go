// Package store persists the gateway's access log in SQLite.
package store

import (
	"context"
	"time"
)

// AccessRecord is one provider operation performed through the gateway.
// It never holds tokens or message content.
type AccessRecord struct {
	ID         string    `db:"id" json:"id"`
	RequestID  string    `db:"request_id" json:"request_id,omitempty"`
	Provider   string    `db:"provider" json:"provider"`
	Operation  string    `db:"operation" json:"operation"`
	Outcome    string    `db:"outcome" json:"outcome"`
	ErrorKind  string    `db:"error_kind" json:"error_kind,omitempty"`
	MessageID  string    `db:"message_id" json:"message_id,omitempty"`
	DurationMS int64     `db:"duration_ms" json:"duration_ms"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AccessFilter narrows RecentAccess. Empty fields match everything.
type AccessFilter struct {
	Provider  string
	Operation string
	Outcome   string
	Limit     int
}

// Limits applied to AccessFilter.Limit.
const (
	DefaultAccessLimit = 50
	MaxAccessLimit     = 500
)

// AccessLog records and lists access records.
type AccessLog interface {
	RecordAccess(ctx context.Context, rec AccessRecord) error
	RecentAccess(ctx context.Context, filter AccessFilter) ([]AccessRecord, error)
	Close() error
}
