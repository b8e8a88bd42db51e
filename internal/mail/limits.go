package mail

import "time"

// Boundary limits enforced by every provider.
const (
	MinPageSize     = 1
	MaxPageSize     = 100
	DefaultPageSize = 10

	// MaxAttachmentBytes is the largest attachment ever returned (25 MiB).
	MaxAttachmentBytes = 25 * 1024 * 1024

	DefaultRequestTimeout = 30 * time.Second
)

// ClampPageSize maps a requested page size onto [MinPageSize, MaxPageSize].
// Zero selects DefaultPageSize.
func ClampPageSize(n int) int {
	switch {
	case n == 0:
		return DefaultPageSize
	case n < MinPageSize:
		return MinPageSize
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}
