// Package mailerr defines the error taxonomy shared by every mail provider.
//
// All errors are *Error values whose Kind belongs to a small hierarchy rooted
// at KindIntegration. Callers match a whole branch with errors.Is against the
// exported sentinels:
//
//	if errors.Is(err, mailerr.ErrAuth) { ... }      // invalid token or refresh failure
//	if errors.Is(err, mailerr.ErrIntegration) { ... } // anything raised by this module
package mailerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a node in the error hierarchy.
type Kind string

const (
	KindIntegration Kind = "integration_error"

	KindAuth               Kind = "auth_error"
	KindInvalidAccessToken Kind = "invalid_access_token"
	KindTokenRefresh       Kind = "token_refresh_error"

	KindProvider            Kind = "provider_error"
	KindGmailAPI            Kind = "gmail_api_error"
	KindOutlookAPI          Kind = "outlook_api_error"
	KindIMAPAPI             Kind = "imap_error"
	KindUnsupportedProvider Kind = "unsupported_provider"

	KindAttachment         Kind = "attachment_error"
	KindAttachmentTooLarge Kind = "attachment_too_large"

	KindFilter        Kind = "filter_error"
	KindInvalidFilter Kind = "invalid_filter"

	KindNetwork        Kind = "network_error"
	KindNetworkTimeout Kind = "network_timeout"
)

var parents = map[Kind]Kind{
	KindAuth:       KindIntegration,
	KindProvider:   KindIntegration,
	KindAttachment: KindIntegration,
	KindFilter:     KindIntegration,
	KindNetwork:    KindIntegration,

	KindInvalidAccessToken: KindAuth,
	KindTokenRefresh:       KindAuth,

	KindGmailAPI:            KindProvider,
	KindOutlookAPI:          KindProvider,
	KindIMAPAPI:             KindProvider,
	KindUnsupportedProvider: KindProvider,

	KindAttachmentTooLarge: KindAttachment,

	KindInvalidFilter: KindFilter,

	KindNetworkTimeout: KindNetwork,
}

var defaultMessages = map[Kind]string{
	KindIntegration:         "email integration error occurred",
	KindAuth:                "authentication error",
	KindInvalidAccessToken:  "access token is invalid or expired",
	KindTokenRefresh:        "access token refresh failed",
	KindProvider:            "email provider error",
	KindGmailAPI:            "gmail service error",
	KindOutlookAPI:          "outlook service error",
	KindIMAPAPI:             "imap service error",
	KindUnsupportedProvider: "email provider is not supported",
	KindAttachment:          "attachment error",
	KindAttachmentTooLarge:  "attachment size exceeds allowed limit",
	KindFilter:              "email filter error",
	KindInvalidFilter:       "invalid email filter configuration",
	KindNetwork:             "network error occurred",
	KindNetworkTimeout:      "network timeout occurred",
}

// Within reports whether k equals ancestor or descends from it.
func (k Kind) Within(ancestor Kind) bool {
	for cur := k; cur != ""; cur = parents[cur] {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Error is the single concrete error type of the module.
type Error struct {
	Kind Kind

	// Provider is the registry name of the provider involved, if any.
	Provider string

	// Op names the operation that failed (e.g. "fetch_emails").
	Op string

	// StatusCode is the remote HTTP status when one was received.
	StatusCode int

	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Provider != "" {
		b.WriteString(" (" + e.Provider + ")")
	}
	b.WriteString(": ")
	b.WriteString(e.message())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " [status %d]", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind. A sentinel is an *Error carrying only
// a Kind; it matches any error whose kind is within the sentinel's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || !t.isSentinel() {
		return false
	}
	return e.Kind.Within(t.Kind)
}

// Text returns the human readable message without kind or cause.
func (e *Error) Text() string {
	return e.message()
}

func (e *Error) message() string {
	if e.Message != "" {
		return e.Message
	}
	return defaultMessages[e.Kind]
}

func (e *Error) isSentinel() bool {
	return e.Provider == "" && e.Op == "" && e.StatusCode == 0 &&
		e.Message == "" && e.Err == nil
}

// Sentinels for errors.Is matching.
var (
	ErrIntegration = &Error{Kind: KindIntegration}

	ErrAuth               = &Error{Kind: KindAuth}
	ErrInvalidAccessToken = &Error{Kind: KindInvalidAccessToken}
	ErrTokenRefresh       = &Error{Kind: KindTokenRefresh}

	ErrProvider            = &Error{Kind: KindProvider}
	ErrGmailAPI            = &Error{Kind: KindGmailAPI}
	ErrOutlookAPI          = &Error{Kind: KindOutlookAPI}
	ErrIMAPAPI             = &Error{Kind: KindIMAPAPI}
	ErrUnsupportedProvider = &Error{Kind: KindUnsupportedProvider}

	ErrAttachment         = &Error{Kind: KindAttachment}
	ErrAttachmentTooLarge = &Error{Kind: KindAttachmentTooLarge}

	ErrFilter        = &Error{Kind: KindFilter}
	ErrInvalidFilter = &Error{Kind: KindInvalidFilter}

	ErrNetwork        = &Error{Kind: KindNetwork}
	ErrNetworkTimeout = &Error{Kind: KindNetworkTimeout}
)

// New builds an error of the given kind.
func New(kind Kind, provider, message string) *Error {
	return &Error{Kind: kind, Provider: provider, Message: message}
}

// Wrap builds an error of the given kind around cause.
func Wrap(kind Kind, provider, message string, cause error) *Error {
	return &Error{Kind: kind, Provider: provider, Message: message, Err: cause}
}

// InvalidAccessToken reports a missing, malformed or rejected token.
func InvalidAccessToken(provider, message string) *Error {
	return New(KindInvalidAccessToken, provider, message)
}

// TokenRefresh reports a failed refresh flow, keeping the original cause.
func TokenRefresh(provider string, cause error) *Error {
	return Wrap(KindTokenRefresh, provider, "", cause)
}

// UnsupportedProvider reports a provider name missing from the registry.
func UnsupportedProvider(name string) *Error {
	return New(
		KindUnsupportedProvider,
		"",
		fmt.Sprintf(
			"email provider %q is not supported, check the spelling and try again",
			name,
		),
	)
}

// InvalidFilter reports a search filter that violates its invariants.
func InvalidFilter(message string) *Error {
	return New(KindInvalidFilter, "", message)
}

// AttachmentTooLarge reports a declared or decoded size above limit.
func AttachmentTooLarge(provider string, size, limit int64) *Error {
	return New(
		KindAttachmentTooLarge,
		provider,
		fmt.Sprintf("attachment is %d bytes, limit is %d bytes", size, limit),
	)
}

// NetworkTimeout reports a transport-level timeout.
func NetworkTimeout(provider, op string, cause error) *Error {
	return &Error{
		Kind:     KindNetworkTimeout,
		Provider: provider,
		Op:       op,
		Message:  "request timed out",
		Err:      cause,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err (or any error in its chain) is within kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err).Within(kind)
}
