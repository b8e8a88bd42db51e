package provider

import (
	"context"
	"errors"
	"net"
	"net/url"

	"github.com/nhle/mail-integration/internal/mailerr"
)

// IsTimeout reports whether err is a transport-level timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// TransportError classifies a failure that happened before any response
// was received. Timeouts become network-timeout errors; everything else is
// reported as an API error of apiKind for the provider.
func TransportError(
	providerName string,
	apiKind mailerr.Kind,
	op string,
	err error,
) error {
	if err == nil {
		return nil
	}
	var typed *mailerr.Error
	if errors.As(err, &typed) {
		return err
	}
	if IsTimeout(err) {
		return mailerr.NetworkTimeout(providerName, op, err)
	}
	return &mailerr.Error{
		Kind:     apiKind,
		Provider: providerName,
		Op:       op,
		Message:  "request failed",
		Err:      err,
	}
}
