package announcer

import (
	"context"
	"errors"
	"net"
	"reflect"
	"strconv"

	"github.com/animated-dev/animated/internal/tracker"
	"github.com/animated-dev/animated/internal/tracker/httptracker"
)

// AnnounceError wraps an announce error with a message that can be shown to the user.
type AnnounceError struct {
	Err     error
	Message string
	Unknown bool
}

func newAnnounceError(err error) (e *AnnounceError) {
	e = &AnnounceError{Err: err}
	var dnsErr *net.DNSError
	var statusErr *httptracker.StatusError
	var trackerErr *tracker.Error
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		e.Message = "announce canceled"
	case errors.As(err, &trackerErr):
		e.Message = "announce error: " + trackerErr.FailureReason
	case errors.As(err, &statusErr):
		e.Message = "tracker returned http status: " + strconv.Itoa(statusErr.Code)
	case errors.As(err, &dnsErr):
		e.Message = "host not found: " + dnsErr.Name
	case errors.As(err, &netErr) && netErr.Timeout(), errors.Is(err, context.DeadlineExceeded):
		e.Message = "timeout contacting tracker"
	case errors.Is(err, tracker.ErrMalformedResponse):
		e.Message = "invalid response from tracker"
	case errors.Is(err, tracker.ErrTrackerUnreachable):
		e.Message = "tracker is unreachable"
	default:
		e.Message = "unknown error in announce"
		e.Unknown = true
	}
	return
}

// Error implements error interface.
func (e *AnnounceError) Error() string {
	return e.Message
}

// Unwrap returns the original error.
func (e *AnnounceError) Unwrap() error {
	return e.Err
}

// ErrorWithType returns the error string that is prefixed with type name.
func (e *AnnounceError) ErrorWithType() string {
	return reflect.TypeOf(e.Err).String() + ": " + e.Err.Error()
}

// Describe returns a short message for err that can be shown to the user.
func Describe(err error) string {
	return newAnnounceError(err).Message
}
