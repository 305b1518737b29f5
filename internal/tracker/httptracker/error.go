package httptracker

import (
	"net/http"
	"strconv"

	"github.com/animated-dev/animated/internal/tracker"
)

// StatusError is returned from HTTP tracker announces when the response code is not 200 OK.
// It matches tracker.ErrTrackerUnreachable with errors.Is.
type StatusError struct {
	Code   int
	Header http.Header
	Body   string
}

func (e *StatusError) Error() string {
	return "http status: " + strconv.Itoa(e.Code)
}

// Is reports whether target is tracker.ErrTrackerUnreachable.
func (e *StatusError) Is(target error) bool {
	return target == tracker.ErrTrackerUnreachable
}
