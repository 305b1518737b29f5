// Package httptracker implements the announce request of HTTP trackers.
package httptracker

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"sync"
	"time"

	"github.com/animated-dev/animated/internal/logger"
	"github.com/animated-dev/animated/internal/tracker"
)

// HTTPTracker announces to a single HTTP tracker.
type HTTPTracker struct {
	rawURL            string
	log               logger.Logger
	http              *http.Client
	userAgent         string
	maxResponseLength int64

	m         sync.Mutex
	trackerID string
}

var _ tracker.Tracker = (*HTTPTracker)(nil)

// New returns a tracker for the announce url.
// The whole request, including reading the body, must finish in timeout.
// Responses longer than maxResponseLength bytes are rejected.
func New(rawURL string, timeout time.Duration, t http.RoundTripper, userAgent string, maxResponseLength int64) *HTTPTracker {
	return &HTTPTracker{
		rawURL:            rawURL,
		log:               logger.New("tracker " + rawURL),
		userAgent:         userAgent,
		maxResponseLength: maxResponseLength,
		http: &http.Client{
			Timeout:   timeout,
			Transport: t,
		},
	}
}

// URL returns the announce url.
func (t *HTTPTracker) URL() string {
	return t.rawURL
}

// Announce sends the request to the tracker and returns the decoded response.
// Errors match tracker.ErrTrackerUnreachable or tracker.ErrMalformedResponse,
// a failure reason from the tracker is returned as *tracker.Error.
func (t *HTTPTracker) Announce(ctx context.Context, req tracker.AnnounceRequest) (*tracker.AnnounceResponse, error) {
	if req.TrackerID == "" {
		t.m.Lock()
		req.TrackerID = t.trackerID
		t.m.Unlock()
	}
	u, err := BuildAnnounceURL(t.rawURL, req)
	if err != nil {
		return nil, err
	}
	t.log.Debugf("making request to: %q", u)

	body, err := t.get(ctx, u)
	if err != nil {
		return nil, err
	}

	resp, err := ParseAnnounceResponse(body)
	if err != nil {
		t.log.Debugf("cannot parse response body: %q", body)
		return nil, err
	}
	if resp.WarningMessage != "" {
		t.log.Warning(resp.WarningMessage)
	}
	if resp.Failed() {
		return nil, &tracker.Error{FailureReason: resp.FailureReason}
	}
	if resp.TrackerID != "" {
		t.m.Lock()
		t.trackerID = resp.TrackerID
		t.m.Unlock()
	}
	t.log.Debugf("announce response: interval=%s peers=%d seeders=%d leechers=%d", resp.Interval, len(resp.Peers), resp.Seeders, resp.Leechers)
	return resp, nil
}

func (t *HTTPTracker) get(ctx context.Context, u string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if t.userAgent != "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}
	resp, err := t.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", tracker.ErrTrackerUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{
			Code:   resp.StatusCode,
			Header: resp.Header,
			Body:   string(data),
		}
	}
	body, err := ioutil.ReadAll(io.LimitReader(resp.Body, t.maxResponseLength+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: cannot read body: %w", tracker.ErrTrackerUnreachable, err)
	}
	if int64(len(body)) > t.maxResponseLength {
		return nil, malformed("response is larger than %d bytes", t.maxResponseLength)
	}
	return body, nil
}
