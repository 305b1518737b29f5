package announcer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/animated-dev/animated/internal/tracker"
	"github.com/animated-dev/animated/internal/tracker/httptracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTracker struct {
	errs  []error
	calls int
	reqs  []tracker.AnnounceRequest
}

func (f *fakeTracker) URL() string { return "http://tracker.test/announce" }

func (f *fakeTracker) Announce(ctx context.Context, req tracker.AnnounceRequest) (*tracker.AnnounceResponse, error) {
	f.calls++
	f.reqs = append(f.reqs, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &tracker.AnnounceResponse{
		Interval:     30 * time.Minute,
		Peers:        []tracker.Peer{},
		PeersPresent: true,
	}, nil
}

var unreachable = fmt.Errorf("%w: connection refused", tracker.ErrTrackerUnreachable)

var testConfig = Config{
	NumWant:       25,
	RetryTimeout:  time.Second,
	RetryInterval: time.Millisecond,
}

func TestAnnounceRetriesUnreachable(t *testing.T) {
	trk := &fakeTracker{errs: []error{unreachable, unreachable}}
	a := New(trk, testConfig)
	torrent := tracker.Torrent{InfoHash: [20]byte{1}, Port: 6881, BytesLeft: 100}

	resp, err := a.Announce(context.Background(), torrent, tracker.EventStarted)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, resp.Interval)
	assert.Equal(t, 3, trk.calls)
	for _, req := range trk.reqs {
		assert.Equal(t, torrent, req.Torrent)
		assert.Equal(t, tracker.EventStarted, req.Event)
		assert.Equal(t, 25, req.NumWant)
	}
}

func TestAnnounceDoesNotRetryFailureReason(t *testing.T) {
	trk := &fakeTracker{errs: []error{&tracker.Error{FailureReason: "unregistered torrent"}}}
	a := New(trk, testConfig)

	_, err := a.Announce(context.Background(), tracker.Torrent{}, tracker.EventNone)
	var terr *tracker.Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "unregistered torrent", terr.FailureReason)
	assert.Equal(t, 1, trk.calls)
}

func TestAnnounceDoesNotRetryMalformed(t *testing.T) {
	trk := &fakeTracker{errs: []error{fmt.Errorf("%w: bad interval", tracker.ErrMalformedResponse)}}
	_, err := New(trk, testConfig).Announce(context.Background(), tracker.Torrent{}, tracker.EventNone)
	assert.True(t, errors.Is(err, tracker.ErrMalformedResponse))
	assert.Equal(t, 1, trk.calls)
}

func TestAnnounceGivesUp(t *testing.T) {
	errs := make([]error, 1000)
	for i := range errs {
		errs[i] = unreachable
	}
	trk := &fakeTracker{errs: errs}
	cfg := testConfig
	cfg.RetryTimeout = 50 * time.Millisecond
	_, err := New(trk, cfg).Announce(context.Background(), tracker.Torrent{}, tracker.EventNone)
	assert.True(t, errors.Is(err, tracker.ErrTrackerUnreachable))
	assert.True(t, trk.calls > 1)
}

func TestAnnounceNoRetry(t *testing.T) {
	trk := &fakeTracker{errs: []error{unreachable}}
	cfg := testConfig
	cfg.RetryTimeout = 0
	_, err := New(trk, cfg).Announce(context.Background(), tracker.Torrent{}, tracker.EventNone)
	assert.True(t, errors.Is(err, tracker.ErrTrackerUnreachable))
	assert.Equal(t, 1, trk.calls)
}

func TestDescribe(t *testing.T) {
	cases := map[string]error{
		"announce error: go away":           &tracker.Error{FailureReason: "go away"},
		"tracker returned http status: 404": &httptracker.StatusError{Code: 404},
		"tracker is unreachable":            unreachable,
		"invalid response from tracker":     tracker.ErrMalformedResponse,
		"announce canceled":                 context.Canceled,
		"timeout contacting tracker":        context.DeadlineExceeded,
		"unknown error in announce":         errors.New("boom"),
	}
	for msg, err := range cases {
		assert.Equal(t, msg, Describe(err), "%v", err)
	}
}

func TestDescribeHTTPTrackerErrors(t *testing.T) {
	req := tracker.AnnounceRequest{Torrent: tracker.Torrent{InfoHash: [20]byte{1}, PeerID: [20]byte{2}, Port: 6881}}

	trk := httptracker.New("http://no-such-host.invalid/announce", time.Second, new(http.Transport), "", 1<<20)
	_, err := trk.Announce(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, tracker.ErrTrackerUnreachable)
	assert.Equal(t, "host not found: no-such-host.invalid", Describe(err), "%v", err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	trk = httptracker.New(srv.URL+"/announce", 50*time.Millisecond, new(http.Transport), "", 1<<20)
	_, err = trk.Announce(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, tracker.ErrTrackerUnreachable)
	assert.Equal(t, "timeout contacting tracker", Describe(err), "%v", err)
}
