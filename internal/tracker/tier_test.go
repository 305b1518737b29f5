package tracker

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTracker struct {
	url   string
	err   error
	calls int
}

func (f *fakeTracker) URL() string { return f.url }

func (f *fakeTracker) Announce(ctx context.Context, req AnnounceRequest) (*AnnounceResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &AnnounceResponse{PeersPresent: true, Peers: []Peer{}}, nil
}

func TestTierRotatesOnUnreachable(t *testing.T) {
	down := &fakeTracker{url: "http://down/announce", err: fmt.Errorf("%w: connection refused", ErrTrackerUnreachable)}
	up := &fakeTracker{url: "http://up/announce"}
	tier := NewTier([]Tracker{down, up})

	assert.Equal(t, down.url, tier.URL())
	_, err := tier.Announce(context.Background(), AnnounceRequest{})
	assert.ErrorIs(t, err, ErrTrackerUnreachable)
	assert.Equal(t, up.url, tier.URL())

	resp, err := tier.Announce(context.Background(), AnnounceRequest{})
	require.NoError(t, err)
	assert.True(t, resp.PeersPresent)
	assert.Equal(t, 1, down.calls)
	assert.Equal(t, 1, up.calls)
}

func TestTierWrapsAround(t *testing.T) {
	unreachable := fmt.Errorf("%w: timeout", ErrTrackerUnreachable)
	a := &fakeTracker{url: "http://a/announce", err: unreachable}
	b := &fakeTracker{url: "http://b/announce", err: unreachable}
	tier := NewTier([]Tracker{a, b})

	for i := 0; i < 4; i++ {
		_, _ = tier.Announce(context.Background(), AnnounceRequest{})
	}
	assert.Equal(t, 2, a.calls)
	assert.Equal(t, 2, b.calls)
	assert.Equal(t, a.url, tier.URL())
}

func TestTierKeepsTrackerOnFailureReason(t *testing.T) {
	refusing := &fakeTracker{url: "http://refusing/announce", err: &Error{FailureReason: "unregistered torrent"}}
	other := &fakeTracker{url: "http://other/announce"}
	tier := NewTier([]Tracker{refusing, other})

	_, err := tier.Announce(context.Background(), AnnounceRequest{})
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "unregistered torrent", terr.FailureReason)
	assert.Equal(t, refusing.url, tier.URL())
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "started", EventStarted.String())
	assert.Equal(t, "", EventNone.String())
	assert.Equal(t, "", Event(42).String())
}
