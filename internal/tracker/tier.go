package tracker

import (
	"context"
	"errors"
	"sync/atomic"
)

// Tier implements the Tracker interface over a list of trackers that serve
// the same torrent. Requests go to the current tracker; when it cannot be
// reached the next request goes to the next one in the list.
type Tier struct {
	Trackers []Tracker
	index    int32
}

var _ Tracker = (*Tier)(nil)

// NewTier returns a new Tier. The first tracker is tried first.
func NewTier(trackers []Tracker) *Tier {
	return &Tier{
		Trackers: trackers,
	}
}

// Announce a torrent to the current tracker in the tier.
func (t *Tier) Announce(ctx context.Context, req AnnounceRequest) (*AnnounceResponse, error) {
	index := t.loadIndex()
	resp, err := t.Trackers[index].Announce(ctx, req)
	if errors.Is(err, ErrTrackerUnreachable) {
		atomic.CompareAndSwapInt32(&t.index, index, (index+1)%int32(len(t.Trackers)))
	}
	return resp, err
}

// URL returns the URL of the current Tracker in the Tier.
func (t *Tier) URL() string {
	return t.Trackers[t.loadIndex()].URL()
}

func (t *Tier) loadIndex() int32 {
	index := atomic.LoadInt32(&t.index)
	if index >= int32(len(t.Trackers)) {
		index = 0
	}
	return index
}
