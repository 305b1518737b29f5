package discovery

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/animated-dev/animated/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnounceCache(t *testing.T) {
	c, err := openAnnounceCache(filepath.Join(t.TempDir(), "sub", "cache.db"))
	require.NoError(t, err)
	defer c.Close()

	ih := [20]byte{1, 2, 3}
	ca, err := c.Get(ih)
	require.NoError(t, err)
	assert.Nil(t, ca)

	now := time.Now()
	resp := &tracker.AnnounceResponse{
		Interval:  30 * time.Minute,
		TrackerID: "abc",
		Seeders:   3,
		Leechers:  4,
		Peers: []tracker.Peer{
			tracker.NewPeer(net.IPv4(10, 0, 0, 1), 6881),
			tracker.NewPeer(net.ParseIP("2001:db8::1"), 6889),
			tracker.NewPeer(net.IPv4(10, 0, 0, 2), 51413),
		},
		PeersPresent: true,
	}
	ca, err = newCachedAnnounce("http://tracker.test/announce", now, resp)
	require.NoError(t, err)
	require.NoError(t, c.Put(ih, ca))

	got, err := c.Get(ih)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "http://tracker.test/announce", got.Tracker)
	assert.True(t, got.Fresh(now.Add(time.Minute)))
	assert.False(t, got.Fresh(now.Add(31*time.Minute)))

	r := got.Response()
	assert.Equal(t, resp.Interval, r.Interval)
	assert.Equal(t, "abc", r.TrackerID)
	assert.Equal(t, int32(3), r.Seeders)
	require.Len(t, r.Peers, 3)
	// IPv4 peers are stored before IPv6 peers.
	assert.Equal(t, "10.0.0.1:6881", r.Peers[0].String())
	assert.Equal(t, "10.0.0.2:51413", r.Peers[1].String())
	assert.Equal(t, "[2001:db8::1]:6889", r.Peers[2].String())

	require.NoError(t, c.Delete(ih))
	got, err = c.Get(ih)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCachedAnnounceNotFreshWithoutInterval(t *testing.T) {
	ca := &CachedAnnounce{Time: time.Now()}
	assert.False(t, ca.Fresh(time.Now()))
}

func TestCachedAnnounceWithoutPeerList(t *testing.T) {
	resp := &tracker.AnnounceResponse{Interval: time.Minute, Peers: []tracker.Peer{}}
	ca, err := newCachedAnnounce("http://tracker.test/announce", time.Now(), resp)
	require.NoError(t, err)
	r := ca.Response()
	assert.False(t, r.PeersPresent)
	assert.Empty(t, r.Peers)

	resp.PeersPresent = true
	ca, err = newCachedAnnounce("http://tracker.test/announce", time.Now(), resp)
	require.NoError(t, err)
	assert.True(t, ca.Response().PeersPresent)
}
