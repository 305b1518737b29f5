package httptracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animated-dev/animated/internal/tracker"
)

const twoPeers = "\x01\x02\x03\x04\x1a\xe9\x05\x06\x07\x08\x00\x50"

func TestParseCompact(t *testing.T) {
	body := "d8:completei3e10:incompletei4e8:intervali1800e12:min intervali60e5:peers12:" + twoPeers + "e"
	resp, err := ParseAnnounceResponse([]byte(body))
	require.NoError(t, err)

	assert.False(t, resp.Failed())
	assert.Equal(t, 30*time.Minute, resp.Interval)
	assert.Equal(t, time.Minute, resp.MinInterval)
	assert.Equal(t, int32(3), resp.Seeders)
	assert.Equal(t, int32(4), resp.Leechers)
	assert.True(t, resp.PeersPresent)
	require.Len(t, resp.Peers, 2)
	assert.Equal(t, "1.2.3.4:6889", resp.Peers[0].String())
	assert.Equal(t, "5.6.7.8:80", resp.Peers[1].String())
}

func TestParseTrailingFragment(t *testing.T) {
	body := "d8:intervali60e5:peers13:" + twoPeers + "\xffe"
	resp, err := ParseAnnounceResponse([]byte(body))
	require.NoError(t, err)
	assert.Len(t, resp.Peers, 2)
}

func TestParseDictionaryModel(t *testing.T) {
	body := "d8:intervali60e5:peersld2:ip7:1.2.3.47:peer id20:aaaaaaaaaaaaaaaaaaaa4:porti6881eed2:ip3:::14:porti80eeee"
	resp, err := ParseAnnounceResponse([]byte(body))
	require.NoError(t, err)
	require.Len(t, resp.Peers, 2)
	assert.Equal(t, tracker.IPv4, resp.Peers[0].Family)
	assert.Equal(t, "1.2.3.4:6881", resp.Peers[0].String())
	assert.Equal(t, tracker.IPv6, resp.Peers[1].Family)
	assert.Equal(t, "[::1]:80", resp.Peers[1].String())
}

func TestParsePeers6(t *testing.T) {
	v6 := "\x20\x01\x0d\xb8\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x01\x1a\xe9"
	body := "d8:intervali60e5:peers6:\x01\x02\x03\x04\x1a\xe96:peers618:" + v6 + "e"
	resp, err := ParseAnnounceResponse([]byte(body))
	require.NoError(t, err)
	require.Len(t, resp.Peers, 2)
	assert.Equal(t, "1.2.3.4:6889", resp.Peers[0].String())
	assert.Equal(t, "[2001:db8::1]:6889", resp.Peers[1].String())
}

func TestParsePeersAbsentVersusEmpty(t *testing.T) {
	resp, err := ParseAnnounceResponse([]byte("d8:intervali60ee"))
	require.NoError(t, err)
	assert.False(t, resp.PeersPresent)
	assert.Nil(t, resp.Peers)

	resp, err = ParseAnnounceResponse([]byte("d8:intervali60e5:peers0:e"))
	require.NoError(t, err)
	assert.True(t, resp.PeersPresent)
	assert.NotNil(t, resp.Peers)
	assert.Len(t, resp.Peers, 0)
}

func TestParseFailureReasonHidesPeers(t *testing.T) {
	body := "d14:failure reason17:torrent not found8:intervali60e5:peers12:" + twoPeers + "e"
	resp, err := ParseAnnounceResponse([]byte(body))
	require.NoError(t, err)
	assert.True(t, resp.Failed())
	assert.Equal(t, "torrent not found", resp.FailureReason)
	assert.Empty(t, resp.Peers)
	assert.False(t, resp.PeersPresent)
}

func TestParseMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"html":             "<html>not found</html>",
		"list":             "l8:intervale",
		"truncated":        "d8:intervali60e5:peers12:abc",
		"peers is int":     "d8:intervali60e5:peersi5ee",
		"negative interval": "d8:intervali-5ee",
		"invalid dict ip":  "d8:intervali60e5:peersld2:ip5:bogus4:porti1eeee",
		"invalid dict port": "d8:intervali60e5:peersld2:ip7:1.2.3.44:porti70000eeee",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAnnounceResponse([]byte(body))
			assert.ErrorIs(t, err, tracker.ErrMalformedResponse)
		})
	}
}
