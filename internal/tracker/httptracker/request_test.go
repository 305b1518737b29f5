package httptracker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animated-dev/animated/internal/peerid"
	"github.com/animated-dev/animated/internal/tracker"
)

func TestBuildAnnounceURL(t *testing.T) {
	var ih [20]byte
	ih[0], ih[1], ih[2], ih[19] = 0x00, 0x0a, 0xFF, 'A'
	req := tracker.AnnounceRequest{
		Torrent: tracker.Torrent{
			InfoHash:        ih,
			PeerID:          peerid.New("x"),
			Port:            6881,
			BytesLeft:       100,
			BytesDownloaded: 2,
			BytesUploaded:   1,
		},
	}
	u, err := BuildAnnounceURL("http://tracker.example.com/announce", req)
	require.NoError(t, err)

	expectedIH := "%00%0a%ff" + strings.Repeat("%00", 16) + "%41"
	expectedID := strings.Repeat("%30", 19) + "%78"
	assert.Equal(t, "http://tracker.example.com/announce?peer_id="+expectedID+
		"&info_hash="+expectedIH+
		"&port=6881&left=100&downloaded=2&uploaded=1&compact=1", u)
}

func TestBuildAnnounceURLOptionalFields(t *testing.T) {
	req := tracker.AnnounceRequest{
		Event:     tracker.EventStarted,
		NumWant:   50,
		TrackerID: "a b",
	}
	u, err := BuildAnnounceURL("https://t.example.com/announce?passkey=abc", req)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://t.example.com/announce?passkey=abc&peer_id="), u)
	assert.True(t, strings.HasSuffix(u, "&compact=1&numwant=50&event=started&trackerid=a+b"), u)

	u, err = BuildAnnounceURL("http://t.example.com/announce?", req)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://t.example.com/announce?peer_id="), u)
}

func TestBuildAnnounceURLInvalid(t *testing.T) {
	_, err := BuildAnnounceURL("udp://tracker.example.com:80", tracker.AnnounceRequest{})
	assert.ErrorIs(t, err, errUnsupportedScheme)

	_, err = BuildAnnounceURL("http://[::1", tracker.AnnounceRequest{})
	assert.Error(t, err)
}

func TestEscapeBytes(t *testing.T) {
	assert.Equal(t, "%00%01%0f%10%7f%80%ff", escapeBytes([]byte{0x00, 0x01, 0x0f, 0x10, 0x7f, 0x80, 0xff}))
	assert.Equal(t, "", escapeBytes(nil))
}
