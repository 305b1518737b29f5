package httptracker

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/animated-dev/animated/internal/tracker"
)

var errUnsupportedScheme = errors.New("announce url must be http or https")

// BuildAnnounceURL returns the announce url with the request fields appended
// as query parameters. Binary fields are percent-encoded byte by byte with
// lower-case hex digits. It does no I/O.
func BuildAnnounceURL(announce string, req tracker.AnnounceRequest) (string, error) {
	u, err := url.Parse(announce)
	if err != nil {
		return "", fmt.Errorf("invalid announce url %q: %w", announce, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q", errUnsupportedScheme, announce)
	}
	var sb strings.Builder
	sb.Grow(len(announce) + 256)
	sb.WriteString(announce)
	switch {
	case u.RawQuery == "" && !u.ForceQuery:
		sb.WriteByte('?')
	case strings.HasSuffix(announce, "?"), strings.HasSuffix(announce, "&"):
	default:
		sb.WriteByte('&')
	}
	t := req.Torrent
	sb.WriteString("peer_id=")
	sb.WriteString(escapeBytes(t.PeerID[:]))
	sb.WriteString("&info_hash=")
	sb.WriteString(escapeBytes(t.InfoHash[:]))
	sb.WriteString("&port=")
	sb.WriteString(strconv.Itoa(t.Port))
	sb.WriteString("&left=")
	sb.WriteString(strconv.FormatInt(t.BytesLeft, 10))
	sb.WriteString("&downloaded=")
	sb.WriteString(strconv.FormatInt(t.BytesDownloaded, 10))
	sb.WriteString("&uploaded=")
	sb.WriteString(strconv.FormatInt(t.BytesUploaded, 10))
	sb.WriteString("&compact=1")
	if req.NumWant > 0 {
		sb.WriteString("&numwant=")
		sb.WriteString(strconv.Itoa(req.NumWant))
	}
	if req.Event != tracker.EventNone {
		sb.WriteString("&event=")
		sb.WriteString(req.Event.String())
	}
	if req.TrackerID != "" {
		sb.WriteString("&trackerid=")
		sb.WriteString(url.QueryEscape(req.TrackerID))
	}
	return sb.String(), nil
}

// escapeBytes encodes every byte as %xx, including unreserved characters.
func escapeBytes(b []byte) string {
	const hex = "0123456789abcdef"
	out := make([]byte, 0, 3*len(b))
	for _, c := range b {
		out = append(out, '%', hex[c>>4], hex[c&0x0f])
	}
	return string(out)
}
