package httptracker

import (
	"fmt"
	"net"
	"time"

	"github.com/zeebo/bencode"

	"github.com/animated-dev/animated/internal/tracker"
)

type announceResponse struct {
	FailureReason  string             `bencode:"failure reason"`
	WarningMessage string             `bencode:"warning message"`
	Interval       int32              `bencode:"interval"`
	MinInterval    int32              `bencode:"min interval"`
	TrackerID      string             `bencode:"tracker id"`
	Complete       int32              `bencode:"complete"`
	Incomplete     int32              `bencode:"incomplete"`
	Peers          bencode.RawMessage `bencode:"peers"`
	Peers6         bencode.RawMessage `bencode:"peers6"`
}

type dictPeer struct {
	IP     string `bencode:"ip"`
	Port   int64  `bencode:"port"`
	PeerID string `bencode:"peer id"`
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", tracker.ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// ParseAnnounceResponse decodes the body of an announce response.
// A response with a failure reason is returned without peers and without an error;
// use AnnounceResponse.Failed to check it.
func ParseAnnounceResponse(body []byte) (*tracker.AnnounceResponse, error) {
	if len(body) == 0 || body[0] != 'd' {
		return nil, malformed("response is not a dictionary")
	}
	var r announceResponse
	if err := bencode.DecodeBytes(body, &r); err != nil {
		return nil, malformed("%s", err)
	}
	if r.FailureReason != "" {
		return &tracker.AnnounceResponse{
			FailureReason:  r.FailureReason,
			WarningMessage: r.WarningMessage,
		}, nil
	}
	if r.Interval < 0 || r.MinInterval < 0 {
		return nil, malformed("negative interval")
	}
	resp := &tracker.AnnounceResponse{
		WarningMessage: r.WarningMessage,
		Interval:       time.Duration(r.Interval) * time.Second,
		MinInterval:    time.Duration(r.MinInterval) * time.Second,
		TrackerID:      r.TrackerID,
		Leechers:       r.Incomplete,
		Seeders:        r.Complete,
	}

	// Peers may be in binary or dictionary model.
	if len(r.Peers) > 0 {
		resp.PeersPresent = true
		var peers []tracker.Peer
		var err error
		if r.Peers[0] == 'l' {
			peers, err = parsePeersDictionary(r.Peers)
		} else {
			var b string
			if err = bencode.DecodeBytes(r.Peers, &b); err == nil {
				peers = tracker.DecodePeersCompact([]byte(b))
			}
		}
		if err != nil {
			return nil, malformed("invalid peers: %s", err)
		}
		resp.Peers = peers
	}
	if len(r.Peers6) > 0 {
		var b string
		if err := bencode.DecodeBytes(r.Peers6, &b); err != nil {
			return nil, malformed("invalid peers6: %s", err)
		}
		if !resp.PeersPresent {
			resp.Peers = []tracker.Peer{}
		}
		resp.PeersPresent = true
		resp.Peers = append(resp.Peers, tracker.DecodePeersCompact6([]byte(b))...)
	}
	return resp, nil
}

func parsePeersDictionary(b bencode.RawMessage) ([]tracker.Peer, error) {
	var list []dictPeer
	if err := bencode.DecodeBytes(b, &list); err != nil {
		return nil, err
	}
	peers := make([]tracker.Peer, 0, len(list))
	for i, p := range list {
		ip := net.ParseIP(p.IP)
		if ip == nil {
			return nil, fmt.Errorf("peer #%d has invalid ip %q", i, p.IP)
		}
		if p.Port <= 0 || p.Port > 65535 {
			return nil, fmt.Errorf("peer #%d has invalid port %d", i, p.Port)
		}
		peers = append(peers, tracker.NewPeer(ip, uint16(p.Port)))
	}
	return peers, nil
}
