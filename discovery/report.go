package discovery

import (
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/animated-dev/animated/internal/dialer"
	"github.com/gofrs/uuid"
)

// Report is the outcome of a discovery run for a single torrent.
type Report struct {
	ID        string
	Name      string
	InfoHash  string
	Tracker   string
	FromCache bool
	Interval  time.Duration
	Seeders   int32
	Leechers  int32
	Peers     []PeerReport
	Duration  time.Duration
}

// PeerReport is the handshake outcome for a single peer.
type PeerReport struct {
	Addr     string
	PeerID   string `json:",omitempty"`
	Error    string `json:",omitempty"`
	Duration time.Duration
}

// Authenticated returns the number of peers that completed the handshake.
func (r *Report) Authenticated() int {
	var n int
	for _, p := range r.Peers {
		if p.Error == "" {
			n++
		}
	}
	return n
}

func newReportID() (string, error) {
	u1, err := uuid.NewV1()
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(u1[:]), nil
}

func newPeerReports(results dialer.Results) []PeerReport {
	ret := make([]PeerReport, len(results))
	for i, r := range results {
		ret[i] = PeerReport{
			Addr:     r.Peer.String(),
			Duration: r.Duration,
		}
		if r.Err != nil {
			ret[i].Error = r.Err.Error()
		} else {
			ret[i].PeerID = hex.EncodeToString(r.PeerID[:])
		}
	}
	return ret
}
