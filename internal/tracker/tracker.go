// Package tracker provides support for announcing torrents to trackers and
// for decoding the peer lists they return.
package tracker

import (
	"context"
	"errors"
	"time"
)

// Tracker is a peer source that is asked for peers with an announce request.
type Tracker interface {
	// Announce transfer to the tracker.
	// Announce should be called periodically with the interval returned in AnnounceResponse.
	Announce(ctx context.Context, req AnnounceRequest) (*AnnounceResponse, error)

	// URL of the tracker.
	URL() string
}

// AnnounceRequest contains the fields that are sent to the tracker.
type AnnounceRequest struct {
	Torrent   Torrent
	Event     Event
	NumWant   int
	TrackerID string
}

// Torrent identifies the announcing client and carries its transfer counters.
type Torrent struct {
	InfoHash        [20]byte
	PeerID          [20]byte
	Port            int
	BytesUploaded   int64
	BytesDownloaded int64
	BytesLeft       int64
}

// AnnounceResponse is the decoded reply of a tracker.
type AnnounceResponse struct {
	// Set when the tracker refused the request. Peers is always empty then.
	FailureReason  string
	WarningMessage string
	Interval       time.Duration
	MinInterval    time.Duration
	TrackerID      string
	Leechers       int32
	Seeders        int32
	Peers          []Peer
	// PeersPresent is false when the tracker omitted the peer list entirely,
	// as opposed to sending an empty one.
	PeersPresent bool
}

// Failed reports whether the tracker returned a failure reason.
// The peer list of a failed response must not be used.
func (r *AnnounceResponse) Failed() bool {
	return r.FailureReason != ""
}

var (
	// ErrTrackerUnreachable is returned when the request cannot be delivered
	// to the tracker or the tracker does not answer with a usable response.
	ErrTrackerUnreachable = errors.New("tracker unreachable")
	// ErrMalformedResponse is returned when the tracker response cannot be decoded
	// or does not have the expected shape.
	ErrMalformedResponse = errors.New("malformed tracker response")
)

// Error is the string that is sent by the tracker from announce.
type Error struct {
	FailureReason string
}

func (e *Error) Error() string { return "tracker failure: " + e.FailureReason }
