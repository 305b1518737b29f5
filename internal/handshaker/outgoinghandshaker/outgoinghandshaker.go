package outgoinghandshaker

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/animated-dev/animated/internal/btconn"
	"github.com/animated-dev/animated/internal/logger"
	"github.com/animated-dev/animated/internal/tracker"
)

// OutgoingHandshaker does the BitTorrent handshake on an outgoing connection.
type OutgoingHandshaker struct {
	Peer       tracker.Peer
	Conn       net.Conn
	PeerID     [20]byte
	Extensions [8]byte
	Error      error
	// Dialed is set when a connection attempt was made.
	Dialed   bool
	Duration time.Duration
}

// New returns a new OutgoingHandshaker for a tracker peer.
func New(p tracker.Peer) *OutgoingHandshaker {
	return &OutgoingHandshaker{Peer: p}
}

// Run the handshaker. The handshaker is sent to resultC when finished.
// If ctx is done before the result is delivered, the connection is closed.
func (h *OutgoingHandshaker) Run(ctx context.Context, dialTimeout, handshakeTimeout time.Duration, peerID, infoHash [20]byte, resultC chan *OutgoingHandshaker) {
	log := logger.New("peer -> " + h.Peer.String())

	h.Dialed = true
	start := time.Now()
	conn, peer, err := btconn.Dial(ctx, h.Peer.Addr(), dialTimeout, handshakeTimeout, infoHash, peerID)
	h.Duration = time.Since(start)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			log.Debugln("handshake canceled:", err)
		case errors.Is(err, btconn.ErrUnreachable):
			log.Debugln("net operation error:", err)
		case errors.Is(err, btconn.ErrShortRead):
			log.Debugln("peer has closed the connection:", err)
		case errors.Is(err, btconn.ErrContentMismatch):
			log.Debugln("protocol error:", err)
		default:
			log.Errorln("cannot complete outgoing handshake:", err)
		}
		h.Error = err
		select {
		case resultC <- h:
		case <-ctx.Done():
		}
		return
	}
	log.Debugf("Connected to peer. (extensions=%x client=%q)", peer.Extensions, peer.PeerID[:8])

	h.Conn = conn
	h.PeerID = peer.PeerID
	h.Extensions = peer.Extensions

	select {
	case resultC <- h:
	case <-ctx.Done():
		conn.Close()
		h.Conn = nil
		h.Error = ctx.Err()
	}
}
