package incominghandshaker

import (
	"errors"
	"net"
	"time"

	"github.com/animated-dev/animated/internal/btconn"
	"github.com/animated-dev/animated/internal/logger"
)

// IncomingHandshaker does the BitTorrent protocol handshake on an incoming connection.
type IncomingHandshaker struct {
	Conn       net.Conn
	PeerID     [20]byte
	InfoHash   [20]byte
	Extensions [8]byte
	Error      error

	closeC chan struct{}
	doneC  chan struct{}
}

// New returns a new IncomingHandshaker for a net.Conn.
func New(conn net.Conn) *IncomingHandshaker {
	return &IncomingHandshaker{
		Conn:   conn,
		closeC: make(chan struct{}),
		doneC:  make(chan struct{}),
	}
}

// Close the IncomingHandshaker. Also closes the underlying connection if there is an ongoing handshake operation.
func (h *IncomingHandshaker) Close() {
	close(h.closeC)
	<-h.doneC
}

// Run the handshaker goroutine.
func (h *IncomingHandshaker) Run(peerID [20]byte, checkInfoHashFunc func([20]byte) bool, resultC chan *IncomingHandshaker, timeout time.Duration) {
	defer close(h.doneC)
	defer func() {
		select {
		case resultC <- h:
		case <-h.closeC:
			h.Conn.Close()
		}
	}()

	log := logger.New("conn <- " + h.Conn.RemoteAddr().String())

	peer, err := btconn.Accept(h.Conn, timeout, checkInfoHashFunc, peerID)
	if err != nil {
		switch {
		case errors.Is(err, btconn.ErrShortRead):
			log.Debugln("peer has closed the connection:", err)
		case errors.Is(err, btconn.ErrContentMismatch):
			log.Debugln("protocol error:", err)
		default:
			log.Debugln("cannot complete incoming handshake:", err)
		}
		h.Error = err
		return
	}
	log.Debugf("Connection accepted. (extensions=%x client=%q)", peer.Extensions, peer.PeerID[:8])

	h.PeerID = peer.PeerID
	h.InfoHash = peer.InfoHash
	h.Extensions = peer.Extensions
}
