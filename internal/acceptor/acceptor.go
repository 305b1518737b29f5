// Package acceptor accepts incoming peer connections and answers their handshakes.
package acceptor

import (
	"net"
	"sync"
	"time"

	"github.com/animated-dev/animated/internal/handshaker/incominghandshaker"
	"github.com/animated-dev/animated/internal/logger"
	"github.com/animated-dev/animated/internal/semaphore"
)

// Acceptor runs an accept loop on a listener and does the responder side of
// the handshake on every connection.
type Acceptor struct {
	listener    net.Listener
	peerID      [20]byte
	hasInfoHash func([20]byte) bool
	timeout     time.Duration
	limiter     *semaphore.Semaphore
	handshakeC  chan *incominghandshaker.IncomingHandshaker
	log         logger.Logger
}

// New returns an Acceptor. At most maxConns handshakes run at once, further
// connections are rejected. Finished handshakes are sent to handshakeC, the
// receiver must close the connection.
func New(listener net.Listener, peerID [20]byte, hasInfoHash func([20]byte) bool, timeout time.Duration, maxConns int, handshakeC chan *incominghandshaker.IncomingHandshaker, l logger.Logger) *Acceptor {
	return &Acceptor{
		listener:    listener,
		peerID:      peerID,
		hasInfoHash: hasInfoHash,
		timeout:     timeout,
		limiter:     semaphore.New(maxConns),
		handshakeC:  handshakeC,
		log:         l,
	}
}

// Run accepts connections until stopC is closed or the listener fails.
// The listener is closed on return.
func (a *Acceptor) Run(stopC chan struct{}) {
	var wg sync.WaitGroup
	defer wg.Wait()

	doneC := make(chan struct{})
	defer close(doneC)
	go func() {
		select {
		case <-stopC:
		case <-doneC:
		}
		a.listener.Close()
	}()

	for {
		conn, err := a.listener.Accept()
		if err != nil {
			select {
			case <-stopC:
				return
			default:
			}
			a.log.Error(err)
			return
		}
		if !a.limiter.TryAcquire() {
			a.log.Debugln("peer limit reached, rejecting peer", conn.RemoteAddr())
			conn.Close()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer a.limiter.Release()
			a.handleConn(conn, stopC)
		}()
	}
}

func (a *Acceptor) handleConn(conn net.Conn, stopC chan struct{}) {
	resultC := make(chan *incominghandshaker.IncomingHandshaker)
	h := incominghandshaker.New(conn)
	go h.Run(a.peerID, a.hasInfoHash, resultC, a.timeout)
	select {
	case <-resultC:
	case <-stopC:
		conn.Close()
		h.Close()
		return
	}
	if h.Error != nil {
		conn.Close()
		select {
		case a.handshakeC <- h:
		case <-stopC:
		}
		return
	}
	a.log.Infof("Connection accepted from %s. (client=%q)", conn.RemoteAddr(), h.PeerID[:8])
	select {
	case a.handshakeC <- h:
	case <-stopC:
		conn.Close()
	}
}
