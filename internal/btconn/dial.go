package btconn

import (
	"context"
	"net"
	"time"

	"github.com/animated-dev/animated/internal/logger"
)

// Dial new connection to the address and do the BitTorrent protocol handshake.
// Returns a net.Conn that is ready for sending/receiving peer protocol messages
// and the handshake received from the peer.
// Failures are returned as *Error and the connection is closed. Dial never retries.
func Dial(
	ctx context.Context,
	addr net.Addr,
	dialTimeout, handshakeTimeout time.Duration,
	infoHash [20]byte,
	ourID [20]byte) (
	conn net.Conn, peer *Handshake, err error) {
	log := logger.New("conn -> " + addr.String())

	log.Debug("Connecting to peer...")
	dialer := net.Dialer{Timeout: dialTimeout}
	c, err := dialer.DialContext(ctx, addr.Network(), addr.String())
	if err != nil {
		return nil, nil, newError(addr.String(), ErrUnreachable, err)
	}
	log.Debug("Connected")
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	// Handshake must be completed in allowed duration.
	if err = c.SetDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return nil, nil, newError(addr.String(), ErrUnreachable, err)
	}
	stop := watchContext(ctx, c)

	ours := NewHandshake(infoHash, ourID)
	if _, err = ours.WriteTo(c); err != nil {
		stop()
		return nil, nil, newError(addr.String(), ErrUnreachable, contextError(ctx, err))
	}
	log.Debug("Sent handshake")

	peer, err = ReadHandshake(c)
	stop()
	if err != nil {
		return nil, nil, newError(addr.String(), ErrShortRead, contextError(ctx, err))
	}
	if !peer.StandardHeader() {
		log.Debugf("peer sent non-standard protocol header: %q", peer.header[:])
	}
	if !ours.Compatible(peer) {
		err = newError(addr.String(), ErrContentMismatch, nil)
		log.Debugf("peer info hash %x does not match %x", peer.InfoHash, infoHash)
		return nil, nil, err
	}
	if err = ctx.Err(); err != nil {
		return nil, nil, newError(addr.String(), ErrShortRead, err)
	}
	if err = c.SetDeadline(time.Time{}); err != nil {
		return nil, nil, newError(addr.String(), ErrShortRead, err)
	}
	log.Debugf("Handshake completed. (extensions=%x client=%q)", peer.Extensions, peer.PeerID[:8])
	return c, peer, nil
}

// watchContext unblocks pending I/O on conn when ctx is done.
// The returned function must be called before conn is handed to the caller.
func watchContext(ctx context.Context, conn net.Conn) (stop func()) {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			_ = conn.SetDeadline(time.Unix(1, 0))
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

func contextError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
