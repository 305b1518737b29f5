package btconn

import (
	"net"
	"time"

	"github.com/animated-dev/animated/internal/logger"
)

// Accept BitTorrent handshake from the connection.
// The peer's handshake is read first; if hasInfoHash accepts its info hash
// our handshake for the same torrent is written back.
// The caller owns conn and must close it on error.
func Accept(
	conn net.Conn,
	handshakeTimeout time.Duration,
	hasInfoHash func([20]byte) bool,
	ourID [20]byte) (
	peer *Handshake, err error) {
	addr := conn.RemoteAddr().String()
	log := logger.New("conn <- " + addr)

	if err = conn.SetDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return nil, newError(addr, ErrUnreachable, err)
	}
	peer, err = ReadHandshake(conn)
	if err != nil {
		return nil, newError(addr, ErrShortRead, err)
	}
	if !peer.StandardHeader() {
		log.Debugf("peer sent non-standard protocol header: %q", peer.header[:])
	}
	if !hasInfoHash(peer.InfoHash) {
		log.Debugf("unknown info hash: %x", peer.InfoHash)
		return nil, newError(addr, ErrContentMismatch, nil)
	}
	if _, err = NewHandshake(peer.InfoHash, ourID).WriteTo(conn); err != nil {
		return nil, newError(addr, ErrUnreachable, err)
	}
	if err = conn.SetDeadline(time.Time{}); err != nil {
		return nil, newError(addr, ErrUnreachable, err)
	}
	log.Debugf("Handshake completed. (client=%q)", peer.PeerID[:8])
	return peer, nil
}
