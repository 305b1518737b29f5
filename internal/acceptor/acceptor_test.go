package acceptor

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/animated-dev/animated/internal/btconn"
	"github.com/animated-dev/animated/internal/handshaker/incominghandshaker"
	"github.com/animated-dev/animated/internal/logger"
	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	infoHash = [20]byte{0x0E}
	ourID    = [20]byte{0x0D}
	theirID  = [20]byte{0x0C}
)

func start(t *testing.T) (addr net.Addr, handshakeC chan *incominghandshaker.IncomingHandshaker, stop func()) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	handshakeC = make(chan *incominghandshaker.IncomingHandshaker, 10)
	a := New(l, ourID, func(ih [20]byte) bool { return ih == infoHash }, time.Second, 10, handshakeC, logger.New("acceptor"))
	stopC := make(chan struct{})
	doneC := make(chan struct{})
	go func() {
		a.Run(stopC)
		close(doneC)
	}()
	return l.Addr(), handshakeC, func() {
		close(stopC)
		<-doneC
	}
}

func TestAcceptorHandshake(t *testing.T) {
	defer leaktest.Check(t)()
	addr, handshakeC, stop := start(t)
	defer stop()

	conn, peer, err := btconn.Dial(context.Background(), addr, time.Second, time.Second, infoHash, theirID)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, ourID, peer.PeerID)

	h := <-handshakeC
	require.NoError(t, h.Error)
	assert.Equal(t, theirID, h.PeerID)
	assert.Equal(t, infoHash, h.InfoHash)
	h.Conn.Close()
}

func TestAcceptorUnknownTorrent(t *testing.T) {
	defer leaktest.Check(t)()
	addr, handshakeC, stop := start(t)
	defer stop()

	_, _, err := btconn.Dial(context.Background(), addr, time.Second, time.Second, [20]byte{1}, theirID)
	assert.True(t, errors.Is(err, btconn.ErrShortRead), "%v", err)

	h := <-handshakeC
	assert.True(t, errors.Is(h.Error, btconn.ErrContentMismatch), "%v", h.Error)
}
