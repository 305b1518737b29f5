// Package dialer connects to a batch of peers concurrently and performs the
// BitTorrent handshake with each of them.
package dialer

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/animated-dev/animated/internal/handshaker/outgoinghandshaker"
	"github.com/animated-dev/animated/internal/logger"
	"github.com/animated-dev/animated/internal/semaphore"
	"github.com/animated-dev/animated/internal/tracker"
	"github.com/juju/ratelimit"
)

// Config for Dialer.
type Config struct {
	// Timeout for establishing the TCP connection.
	ConnectTimeout time.Duration
	// Timeout for the handshake exchange after the connection is established.
	HandshakeTimeout time.Duration
	// Number of handshakes in flight at once. Zero means no limit.
	MaxConcurrentDials int
	// New connections started per second. Zero means no limit.
	DialRate float64
}

// DefaultConfig for Dialer.
var DefaultConfig = Config{
	ConnectTimeout:     5 * time.Second,
	HandshakeTimeout:   10 * time.Second,
	MaxConcurrentDials: 40,
}

// Result of a handshake attempt with a single peer.
// Exactly one of Conn and Err is set.
type Result struct {
	Peer       tracker.Peer
	Conn       net.Conn
	PeerID     [20]byte
	Extensions [8]byte
	// Dialed is false if the attempt was canceled while waiting for the
	// concurrency or rate limit.
	Dialed   bool
	Duration time.Duration
	Err      error
}

// OK reports whether the handshake succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Results of a batch, in the same order as the input peers.
type Results []Result

// Authenticated returns results with a completed handshake.
func (rs Results) Authenticated() Results {
	ret := make(Results, 0, len(rs))
	for _, r := range rs {
		if r.OK() {
			ret = append(ret, r)
		}
	}
	return ret
}

// Failed returns results with an error.
func (rs Results) Failed() Results {
	ret := make(Results, 0, len(rs))
	for _, r := range rs {
		if !r.OK() {
			ret = append(ret, r)
		}
	}
	return ret
}

// Close all open connections in results.
func (rs Results) Close() {
	for _, r := range rs {
		if r.Conn != nil {
			r.Conn.Close()
		}
	}
}

// Dialer runs handshakes with many peers at once.
type Dialer struct {
	config    Config
	semaphore *semaphore.Semaphore
	bucket    *ratelimit.Bucket
	log       logger.Logger
}

// New returns a Dialer. A single Dialer may be used for many batches;
// the concurrency and rate limits are shared between them.
func New(cfg Config) *Dialer {
	d := &Dialer{
		config:    cfg,
		semaphore: semaphore.New(cfg.MaxConcurrentDials),
		log:       logger.New("dialer"),
	}
	if cfg.DialRate > 0 {
		capacity := int64(cfg.DialRate)
		if capacity < 1 {
			capacity = 1
		}
		d.bucket = ratelimit.NewBucketWithRate(cfg.DialRate, capacity)
	}
	return d
}

// Dial does the handshake with every peer and waits for all attempts to finish.
// A failing peer does not affect the others. Peers are not de-duplicated,
// ranked or retried. Canceling ctx aborts the attempts in progress.
func (d *Dialer) Dial(ctx context.Context, peers []tracker.Peer, infoHash, peerID [20]byte) Results {
	handshakers := make([]*outgoinghandshaker.OutgoingHandshaker, len(peers))
	resultC := make(chan *outgoinghandshaker.OutgoingHandshaker, len(peers))

	var wg sync.WaitGroup
	for i, p := range peers {
		h := outgoinghandshaker.New(p)
		handshakers[i] = h
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.run(ctx, h, infoHash, peerID, resultC)
		}()
	}
	go func() {
		wg.Wait()
		close(resultC)
	}()

	var done, failed int
	for h := range resultC {
		done++
		if h.Error != nil {
			failed++
		}
		d.log.Debugf("handshake %d/%d finished with %s (failed=%d)", done, len(peers), h.Peer, failed)
	}

	results := make(Results, len(peers))
	for i, h := range handshakers {
		results[i] = Result{
			Peer:       h.Peer,
			Conn:       h.Conn,
			PeerID:     h.PeerID,
			Extensions: h.Extensions,
			Dialed:     h.Dialed,
			Duration:   h.Duration,
			Err:        h.Error,
		}
	}
	return results
}

func (d *Dialer) run(ctx context.Context, h *outgoinghandshaker.OutgoingHandshaker, infoHash, peerID [20]byte, resultC chan *outgoinghandshaker.OutgoingHandshaker) {
	if err := d.semaphore.Acquire(ctx); err != nil {
		h.Error = err
		resultC <- h
		return
	}
	defer d.semaphore.Release()
	if err := d.wait(ctx); err != nil {
		h.Error = err
		resultC <- h
		return
	}
	h.Run(ctx, d.config.ConnectTimeout, d.config.HandshakeTimeout, peerID, infoHash, resultC)
}

// wait blocks until the rate limiter allows a new connection.
func (d *Dialer) wait(ctx context.Context) error {
	if d.bucket == nil {
		return nil
	}
	wait := d.bucket.Take(1)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
