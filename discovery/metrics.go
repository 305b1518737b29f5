package discovery

import (
	"context"
	"errors"
	"time"

	"github.com/animated-dev/animated/internal/btconn"
	"github.com/animated-dev/animated/internal/dialer"
	"github.com/rcrowley/go-metrics"
)

type sessionMetrics struct {
	registry metrics.Registry

	Announces       metrics.Counter
	AnnounceErrors  metrics.Counter
	CacheHits       metrics.Counter
	PeersReceived   metrics.Counter
	Handshakes      metrics.Counter
	Authenticated   metrics.Counter
	Unreachable     metrics.Counter
	ShortRead       metrics.Counter
	ContentMismatch metrics.Counter
	Canceled        metrics.Counter
	Incoming        metrics.Counter
	HandshakeTime   metrics.Timer
}

func newSessionMetrics() *sessionMetrics {
	r := metrics.NewRegistry()
	return &sessionMetrics{
		registry: r,

		Announces:       metrics.NewRegisteredCounter("announces", r),
		AnnounceErrors:  metrics.NewRegisteredCounter("announce_errors", r),
		CacheHits:       metrics.NewRegisteredCounter("cache_hits", r),
		PeersReceived:   metrics.NewRegisteredCounter("peers_received", r),
		Handshakes:      metrics.NewRegisteredCounter("handshakes", r),
		Authenticated:   metrics.NewRegisteredCounter("handshakes_authenticated", r),
		Unreachable:     metrics.NewRegisteredCounter("handshakes_unreachable", r),
		ShortRead:       metrics.NewRegisteredCounter("handshakes_short_read", r),
		ContentMismatch: metrics.NewRegisteredCounter("handshakes_content_mismatch", r),
		Canceled:        metrics.NewRegisteredCounter("handshakes_canceled", r),
		Incoming:        metrics.NewRegisteredCounter("handshakes_incoming", r),
		HandshakeTime:   metrics.NewRegisteredTimer("handshake_time", r),
	}
}

func (m *sessionMetrics) recordResult(r dialer.Result) {
	m.Handshakes.Inc(1)
	if r.Dialed {
		m.HandshakeTime.Update(r.Duration)
	}
	switch {
	case r.Err == nil:
		m.Authenticated.Inc(1)
	case errors.Is(r.Err, context.Canceled), errors.Is(r.Err, context.DeadlineExceeded):
		m.Canceled.Inc(1)
	case errors.Is(r.Err, btconn.ErrUnreachable):
		m.Unreachable.Inc(1)
	case errors.Is(r.Err, btconn.ErrShortRead):
		m.ShortRead.Inc(1)
	case errors.Is(r.Err, btconn.ErrContentMismatch):
		m.ContentMismatch.Inc(1)
	}
}

// Stats contains counters of a Session.
type Stats struct {
	Announces       int64
	AnnounceErrors  int64
	CacheHits       int64
	PeersReceived   int64
	Handshakes      int64
	Authenticated   int64
	Unreachable     int64
	ShortRead       int64
	ContentMismatch int64
	Canceled        int64
	Incoming        int64
	// Mean duration of outgoing handshake attempts.
	HandshakeTimeMean time.Duration
	// 95th percentile of outgoing handshake attempt durations.
	HandshakeTimeP95 time.Duration
}

func (m *sessionMetrics) stats() Stats {
	t := m.HandshakeTime.Snapshot()
	return Stats{
		Announces:         m.Announces.Count(),
		AnnounceErrors:    m.AnnounceErrors.Count(),
		CacheHits:         m.CacheHits.Count(),
		PeersReceived:     m.PeersReceived.Count(),
		Handshakes:        m.Handshakes.Count(),
		Authenticated:     m.Authenticated.Count(),
		Unreachable:       m.Unreachable.Count(),
		ShortRead:         m.ShortRead.Count(),
		ContentMismatch:   m.ContentMismatch.Count(),
		Canceled:          m.Canceled.Count(),
		Incoming:          m.Incoming.Count(),
		HandshakeTimeMean: time.Duration(t.Mean()),
		HandshakeTimeP95:  time.Duration(t.Percentile(0.95)),
	}
}

func (m *sessionMetrics) close() {
	m.registry.UnregisterAll()
}
