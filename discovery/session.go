// Package discovery finds the peers of a torrent through its trackers and
// verifies each of them with the BitTorrent handshake.
package discovery

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/animated-dev/animated/internal/acceptor"
	"github.com/animated-dev/animated/internal/announcer"
	"github.com/animated-dev/animated/internal/dialer"
	"github.com/animated-dev/animated/internal/handshaker/incominghandshaker"
	"github.com/animated-dev/animated/internal/logger"
	"github.com/animated-dev/animated/internal/metainfo"
	"github.com/animated-dev/animated/internal/peerid"
	"github.com/animated-dev/animated/internal/tracker"
	"github.com/animated-dev/animated/internal/tracker/httptracker"
	"github.com/mitchellh/go-homedir"
)

// Session holds the resources shared by discovery runs: the peer id, the
// HTTP transport for trackers, the dial limits, the announce cache and metrics.
type Session struct {
	config    Config
	peerID    [20]byte
	transport *http.Transport
	dialer    *dialer.Dialer
	cache     *announceCache
	metrics   *sessionMetrics
	log       logger.Logger
}

// New returns a new Session. Close must be called when it is no longer needed.
func New(cfg Config) (*Session, error) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	s := &Session{
		config:  cfg,
		peerID:  peerid.New(cfg.PeerID),
		metrics: newSessionMetrics(),
		log:     logger.New("session"),
		transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: cfg.Tracker.Timeout,
			}).DialContext,
			TLSHandshakeTimeout: cfg.Tracker.Timeout,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
		dialer: dialer.New(dialer.Config{
			ConnectTimeout:     cfg.Peer.ConnectTimeout,
			HandshakeTimeout:   cfg.Peer.HandshakeTimeout,
			MaxConcurrentDials: cfg.Peer.MaxConcurrentDials,
			DialRate:           cfg.Peer.DialRate,
		}),
	}
	if cfg.Database != "" {
		path, err := homedir.Expand(cfg.Database)
		if err != nil {
			return nil, err
		}
		s.cache, err = openAnnounceCache(path)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Close releases the resources of the session.
func (s *Session) Close() error {
	s.transport.CloseIdleConnections()
	s.metrics.close()
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}

// PeerID returns the 20-byte id sent to trackers and peers.
func (s *Session) PeerID() [20]byte {
	return s.peerID
}

// Stats returns the counters of the session.
func (s *Session) Stats() Stats {
	return s.metrics.stats()
}

// Trackers returns the announce URLs of the torrent in the order they are tried:
// the announce URL first, then the announce-list entries without duplicates.
func Trackers(mi *metainfo.MetaInfo) []string {
	seen := map[string]struct{}{mi.Announce: {}}
	urls := []string{mi.Announce}
	for _, tier := range mi.AnnounceList {
		for _, u := range tier {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}
	return urls
}

func (s *Session) newTier(mi *metainfo.MetaInfo) *tracker.Tier {
	urls := Trackers(mi)
	trackers := make([]tracker.Tracker, len(urls))
	for i, u := range urls {
		trackers[i] = httptracker.New(u, s.config.Tracker.Timeout, s.transport, s.config.Tracker.UserAgent, s.config.Tracker.MaxResponseSize)
	}
	return tracker.NewTier(trackers)
}

func (s *Session) torrent(mi *metainfo.MetaInfo) tracker.Torrent {
	return tracker.Torrent{
		InfoHash:  mi.InfoHash,
		PeerID:    s.peerID,
		Port:      s.config.Port,
		BytesLeft: mi.Info.TotalLength(),
	}
}

// Announce sends a single announce for the torrent, retrying while the
// trackers are unreachable. Successful responses are written to the cache.
func (s *Session) Announce(ctx context.Context, mi *metainfo.MetaInfo, e tracker.Event) (*tracker.AnnounceResponse, error) {
	resp, _, err := s.announce(ctx, mi, e)
	return resp, err
}

func (s *Session) announce(ctx context.Context, mi *metainfo.MetaInfo, e tracker.Event) (*tracker.AnnounceResponse, string, error) {
	tier := s.newTier(mi)
	an := announcer.New(tier, announcer.Config{
		NumWant:       s.config.Tracker.NumWant,
		RetryTimeout:  s.config.Tracker.RetryTimeout,
		RetryInterval: announcer.DefaultConfig.RetryInterval,
	})
	s.metrics.Announces.Inc(1)
	resp, err := an.Announce(ctx, s.torrent(mi), e)
	if err != nil {
		s.metrics.AnnounceErrors.Inc(1)
		return nil, "", err
	}
	trackerURL := tier.URL()
	s.metrics.PeersReceived.Inc(int64(len(resp.Peers)))
	if s.cache != nil {
		if e == tracker.EventStopped {
			// peers of a stopped announce are not reused
			err = s.cache.Delete(mi.InfoHash)
		} else {
			var ca *CachedAnnounce
			ca, err = newCachedAnnounce(trackerURL, time.Now(), resp)
			if err == nil {
				err = s.cache.Put(mi.InfoHash, ca)
			}
		}
		if err != nil {
			s.log.Warningln("cannot write announce cache:", err)
		}
	}
	return resp, trackerURL, nil
}

// peers returns the cached peer list while the tracker interval has not
// elapsed, otherwise it announces to the trackers.
func (s *Session) peers(ctx context.Context, mi *metainfo.MetaInfo) (resp *tracker.AnnounceResponse, trackerURL string, fromCache bool, err error) {
	if s.cache != nil {
		ca, err := s.cache.Get(mi.InfoHash)
		if err != nil {
			s.log.Warningln("cannot read announce cache:", err)
		} else if ca != nil && ca.Fresh(time.Now()) {
			s.log.Debugf("using cached peer list from %s", ca.Time.Format(time.RFC3339))
			s.metrics.CacheHits.Inc(1)
			return ca.Response(), ca.Tracker, true, nil
		}
	}
	resp, trackerURL, err = s.announce(ctx, mi, tracker.EventStarted)
	return resp, trackerURL, false, err
}

// Connect finds the peers of the torrent and does the handshake with all of them.
// Connections of authenticated peers are returned open; the caller must close them.
func (s *Session) Connect(ctx context.Context, mi *metainfo.MetaInfo) (dialer.Results, *Report, error) {
	start := time.Now()
	id, err := newReportID()
	if err != nil {
		return nil, nil, err
	}
	resp, trackerURL, fromCache, err := s.peers(ctx, mi)
	if err != nil {
		return nil, nil, err
	}
	s.log.Infof("got %d peers from %s", len(resp.Peers), trackerURL)
	results := s.dialer.Dial(ctx, resp.Peers, mi.InfoHash, s.peerID)
	for _, r := range results {
		s.metrics.recordResult(r)
	}
	report := &Report{
		ID:        id,
		Name:      mi.Info.Name,
		InfoHash:  hex.EncodeToString(mi.InfoHash[:]),
		Tracker:   trackerURL,
		FromCache: fromCache,
		Interval:  resp.Interval,
		Seeders:   resp.Seeders,
		Leechers:  resp.Leechers,
		Peers:     newPeerReports(results),
		Duration:  time.Since(start),
	}
	s.log.Infof("%d of %d peers completed the handshake", report.Authenticated(), len(results))
	return results, report, nil
}

// Discover is like Connect but closes all connections before returning.
func (s *Session) Discover(ctx context.Context, mi *metainfo.MetaInfo) (*Report, error) {
	results, report, err := s.Connect(ctx, mi)
	if err != nil {
		return nil, err
	}
	results.Close()
	return report, nil
}

// Serve listens on the configured port and answers incoming handshakes for the
// torrent until ctx is done.
func (s *Session) Serve(ctx context.Context, mi *metainfo.MetaInfo) error {
	l, err := net.Listen("tcp", ":"+strconv.Itoa(s.config.Port))
	if err != nil {
		return err
	}
	s.log.Noticeln("listening on", l.Addr())
	return s.ServeListener(ctx, l, mi)
}

// ServeListener is like Serve but accepts connections from l. l is closed on return.
func (s *Session) ServeListener(ctx context.Context, l net.Listener, mi *metainfo.MetaInfo) error {
	handshakeC := make(chan *incominghandshaker.IncomingHandshaker)
	stopC := make(chan struct{})
	doneC := make(chan struct{})
	hasInfoHash := func(ih [20]byte) bool { return ih == mi.InfoHash }
	a := acceptor.New(l, s.peerID, hasInfoHash, s.config.Peer.HandshakeTimeout, s.config.Peer.MaxIncoming, handshakeC, logger.New("acceptor"))
	go func() {
		a.Run(stopC)
		close(doneC)
	}()
	for {
		select {
		case h := <-handshakeC:
			if h.Error != nil {
				continue
			}
			s.metrics.Incoming.Inc(1)
			h.Conn.Close()
		case <-doneC:
			return errors.New("accept loop stopped")
		case <-ctx.Done():
			close(stopC)
			<-doneC
			return nil
		}
	}
}
