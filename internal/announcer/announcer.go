// Package announcer announces a torrent to trackers and retries while they cannot be reached.
package announcer

import (
	"context"
	"errors"
	"time"

	"github.com/animated-dev/animated/internal/logger"
	"github.com/animated-dev/animated/internal/tracker"
	"github.com/cenkalti/backoff/v3"
)

// Config for Announcer.
type Config struct {
	// Number of peers to ask from the tracker. Zero lets the tracker decide.
	NumWant int
	// Total time spent retrying an unreachable tracker. Zero disables retries.
	RetryTimeout time.Duration
	// First wait between retries. It doubles after each attempt.
	RetryInterval time.Duration
}

// DefaultConfig for Announcer.
var DefaultConfig = Config{
	NumWant:       50,
	RetryTimeout:  time.Minute,
	RetryInterval: 5 * time.Second,
}

// Announcer sends announce requests to a tracker.
type Announcer struct {
	Tracker tracker.Tracker
	config  Config
	log     logger.Logger
}

// New returns a new Announcer for trk. trk is usually a *tracker.Tier.
func New(trk tracker.Tracker, cfg Config) *Announcer {
	return &Announcer{
		Tracker: trk,
		config:  cfg,
		log:     logger.New("announcer"),
	}
}

// Announce the torrent with event e.
// Requests failing with tracker.ErrTrackerUnreachable are retried with
// exponential backoff until RetryTimeout elapses; all other errors,
// including a failure reason from the tracker, are returned immediately.
func (a *Announcer) Announce(ctx context.Context, t tracker.Torrent, e tracker.Event) (*tracker.AnnounceResponse, error) {
	req := tracker.AnnounceRequest{
		Torrent: t,
		Event:   e,
		NumWant: a.config.NumWant,
	}
	var resp *tracker.AnnounceResponse
	op := func() error {
		var err error
		resp, err = a.Tracker.Announce(ctx, req)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !errors.Is(err, tracker.ErrTrackerUnreachable) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		a.log.Debugln("announce error:", newAnnounceError(err).Message, "retrying in", wait.Round(time.Millisecond))
	}
	err := backoff.RetryNotify(op, backoff.WithContext(a.newBackOff(), ctx), notify)
	if err != nil {
		aerr := newAnnounceError(err)
		if aerr.Unknown {
			a.log.Errorln("announce error:", aerr.ErrorWithType())
		} else {
			a.log.Debugln("announce error:", aerr.Message)
		}
		return nil, err
	}
	a.log.Debugf("announced to %s: %d peers, interval %s", a.Tracker.URL(), len(resp.Peers), resp.Interval)
	return resp, nil
}

func (a *Announcer) newBackOff() backoff.BackOff {
	if a.config.RetryTimeout <= 0 {
		return &backoff.StopBackOff{}
	}
	interval := a.config.RetryInterval
	if interval <= 0 {
		interval = DefaultConfig.RetryInterval
	}
	return &backoff.ExponentialBackOff{
		InitialInterval:     interval,
		RandomizationFactor: 0.5,
		Multiplier:          2,
		MaxInterval:         30 * time.Minute,
		MaxElapsedTime:      a.config.RetryTimeout,
		Clock:               backoff.SystemClock,
	}
}
