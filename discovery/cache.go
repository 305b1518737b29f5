package discovery

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/animated-dev/animated/internal/tracker"
	bolt "go.etcd.io/bbolt"
)

var announcesBucket = []byte("announces")

// CachedAnnounce is the last successful announce response for a torrent.
type CachedAnnounce struct {
	Tracker   string
	Time      time.Time
	Interval  time.Duration
	TrackerID string
	Seeders   int32
	Leechers  int32
	// Peers in compact form.
	Peers  []byte
	Peers6 []byte
	// False if the tracker response had no peer list at all.
	PeersPresent bool
}

// Fresh reports whether the tracker interval has not elapsed at now.
func (c *CachedAnnounce) Fresh(now time.Time) bool {
	return c.Interval > 0 && now.Before(c.Time.Add(c.Interval))
}

// Response returns the cached announce as a tracker response.
func (c *CachedAnnounce) Response() *tracker.AnnounceResponse {
	peers := tracker.DecodePeersCompact(c.Peers)
	peers = append(peers, tracker.DecodePeersCompact6(c.Peers6)...)
	return &tracker.AnnounceResponse{
		Interval:     c.Interval,
		TrackerID:    c.TrackerID,
		Seeders:      c.Seeders,
		Leechers:     c.Leechers,
		Peers:        peers,
		PeersPresent: c.PeersPresent,
	}
}

func newCachedAnnounce(trackerURL string, now time.Time, resp *tracker.AnnounceResponse) (*CachedAnnounce, error) {
	c := &CachedAnnounce{
		Tracker:   trackerURL,
		Time:      now,
		Interval:  resp.Interval,
		TrackerID: resp.TrackerID,
		Seeders:      resp.Seeders,
		Leechers:     resp.Leechers,
		PeersPresent: resp.PeersPresent,
	}
	for _, p := range resp.Peers {
		b, err := p.MarshalBinary()
		if err != nil {
			return nil, err
		}
		if p.Family == tracker.IPv4 {
			c.Peers = append(c.Peers, b...)
		} else {
			c.Peers6 = append(c.Peers6, b...)
		}
	}
	return c, nil
}

// announceCache keeps announce responses in a Bolt database keyed by info hash.
type announceCache struct {
	db *bolt.DB
}

func openAnnounceCache(path string) (*announceCache, error) {
	err := os.MkdirAll(filepath.Dir(path), 0750)
	if err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0640, &bolt.Options{Timeout: time.Second})
	if err == bolt.ErrTimeout {
		return nil, errors.New("announce cache is locked by another process")
	} else if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err2 := tx.CreateBucketIfNotExists(announcesBucket)
		return err2
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &announceCache{db: db}, nil
}

// Get returns the cached announce for the torrent or nil if there is none.
func (c *announceCache) Get(infoHash [20]byte) (*CachedAnnounce, error) {
	var ca *CachedAnnounce
	err := c.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(announcesBucket).Get(infoHash[:])
		if value == nil {
			return nil
		}
		ca = new(CachedAnnounce)
		return json.Unmarshal(value, ca)
	})
	if err != nil {
		return nil, err
	}
	return ca, nil
}

// Put replaces the cached announce for the torrent.
func (c *announceCache) Put(infoHash [20]byte, ca *CachedAnnounce) error {
	value, err := json.Marshal(ca)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(announcesBucket).Put(infoHash[:], value)
	})
}

// Delete removes the cached announce for the torrent.
func (c *announceCache) Delete(infoHash [20]byte) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(announcesBucket).Delete(infoHash[:])
	})
}

func (c *announceCache) Close() error {
	return c.db.Close()
}
