package discovery

import (
	"io/ioutil"
	"os"
	"time"

	"github.com/animated-dev/animated/internal/peerid"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v2"
)

// Config for Session.
type Config struct {
	// String used to derive the 20-byte peer id. See peerid.New.
	PeerID string `yaml:"peer_id"`
	// Port reported to trackers and listened on by Serve.
	Port int `yaml:"port"`
	// Database file for caching announce responses. Empty disables the cache.
	Database string `yaml:"database"`

	Tracker TrackerConfig `yaml:"tracker"`
	Peer    PeerConfig    `yaml:"peer"`
}

// TrackerConfig contains the settings for tracker announces.
type TrackerConfig struct {
	// Timeout for a single HTTP request including reading the body.
	Timeout time.Duration `yaml:"timeout"`
	// Responses larger than this many bytes are rejected.
	MaxResponseSize int64 `yaml:"max_response_size"`
	// Number of peers asked from the tracker.
	NumWant int `yaml:"num_want"`
	// Total time spent retrying unreachable trackers.
	RetryTimeout time.Duration `yaml:"retry_timeout"`
	// User-Agent header sent to trackers.
	UserAgent string `yaml:"user_agent"`
}

// PeerConfig contains the settings for handshakes with peers.
type PeerConfig struct {
	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	MaxConcurrentDials int           `yaml:"max_concurrent_dials"`
	// New connections per second. Zero means no limit.
	DialRate float64 `yaml:"dial_rate"`
	// Number of incoming handshakes served at once.
	MaxIncoming int `yaml:"max_incoming"`
}

// DefaultConfig for Session.
var DefaultConfig = Config{
	PeerID:   peerid.Default,
	Port:     6881,
	Database: "~/.animated/cache.db",
	Tracker: TrackerConfig{
		Timeout:         30 * time.Second,
		MaxResponseSize: 2 << 20,
		NumWant:         50,
		RetryTimeout:    time.Minute,
		UserAgent:       "animated/" + Version,
	},
	Peer: PeerConfig{
		ConnectTimeout:     5 * time.Second,
		HandshakeTimeout:   10 * time.Second,
		MaxConcurrentDials: 40,
		MaxIncoming:        40,
	},
}

// Version of the module. Sent to trackers in the User-Agent header.
const Version = "0.1.0"

// LoadConfig reads the YAML file over DefaultConfig.
// A missing file is not an error; DefaultConfig is returned for it.
func LoadConfig(filename string) (*Config, error) {
	c := DefaultConfig
	filename, err := homedir.Expand(filename)
	if err != nil {
		return nil, err
	}
	b, err := ioutil.ReadFile(filename)
	if os.IsNotExist(err) {
		return &c, nil
	}
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
