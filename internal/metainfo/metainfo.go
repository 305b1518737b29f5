// Package metainfo support for reading torrent files.
package metainfo

import (
	"bytes"
	"io"
	"io/ioutil"
	"strings"

	"github.com/zeebo/bencode"
)

// MetaInfo file dictionary
type MetaInfo struct {
	Announce     string
	AnnounceList [][]string
	Info         Info
	InfoHash     [20]byte
}

// New returns a torrent from bencoded stream.
func New(r io.Reader) (*MetaInfo, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse returns a torrent from bencoded bytes.
func Parse(b []byte) (*MetaInfo, error) {
	var t struct {
		Info         bencode.RawMessage `bencode:"info"`
		Announce     bencode.RawMessage `bencode:"announce"`
		AnnounceList bencode.RawMessage `bencode:"announce-list"`
	}
	if len(b) == 0 || b[0] != 'd' {
		return nil, malformed("torrent is not a dictionary")
	}
	err := bencode.DecodeBytes(b, &t)
	if err != nil {
		return nil, malformed("cannot decode torrent: %s", err)
	}
	if len(t.Info) == 0 {
		return nil, malformed("no info dict in torrent file")
	}
	if len(t.Announce) == 0 {
		return nil, malformed("no announce url in torrent file")
	}
	var ret MetaInfo
	if err = bencode.DecodeBytes(t.Announce, &ret.Announce); err != nil {
		return nil, malformed("invalid announce url: %s", err)
	}
	if strings.TrimSpace(ret.Announce) == "" {
		return nil, malformed("empty announce url")
	}
	info, err := NewInfo(t.Info)
	if err != nil {
		return nil, err
	}
	ret.Info = *info
	ret.InfoHash, err = info.Hash()
	if err != nil {
		return nil, err
	}
	if len(t.AnnounceList) > 0 {
		// announce-list is advisory; a broken one is ignored.
		var ll [][]string
		if bencode.DecodeBytes(t.AnnounceList, &ll) == nil {
			for _, tier := range ll {
				var ti []string
				for _, u := range tier {
					if isTrackerSupported(u) {
						ti = append(ti, u)
					}
				}
				if len(ti) > 0 {
					ret.AnnounceList = append(ret.AnnounceList, ti)
				}
			}
		}
	}
	return &ret, nil
}

// Bytes encodes the torrent back into bencode with the info dictionary in canonical form.
func (m *MetaInfo) Bytes() ([]byte, error) {
	info, err := m.Info.Encode()
	if err != nil {
		return nil, err
	}
	mi := struct {
		Info         bencode.RawMessage `bencode:"info"`
		Announce     string             `bencode:"announce"`
		AnnounceList [][]string         `bencode:"announce-list,omitempty"`
	}{
		Info:         info,
		Announce:     m.Announce,
		AnnounceList: m.AnnounceList,
	}
	var buf bytes.Buffer
	err = bencode.NewEncoder(&buf).Encode(mi)
	return buf.Bytes(), err
}

func isTrackerSupported(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
