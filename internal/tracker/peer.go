package tracker

import (
	"encoding/binary"
	"net"
	"strconv"
)

// Family of a peer address.
type Family uint8

// Peer address families.
const (
	IPv4 Family = 4
	IPv6 Family = 6
)

// Compact record sizes: address followed by a 2-byte big-endian port.
const (
	CompactPeerLen  = net.IPv4len + 2
	CompactPeer6Len = net.IPv6len + 2
)

// Peer is a connection target returned by a tracker.
// It can be built from a compact v4 record, a compact v6 record or a
// dictionary model entry; callers only use Addr and String.
type Peer struct {
	Family Family
	IP     net.IP
	Port   uint16
}

// NewPeer returns a Peer for ip and port. The family is IPv4 when ip has a
// 4-byte representation.
func NewPeer(ip net.IP, port uint16) Peer {
	if ip4 := ip.To4(); ip4 != nil {
		return Peer{Family: IPv4, IP: ip4, Port: port}
	}
	return Peer{Family: IPv6, IP: ip.To16(), Port: port}
}

// Addr returns the TCP address of the peer.
func (p Peer) Addr() *net.TCPAddr {
	return &net.TCPAddr{IP: p.IP, Port: int(p.Port)}
}

// String returns the address in "ip:port" form; IPv6 addresses are bracketed.
func (p Peer) String() string {
	return net.JoinHostPort(p.IP.String(), strconv.FormatUint(uint64(p.Port), 10))
}

// MarshalBinary returns the compact representation of the peer.
func (p Peer) MarshalBinary() ([]byte, error) {
	var ip net.IP
	if p.Family == IPv4 {
		ip = p.IP.To4()
	} else {
		ip = p.IP.To16()
	}
	b := make([]byte, len(ip)+2)
	copy(b, ip)
	binary.BigEndian.PutUint16(b[len(ip):], p.Port)
	return b, nil
}

// DecodePeersCompact parses a compact IPv4 peer list.
// The buffer is cut into 6-byte records from the start; a trailing partial
// record is dropped. The result is never nil.
func DecodePeersCompact(b []byte) []Peer {
	return decodeCompact(b, IPv4, net.IPv4len)
}

// DecodePeersCompact6 parses a compact IPv6 peer list (18-byte records).
// A trailing partial record is dropped. The result is never nil.
func DecodePeersCompact6(b []byte) []Peer {
	return decodeCompact(b, IPv6, net.IPv6len)
}

func decodeCompact(b []byte, f Family, ipLen int) []Peer {
	size := ipLen + 2
	peers := make([]Peer, 0, len(b)/size)
	for i := 0; i+size <= len(b); i += size {
		ip := make(net.IP, ipLen)
		copy(ip, b[i:i+ipLen])
		peers = append(peers, Peer{
			Family: f,
			IP:     ip,
			Port:   binary.BigEndian.Uint16(b[i+ipLen : i+size]),
		})
	}
	return peers
}
