package btconn

import (
	"errors"
	"io"
)

// HandshakeSize is the length of the handshake message on the wire.
const HandshakeSize = 68

// Protocol is the protocol identifier sent after the length prefix.
const Protocol = "BitTorrent protocol"

var pstr = [20]byte{19, 'B', 'i', 't', 'T', 'o', 'r', 'r', 'e', 'n', 't', ' ', 'p', 'r', 'o', 't', 'o', 'c', 'o', 'l'}

var errHandshakeSize = errors.New("handshake must be 68 bytes")

// Handshake is the first message exchanged on a peer connection.
//
//	offset  size  field
//	     0     1  0x13
//	     1    19  "BitTorrent protocol"
//	    20     8  extensions (reserved)
//	    28    20  info hash
//	    48    20  peer id
type Handshake struct {
	Extensions [8]byte
	InfoHash   [20]byte
	PeerID     [20]byte

	// first 20 bytes as received
	header [20]byte
}

// NewHandshake returns a handshake with all reserved bytes set to zero.
func NewHandshake(infoHash, peerID [20]byte) *Handshake {
	return &Handshake{InfoHash: infoHash, PeerID: peerID, header: pstr}
}

// StandardHeader reports whether the handshake started with 0x13 "BitTorrent protocol".
// Only the info hash decides whether a handshake is accepted,
// a different header is tolerated.
func (h *Handshake) StandardHeader() bool {
	return h.header == pstr
}

// Compatible reports whether both handshakes are for the same torrent.
func (h *Handshake) Compatible(o *Handshake) bool {
	return h.InfoHash == o.InfoHash
}

// MarshalBinary returns the 68-byte wire form.
func (h *Handshake) MarshalBinary() ([]byte, error) {
	b := make([]byte, HandshakeSize)
	copy(b[0:20], pstr[:])
	copy(b[20:28], h.Extensions[:])
	copy(b[28:48], h.InfoHash[:])
	copy(b[48:68], h.PeerID[:])
	return b, nil
}

// UnmarshalBinary parses the 68-byte wire form.
// The protocol header is not validated, see StandardHeader.
func (h *Handshake) UnmarshalBinary(b []byte) error {
	if len(b) != HandshakeSize {
		return errHandshakeSize
	}
	copy(h.header[:], b[0:20])
	copy(h.Extensions[:], b[20:28])
	copy(h.InfoHash[:], b[28:48])
	copy(h.PeerID[:], b[48:68])
	return nil
}

// WriteTo writes the handshake in a single write.
func (h *Handshake) WriteTo(w io.Writer) (int64, error) {
	b, _ := h.MarshalBinary()
	n, err := w.Write(b)
	return int64(n), err
}

// ReadHandshake reads exactly HandshakeSize bytes from r and parses them.
// Fewer bytes, including a closed stream, is ErrShortRead.
func ReadHandshake(r io.Reader) (*Handshake, error) {
	b := make([]byte, HandshakeSize)
	if _, err := io.ReadFull(r, b); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrShortRead
		}
		return nil, err
	}
	h := new(Handshake)
	if err := h.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return h, nil
}
