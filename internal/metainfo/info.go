package metainfo

import (
	"bytes"
	"crypto/sha1" // nolint: gosec
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zeebo/bencode"
)

var (
	// ErrMalformedMetainfo is returned when a torrent description does not
	// have the required shape or cannot be re-encoded faithfully.
	ErrMalformedMetainfo = errors.New("malformed metainfo")
	// ErrIndexOutOfRange is returned when a piece index is past the end of the pieces string.
	ErrIndexOutOfRange = errors.New("piece index out of range")
)

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedMetainfo, fmt.Sprintf(format, args...))
}

// Info contains information about torrent.
type Info struct {
	Name        string
	PieceLength uint32
	Pieces      []byte
	Length      int64      // Single File Mode
	Files       []FileDict // Multiple File mode

	// Keys of the info dictionary that are not modeled above (private, md5sum, ...).
	// They are kept verbatim because they are part of the info hash.
	Extra map[string]bencode.RawMessage
}

// FileDict is one entry of the files list in multiple file mode.
type FileDict struct {
	Length int64
	Path   []string
	Extra  map[string]bencode.RawMessage
}

// NewInfo returns info from bencoded bytes in b.
// The bytes must be the canonical encoding of the dictionary, otherwise the
// info hash computed from the parsed value would not match the one other
// peers compute and ErrMalformedMetainfo is returned.
func NewInfo(b []byte) (*Info, error) {
	var d map[string]bencode.RawMessage
	if len(b) == 0 || b[0] != 'd' {
		return nil, malformed("info is not a dictionary")
	}
	if err := bencode.DecodeBytes(b, &d); err != nil {
		return nil, malformed("cannot decode info: %s", err)
	}
	var i Info
	if err := i.fromDict(d); err != nil {
		return nil, err
	}
	if err := i.Validate(); err != nil {
		return nil, err
	}
	enc, err := i.Encode()
	if err != nil {
		return nil, malformed("cannot encode info: %s", err)
	}
	if !bytes.Equal(enc, b) {
		return nil, malformed("info dictionary is not canonically encoded")
	}
	return &i, nil
}

func (i *Info) fromDict(d map[string]bencode.RawMessage) error {
	var hasLength, hasFiles bool
	for key, raw := range d {
		var err error
		switch key {
		case "name":
			err = bencode.DecodeBytes(raw, &i.Name)
		case "piece length":
			var n int64
			err = bencode.DecodeBytes(raw, &n)
			if err == nil && (n <= 0 || n > int64(^uint32(0))) {
				return malformed("invalid piece length: %d", n)
			}
			i.PieceLength = uint32(n)
		case "pieces":
			var s string
			err = bencode.DecodeBytes(raw, &s)
			i.Pieces = []byte(s)
		case "length":
			hasLength = true
			err = bencode.DecodeBytes(raw, &i.Length)
		case "files":
			hasFiles = true
			i.Files, err = decodeFiles(raw)
		default:
			if i.Extra == nil {
				i.Extra = make(map[string]bencode.RawMessage)
			}
			i.Extra[key] = raw
			continue
		}
		if err != nil {
			return malformed("invalid %q field: %s", key, err)
		}
	}
	for _, key := range []string{"name", "piece length", "pieces"} {
		if _, ok := d[key]; !ok {
			return malformed("missing %q field", key)
		}
	}
	if hasLength == hasFiles {
		return malformed("exactly one of \"length\" and \"files\" must be present")
	}
	if hasFiles && len(i.Files) == 0 {
		return malformed("empty \"files\" list")
	}
	return nil
}

func decodeFiles(raw bencode.RawMessage) ([]FileDict, error) {
	var list []map[string]bencode.RawMessage
	if err := bencode.DecodeBytes(raw, &list); err != nil {
		return nil, err
	}
	files := make([]FileDict, 0, len(list))
	for n, d := range list {
		var f FileDict
		lengthRaw, ok := d["length"]
		if !ok {
			return nil, fmt.Errorf("file #%d has no length", n)
		}
		if err := bencode.DecodeBytes(lengthRaw, &f.Length); err != nil {
			return nil, fmt.Errorf("file #%d: %s", n, err)
		}
		pathRaw, ok := d["path"]
		if !ok {
			return nil, fmt.Errorf("file #%d has no path", n)
		}
		if err := bencode.DecodeBytes(pathRaw, &f.Path); err != nil {
			return nil, fmt.Errorf("file #%d: %s", n, err)
		}
		for key, v := range d {
			if key == "length" || key == "path" {
				continue
			}
			if f.Extra == nil {
				f.Extra = make(map[string]bencode.RawMessage)
			}
			f.Extra[key] = v
		}
		files = append(files, f)
	}
	return files, nil
}

// Validate checks the invariants of the info dictionary.
func (i *Info) Validate() error {
	if i.PieceLength == 0 {
		return malformed("piece length must be positive")
	}
	if len(i.Pieces)%sha1.Size != 0 {
		return malformed("pieces length %d is not a multiple of %d", len(i.Pieces), sha1.Size)
	}
	if i.Length < 0 {
		return malformed("negative length")
	}
	for n, f := range i.Files {
		if len(f.Path) == 0 {
			return malformed("file #%d has an empty path", n)
		}
		if f.Length < 0 {
			return malformed("file #%d has a negative length", n)
		}
		// ".." is not allowed in file names
		for _, p := range f.Path {
			if strings.TrimSpace(p) == ".." {
				return malformed("invalid file name: %q", filepath.Join(f.Path...))
			}
		}
	}
	return nil
}

// Encode returns the canonical bencoding of the info dictionary:
// keys sorted, integers in minimal form.
func (i *Info) Encode() ([]byte, error) {
	d := make(map[string]bencode.RawMessage, len(i.Extra)+5)
	for k, v := range i.Extra {
		d[k] = v
	}
	put := func(key string, v interface{}) error {
		b, err := bencode.EncodeBytes(v)
		if err != nil {
			return fmt.Errorf("cannot encode %q: %w", key, err)
		}
		d[key] = b
		return nil
	}
	if err := put("name", i.Name); err != nil {
		return nil, err
	}
	if err := put("piece length", int64(i.PieceLength)); err != nil {
		return nil, err
	}
	if err := put("pieces", string(i.Pieces)); err != nil {
		return nil, err
	}
	if i.MultiFile() {
		files := make([]bencode.RawMessage, len(i.Files))
		for n, f := range i.Files {
			b, err := f.encode()
			if err != nil {
				return nil, err
			}
			files[n] = b
		}
		if err := put("files", files); err != nil {
			return nil, err
		}
	} else {
		if err := put("length", i.Length); err != nil {
			return nil, err
		}
	}
	return bencode.EncodeBytes(d)
}

func (f FileDict) encode() ([]byte, error) {
	d := make(map[string]bencode.RawMessage, len(f.Extra)+2)
	for k, v := range f.Extra {
		d[k] = v
	}
	length, err := bencode.EncodeBytes(f.Length)
	if err != nil {
		return nil, err
	}
	path, err := bencode.EncodeBytes(f.Path)
	if err != nil {
		return nil, err
	}
	d["length"] = length
	d["path"] = path
	return bencode.EncodeBytes(d)
}

// Hash returns the info hash: SHA-1 of the canonical encoding of the info dictionary.
func (i *Info) Hash() ([20]byte, error) {
	var h [20]byte
	b, err := i.Encode()
	if err != nil {
		return h, malformed("cannot encode info: %s", err)
	}
	h = sha1.Sum(b) // nolint: gosec
	return h, nil
}

// MultiFile reports whether the torrent is in multiple file mode.
func (i *Info) MultiFile() bool {
	return len(i.Files) != 0
}

// NumPieces returns the number of piece hashes in the info.
func (i *Info) NumPieces() uint32 {
	return uint32(len(i.Pieces) / sha1.Size)
}

// PieceHash returns the 20-byte hash of the piece at index.
func (i *Info) PieceHash(index uint32) ([]byte, error) {
	begin := uint64(index) * sha1.Size
	end := begin + sha1.Size
	if end > uint64(len(i.Pieces)) {
		return nil, fmt.Errorf("%w: %d (torrent has %d pieces)", ErrIndexOutOfRange, index, i.NumPieces())
	}
	return i.Pieces[begin:end], nil
}

// TotalLength returns the sum of all file lengths.
func (i *Info) TotalLength() int64 {
	if !i.MultiFile() {
		return i.Length
	}
	var total int64
	for _, f := range i.Files {
		total += f.Length
	}
	return total
}

// GetFiles returns the files in torrent as a slice, even if there is a single file.
func (i *Info) GetFiles() []FileDict {
	if i.MultiFile() {
		return i.Files
	}
	return []FileDict{{Length: i.Length, Path: []string{i.Name}}}
}
