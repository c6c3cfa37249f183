// Package sector implements the smallest atomic read/write unit the
// slowfs block device exposes, per spec.md §3/§4.1.
package sector

import "fmt"

// Size is the fixed sector size in bytes (S_SIZE).
const Size = 512

// ID identifies a sector on a disk.
type ID uint32

// Sector is a fixed-size in-memory buffer addressed by sector id. Its
// length is always exactly Size; callers can only overwrite in place,
// never resize it.
type Sector struct {
	id   ID
	data [Size]byte
}

// New returns a zero-filled sector for id.
func New(id ID) *Sector {
	return &Sector{id: id}
}

// FromBytes returns a sector for id whose content is a copy of b. b
// must be exactly Size bytes.
func FromBytes(id ID, b []byte) (*Sector, error) {
	if len(b) != Size {
		return nil, fmt.Errorf("sector: got %d bytes, want %d", len(b), Size)
	}
	s := New(id)
	copy(s.data[:], b)
	return s, nil
}

// ID returns the sector's identity.
func (s *Sector) ID() ID { return s.id }

// Bytes returns a copy of the sector's full contents.
func (s *Sector) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, s.data[:])
	return b
}

// ReadByte returns the byte at offset. offset must be < Size.
func (s *Sector) ReadByte(offset int) (byte, error) {
	if offset < 0 || offset >= Size {
		return 0, fmt.Errorf("sector: offset %d out of range [0,%d)", offset, Size)
	}
	return s.data[offset], nil
}

// ReadSlice returns a copy of data in [start, stop). 0 <= start <= stop <= Size.
func (s *Sector) ReadSlice(start, stop int) ([]byte, error) {
	if start < 0 || stop < start || stop > Size {
		return nil, fmt.Errorf("sector: invalid range [%d,%d)", start, stop)
	}
	out := make([]byte, stop-start)
	copy(out, s.data[start:stop])
	return out, nil
}

// WriteByte overwrites the byte at offset.
func (s *Sector) WriteByte(offset int, v byte) error {
	if offset < 0 || offset >= Size {
		return fmt.Errorf("sector: offset %d out of range [0,%d)", offset, Size)
	}
	s.data[offset] = v
	return nil
}

// WriteSlice overwrites [offset, offset+len(b)) in place. It never
// resizes the sector: offset+len(b) must not exceed Size.
func (s *Sector) WriteSlice(offset int, b []byte) error {
	if offset < 0 || offset+len(b) > Size {
		return fmt.Errorf("sector: write of %d bytes at %d exceeds sector size %d", len(b), offset, Size)
	}
	copy(s.data[offset:offset+len(b)], b)
	return nil
}

// Equal reports whether s and other have the same id and content.
func (s *Sector) Equal(other *Sector) bool {
	if other == nil {
		return false
	}
	return s.id == other.id && s.data == other.data
}
