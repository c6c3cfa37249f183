// Package block implements the device-driver view of spec.md §4.3: a
// Block is a tuple of consecutive sectors forming one filesystem
// block, with byte/slice/write access layered over disk.Disk.
package block

import (
	"fmt"

	"github.com/yannickperrenet/slowfs/disk"
	"github.com/yannickperrenet/slowfs/sector"
)

// Size is the fixed filesystem block size in bytes (B_SIZE). It must
// be a multiple of sector.Size.
const Size = 4096

// sectorsPerBlock is the number of consecutive sectors making up one
// filesystem block.
const sectorsPerBlock = Size / sector.Size

func init() {
	if Size%sector.Size != 0 {
		panic("block: Size must be a multiple of sector.Size")
	}
}

// Block is identified by the id of its first sector; it spans
// sectorsPerBlock consecutive sectors on one disk.
type Block struct {
	firstSector sector.ID
	d           *disk.Disk
}

// New returns a Block view starting at firstSector on d.
func New(firstSector sector.ID, d *disk.Disk) *Block {
	return &Block{firstSector: firstSector, d: d}
}

// FirstSector returns the block's identifying first sector id.
func (b *Block) FirstSector() sector.ID { return b.firstSector }

// ReadByte returns the byte at k, 0 <= k < Size.
func (b *Block) ReadByte(k int) (byte, error) {
	if k < 0 || k >= Size {
		return 0, fmt.Errorf("block: offset %d out of range [0,%d)", k, Size)
	}
	s, res := k/sector.Size, k%sector.Size
	sec, err := b.d.ReadSector(b.firstSector + sector.ID(s))
	if err != nil {
		return 0, err
	}
	return sec.ReadByte(res)
}

// ReadSlice returns a freshly allocated copy of [start, stop), reading
// only the sectors needed. 0 <= start <= stop <= Size.
func (b *Block) ReadSlice(start, stop int) ([]byte, error) {
	if start < 0 || stop < start || stop > Size {
		return nil, fmt.Errorf("block: invalid range [%d,%d)", start, stop)
	}
	n := stop - start
	out := make([]byte, n)
	ptr := 0

	s, offset := start/sector.Size, start%sector.Size
	for ; s < sectorsPerBlock && ptr < n; s++ {
		sec, err := b.d.ReadSector(b.firstSector + sector.ID(s))
		if err != nil {
			return nil, err
		}
		size := minInt(sector.Size-offset, n-ptr)
		chunk, err := sec.ReadSlice(offset, offset+size)
		if err != nil {
			return nil, err
		}
		copy(out[ptr:ptr+size], chunk)
		ptr += size
		offset = 0
	}
	return out, nil
}

// Iterate calls fn with every byte of the block in order. It stops
// early if fn returns false.
func (b *Block) Iterate(fn func(i int, v byte) bool) error {
	for s := 0; s < sectorsPerBlock; s++ {
		sec, err := b.d.ReadSector(b.firstSector + sector.ID(s))
		if err != nil {
			return err
		}
		for i := 0; i < sector.Size; i++ {
			v, err := sec.ReadByte(i)
			if err != nil {
				return err
			}
			if !fn(s*sector.Size+i, v) {
				return nil
			}
		}
	}
	return nil
}

// Write writes value at offset. 0 <= offset+len(value) <= Size.
//
// For a sector fully covered by the write, a fresh sector is
// constructed without a pre-read; otherwise the sector is read,
// modified, and written back. Every touched sector is always
// persisted via disk.Disk.WriteSector.
func (b *Block) Write(offset int, value []byte) error {
	n := len(value)
	if offset < 0 || offset+n > Size {
		return fmt.Errorf("block: write of %d bytes at %d exceeds block size %d", n, offset, Size)
	}

	s, off := offset/sector.Size, offset%sector.Size
	ptr := 0
	for ; s < sectorsPerBlock && ptr < n; s++ {
		size := minInt(sector.Size-off, n-ptr)
		id := b.firstSector + sector.ID(s)

		var sec *sector.Sector
		if off == 0 && size == sector.Size {
			sec = sector.New(id)
		} else {
			var err error
			sec, err = b.d.ReadSector(id)
			if err != nil {
				return err
			}
		}

		if err := sec.WriteSlice(off, value[ptr:ptr+size]); err != nil {
			return err
		}
		if err := b.d.WriteSector(sec); err != nil {
			return err
		}

		ptr += size
		off = 0
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
