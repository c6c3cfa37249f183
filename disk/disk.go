// Package disk implements the file-backed block device of spec.md
// §4.2: a Disk exposes whole-sector read/write over a backend.Storage.
package disk

import (
	"errors"
	"fmt"

	"github.com/yannickperrenet/slowfs/backend"
	"github.com/yannickperrenet/slowfs/sector"
)

// ErrOutOfRange is returned when a sector id is not in [0, NumSectors()).
var ErrOutOfRange = errors.New("disk: sector does not exist on this disk")

// Disk is a pathname-backed byte array of configured size, sliced into
// sector.Size chunks. Bytes beyond NumSectors()*sector.Size are
// invisible to every caller.
type Disk struct {
	storage    backend.Storage
	numSectors uint32
}

// Open wraps storage as a Disk with numSectors addressable sectors.
// The caller is responsible for sizing storage to at least
// numSectors*sector.Size bytes beforehand.
func Open(storage backend.Storage, numSectors uint32) *Disk {
	return &Disk{storage: storage, numSectors: numSectors}
}

// NumSectors returns the number of addressable sectors 0..NumSectors()-1.
func (d *Disk) NumSectors() uint32 { return d.numSectors }

// ReadSector reads sector id into memory.
func (d *Disk) ReadSector(id sector.ID) (*sector.Sector, error) {
	if uint32(id) >= d.numSectors {
		return nil, fmt.Errorf("disk: sector %d: %w", id, ErrOutOfRange)
	}
	buf := make([]byte, sector.Size)
	if _, err := d.storage.ReadAt(buf, int64(id)*sector.Size); err != nil {
		return nil, fmt.Errorf("disk: reading sector %d: %w", id, err)
	}
	return sector.FromBytes(id, buf)
}

// WriteSector writes s to its addressed location on disk. Disks
// expect data in entire sectors, matching real hardware: the Sector
// type (sector.Size, fixed) is the only way to produce a write.
func (d *Disk) WriteSector(s *sector.Sector) error {
	if uint32(s.ID()) >= d.numSectors {
		return fmt.Errorf("disk: sector %d: %w", s.ID(), ErrOutOfRange)
	}
	if _, err := d.storage.WriteAt(s.Bytes(), int64(s.ID())*sector.Size); err != nil {
		return fmt.Errorf("disk: writing sector %d: %w", s.ID(), err)
	}
	return nil
}

// Sync flushes the backing storage. Since slowfs has no page cache,
// every WriteSector already reaches the backend; Sync only matters for
// OS-level buffering the backend itself may still be doing.
func (d *Disk) Sync() error {
	return d.storage.Sync()
}

// Close releases the backing storage.
func (d *Disk) Close() error {
	return d.storage.Close()
}
