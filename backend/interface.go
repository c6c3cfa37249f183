// Package backend abstracts the byte-addressable storage medium a
// disk.Disk reads and writes sectors against, so the same sector/
// block/bitmap/inode/superblock stack can run against a real file
// (backend/file) or an in-memory buffer (backend/memory) for tests.
package backend

import (
	"io"
	"io/fs"
)

// Storage is the minimal random-access byte store a disk.Disk needs.
// Unlike a page-cached filesystem, every Write is expected to reach the
// medium before it returns: slowfs has no page cache (spec.md §1).
type Storage interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Stat() (fs.FileInfo, error)
	// Sync flushes any OS-level buffering. For an in-memory backend
	// this is a no-op.
	Sync() error
}
