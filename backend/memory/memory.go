// Package memory provides an in-memory backend.Storage, so unit tests
// can format and mount a slowfs image without touching a temp file.
package memory

import (
	"fmt"
	"io"
	"io/fs"
	"sync"
	"time"

	"github.com/orcaman/writerseeker"

	"github.com/yannickperrenet/slowfs/backend"
)

type memBackend struct {
	mu   sync.Mutex
	ws   writerseeker.WriterSeeker
	size int64
}

var _ backend.Storage = (*memBackend)(nil)

// New returns a backend.Storage of size bytes, zero-filled, entirely
// in memory.
func New(size int64) (backend.Storage, error) {
	if size <= 0 {
		return nil, fmt.Errorf("memory: invalid size %d", size)
	}
	b := &memBackend{size: size}
	zero := make([]byte, size)
	if _, err := b.ws.Write(zero); err != nil {
		return nil, fmt.Errorf("memory: zero-filling: %w", err)
	}
	return b, nil
}

func (b *memBackend) ReadAt(p []byte, off int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if off < 0 || off >= b.size {
		return 0, fmt.Errorf("memory: offset %d out of range", off)
	}
	return b.ws.BytesReader().ReadAt(p, off)
}

func (b *memBackend) WriteAt(p []byte, off int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if off < 0 || off+int64(len(p)) > b.size {
		return 0, fmt.Errorf("memory: write of %d bytes at %d exceeds size %d", len(p), off, b.size)
	}
	if _, err := b.ws.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return b.ws.Write(p)
}

func (b *memBackend) Stat() (fs.FileInfo, error) {
	return memFileInfo{size: b.size}, nil
}

func (b *memBackend) Sync() error { return nil }

func (b *memBackend) Close() error { return nil }

type memFileInfo struct {
	size int64
}

func (i memFileInfo) Name() string       { return "slowfs-memory-disk" }
func (i memFileInfo) Size() int64        { return i.size }
func (i memFileInfo) Mode() fs.FileMode  { return 0o600 }
func (i memFileInfo) ModTime() time.Time { return time.Time{} }
func (i memFileInfo) IsDir() bool        { return false }
func (i memFileInfo) Sys() any           { return nil }
