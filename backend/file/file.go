// Package file provides a backend.Storage backed by a real file or
// block device on the host, adapted from diskfs's backend/file.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/renameio/v2"

	"github.com/yannickperrenet/slowfs/backend"
)

type fileBackend struct {
	f        *os.File
	readOnly bool
}

var _ backend.Storage = (*fileBackend)(nil)

// Open opens an existing image at pathname for unbuffered random
// access. Pass readOnly=true for mounts that must never write back.
func Open(pathname string, readOnly bool) (backend.Storage, error) {
	if pathname == "" {
		return nil, errors.New("file: must pass a path")
	}
	if _, err := os.Stat(pathname); err != nil {
		return nil, fmt.Errorf("file: %w", err)
	}

	mode := os.O_RDONLY
	if !readOnly {
		mode = os.O_RDWR
	}
	f, err := os.OpenFile(pathname, mode, 0o600)
	if err != nil {
		return nil, fmt.Errorf("file: opening %s: %w", pathname, err)
	}
	return &fileBackend{f: f, readOnly: readOnly}, nil
}

// Create atomically creates a new image file of the given size at
// pathname; it must not already exist. The file is built in a
// temporary sibling and renamed into place (github.com/google/renameio)
// so a crash mid-mkfs never leaves a half-written image at pathname.
func Create(pathname string, size int64) (backend.Storage, error) {
	if pathname == "" {
		return nil, errors.New("file: must pass a path")
	}
	if size <= 0 {
		return nil, fmt.Errorf("file: invalid size %d", size)
	}
	if _, err := os.Stat(pathname); err == nil {
		return nil, fmt.Errorf("file: %s already exists", pathname)
	}

	t, err := renameio.TempFile("", pathname)
	if err != nil {
		return nil, fmt.Errorf("file: creating temp file for %s: %w", pathname, err)
	}
	if err := t.Truncate(size); err != nil {
		t.Cleanup()
		return nil, fmt.Errorf("file: truncating %s to %d: %w", pathname, size, err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return nil, fmt.Errorf("file: committing %s: %w", pathname, err)
	}

	f, err := os.OpenFile(pathname, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("file: reopening %s: %w", pathname, err)
	}
	return &fileBackend{f: f}, nil
}

func (b *fileBackend) ReadAt(p []byte, off int64) (int, error) {
	return b.f.ReadAt(p, off)
}

func (b *fileBackend) WriteAt(p []byte, off int64) (int, error) {
	if b.readOnly {
		return 0, fmt.Errorf("file: %s is opened read-only", b.f.Name())
	}
	return b.f.WriteAt(p, off)
}

func (b *fileBackend) Stat() (fs.FileInfo, error) {
	return b.f.Stat()
}

func (b *fileBackend) Sync() error {
	if b.readOnly {
		return nil
	}
	return b.f.Sync()
}

func (b *fileBackend) Close() error {
	return b.f.Close()
}
