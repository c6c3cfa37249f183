// Package ofile implements the open-file object of spec.md §4.7: an
// entry in a process's open-file table, mediating read/write/seek
// against a cached inode with a current offset and open flags.
package ofile

import (
	"os"

	"github.com/yannickperrenet/slowfs/block"
	"github.com/yannickperrenet/slowfs/errno"
	"github.com/yannickperrenet/slowfs/inode"
)

// Persister is the subset of SuperBlock a File needs: writing its
// inode back out immediately after every mutation, since slowfs has
// no page cache to defer that to (spec.md §4.7).
type Persister interface {
	WriteInode(*inode.Inode) error
}

// File is an entry in the Open File Table: a cached inode, a current
// byte offset, and the flags it was opened with.
type File struct {
	Inode  *inode.Inode
	Offset int64
	Flags  int

	sb Persister
}

// New returns a File over in, opened with flags, backed by sb for
// inode write-back.
func New(in *inode.Inode, flags int, sb Persister) *File {
	return &File{Inode: in, Flags: flags, sb: sb}
}

// Seek repositions the file offset. Unlike lseek(2), slowfs never
// allows seeking past i_size: there is no notion of a hole.
func (f *File) Seek(offset int64) (int64, error) {
	if inode.IsDir(f.Inode.Mode) {
		return 0, errno.EISDIR
	}
	if offset > int64(f.Inode.ISize) {
		return 0, errno.ENXIO
	}
	f.Offset = offset
	return f.Offset, nil
}

// Read reads up to count bytes from the file at the current offset,
// advancing it. If the offset is at or past i_size, it returns zero
// bytes (no error).
func (f *File) Read(count int) ([]byte, error) {
	if inode.IsDir(f.Inode.Mode) {
		return nil, errno.EISDIR
	}
	if f.Flags&os.O_WRONLY != 0 {
		return nil, errno.EBADF
	}

	avail := int64(f.Inode.ISize) - f.Offset
	toRead := int64(count)
	if avail < toRead {
		toRead = avail
	}
	if toRead < 0 {
		toRead = 0
	}

	buf := make([]byte, toRead)
	ptr := int64(0)
	for ptr < toRead {
		b, bOffset := int(f.Offset/block.Size), int(f.Offset%block.Size)
		size := int64(block.Size - bOffset)
		if remaining := toRead - ptr; size > remaining {
			size = remaining
		}

		chunk, err := f.Inode.Blocks[b].Block.ReadSlice(bOffset, bOffset+int(size))
		if err != nil {
			return nil, err
		}
		copy(buf[ptr:ptr+size], chunk)

		f.Offset += size
		ptr += size
	}
	return buf, nil
}

// Write writes buf at the current offset (or at i_size first, if
// O_APPEND is set), growing the inode's block list as needed. On
// failure no byte is written: allocation happens before any Block.Write
// call, per spec.md §4.7's all-or-nothing guarantee.
func (f *File) Write(buf []byte) (int, error) {
	if inode.IsDir(f.Inode.Mode) {
		return 0, errno.EISDIR
	}
	if f.Flags&(os.O_WRONLY|os.O_RDWR) == 0 {
		return 0, errno.EBADF
	}

	if f.Flags&os.O_APPEND != 0 {
		f.Offset = int64(f.Inode.ISize)
	}

	n := int64(len(buf))
	avail := int64(f.Inode.ISize) - f.Offset
	if n > avail {
		need := ceilDiv(n-avail, block.Size)
		if err := f.Inode.AllocDBlocks(need); err != nil {
			return 0, err
		}
	}

	ptr := int64(0)
	for ptr < n {
		b, bOffset := int(f.Offset/block.Size), int(f.Offset%block.Size)
		size := int64(block.Size - bOffset)
		if remaining := n - ptr; size > remaining {
			size = remaining
		}

		if err := f.Inode.Blocks[b].Block.Write(bOffset, buf[ptr:ptr+size]); err != nil {
			return 0, err
		}

		f.Offset += size
		ptr += size
	}

	if uint32(f.Offset) > f.Inode.ISize {
		f.Inode.ISize = uint32(f.Offset)
	}

	if err := f.sb.WriteInode(f.Inode); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Flush is a no-op: there is no buffering layer to drain, since every
// Write already reaches the block device.
func (f *File) Flush() error { return nil }

// Close flushes f and persists its inode, per spec.md §4.8's close().
func (f *File) Close() error {
	if err := f.Flush(); err != nil {
		return err
	}
	return f.sb.WriteInode(f.Inode)
}

func ceilDiv(a, b int64) int {
	return int((a + b - 1) / b)
}
