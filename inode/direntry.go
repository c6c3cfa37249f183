package inode

import (
	"encoding/binary"
	"fmt"

	"github.com/yannickperrenet/slowfs/block"
	"github.com/yannickperrenet/slowfs/errno"
)

// DirEntrySize is the fixed size of one directory entry (32 bytes,
// per spec.md §3 "Directory content").
const DirEntrySize = 32

// MaxNameLen is the longest ASCII name a directory entry can hold.
const MaxNameLen = 27

// entriesPerBlock is how many 32-byte entries fit in one block.
const entriesPerBlock = block.Size / DirEntrySize

// DirEntry pairs an inode number with the ASCII name under which it
// is reachable from its parent directory.
type DirEntry struct {
	Ino  uint32
	Name string
}

// encodeDirEntry lays out ino:u32 | name_len:u8 | name[27] zero-padded.
func encodeDirEntry(ino uint32, name string) ([]byte, error) {
	if !isValidPathComponent(name) {
		return nil, errno.EINVAL
	}
	buf := make([]byte, DirEntrySize)
	binary.BigEndian.PutUint32(buf[0:4], ino)
	buf[4] = byte(len(name))
	copy(buf[5:5+len(name)], name)
	return buf, nil
}

func decodeDirEntry(buf []byte) (DirEntry, error) {
	if len(buf) != DirEntrySize {
		return DirEntry{}, fmt.Errorf("inode: directory entry must be %d bytes, got %d", DirEntrySize, len(buf))
	}
	ino := binary.BigEndian.Uint32(buf[0:4])
	nameLen := int(buf[4])
	if nameLen > MaxNameLen {
		return DirEntry{}, fmt.Errorf("inode: corrupt directory entry: name_len %d exceeds %d", nameLen, MaxNameLen)
	}
	return DirEntry{Ino: ino, Name: string(buf[5 : 5+nameLen])}, nil
}

// readDirBlock decodes every entry in b, in slot order, stopping
// (without error) at the first ino=0 sentinel — which also terminates
// the whole directory's entry stream, per spec.md §3.
func readDirBlock(b *block.Block) ([]DirEntry, bool, error) {
	raw, err := b.ReadSlice(0, block.Size)
	if err != nil {
		return nil, false, err
	}
	entries := make([]DirEntry, 0, entriesPerBlock)
	for i := 0; i < entriesPerBlock; i++ {
		e, err := decodeDirEntry(raw[i*DirEntrySize : (i+1)*DirEntrySize])
		if err != nil {
			return nil, false, err
		}
		if e.Ino == 0 {
			return entries, true, nil
		}
		entries = append(entries, e)
	}
	return entries, false, nil
}

// isValidPathComponent reports whether name is legal as a single path
// component: ASCII only, 1..MaxNameLen bytes, and never containing '/'.
func isValidPathComponent(name string) bool {
	if len(name) < 1 || len(name) > MaxNameLen {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c > 127 || c == '/' {
			return false
		}
	}
	return true
}
