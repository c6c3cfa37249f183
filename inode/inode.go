// Package inode implements the fixed-width inode record of spec.md
// §3/§4.5: file/directory metadata, its 256-byte serialization, and
// directory-entry operations.
package inode

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/yannickperrenet/slowfs/block"
	"github.com/yannickperrenet/slowfs/errno"
)

// Size is the fixed serialized size of one inode record (INODE_SIZE).
const Size = 256

// MaxDataBlocks is the largest number of data-block ids an inode can
// hold (_MAX_DBLOCKS), dictated by Size: (256 - 5*4)/4 = 59.
const MaxDataBlocks = 59

// freeBlockID is the sentinel value for an unused block_ids slot.
// Negative so it can never collide with a real (non-negative) data
// zone index.
const freeBlockID int32 = -1

// Mode bits, per POSIX inode(7): file type occupies the high bits,
// permissions the low 9.
const (
	ModeTypeMask uint32 = 0o170000
	ModeDir      uint32 = 0o040000
	ModeReg      uint32 = 0o100000
	ModePermMask uint32 = 0o000777
)

func init() {
	if 5*4+MaxDataBlocks*4 != Size {
		panic("inode: layout does not add up to Size")
	}
}

// IsDir reports whether mode describes a directory.
func IsDir(mode uint32) bool { return mode&ModeTypeMask == ModeDir }

// IsReg reports whether mode describes a regular file.
func IsReg(mode uint32) bool { return mode&ModeTypeMask == ModeReg }

// DataBlockRef pairs a data-zone slot id with the Block view over it.
type DataBlockRef struct {
	ID    int32
	Block *block.Block
}

// Store is the superblock-shaped dependency an Inode needs: data
// block allocation, resolving a raw id back to a Block, and the
// inode cache/disk lookup used while resolving pathnames. Defined
// here (rather than imported from package super) so inode does not
// depend on super — super depends on inode and satisfies this
// interface structurally.
type Store interface {
	AllocDataBlocks(count int) ([]DataBlockRef, error)
	DeallocDataBlocks(refs []DataBlockRef)
	DataBlockByID(id int32) (*block.Block, error)
	CachedInode(ino uint32) (*Inode, bool)
	ReadInodeFromDisk(ino uint32) (*Inode, error)
}

// Inode describes a file or directory: type/mode, user-visible size,
// parent linkage, and the ordered list of data blocks backing it.
type Inode struct {
	store Store

	Ino       uint32
	Mode      uint32
	ISize     uint32
	NumFInDir uint32
	// PIno is -1 until Create (or deserialization, or the caller
	// directly) assigns it; Mkdir requires it to be set already.
	// The root inode is its own parent (PIno == int64(Ino)).
	PIno   int64
	Blocks []DataBlockRef
}

// New returns a bare inode with number ino, backed by store. Callers
// still need to call Create or Mkdir (or set fields directly when
// deserializing) before the inode is usable.
func New(store Store, ino uint32) *Inode {
	return &Inode{store: store, Ino: ino, PIno: -1}
}

// Bytes serializes the inode to its fixed 256-byte on-disk layout.
// It panics if PIno is unset or the block list exceeds MaxDataBlocks
// — both are programmer errors, per spec.md §4.5/§7.
func (i *Inode) Bytes() []byte {
	if i.PIno < 0 {
		panic("inode: serializing an inode with unset p_ino")
	}
	if len(i.Blocks) > MaxDataBlocks {
		panic(fmt.Sprintf("inode: %d data blocks exceeds max %d", len(i.Blocks), MaxDataBlocks))
	}

	buf := make([]byte, Size)
	binary.BigEndian.PutUint32(buf[0:4], i.Ino)
	binary.BigEndian.PutUint32(buf[4:8], i.Mode)
	binary.BigEndian.PutUint32(buf[8:12], i.ISize)
	binary.BigEndian.PutUint32(buf[12:16], i.NumFInDir)
	binary.BigEndian.PutUint32(buf[16:20], uint32(i.PIno))

	off := 20
	for slot := 0; slot < MaxDataBlocks; slot++ {
		id := freeBlockID
		if slot < len(i.Blocks) {
			id = i.Blocks[slot].ID
		}
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(id))
		off += 4
	}
	return buf
}

// FromBytes deserializes an inode record. block_ids equal to the free
// sentinel are dropped; the remaining ids are resolved against store.
func FromBytes(buf []byte, store Store) (*Inode, error) {
	if len(buf) != Size {
		return nil, fmt.Errorf("inode: record must be %d bytes, got %d", Size, len(buf))
	}

	ino := binary.BigEndian.Uint32(buf[0:4])
	mode := binary.BigEndian.Uint32(buf[4:8])
	isize := binary.BigEndian.Uint32(buf[8:12])
	numF := binary.BigEndian.Uint32(buf[12:16])
	pino := int64(int32(binary.BigEndian.Uint32(buf[16:20])))

	var blocks []DataBlockRef
	off := 20
	for slot := 0; slot < MaxDataBlocks; slot++ {
		id := int32(binary.BigEndian.Uint32(buf[off : off+4]))
		off += 4
		if id == freeBlockID {
			continue
		}
		b, err := store.DataBlockByID(id)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, DataBlockRef{ID: id, Block: b})
	}

	return &Inode{
		store:     store,
		Ino:       ino,
		Mode:      mode,
		ISize:     isize,
		NumFInDir: numF,
		PIno:      pino,
		Blocks:    blocks,
	}, nil
}

// Create turns the receiver into a regular file with the given POSIX
// mode. If parent is non-nil, it becomes the inode's parent;
// otherwise PIno must already be set. Panics if the receiver is
// already a directory (spec.md §4.5 "Requires the receiver is not
// already a directory").
func (i *Inode) Create(parent *Inode, mode uint32) {
	if IsDir(i.Mode) {
		panic("inode: can't turn an existing directory inode into a regular file")
	}
	if parent == nil && i.PIno < 0 {
		panic("inode: parent inode must be known to link a new inode to it")
	}
	if parent != nil {
		i.PIno = int64(parent.Ino)
	}
	i.Mode = ModeReg | (mode & ModePermMask)
}

// Mkdir turns the receiver into a directory: allocates one data
// block, sets i_size, and populates "." and ".." entries. Panics if
// the receiver is already a regular file or has no parent set.
func (i *Inode) Mkdir(mode uint32) error {
	if IsReg(i.Mode) {
		panic("inode: can't turn an existing regular-file inode into a directory")
	}
	if i.PIno < 0 {
		panic("inode: parent inode (p_ino) must be set before mkdir")
	}

	refs, err := i.store.AllocDataBlocks(1)
	if err != nil {
		return errno.ENOSPC
	}
	i.Blocks = append(i.Blocks, refs...)
	i.Mode = ModeDir | (mode & ModePermMask)
	i.ISize = block.Size

	if err := i.AddDirEntry(".", i); err != nil {
		return err
	}
	parent, ok := i.store.CachedInode(uint32(i.PIno))
	if !ok {
		parent, err = i.store.ReadInodeFromDisk(uint32(i.PIno))
		if err != nil {
			return err
		}
	}
	return i.AddDirEntry("..", parent)
}

// AddDirEntry appends one 32-byte entry for target, named name, at
// slot NumFInDir, allocating another directory block first if needed.
func (i *Inode) AddDirEntry(name string, target *Inode) error {
	if !IsDir(i.Mode) {
		panic("inode: AddDirEntry called on a non-directory")
	}

	entryBytes, err := encodeDirEntry(target.Ino, name)
	if err != nil {
		return err
	}

	b, offset := int(i.NumFInDir)*DirEntrySize/block.Size, int(i.NumFInDir)*DirEntrySize%block.Size
	if b >= len(i.Blocks) {
		if err := i.AllocDBlocks(1); err != nil {
			return err
		}
	}

	if err := i.Blocks[b].Block.Write(offset, entryBytes); err != nil {
		return err
	}
	i.NumFInDir++
	return nil
}

// AllocDBlocks requests count new data blocks from the superblock and
// appends them to the inode's block list. Directory inodes grow
// i_size by count*block.Size.
func (i *Inode) AllocDBlocks(count int) error {
	if count > MaxDataBlocks-len(i.Blocks) {
		return errno.ENOSPC
	}
	refs, err := i.store.AllocDataBlocks(count)
	if err != nil {
		return errno.ENOSPC
	}
	i.Blocks = append(i.Blocks, refs...)
	if IsDir(i.Mode) {
		i.ISize += uint32(count) * block.Size
	}
	return nil
}

// Lookup resolves pathname against the filesystem rooted at root,
// per spec.md §4.5. The returned status is one of
// errno.StatusFound/StatusNoEntry/StatusNoAncestor, or a negative
// errno (errno.ENODEV, errno.EINVAL) for hard errors.
func Lookup(pathname string, root *Inode, store Store) (int, *Inode, error) {
	if !strings.HasPrefix(pathname, "/") {
		return int(errno.ENODEV), root, nil
	}
	if pathname == "/" {
		return errno.StatusFound, root, nil
	}

	components := strings.Split(strings.TrimPrefix(pathname, "/"), "/")
	for _, c := range components {
		if !isValidPathComponent(c) {
			return int(errno.EINVAL), root, nil
		}
	}

	current := root
	for idx, component := range components {
		found, nextIno, err := findInDirectory(current, component, store)
		if err != nil {
			return 0, nil, err
		}
		if !found {
			if idx+1 == len(components) {
				return errno.StatusNoEntry, current, nil
			}
			return errno.StatusNoAncestor, current, nil
		}

		next, ok := store.CachedInode(nextIno)
		if !ok {
			next, err = store.ReadInodeFromDisk(nextIno)
			if err != nil {
				return 0, nil, err
			}
		}
		current = next
	}
	return errno.StatusFound, current, nil
}

func findInDirectory(dir *Inode, name string, store Store) (bool, uint32, error) {
	for _, ref := range dir.Blocks {
		entries, terminated, err := readDirBlock(ref.Block)
		if err != nil {
			return false, 0, err
		}
		for _, e := range entries {
			if e.Name == name {
				return true, e.Ino, nil
			}
		}
		if terminated {
			break
		}
	}
	return false, 0, nil
}
