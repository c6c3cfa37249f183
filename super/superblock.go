// Package super implements the on-disk root of a slowfs filesystem:
// the superblock, its inode/data-block bitmaps, inode and data zones,
// and the in-memory inode cache, per spec.md §4.6.
package super

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yannickperrenet/slowfs/bitmap"
	"github.com/yannickperrenet/slowfs/block"
	"github.com/yannickperrenet/slowfs/disk"
	"github.com/yannickperrenet/slowfs/errno"
	"github.com/yannickperrenet/slowfs/inode"
	"github.com/yannickperrenet/slowfs/sector"
)

// FSType is the magic byte identifying a formatted slowfs image
// (block 0, byte 0).
const FSType byte = 137

// metadataBlocks is the fixed number of leading blocks reserved for
// the superblock itself, the inode bitmap, and the data bitmap.
const metadataBlocks = 3

const sectorsPerBlock = block.Size / sector.Size

// SuperBlock is the root of the on-disk layout: blocks 0..2 hold
// metadata, followed by the inode zone and the data zone.
type SuperBlock struct {
	d      *disk.Disk
	blocks []*block.Block

	izone []*block.Block
	dzone []*block.Block

	imap *bitmap.Bitmap
	dmap *bitmap.Bitmap

	inodes map[uint32]*inode.Inode
	root   *inode.Inode

	volumeID uuid.UUID

	log logrus.FieldLogger
}

var _ inode.Store = (*SuperBlock)(nil)

func withLog(log logrus.FieldLogger) logrus.FieldLogger {
	if log == nil {
		return logrus.StandardLogger()
	}
	return log
}

// Format initializes a fresh slowfs filesystem on d: an empty imap and
// dmap, inode 0 reserved, and a root directory inode. log may be nil.
func Format(d *disk.Disk, log logrus.FieldLogger) (*SuperBlock, error) {
	log = withLog(log)

	sb, err := newSuperBlock(d, log)
	if err != nil {
		return nil, err
	}

	sb.imap = bitmap.New(block.Size)
	sb.dmap = bitmap.New(block.Size)
	sb.volumeID = uuid.New()

	// Reserve inode 0: ino=0 is the "absent" sentinel in directory
	// entries, so it must never be handed out as a real file.
	if err := sb.imap.Alloc(0); err != nil {
		return nil, fmt.Errorf("super: reserving inode 0: %w", err)
	}

	root, err := sb.AllocInode()
	if err != nil {
		return nil, fmt.Errorf("super: allocating root inode: %w", err)
	}
	root.PIno = int64(root.Ino)
	if err := root.Mkdir(0o755); err != nil {
		return nil, fmt.Errorf("super: formatting root directory: %w", err)
	}
	sb.root = root
	sb.inodes[root.Ino] = root

	log.WithFields(logrus.Fields{
		"num_blocks": len(sb.blocks),
		"izone_size": len(sb.izone),
		"dzone_size": len(sb.dzone),
		"volume_id":  sb.volumeID,
	}).Info("formatted slowfs filesystem")

	return sb, nil
}

// Open loads an existing slowfs filesystem from d. It fails if block
// 0 byte 0 does not hold the fs_type magic.
func Open(d *disk.Disk, log logrus.FieldLogger) (*SuperBlock, error) {
	log = withLog(log)

	sb, err := newSuperBlock(d, log)
	if err != nil {
		return nil, err
	}

	magic, err := sb.blocks[0].ReadByte(0)
	if err != nil {
		return nil, err
	}
	if magic != FSType {
		return nil, fmt.Errorf("super: disk does not contain a slowfs(%d) filesystem (got magic %d)", FSType, magic)
	}

	idBytes, err := sb.blocks[0].ReadSlice(1, 17)
	if err != nil {
		return nil, err
	}
	if id, err := uuid.FromBytes(idBytes); err == nil {
		sb.volumeID = id
	}

	imapBytes, err := sb.blocks[1].ReadSlice(0, block.Size)
	if err != nil {
		return nil, err
	}
	sb.imap = bitmap.FromBytes(imapBytes)

	dmapBytes, err := sb.blocks[2].ReadSlice(0, block.Size)
	if err != nil {
		return nil, err
	}
	sb.dmap = bitmap.FromBytes(dmapBytes)

	var loadErr error
	sb.imap.Iter(func(i int) bool {
		if i == 0 {
			return true
		}
		in, err := sb.ReadInodeFromDisk(uint32(i))
		if err != nil {
			loadErr = err
			return false
		}
		sb.inodes[in.Ino] = in
		return true
	})
	if loadErr != nil {
		return nil, loadErr
	}

	root, err := sb.readInodeSlot(0, 1)
	if err != nil {
		return nil, err
	}
	sb.root = root
	sb.inodes[root.Ino] = root

	log.WithFields(logrus.Fields{
		"num_blocks": len(sb.blocks),
		"num_inodes": len(sb.inodes),
		"volume_id":  sb.volumeID,
	}).Info("mounted slowfs filesystem")

	return sb, nil
}

func newSuperBlock(d *disk.Disk, log logrus.FieldLogger) (*SuperBlock, error) {
	numBlocks := int(d.NumSectors()) / sectorsPerBlock
	if numBlocks < 5 {
		return nil, fmt.Errorf("super: disk too small to fit filesystem (%d blocks, need >= 5)", numBlocks)
	}

	blocks := make([]*block.Block, numBlocks)
	for i := 0; i < numBlocks; i++ {
		blocks[i] = block.New(sector.ID(i*sectorsPerBlock), d)
	}

	n := numBlocks - metadataBlocks
	izoneSize := n / 3
	if izoneSize < 1 {
		izoneSize = 1
	}

	return &SuperBlock{
		d:      d,
		blocks: blocks,
		izone:  blocks[metadataBlocks : metadataBlocks+izoneSize],
		dzone:  blocks[metadataBlocks+izoneSize:],
		inodes: make(map[uint32]*inode.Inode),
		log:    log,
	}, nil
}

// Root returns the root directory inode.
func (sb *SuperBlock) Root() *inode.Inode { return sb.root }

// VolumeID returns the filesystem instance identifier written at
// format time.
func (sb *SuperBlock) VolumeID() uuid.UUID { return sb.volumeID }

// Lookup resolves pathname against this filesystem.
func (sb *SuperBlock) Lookup(pathname string) (int, *inode.Inode, error) {
	return inode.Lookup(pathname, sb.root, sb)
}

const inodesPerBlock = block.Size / inode.Size

// AllocInode allocates a fresh inode, returning errno.EDQUOT if the
// inode table is exhausted (imap full, or every izone slot is used).
func (sb *SuperBlock) AllocInode() (*inode.Inode, error) {
	i := sb.imap.NextFree()
	if i == -1 || i >= len(sb.izone)*inodesPerBlock {
		return nil, errno.EDQUOT
	}
	if err := sb.imap.Alloc(i); err != nil {
		return nil, err
	}
	in := inode.New(sb, uint32(i))
	sb.inodes[in.Ino] = in
	return in, nil
}

// WriteInode persists one inode record into its slot in the inode
// zone.
func (sb *SuperBlock) WriteInode(in *inode.Inode) error {
	b, offset := int(in.Ino)/inodesPerBlock, (int(in.Ino)%inodesPerBlock)*inode.Size
	if b >= len(sb.izone) {
		return fmt.Errorf("super: inode %d out of izone range", in.Ino)
	}
	return sb.izone[b].Write(offset, in.Bytes())
}

// ReadInodeFromDisk deserializes the inode at slot ino directly from
// the inode zone, bypassing the cache.
func (sb *SuperBlock) ReadInodeFromDisk(ino uint32) (*inode.Inode, error) {
	b := int(ino) / inodesPerBlock
	slot := int(ino) % inodesPerBlock
	return sb.readInodeSlot(b, slot)
}

func (sb *SuperBlock) readInodeSlot(b, slot int) (*inode.Inode, error) {
	if b >= len(sb.izone) {
		return nil, fmt.Errorf("super: inode zone block %d out of range", b)
	}
	raw, err := sb.izone[b].ReadSlice(slot*inode.Size, (slot+1)*inode.Size)
	if err != nil {
		return nil, err
	}
	return inode.FromBytes(raw, sb)
}

// CachedInode returns the in-memory inode for ino, if present.
func (sb *SuperBlock) CachedInode(ino uint32) (*inode.Inode, bool) {
	in, ok := sb.inodes[ino]
	return in, ok
}

// AllocDataBlocks allocates count data blocks, zero-filling each so no
// stale directory/file content is ever observed on first read. On
// partial success it rolls every bit back and returns errno.ENOSPC.
func (sb *SuperBlock) AllocDataBlocks(count int) ([]inode.DataBlockRef, error) {
	refs := make([]inode.DataBlockRef, 0, count)
	for n := 0; n < count; n++ {
		i := sb.dmap.NextFree()
		if i == -1 || i >= len(sb.dzone) {
			break
		}
		if err := sb.dmap.Alloc(i); err != nil {
			break
		}
		refs = append(refs, inode.DataBlockRef{ID: int32(i), Block: sb.dzone[i]})
	}

	if len(refs) != count {
		for _, r := range refs {
			_ = sb.dmap.Free(int(r.ID))
		}
		return nil, errno.ENOSPC
	}

	zero := make([]byte, block.Size)
	for _, r := range refs {
		if err := r.Block.Write(0, zero); err != nil {
			return nil, err
		}
	}
	return refs, nil
}

// DeallocDataBlocks frees the dmap bits for refs. It does not clear
// the block bytes themselves.
func (sb *SuperBlock) DeallocDataBlocks(refs []inode.DataBlockRef) {
	for _, r := range refs {
		_ = sb.dmap.Free(int(r.ID))
	}
}

// DataBlockByID resolves a data-zone slot id to its Block view.
func (sb *SuperBlock) DataBlockByID(id int32) (*block.Block, error) {
	if id < 0 || int(id) >= len(sb.dzone) {
		return nil, fmt.Errorf("super: data block id %d out of range", id)
	}
	return sb.dzone[id], nil
}

// SyncFS writes fs_type, the volume id, the serialized imap/dmap, and
// every cached inode. This is the only durability boundary; callers
// must invoke it at umount (spec.md §4.6, §5).
func (sb *SuperBlock) SyncFS() error {
	if err := sb.blocks[0].Write(0, []byte{FSType}); err != nil {
		return err
	}
	if id, err := sb.volumeID.MarshalBinary(); err == nil {
		if err := sb.blocks[0].Write(1, id); err != nil {
			return err
		}
	}
	if err := sb.blocks[1].Write(0, sb.imap.Bytes()); err != nil {
		return err
	}
	if err := sb.blocks[2].Write(0, sb.dmap.Bytes()); err != nil {
		return err
	}
	for _, in := range sb.inodes {
		if err := sb.WriteInode(in); err != nil {
			return err
		}
	}

	sb.log.WithField("num_inodes", len(sb.inodes)).Debug("synced slowfs filesystem to disk")
	return sb.d.Sync()
}
