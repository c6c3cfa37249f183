// Package vfs implements the mount table of spec.md §4.8: a map from
// absolute mountpoint to SuperBlock, and the syscall-shaped entry
// points (open/close/read/write/seek/mkdir/mount/umount/sysfs) that
// resolve a pathname to the right mount before delegating.
package vfs

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yannickperrenet/slowfs/disk"
	"github.com/yannickperrenet/slowfs/errno"
	"github.com/yannickperrenet/slowfs/inode"
	"github.com/yannickperrenet/slowfs/internal/metrics"
	"github.com/yannickperrenet/slowfs/ofile"
	"github.com/yannickperrenet/slowfs/process"
	"github.com/yannickperrenet/slowfs/super"
)

// VFS is the single entry point a host program drives: it owns the
// mount table and serializes every operation behind one mutex, per
// spec.md §5's single-mutex-per-mount requirement (here, one mutex
// covers the whole table since mounts are rarely disjoint in time).
type VFS struct {
	mu      sync.Mutex
	mounts  map[string]*super.SuperBlock
	log     logrus.FieldLogger
	metrics *metrics.Recorder
}

// MountInfo is one row of Sysfs output.
type MountInfo struct {
	Mountpoint string
	VolumeID   uuid.UUID
}

func withLog(log logrus.FieldLogger) logrus.FieldLogger {
	if log == nil {
		return logrus.StandardLogger()
	}
	return log
}

// New returns an empty VFS. log and rec may both be nil.
func New(log logrus.FieldLogger, rec *metrics.Recorder) *VFS {
	return &VFS{
		mounts:  make(map[string]*super.SuperBlock),
		log:     withLog(log),
		metrics: rec,
	}
}

// Mount opens d's filesystem (must already be formatted) and attaches
// it at mountpoint. Fails if the mountpoint is already taken.
func (v *VFS) Mount(mountpoint string, d *disk.Disk) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.mounts[mountpoint]; ok {
		return fmt.Errorf("vfs: %s is already mounted", mountpoint)
	}
	sb, err := super.Open(d, v.log)
	if err != nil {
		return err
	}
	v.mounts[mountpoint] = sb
	v.log.WithField("mountpoint", mountpoint).Info("mounted filesystem")
	return nil
}

// Umount flushes mountpoint's superblock to disk and detaches it.
// Fails if mountpoint is not mounted.
func (v *VFS) Umount(mountpoint string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	sb, ok := v.mounts[mountpoint]
	if !ok {
		return fmt.Errorf("vfs: %s is not mounted", mountpoint)
	}
	if err := sb.SyncFS(); err != nil {
		return err
	}
	delete(v.mounts, mountpoint)
	v.log.WithField("mountpoint", mountpoint).Info("unmounted filesystem")
	return nil
}

// Sysfs lists every current mount, sorted by mountpoint.
func (v *VFS) Sysfs() []MountInfo {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]MountInfo, 0, len(v.mounts))
	for mp, sb := range v.mounts {
		out = append(out, MountInfo{Mountpoint: mp, VolumeID: sb.VolumeID()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mountpoint < out[j].Mountpoint })
	return out
}

// getSuperblock selects the superblock mounted at the longest
// mountpoint prefix of pathname, and returns pathname with that
// prefix stripped (restoring "/" if stripping leaves it empty).
func (v *VFS) getSuperblock(pathname string) (*super.SuperBlock, string, error) {
	var best string
	for mp := range v.mounts {
		if strings.HasPrefix(pathname, mp) && len(mp) > len(best) {
			best = mp
		}
	}
	if best == "" {
		return nil, "", errno.ENODEV
	}
	local := strings.TrimPrefix(pathname, best)
	if local == "" {
		local = "/"
	}
	return v.mounts[best], local, nil
}

// Open resolves pathname, optionally creating it, and installs a File
// in the lowest free slot of proc's open-file table, per the error
// grid of spec.md §4.8.
func (v *VFS) Open(pathname string, flags int, mode uint32, proc *process.Process) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	sb, local, err := v.getSuperblock(pathname)
	if err != nil {
		return -1, v.fail("open", err)
	}

	if flags&os.O_CREAT != 0 && inode.IsDir(mode) {
		return -1, v.fail("open", errno.EINVAL)
	}
	if inode.IsReg(mode) && strings.HasSuffix(pathname, "/") {
		return -1, v.fail("open", errno.EINVAL)
	}

	status, resolved, err := sb.Lookup(local)
	if err != nil {
		return -1, v.fail("open", err)
	}

	var in *inode.Inode
	switch status {
	case errno.StatusFound:
		if flags&os.O_CREAT != 0 && flags&os.O_EXCL != 0 {
			return -1, v.fail("open", errno.EEXIST)
		}
		in = resolved
	case errno.StatusNoEntry:
		if flags&os.O_CREAT == 0 {
			return -1, v.fail("open", errno.ENOENT)
		}
		newIn, err := sb.AllocInode()
		if err != nil {
			return -1, v.fail("open", err)
		}
		newIn.Create(resolved, mode)
		if err := resolved.AddDirEntry(path.Base(local), newIn); err != nil {
			return -1, v.fail("open", err)
		}
		in = newIn
	case errno.StatusNoAncestor:
		return -1, v.fail("open", errno.ENOENT)
	default:
		return -1, v.fail("open", errno.Errno(status))
	}

	if flags&os.O_TRUNC != 0 && flags&(os.O_WRONLY|os.O_RDWR) != 0 && inode.IsReg(in.Mode) {
		sb.DeallocDataBlocks(in.Blocks)
		in.Blocks = nil
		in.ISize = 0
	}

	fd := -1
	for i, f := range proc.OFT {
		if f == nil {
			fd = i
			break
		}
	}
	if fd == -1 {
		return -1, v.fail("open", errno.EMFILE)
	}

	proc.OFT[fd] = ofile.New(in, flags, sb)
	v.metrics.FileOpened()
	return fd, v.ok("open")
}

// Close flushes and persists the file at fd, then frees the slot.
func (v *VFS) Close(fd int, proc *process.Process) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	f, err := v.slot(proc, fd)
	if err != nil {
		return v.fail("close", err)
	}
	if err := f.Close(); err != nil {
		return v.fail("close", err)
	}
	proc.OFT[fd] = nil
	v.metrics.FileClosed()
	return v.ok("close")
}

// Read delegates to the File at fd.
func (v *VFS) Read(fd, count int, proc *process.Process) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	f, err := v.slot(proc, fd)
	if err != nil {
		return nil, v.fail("read", err)
	}
	buf, err := f.Read(count)
	if err != nil {
		return nil, v.fail("read", err)
	}
	v.metrics.Bytes("read", len(buf))
	return buf, v.ok("read")
}

// Write delegates to the File at fd.
func (v *VFS) Write(fd int, buf []byte, proc *process.Process) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	f, err := v.slot(proc, fd)
	if err != nil {
		return 0, v.fail("write", err)
	}
	n, err := f.Write(buf)
	if err != nil {
		return 0, v.fail("write", err)
	}
	v.metrics.Bytes("write", n)
	return n, v.ok("write")
}

// Seek delegates to the File at fd.
func (v *VFS) Seek(fd int, offset int64, proc *process.Process) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	f, err := v.slot(proc, fd)
	if err != nil {
		return 0, v.fail("seek", err)
	}
	n, err := f.Seek(offset)
	if err != nil {
		return 0, v.fail("seek", err)
	}
	return n, v.ok("seek")
}

// Mkdir resolves pathname's parent, allocates a directory inode, and
// links it into the parent, per spec.md §4.8.
func (v *VFS) Mkdir(pathname string, mode uint32) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	sb, local, err := v.getSuperblock(pathname)
	if err != nil {
		return v.fail("mkdir", err)
	}

	status, parent, err := sb.Lookup(local)
	if err != nil {
		return v.fail("mkdir", err)
	}

	switch status {
	case errno.StatusFound:
		return v.fail("mkdir", errno.EEXIST)
	case errno.StatusNoAncestor:
		return v.fail("mkdir", errno.ENOENT)
	case errno.StatusNoEntry:
		// proceed
	default:
		return v.fail("mkdir", errno.Errno(status))
	}

	newIn, err := sb.AllocInode()
	if err != nil {
		return v.fail("mkdir", err)
	}
	newIn.PIno = int64(parent.Ino)
	if err := newIn.Mkdir(mode); err != nil {
		return v.fail("mkdir", err)
	}
	if err := parent.AddDirEntry(path.Base(local), newIn); err != nil {
		return v.fail("mkdir", err)
	}
	return v.ok("mkdir")
}

func (v *VFS) slot(proc *process.Process, fd int) (*ofile.File, error) {
	if fd < 0 || fd >= len(proc.OFT) || proc.OFT[fd] == nil {
		return nil, errno.EBADF
	}
	return proc.OFT[fd], nil
}

func (v *VFS) ok(op string) error {
	v.metrics.Op(op, "ok")
	return nil
}

func (v *VFS) fail(op string, err error) error {
	name := errno.Name(err)
	v.metrics.Op(op, name)
	v.log.WithFields(logrus.Fields{"op": op, "err": name}).Debug("vfs operation failed")
	return err
}
