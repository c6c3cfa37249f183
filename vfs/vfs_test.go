package vfs_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yannickperrenet/slowfs/backend/memory"
	"github.com/yannickperrenet/slowfs/block"
	"github.com/yannickperrenet/slowfs/disk"
	"github.com/yannickperrenet/slowfs/errno"
	"github.com/yannickperrenet/slowfs/process"
	"github.com/yannickperrenet/slowfs/sector"
	"github.com/yannickperrenet/slowfs/super"
	"github.com/yannickperrenet/slowfs/vfs"
)

func newFormattedDisk(t *testing.T, numBlocks int) *disk.Disk {
	t.Helper()
	numSectors := numBlocks * block.Size / sector.Size
	storage, err := memory.New(int64(numSectors) * sector.Size)
	require.NoError(t, err)
	d := disk.Open(storage, uint32(numSectors))
	sb, err := super.Format(d, nil)
	require.NoError(t, err)
	require.NoError(t, sb.SyncFS())
	return d
}

// scenario 1/2 from spec.md §8: basic file I/O and a file in a
// subdirectory, against one mount. While fd is still open, the next
// descriptor handed out is fd+1.
func TestBasicFileAndDirectoryScenario(t *testing.T) {
	d := newFormattedDisk(t, 40)
	v := vfs.New(nil, nil)
	require.NoError(t, v.Mount("/m", d))
	proc := process.New(8)

	fd, err := v.Open("/m/file", os.O_CREAT|os.O_RDWR, 0o644, proc)
	require.NoError(t, err)
	require.GreaterOrEqual(t, fd, 0)

	n, err := v.Write(fd, []byte("Hello world"), proc)
	require.NoError(t, err)
	require.Equal(t, 11, n)

	_, err = v.Seek(fd, 0, proc)
	require.NoError(t, err)
	buf, err := v.Read(fd, 11, proc)
	require.NoError(t, err)
	require.Equal(t, "Hello world", string(buf))

	buf, err = v.Read(fd, 2, proc)
	require.NoError(t, err)
	require.Empty(t, buf)

	require.NoError(t, v.Mkdir("/m/sub", 0o755))
	fd2, err := v.Open("/m/sub/f", os.O_CREAT|os.O_RDWR, 0o644, proc)
	require.NoError(t, err)
	require.Equal(t, fd+1, fd2)

	require.NoError(t, v.Close(fd, proc))

	_, err = v.Write(fd2, []byte("Im in a subdir"), proc)
	require.NoError(t, err)
	_, err = v.Seek(fd2, 0, proc)
	require.NoError(t, err)
	buf, err = v.Read(fd2, 15, proc)
	require.NoError(t, err)
	require.Equal(t, "Im in a subdir", string(buf))
	require.NoError(t, v.Close(fd2, proc))
}

// scenario 3 from spec.md §8: a multi-block write/read.
func TestMultiBlockWriteReadScenario(t *testing.T) {
	d := newFormattedDisk(t, 40)
	v := vfs.New(nil, nil)
	require.NoError(t, v.Mount("/m", d))
	proc := process.New(8)

	fd, err := v.Open("/m/big", os.O_CREAT|os.O_RDWR, 0o644, proc)
	require.NoError(t, err)

	payload := append(append(bytes.Repeat([]byte{'a'}, block.Size), bytes.Repeat([]byte{'b'}, block.Size)...), bytes.Repeat([]byte{'c'}, block.Size)...)
	n, err := v.Write(fd, payload, proc)
	require.NoError(t, err)
	require.Equal(t, 3*block.Size, n)

	_, err = v.Seek(fd, 0, proc)
	require.NoError(t, err)
	got, err := v.Read(fd, 3*block.Size, proc)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

// scenario 4/5/6 from spec.md §8: persistence across umount/mount
// (this test), a missing-subdirectory ENOENT, and lowest-free-slot
// descriptor reuse (the two tests after it).
func TestPersistenceAcrossUmountMount(t *testing.T) {
	d := newFormattedDisk(t, 40)
	v := vfs.New(nil, nil)
	require.NoError(t, v.Mount("/m", d))
	proc := process.New(8)

	fd, err := v.Open("/m/big", os.O_CREAT|os.O_RDWR, 0o644, proc)
	require.NoError(t, err)
	payload := bytes.Repeat([]byte{'z'}, 3*block.Size)
	_, err = v.Write(fd, payload, proc)
	require.NoError(t, err)
	require.NoError(t, v.Close(fd, proc))
	require.NoError(t, v.Umount("/m"))

	require.NoError(t, v.Mount("/m", d))
	fd, err = v.Open("/m/big", os.O_RDWR, 0, proc)
	require.NoError(t, err)
	got, err := v.Read(fd, len(payload), proc)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestMissingSubdirectoryReturnsENOENT(t *testing.T) {
	d := newFormattedDisk(t, 40)
	v := vfs.New(nil, nil)
	require.NoError(t, v.Mount("/m", d))
	proc := process.New(8)

	_, err := v.Open("/m/nonexistent/file", os.O_CREAT|os.O_RDWR, 0o644, proc)
	require.ErrorIs(t, err, errno.ENOENT)
}

func TestDescriptorReuseLowestFreeSlot(t *testing.T) {
	d := newFormattedDisk(t, 40)
	v := vfs.New(nil, nil)
	require.NoError(t, v.Mount("/m", d))
	proc := process.New(8)

	fd, err := v.Open("/m/file", os.O_CREAT|os.O_RDWR, 0o644, proc)
	require.NoError(t, err)
	require.NoError(t, v.Close(fd, proc))

	fd2, err := v.Open("/m/file", os.O_RDONLY, 0o644, proc)
	require.NoError(t, err)
	require.Equal(t, fd, fd2)
}

func TestOpenExclRejectsExistingFile(t *testing.T) {
	d := newFormattedDisk(t, 40)
	v := vfs.New(nil, nil)
	require.NoError(t, v.Mount("/m", d))
	proc := process.New(8)

	fd, err := v.Open("/m/file", os.O_CREAT|os.O_RDWR, 0o644, proc)
	require.NoError(t, err)
	require.NoError(t, v.Close(fd, proc))

	_, err = v.Open("/m/file", os.O_CREAT|os.O_EXCL|os.O_RDWR, 0o644, proc)
	require.ErrorIs(t, err, errno.EEXIST)
}

func TestOpenTruncateResetsExistingFile(t *testing.T) {
	d := newFormattedDisk(t, 40)
	v := vfs.New(nil, nil)
	require.NoError(t, v.Mount("/m", d))
	proc := process.New(8)

	fd, err := v.Open("/m/file", os.O_CREAT|os.O_RDWR, 0o644, proc)
	require.NoError(t, err)
	_, err = v.Write(fd, []byte("some content"), proc)
	require.NoError(t, err)
	require.NoError(t, v.Close(fd, proc))

	fd2, err := v.Open("/m/file", os.O_TRUNC|os.O_RDWR, 0o644, proc)
	require.NoError(t, err)
	require.EqualValues(t, 0, proc.OFT[fd2].Inode.ISize)
	require.Empty(t, proc.OFT[fd2].Inode.Blocks)
}

func TestOpenEMFILEWhenTableFull(t *testing.T) {
	d := newFormattedDisk(t, 40)
	v := vfs.New(nil, nil)
	require.NoError(t, v.Mount("/m", d))
	proc := process.New(1)

	_, err := v.Open("/m/a", os.O_CREAT|os.O_RDWR, 0o644, proc)
	require.NoError(t, err)
	_, err = v.Open("/m/b", os.O_CREAT|os.O_RDWR, 0o644, proc)
	require.ErrorIs(t, err, errno.EMFILE)
}

func TestCloseBadDescriptor(t *testing.T) {
	d := newFormattedDisk(t, 40)
	v := vfs.New(nil, nil)
	require.NoError(t, v.Mount("/m", d))
	proc := process.New(4)

	require.ErrorIs(t, v.Close(2, proc), errno.EBADF)
}

func TestPathnameOutsideAnyMountIsENODEV(t *testing.T) {
	v := vfs.New(nil, nil)
	proc := process.New(4)
	_, err := v.Open("/nowhere/file", os.O_RDONLY, 0, proc)
	require.ErrorIs(t, err, errno.ENODEV)
}

func TestMkdirOnExistingPathIsEEXIST(t *testing.T) {
	d := newFormattedDisk(t, 40)
	v := vfs.New(nil, nil)
	require.NoError(t, v.Mount("/m", d))
	require.ErrorIs(t, v.Mkdir("/m", 0o755), errno.EEXIST)
}

func TestUmountUnknownMountpointFails(t *testing.T) {
	v := vfs.New(nil, nil)
	require.Error(t, v.Umount("/m"))
}

func TestSysfsListsSortedMounts(t *testing.T) {
	v := vfs.New(nil, nil)
	require.NoError(t, v.Mount("/b", newFormattedDisk(t, 20)))
	require.NoError(t, v.Mount("/a", newFormattedDisk(t, 20)))

	mounts := v.Sysfs()
	require.Len(t, mounts, 2)
	require.Equal(t, "/a", mounts[0].Mountpoint)
	require.Equal(t, "/b", mounts[1].Mountpoint)
}
