package super_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yannickperrenet/slowfs/backend/memory"
	"github.com/yannickperrenet/slowfs/block"
	"github.com/yannickperrenet/slowfs/disk"
	"github.com/yannickperrenet/slowfs/errno"
	"github.com/yannickperrenet/slowfs/inode"
	"github.com/yannickperrenet/slowfs/sector"
	"github.com/yannickperrenet/slowfs/super"
)

func newDisk(t *testing.T, numBlocks int) *disk.Disk {
	t.Helper()
	numSectors := numBlocks * block.Size / sector.Size
	storage, err := memory.New(int64(numSectors) * sector.Size)
	require.NoError(t, err)
	return disk.Open(storage, uint32(numSectors))
}

func TestFormatReservesInodeZero(t *testing.T) {
	sb, err := super.Format(newDisk(t, 20), nil)
	require.NoError(t, err)
	require.NotZero(t, sb.Root().Ino)

	for i := 0; i < 5; i++ {
		in, err := sb.AllocInode()
		require.NoError(t, err)
		require.NotZero(t, in.Ino)
	}
}

func TestFormatRootIsADirectory(t *testing.T) {
	sb, err := super.Format(newDisk(t, 20), nil)
	require.NoError(t, err)
	require.NotNil(t, sb.Root())
	require.True(t, inode.IsDir(sb.Root().Mode))
	require.EqualValues(t, sb.Root().Ino, sb.Root().PIno)
}

func TestOpenRejectsUnformattedDisk(t *testing.T) {
	_, err := super.Open(newDisk(t, 20), nil)
	require.Error(t, err)
}

func TestSyncFSThenOpenRoundTrip(t *testing.T) {
	d := newDisk(t, 20)
	sb, err := super.Format(d, nil)
	require.NoError(t, err)
	wantVolumeID := sb.VolumeID()
	require.NoError(t, sb.SyncFS())

	reopened, err := super.Open(d, nil)
	require.NoError(t, err)
	require.Equal(t, wantVolumeID, reopened.VolumeID())
	require.Equal(t, sb.Root().Ino, reopened.Root().Ino)
}

func TestAllocDataBlocksZeroFillsAndDeallocFrees(t *testing.T) {
	sb, err := super.Format(newDisk(t, 20), nil)
	require.NoError(t, err)

	refs, err := sb.AllocDataBlocks(2)
	require.NoError(t, err)
	require.Len(t, refs, 2)

	data, err := refs[0].Block.ReadSlice(0, block.Size)
	require.NoError(t, err)
	require.Equal(t, make([]byte, block.Size), data)

	sb.DeallocDataBlocks(refs)
	refs2, err := sb.AllocDataBlocks(2)
	require.NoError(t, err)
	require.ElementsMatch(t, []int32{refs[0].ID, refs[1].ID}, []int32{refs2[0].ID, refs2[1].ID})
}

func TestAllocDataBlocksPartialFailureRollsBack(t *testing.T) {
	// 8 blocks: a 4-block data zone, one block of which holds the root
	// directory, leaving 3 free.
	sb, err := super.Format(newDisk(t, 8), nil)
	require.NoError(t, err)

	// Request one more than remains: the 3 blocks taken along the way
	// are freed again and the whole request fails.
	_, err = sb.AllocDataBlocks(4)
	require.ErrorIs(t, err, errno.ENOSPC)

	refs, err := sb.AllocDataBlocks(3)
	require.NoError(t, err)
	require.Len(t, refs, 3)
}
