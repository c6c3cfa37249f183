package block_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yannickperrenet/slowfs/backend/memory"
	"github.com/yannickperrenet/slowfs/block"
	"github.com/yannickperrenet/slowfs/disk"
	"github.com/yannickperrenet/slowfs/sector"
)

func newTestBlock(t *testing.T) *block.Block {
	t.Helper()
	const numSectors = block.Size / sector.Size * 2
	storage, err := memory.New(numSectors * sector.Size)
	require.NoError(t, err)
	d := disk.Open(storage, numSectors)
	return block.New(0, d)
}

func TestZeroFillOnFirstRead(t *testing.T) {
	b := newTestBlock(t)
	data, err := b.ReadSlice(0, block.Size)
	require.NoError(t, err)
	require.Equal(t, make([]byte, block.Size), data)
}

func TestWriteReadSlice(t *testing.T) {
	b := newTestBlock(t)
	payload := []byte("hello, block")
	require.NoError(t, b.Write(10, payload))

	got, err := b.ReadSlice(10, 10+len(payload))
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestWriteSpanningSectors(t *testing.T) {
	b := newTestBlock(t)
	payload := make([]byte, sector.Size+10)
	for i := range payload {
		payload[i] = byte(i % 256)
	}
	offset := sector.Size - 5
	require.NoError(t, b.Write(offset, payload))

	got, err := b.ReadSlice(offset, offset+len(payload))
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestWriteOutOfRange(t *testing.T) {
	b := newTestBlock(t)
	require.Error(t, b.Write(block.Size-1, []byte{1, 2}))
}

func TestIterate(t *testing.T) {
	b := newTestBlock(t)
	require.NoError(t, b.Write(0, []byte{9}))

	var first byte
	count := 0
	err := b.Iterate(func(i int, v byte) bool {
		if i == 0 {
			first = v
		}
		count++
		return count < 3
	})
	require.NoError(t, err)
	require.Equal(t, byte(9), first)
	require.Equal(t, 3, count)
}
