package sector_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yannickperrenet/slowfs/sector"
)

func TestWriteReadRoundTrip(t *testing.T) {
	s := sector.New(7)
	data := make([]byte, sector.Size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, s.WriteSlice(0, data))
	require.Equal(t, data, s.Bytes())
}

func TestFromBytesRejectsWrongSize(t *testing.T) {
	_, err := sector.FromBytes(0, make([]byte, sector.Size-1))
	require.Error(t, err)
}

func TestEqual(t *testing.T) {
	a, err := sector.FromBytes(1, make([]byte, sector.Size))
	require.NoError(t, err)
	b, err := sector.FromBytes(1, make([]byte, sector.Size))
	require.NoError(t, err)
	require.True(t, a.Equal(b))

	require.NoError(t, a.WriteByte(0, 1))
	require.False(t, a.Equal(b))
}

func TestReadWriteByteBounds(t *testing.T) {
	s := sector.New(0)
	_, err := s.ReadByte(sector.Size)
	require.Error(t, err)
	require.Error(t, s.WriteByte(-1, 0))
}
