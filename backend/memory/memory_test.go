package memory_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yannickperrenet/slowfs/backend/memory"
)

func TestZeroFilledOnCreate(t *testing.T) {
	b, err := memory.New(16)
	require.NoError(t, err)
	buf := make([]byte, 16)
	_, err = b.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 16), buf)
}

func TestWriteReadAtRoundTrip(t *testing.T) {
	b, err := memory.New(16)
	require.NoError(t, err)

	_, err = b.WriteAt([]byte("abcd"), 4)
	require.NoError(t, err)

	got := make([]byte, 4)
	_, err = b.ReadAt(got, 4)
	require.NoError(t, err)
	require.Equal(t, "abcd", string(got))
}

func TestWriteAtRejectsOutOfRange(t *testing.T) {
	b, err := memory.New(8)
	require.NoError(t, err)
	_, err = b.WriteAt([]byte("toolong!!"), 0)
	require.Error(t, err)
}

func TestInvalidSize(t *testing.T) {
	_, err := memory.New(0)
	require.Error(t, err)
}
