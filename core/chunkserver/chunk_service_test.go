package chunkserver

import (
	"os"
	"testing"

	"github.com/pyropy/chunkfs/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestGetChunkDir(t *testing.T) {
	cases := map[string]string{
		"/a":       "a",
		"/a/b/c":   "a:b:c",
		"/a:b":     "a%3Ab",
		"/a%b":     "a%25b",
		"/":        "%2F",
		"":         "%2F",
		"/.":       "%2E",
		"/..":      "%2E%2E",
		"/dir/.":   "dir:.",
		"/%2F":     "%252F",
		"/a%3Ab/c": "a%253Ab:c",
	}

	for path, want := range cases {
		assert.Equal(t, want, GetChunkDir(path), path)
	}

	assert.NotEqual(t, GetChunkDir("/a/b"), GetChunkDir("/a:b"))
	assert.NotEqual(t, GetChunkDir("/"), GetChunkDir("/%2F"))
}

func newTestChunkService(t *testing.T, chunkSize uint64) *ChunkService {
	t.Helper()

	cs, err := NewChunkService(t.TempDir(), chunkSize)
	require.NoError(t, err)

	return cs
}

func TestChunkServiceWriteAndRead(t *testing.T) {
	cs := newTestChunkService(t, 16)

	n, err := cs.WriteChunk("/f", 2, []byte("hello"), 4)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	info, err := os.Stat(cs.GetChunkPath("/f", 2))
	require.NoError(t, err)
	assert.Equal(t, int64(9), info.Size())

	// the dir already exists now
	_, err = cs.WriteChunk("/f", 3, []byte("x"), 0)
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err = cs.ReadChunk("/f", 2, buf, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), buf[:n])

	n, err = cs.ReadChunk("/f", 2, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, append(make([]byte, 4), []byte("hello")...), buf[:n])
}

func TestChunkServiceReadMissingChunkIsHole(t *testing.T) {
	cs := newTestChunkService(t, 16)

	n, err := cs.ReadChunk("/nothing", 0, make([]byte, 16), 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChunkServiceWritePastChunkSize(t *testing.T) {
	cs := newTestChunkService(t, 8)

	_, err := cs.WriteChunk("/f", 0, []byte("abcd"), 6)
	assert.ErrorIs(t, err, unix.EINVAL)

	_, err = os.Stat(cs.GetChunkPath("/f", 0))
	assert.True(t, os.IsNotExist(err))
}

func TestChunkServiceTruncateAndTrim(t *testing.T) {
	cs := newTestChunkService(t, 8)

	for id := model.ChunkID(0); id < 4; id++ {
		_, err := cs.WriteChunk("/f", id, []byte("abcdefgh"), 0)
		require.NoError(t, err)
	}

	require.NoError(t, cs.TruncateChunk("/f", 1, 3))
	require.NoError(t, cs.TruncateChunk("/f", 9, 3))
	require.NoError(t, cs.TrimChunkSpace("/f", 2))

	info, err := os.Stat(cs.GetChunkPath("/f", 1))
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Size())

	for _, id := range []model.ChunkID{2, 3} {
		_, err := os.Stat(cs.GetChunkPath("/f", id))
		assert.True(t, os.IsNotExist(err), "chunk %d", id)
	}

	_, err = os.Stat(cs.GetChunkPath("/f", 0))
	assert.NoError(t, err)

	require.NoError(t, cs.TrimChunkSpace("/missing", 0))
}

func TestChunkServiceDestroyChunkSpace(t *testing.T) {
	cs := newTestChunkService(t, 8)

	_, err := cs.WriteChunk("/a/b", 0, []byte("x"), 0)
	require.NoError(t, err)
	_, err = cs.WriteChunk("/a:b", 0, []byte("y"), 0)
	require.NoError(t, err)

	require.NoError(t, cs.DestroyChunkSpace("/a/b"))

	n, err := cs.ReadChunk("/a/b", 0, make([]byte, 1), 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	buf := make([]byte, 1)
	n, err = cs.ReadChunk("/a:b", 0, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []byte("y"), buf)

	require.NoError(t, cs.DestroyChunkSpace("/never-written"))
}

func TestChunkServiceChunkStat(t *testing.T) {
	cs := newTestChunkService(t, 4096)

	stat, err := cs.ChunkStat()
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), stat.ChunkSize)
	assert.NotZero(t, stat.ChunkTotal)
	assert.LessOrEqual(t, stat.ChunkFree, stat.ChunkTotal)
}
