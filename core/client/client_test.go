package client

import (
	"context"
	"math/rand"
	"testing"

	"github.com/pyropy/chunkfs/core/bulk"
	"github.com/pyropy/chunkfs/core/chunkserver"
	"github.com/pyropy/chunkfs/core/distributor"
	"github.com/pyropy/chunkfs/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testChunkSize = 64

type cluster struct {
	client  *Client
	servers []*chunkserver.ChunkServer
}

func newCluster(t *testing.T, hosts uint32, withStore bool) *cluster {
	t.Helper()

	log := zap.NewNop().Sugar()
	registry := bulk.NewRegistry("")

	servers := make([]*chunkserver.ChunkServer, hosts)
	dataServers := make([]DataServer, hosts)
	for i := range servers {
		var cfg chunkserver.Config
		cfg.Chunks.Dir = t.TempDir()
		cfg.Chunks.Size = testChunkSize
		cfg.Hosts.ID = uint32(i)
		cfg.Hosts.Size = hosts
		cfg.IO.Workers = 2
		cfg.Bulk.MaxRequestSize = 1 << 20
		cfg.Distributor.Kind = distributor.KindHash

		store, err := chunkserver.NewChunkService(cfg.Chunks.Dir, cfg.Chunks.Size)
		require.NoError(t, err)

		cs, err := chunkserver.NewChunkServer(&cfg, store, registry, log, nil)
		require.NoError(t, err)
		t.Cleanup(cs.Shutdown)

		servers[i] = cs
		dataServers[i] = Local(cs)
	}

	d, err := distributor.New(distributor.KindHash, 0, hosts, 0)
	require.NoError(t, err)

	var files *FileMetadataStore
	if withStore {
		files, err = NewFileMetadataStore(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = files.Close() })
	}

	c, err := NewClient(dataServers, d, testChunkSize, registry, files, log)
	require.NoError(t, err)

	return &cluster{client: c, servers: servers}
}

func randomBytes(n int) []byte {
	data := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(data)
	return data
}

func TestNewClientChecksHostCount(t *testing.T) {
	d, err := distributor.New(distributor.KindHash, 0, 3, 0)
	require.NoError(t, err)

	_, err = NewClient(make([]DataServer, 2), d, testChunkSize, bulk.NewRegistry(""), nil, zap.NewNop().Sugar())
	assert.ErrorIs(t, err, ErrHostCountMismatch)
}

func TestClientRoundTripAcrossHosts(t *testing.T) {
	c := newCluster(t, 3, false).client
	ctx := context.Background()

	cases := []struct {
		name   string
		offset uint64
		size   int
	}{
		{"one byte", 0, 1},
		{"one chunk", 0, testChunkSize},
		{"one chunk unaligned", 10, testChunkSize},
		{"many chunks", 0, 5*testChunkSize + 3},
		{"many chunks unaligned", 100, 7*testChunkSize + 17},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := "/round/" + tc.name
			data := randomBytes(tc.size)

			n, err := c.WriteFile(ctx, path, data, tc.offset)
			require.NoError(t, err)
			assert.Equal(t, uint64(tc.size), n)

			out := make([]byte, tc.size)
			n, err = c.ReadFile(ctx, path, out, tc.offset)
			require.NoError(t, err)
			assert.Equal(t, uint64(tc.size), n)
			assert.Equal(t, data, out)
		})
	}

	assert.Zero(t, c.Bulk.Len())
}

func TestClientChunksSpreadOverHosts(t *testing.T) {
	c := newCluster(t, 3, false).client

	reqs := c.split("/spread", 0, 32*testChunkSize, c.Bulk.Expose(nil, bulk.ReadOnly))
	assert.Len(t, reqs, 3)

	var chunks, total uint64
	for host, args := range reqs {
		assert.Equal(t, uint32(host), args.HostID)
		assert.Equal(t, uint32(3), args.HostSize)
		chunks += args.ChunkN
		total += args.TotalSize
	}

	assert.Equal(t, uint64(32), chunks)
	assert.Equal(t, uint64(32*testChunkSize), total)
}

func TestClientFileSizeAndHoles(t *testing.T) {
	c := newCluster(t, 2, true).client
	ctx := context.Background()

	data := randomBytes(20)
	_, err := c.WriteFile(ctx, "/sparse", data, 3*testChunkSize)
	require.NoError(t, err)

	file, err := c.Get(ctx, "/sparse")
	require.NoError(t, err)
	assert.Equal(t, uint64(3*testChunkSize+20), file.Size)

	out := make([]byte, 10*testChunkSize)
	n, err := c.ReadFile(ctx, "/sparse", out, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3*testChunkSize+20), n)
	assert.Equal(t, make([]byte, 3*testChunkSize), out[:3*testChunkSize])
	assert.Equal(t, data, out[3*testChunkSize:n])

	n, err = c.ReadFile(ctx, "/sparse", out, 4*testChunkSize)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = c.ReadFile(ctx, "/missing", out, 0)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestClientTruncate(t *testing.T) {
	c := newCluster(t, 3, true).client
	ctx := context.Background()

	data := randomBytes(6 * testChunkSize)
	_, err := c.WriteFile(ctx, "/trunc", data, 0)
	require.NoError(t, err)

	require.NoError(t, c.Truncate(ctx, "/trunc", 2*testChunkSize+5))

	file, err := c.Get(ctx, "/trunc")
	require.NoError(t, err)
	assert.Equal(t, uint64(2*testChunkSize+5), file.Size)

	// grow the size again without data so the trimmed range becomes a hole
	_, err = c.UpdateSize(ctx, "/trunc", 6*testChunkSize, false)
	require.NoError(t, err)

	out := make([]byte, 6*testChunkSize)
	n, err := c.ReadFile(ctx, "/trunc", out, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(6*testChunkSize), n)
	assert.Equal(t, data[:2*testChunkSize+5], out[:2*testChunkSize+5])
	assert.Equal(t, make([]byte, 4*testChunkSize-5), out[2*testChunkSize+5:])
}

func TestClientRemove(t *testing.T) {
	c := newCluster(t, 2, true).client
	ctx := context.Background()

	_, err := c.WriteFile(ctx, "/rm", randomBytes(3*testChunkSize), 0)
	require.NoError(t, err)

	require.NoError(t, c.Remove(ctx, "/rm"))

	exists, err := c.CheckFileExists(ctx, "/rm")
	require.NoError(t, err)
	assert.False(t, exists)

	c.FileMetadataStore = nil
	out := make([]byte, 3*testChunkSize)
	n, err := c.ReadFile(ctx, "/rm", out, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClientChunkStat(t *testing.T) {
	c := newCluster(t, 2, false).client

	stat, err := c.ChunkStat(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(testChunkSize), stat.ChunkSize)
	assert.NotZero(t, stat.ChunkTotal)
}

func TestFileMetadataStore(t *testing.T) {
	store, err := NewFileMetadataStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	_, err = store.Get(ctx, "/a")
	assert.ErrorIs(t, err, ErrFileNotFound)

	require.NoError(t, store.AddNewFileMetadata(ctx, "/a", model.NewFileMetadata("/a")))

	file, err := store.UpdateSize(ctx, "/a", 100, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), file.Size)

	file, err = store.UpdateSize(ctx, "/a", 50, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), file.Size)

	file, err = store.UpdateSize(ctx, "/a", 50, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), file.Size)

	_, err = store.UpdateSize(ctx, "/b/c", 7, true)
	require.NoError(t, err)

	files, err := store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	require.NoError(t, store.Delete(ctx, "/a"))
	exists, err := store.CheckFileExists(ctx, "/a")
	require.NoError(t, err)
	assert.False(t, exists)
}
