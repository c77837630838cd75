package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pyropy/chunkfs/core/bulk"
	"github.com/pyropy/chunkfs/core/chunkserver"
	"github.com/pyropy/chunkfs/core/client"
	"github.com/pyropy/chunkfs/core/distributor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startChunkServer(t *testing.T, hostID, hosts uint32, chunkSize uint64) string {
	t.Helper()

	var cfg chunkserver.Config
	cfg.Chunks.Dir = t.TempDir()
	cfg.Chunks.Size = chunkSize
	cfg.Hosts.ID = hostID
	cfg.Hosts.Size = hosts
	cfg.IO.Workers = 4
	cfg.Bulk.MaxRequestSize = 1 << 20
	cfg.Distributor.Kind = distributor.KindHash

	store, err := chunkserver.NewChunkService(cfg.Chunks.Dir, cfg.Chunks.Size)
	require.NoError(t, err)

	transfer := bulk.NewRPCTransferer(4)
	t.Cleanup(transfer.Close)

	reg := prometheus.NewRegistry()
	cs, err := chunkserver.NewChunkServer(&cfg, store, transfer, zap.NewNop().Sugar(), reg)
	require.NoError(t, err)

	handler, err := newHandler(cs, reg)
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Cleanup(cs.Shutdown)

	return srv.Listener.Addr().String()
}

func TestChunkServerAPIOverRPC(t *testing.T) {
	const (
		hosts     = 2
		chunkSize = 128
	)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	registry := bulk.NewRegistry(l.Addr().String())
	go func() { _ = bulk.Serve(l, registry) }()

	addrs := make([]string, hosts)
	dataServers := make([]client.DataServer, hosts)
	for i := range addrs {
		addrs[i] = startChunkServer(t, uint32(i), hosts, chunkSize)

		ds, err := client.Dial(addrs[i])
		require.NoError(t, err)
		t.Cleanup(func() { _ = ds.Close() })
		dataServers[i] = ds
	}

	d, err := distributor.New(distributor.KindHash, 0, hosts, 0)
	require.NoError(t, err)

	c, err := client.NewClient(dataServers, d, chunkSize, registry, nil, zap.NewNop().Sugar())
	require.NoError(t, err)

	ctx := context.Background()
	data := []byte(strings.Repeat("chunkfs over rpc ", 40))

	n, err := c.WriteFile(ctx, "/rpc/file", data, 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), n)

	out := make([]byte, len(data))
	n, err = c.ReadFile(ctx, "/rpc/file", out, 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), n)
	assert.Equal(t, data, out)

	require.NoError(t, c.Truncate(ctx, "/rpc/file", 100))

	n, err = c.ReadFile(ctx, "/rpc/file", out, 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), n)
	assert.Equal(t, data[:50], out[:50])

	stat, err := c.ChunkStat(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(chunkSize), stat.ChunkSize)

	require.NoError(t, c.Remove(ctx, "/rpc/file"))

	resp, err := http.Get("http://" + addrs[0] + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "chunkfs_requests_total")
	assert.Contains(t, string(body), "chunkfs_chunk_total")
}
