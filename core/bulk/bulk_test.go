package bulk

import (
	"context"
	"net"
	"sync"
	"testing"

	rpcBulk "github.com/pyropy/chunkfs/rpc/bulk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryPullAndPush(t *testing.T) {
	r := NewRegistry("")
	ctx := context.Background()

	src := []byte("0123456789")
	h := r.Expose(src, ReadOnly)
	assert.Equal(t, uint64(10), h.Size)
	assert.Equal(t, 1, r.Len())

	dst := make([]byte, 4)
	require.NoError(t, r.Pull(ctx, h, 3, dst))
	assert.Equal(t, []byte("3456"), dst)

	assert.ErrorIs(t, r.Push(ctx, h, 0, []byte("x")), ErrAccessDenied)
	assert.ErrorIs(t, r.Pull(ctx, h, 8, make([]byte, 3)), ErrOutOfBounds)
	assert.ErrorIs(t, r.Pull(ctx, h, 11, nil), ErrOutOfBounds)

	sink := make([]byte, 6)
	out := r.Expose(sink, WriteOnly)
	require.NoError(t, r.Push(ctx, out, 2, []byte("ab")))
	assert.Equal(t, []byte{0, 0, 'a', 'b', 0, 0}, sink)
	assert.ErrorIs(t, r.Pull(ctx, out, 0, make([]byte, 1)), ErrAccessDenied)

	r.Release(h)
	assert.ErrorIs(t, r.Pull(ctx, h, 0, dst), ErrHandleNotFound)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryHandlesCarryAddr(t *testing.T) {
	r := NewRegistry("10.0.0.1:7000")

	var wg sync.WaitGroup
	handles := make([]rpcBulk.Handle, 16)
	for i := range handles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handles[i] = r.Expose(make([]byte, i), ReadWrite)
		}()
	}
	wg.Wait()

	for i, h := range handles {
		assert.Equal(t, "10.0.0.1:7000", h.Addr)
		assert.Equal(t, uint64(i), h.Size)
		r.Release(h)
	}
	assert.Zero(t, r.Len())
}

func TestRegistryHonoursCancelledContext(t *testing.T) {
	r := NewRegistry("")
	h := r.Expose(make([]byte, 4), ReadWrite)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, r.Pull(ctx, h, 0, make([]byte, 1)), context.Canceled)
	assert.ErrorIs(t, r.Push(ctx, h, 0, []byte{1}), context.Canceled)
}

func startBulkServer(t *testing.T) *Registry {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	r := NewRegistry(l.Addr().String())
	go func() { _ = Serve(l, r) }()

	return r
}

func TestRPCTransfererRoundTrip(t *testing.T) {
	r := startBulkServer(t)
	tr := NewRPCTransferer(2)
	t.Cleanup(tr.Close)
	ctx := context.Background()

	src := []byte("hello bulk transfer")
	in := r.Expose(src, ReadOnly)
	defer r.Release(in)

	dst := make([]byte, 4)
	require.NoError(t, tr.Pull(ctx, in, 6, dst))
	assert.Equal(t, []byte("bulk"), dst)

	sink := make([]byte, len(src))
	out := r.Expose(sink, WriteOnly)
	defer r.Release(out)

	require.NoError(t, tr.Push(ctx, out, 0, src[:5]))
	assert.Equal(t, []byte("hello"), sink[:5])

	err := tr.Pull(ctx, in, 100, dst)
	assert.Error(t, err)

	missing := rpcBulk.Handle{Addr: r.Addr()}
	assert.Error(t, tr.Push(ctx, missing, 0, []byte{1}))
}

func TestRPCTransfererUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	tr := NewRPCTransferer(1)
	h := rpcBulk.Handle{Addr: addr, Size: 1}
	assert.Error(t, tr.Pull(context.Background(), h, 0, make([]byte, 1)))
}
