package bulk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/rpc"
	"sync"

	"github.com/pyropy/chunkfs/lib/cache"
	"github.com/pyropy/chunkfs/lib/checksum"
	rpcBulk "github.com/pyropy/chunkfs/rpc/bulk"
)

const ServiceName = "BulkAPI"

// API exposes a Registry over net/rpc so that chunk servers can pull from and
// push to buffers living in this process.
type API struct {
	registry *Registry
}

func NewAPI(registry *Registry) *API {
	return &API{registry: registry}
}

func (a *API) Pull(args *rpcBulk.PullArgs, reply *rpcBulk.PullReply) error {
	data := make([]byte, args.Length)
	h := rpcBulk.Handle{ID: args.ID}
	if err := a.registry.Pull(context.Background(), h, args.Offset, data); err != nil {
		return err
	}

	reply.Data = data
	reply.CheckSum = checksum.CalculateCheckSum(data)
	return nil
}

func (a *API) Push(args *rpcBulk.PushArgs, reply *rpcBulk.PushReply) error {
	if !checksum.Verify(args.Data, args.CheckSum) {
		return ErrChecksumMismatch
	}

	h := rpcBulk.Handle{ID: args.ID}
	if err := a.registry.Push(context.Background(), h, args.Offset, args.Data); err != nil {
		return err
	}

	reply.NumBytesReceived = len(args.Data)
	return nil
}

// Serve accepts BulkAPI connections on l until l is closed.
func Serve(l net.Listener, registry *Registry) error {
	server := rpc.NewServer()
	if err := server.RegisterName(ServiceName, NewAPI(registry)); err != nil {
		return err
	}

	server.Accept(l)
	return nil
}

// RPCTransferer reaches requester buffers through their BulkAPI endpoint.
// Connections are kept per address; the least recently used one is closed
// once more than maxConns are open.
type RPCTransferer struct {
	mu    sync.Mutex
	conns *cache.LRU[string, *rpc.Client]
}

func NewRPCTransferer(maxConns int) *RPCTransferer {
	return &RPCTransferer{
		conns: cache.NewLRU[string, *rpc.Client](maxConns, func(_ string, c *rpc.Client) {
			c.Close()
		}),
	}
}

func (t *RPCTransferer) Pull(ctx context.Context, h rpcBulk.Handle, remoteOffset uint64, dst []byte) error {
	args := rpcBulk.PullArgs{
		ID:     h.ID,
		Offset: remoteOffset,
		Length: uint64(len(dst)),
	}

	var reply rpcBulk.PullReply
	if err := t.call(ctx, h.Addr, ServiceName+".Pull", &args, &reply); err != nil {
		return err
	}

	if len(reply.Data) != len(dst) {
		return fmt.Errorf("%w: got %d, want %d", ErrShortTransfer, len(reply.Data), len(dst))
	}

	if !checksum.Verify(reply.Data, reply.CheckSum) {
		return ErrChecksumMismatch
	}

	copy(dst, reply.Data)
	return nil
}

func (t *RPCTransferer) Push(ctx context.Context, h rpcBulk.Handle, remoteOffset uint64, src []byte) error {
	args := rpcBulk.PushArgs{
		ID:       h.ID,
		Offset:   remoteOffset,
		Data:     src,
		CheckSum: checksum.CalculateCheckSum(src),
	}

	var reply rpcBulk.PushReply
	if err := t.call(ctx, h.Addr, ServiceName+".Push", &args, &reply); err != nil {
		return err
	}

	if reply.NumBytesReceived != len(src) {
		return fmt.Errorf("%w: got %d, want %d", ErrShortTransfer, reply.NumBytesReceived, len(src))
	}

	return nil
}

// Close drops every cached connection.
func (t *RPCTransferer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.conns.Purge()
}

func (t *RPCTransferer) call(ctx context.Context, addr, method string, args, reply any) error {
	client, err := t.client(addr)
	if err != nil {
		return err
	}

	call := client.Go(method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-call.Done:
		if res.Error != nil && brokenConn(res.Error) {
			t.drop(addr, client)
		}
		return res.Error
	}
}

func (t *RPCTransferer) client(addr string) (*rpc.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.conns.Get(addr); ok {
		return c, nil
	}

	c, err := rpc.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	t.conns.Put(addr, c)
	return c, nil
}

func (t *RPCTransferer) drop(addr string, client *rpc.Client) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.conns.Get(addr); ok && c == client {
		t.conns.Remove(addr)
	}
}

func brokenConn(err error) bool {
	return errors.Is(err, rpc.ErrShutdown) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
