package bulk

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pyropy/chunkfs/lib/cmap"
	rpcBulk "github.com/pyropy/chunkfs/rpc/bulk"
)

type exposed struct {
	buf  []byte
	mode Mode
}

// Registry holds the buffers a process exposes for bulk transfers. It also
// serves as the Transferer for requesters living in the same process.
type Registry struct {
	addr    string
	buffers *cmap.Map[uuid.UUID, exposed]
}

// NewRegistry creates a registry whose handles point at addr, the address of
// the BulkAPI serving it.
func NewRegistry(addr string) *Registry {
	return &Registry{
		addr:    addr,
		buffers: cmap.NewMap[uuid.UUID, exposed](),
	}
}

func (r *Registry) Addr() string {
	return r.addr
}

// Expose registers buf until Release is called with the returned handle.
func (r *Registry) Expose(buf []byte, mode Mode) rpcBulk.Handle {
	h := rpcBulk.Handle{
		ID:   uuid.New(),
		Addr: r.addr,
		Size: uint64(len(buf)),
	}

	r.buffers.Set(h.ID, exposed{buf: buf, mode: mode})
	return h
}

func (r *Registry) Release(h rpcBulk.Handle) {
	r.buffers.Delete(h.ID)
}

// Len returns the number of exposed buffers.
func (r *Registry) Len() int {
	return r.buffers.Len()
}

func (r *Registry) region(id uuid.UUID, offset, length uint64) (exposed, []byte, error) {
	e, ok := r.buffers.Get(id)
	if !ok {
		return e, nil, fmt.Errorf("%w: %s", ErrHandleNotFound, id)
	}

	size := uint64(len(e.buf))
	if offset > size || length > size-offset {
		return e, nil, fmt.Errorf("%w: offset %d length %d size %d", ErrOutOfBounds, offset, length, size)
	}

	return e, e.buf[offset : offset+length], nil
}

func (r *Registry) Pull(ctx context.Context, h rpcBulk.Handle, remoteOffset uint64, dst []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e, region, err := r.region(h.ID, remoteOffset, uint64(len(dst)))
	if err != nil {
		return err
	}

	if !e.mode.readable() {
		return ErrAccessDenied
	}

	copy(dst, region)
	return nil
}

func (r *Registry) Push(ctx context.Context, h rpcBulk.Handle, remoteOffset uint64, src []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e, region, err := r.region(h.ID, remoteOffset, uint64(len(src)))
	if err != nil {
		return err
	}

	if !e.mode.writable() {
		return ErrAccessDenied
	}

	copy(region, src)
	return nil
}
