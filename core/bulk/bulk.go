// Package bulk moves request payloads between a requester's buffer and a
// chunk server's buffer with one-sided pull and push calls.
package bulk

import (
	"context"
	"errors"

	rpcBulk "github.com/pyropy/chunkfs/rpc/bulk"
)

type Mode int

const (
	// ReadOnly buffers can be pulled from.
	ReadOnly Mode = iota + 1
	// WriteOnly buffers can be pushed to.
	WriteOnly
	ReadWrite
)

func (m Mode) readable() bool {
	return m == ReadOnly || m == ReadWrite
}

func (m Mode) writable() bool {
	return m == WriteOnly || m == ReadWrite
}

var (
	ErrHandleNotFound   = errors.New("bulk handle not found")
	ErrOutOfBounds      = errors.New("bulk transfer out of bounds")
	ErrAccessDenied     = errors.New("bulk handle does not allow this transfer")
	ErrChecksumMismatch = errors.New("bulk payload checksum mismatch")
	ErrShortTransfer    = errors.New("bulk transfer returned fewer bytes than requested")
)

// Transferer performs one-sided transfers against a remote buffer. Pull fills
// dst with len(dst) bytes starting at remoteOffset of h. Push copies src into h
// at remoteOffset. Both block until the transfer completed or failed.
type Transferer interface {
	Pull(ctx context.Context, h rpcBulk.Handle, remoteOffset uint64, dst []byte) error
	Push(ctx context.Context, h rpcBulk.Handle, remoteOffset uint64, src []byte) error
}
