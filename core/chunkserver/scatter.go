package chunkserver

import (
	"context"

	"github.com/google/uuid"
	"github.com/pyropy/chunkfs/core/chunkcalc"
	"github.com/pyropy/chunkfs/core/model"
	"github.com/pyropy/chunkfs/core/scheduler"
	"github.com/pyropy/chunkfs/lib/errcode"
	"github.com/pyropy/chunkfs/lib/iopool"
	rpc "github.com/pyropy/chunkfs/rpc/chunkserver"
)

// chunkPlacement is the part of a request that falls into one local chunk.
type chunkPlacement struct {
	ID model.ChunkID
	// LocalOffset is the position inside this host's request buffer.
	LocalOffset uint64
	// OriginOffset is the position inside the requester's buffer.
	OriginOffset uint64
	// ChunkOffset is the position inside the chunk file.
	ChunkOffset uint64
	Size        uint64
}

func (p chunkPlacement) local(buf []byte) []byte {
	return buf[p.LocalOffset : p.LocalOffset+p.Size]
}

// plan lays out the chunks this host owns in increasing chunk id order. Their
// local offsets are contiguous and add up to at most args.TotalSize.
func (c *ChunkServer) plan(args *rpc.DataArgs) []chunkPlacement {
	var (
		localhost = c.Distributor.LocalHost()
		leftPad   = chunkcalc.LeftPad(args.Offset, c.chunkSize)
		remaining = args.TotalSize
		placed    uint64
	)

	placements := make([]chunkPlacement, 0, min(args.ChunkN, args.ChunkEnd-args.ChunkStart))
	for id := args.ChunkStart; id < args.ChunkEnd && uint64(len(placements)) < args.ChunkN; id++ {
		chunkID := model.ChunkID(id)
		if !c.forwarding && c.Distributor.LocateData(args.Path, chunkID) != localhost {
			continue
		}

		p := chunkPlacement{
			ID:           chunkID,
			LocalOffset:  placed,
			OriginOffset: chunkcalc.OriginOffset(chunkID, args.Offset, c.chunkSize),
			Size:         min(remaining, c.chunkSize),
		}

		if id == args.ChunkStart && leftPad != 0 {
			p.ChunkOffset = leftPad
			p.Size = min(remaining, c.chunkSize-leftPad)
		}

		if p.Size == 0 {
			break
		}

		placements = append(placements, p)
		placed += p.Size
		remaining -= p.Size
	}

	if remaining != 0 {
		c.Log.Warnw("chunkserver", "status", "bytes left unplaced", "path", args.Path, "offset", args.Offset, "totalSize", args.TotalSize, "remaining", remaining)
	}

	return placements
}

func (c *ChunkServer) chunkTask(op string, fn func() (int, error)) iopool.Task {
	return func(_ context.Context) (int, error) {
		c.Metrics.IORunning.Inc()
		defer c.Metrics.IORunning.Dec()

		n, err := fn()
		c.Metrics.chunkTask(op, err)
		return n, err
	}
}

// WriteData pulls the bytes this host owns from the requester and writes
// them into local chunks. Local write failures do not stop the other chunks;
// the first one is reported in the reply. A failed pull aborts the request.
func (c *ChunkServer) WriteData(ctx context.Context, args *rpc.WriteDataArgs) rpc.DataReply {
	reqID := uuid.New()
	c.Log.Debugw("chunkserver", "event", "WriteData", "request", reqID, "path", args.Path, "offset", args.Offset, "totalSize", args.TotalSize, "chunkStart", args.ChunkStart, "chunkEnd", args.ChunkEnd, "chunkN", args.ChunkN)

	reply := c.writeData(ctx, reqID, args)

	c.Metrics.request(opWrite, reply.Err)
	c.Metrics.IOBytes.WithLabelValues(opWrite).Add(float64(reply.IOSize))

	c.Log.Debugw("chunkserver", "event", "WriteData", "request", reqID, "err", reply.Err, "ioSize", reply.IOSize)
	return reply
}

func (c *ChunkServer) writeData(ctx context.Context, reqID uuid.UUID, args *rpc.WriteDataArgs) rpc.DataReply {
	err := c.validate(args)
	if err != nil {
		c.Log.Warnw("chunkserver", "status", "invalid write request", "request", reqID, "err", err)
		return rpc.DataReply{Err: errcode.EINVAL}
	}

	if args.TotalSize == 0 {
		return rpc.DataReply{}
	}

	release, err := c.admit(ctx, reqID, scheduler.Write, args)
	if err != nil {
		return rpc.DataReply{Err: errcode.FromError(err)}
	}
	defer release()

	placements := c.plan(args)
	buf := make([]byte, args.TotalSize)

	group := c.Pool.NewGroup(ctx)
	defer group.Close()

	for _, p := range placements {
		data := p.local(buf)

		err := c.Transfer.Pull(ctx, args.Bulk, p.OriginOffset, data)
		if err != nil {
			c.Log.Errorw("chunkserver", "error", "bulk pull failed", "request", reqID, "path", args.Path, "chunk", p.ID, "origin", p.OriginOffset, "size", p.Size, "err", err)
			group.Close()
			return rpc.DataReply{Err: errcode.EIO}
		}

		group.Go(c.chunkTask(opWrite, func() (int, error) {
			return c.Store.WriteChunk(args.Path, p.ID, data, p.ChunkOffset)
		}))
	}

	var (
		errno  = errcode.OK
		ioSize uint64
	)

	for i, p := range placements {
		n, err := group.Await(i)
		ioSize += uint64(n)

		if err != nil {
			c.Log.Errorw("chunkserver", "error", "write chunk failed", "request", reqID, "path", args.Path, "chunk", p.ID, "err", err)
			if errno == errcode.OK {
				errno = errcode.FromError(err)
			}
		}
	}

	if ioSize != args.TotalSize {
		c.Log.Warnw("chunkserver", "status", "write size mismatch", "request", reqID, "path", args.Path, "ioSize", ioSize, "totalSize", args.TotalSize)
	}

	return rpc.DataReply{Err: errno, IOSize: ioSize}
}

// ReadData reads the chunks this host owns and pushes their bytes to the
// requester. Missing chunks are holes and push nothing. A failed push ends the
// request; bytes pushed before it stay with the requester.
func (c *ChunkServer) ReadData(ctx context.Context, args *rpc.ReadDataArgs) rpc.DataReply {
	reqID := uuid.New()
	c.Log.Debugw("chunkserver", "event", "ReadData", "request", reqID, "path", args.Path, "offset", args.Offset, "totalSize", args.TotalSize, "chunkStart", args.ChunkStart, "chunkEnd", args.ChunkEnd, "chunkN", args.ChunkN)

	reply := c.readData(ctx, reqID, args)

	c.Metrics.request(opRead, reply.Err)
	c.Metrics.IOBytes.WithLabelValues(opRead).Add(float64(reply.IOSize))

	c.Log.Debugw("chunkserver", "event", "ReadData", "request", reqID, "err", reply.Err, "ioSize", reply.IOSize)
	return reply
}

func (c *ChunkServer) readData(ctx context.Context, reqID uuid.UUID, args *rpc.ReadDataArgs) rpc.DataReply {
	err := c.validate(args)
	if err != nil {
		c.Log.Warnw("chunkserver", "status", "invalid read request", "request", reqID, "err", err)
		return rpc.DataReply{Err: errcode.EINVAL}
	}

	if args.TotalSize == 0 {
		return rpc.DataReply{}
	}

	release, err := c.admit(ctx, reqID, scheduler.Read, args)
	if err != nil {
		return rpc.DataReply{Err: errcode.FromError(err)}
	}
	defer release()

	placements := c.plan(args)
	buf := make([]byte, args.TotalSize)

	group := c.Pool.NewGroup(ctx)
	defer group.Close()

	for _, p := range placements {
		data := p.local(buf)
		group.Go(c.chunkTask(opRead, func() (int, error) {
			return c.Store.ReadChunk(args.Path, p.ID, data, p.ChunkOffset)
		}))
	}

	var (
		errno  = errcode.OK
		ioSize uint64
	)

	for i, p := range placements {
		n, err := group.Await(i)
		if err != nil {
			c.Log.Errorw("chunkserver", "error", "read chunk failed", "request", reqID, "path", args.Path, "chunk", p.ID, "err", err)
			if errno == errcode.OK {
				errno = errcode.FromError(err)
			}
			continue
		}

		// hole
		if n == 0 {
			continue
		}

		err = c.Transfer.Push(ctx, args.Bulk, p.OriginOffset, buf[p.LocalOffset:p.LocalOffset+uint64(n)])
		if err != nil {
			c.Log.Errorw("chunkserver", "error", "bulk push failed", "request", reqID, "path", args.Path, "chunk", p.ID, "origin", p.OriginOffset, "err", err)
			group.Close()
			return rpc.DataReply{Err: errcode.EIO, IOSize: ioSize}
		}

		ioSize += uint64(n)
	}

	return rpc.DataReply{Err: errno, IOSize: ioSize}
}
