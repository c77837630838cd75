package chunkserver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pyropy/chunkfs/core/bulk"
	"github.com/pyropy/chunkfs/core/chunkcalc"
	"github.com/pyropy/chunkfs/core/distributor"
	"github.com/pyropy/chunkfs/core/model"
	"github.com/pyropy/chunkfs/core/scheduler"
	"github.com/pyropy/chunkfs/lib/errcode"
	"github.com/pyropy/chunkfs/lib/iopool"
	rpc "github.com/pyropy/chunkfs/rpc/chunkserver"
	"go.uber.org/zap"
)

const (
	opWrite    = "write"
	opRead     = "read"
	opTruncate = "truncate"
	opRemove   = "remove"
)

var (
	ErrHostSizeMismatch  = errors.New("request host size does not match configured hosts")
	ErrChunkStartInvalid = errors.New("chunk start does not match offset")
	ErrInvalidRange      = errors.New("invalid chunk range")
	ErrSizeExceedsChunks = errors.New("total size exceeds the chunks owned by this host")
	ErrHostMismatch      = errors.New("request addressed to another host")
	ErrRequestTooLarge   = errors.New("request exceeds the bulk buffer or the request size limit")
)

type ChunkServer struct {
	*HealthMonitorService

	Cfg         *Config
	Store       ChunkStore
	Pool        *iopool.Pool
	Distributor distributor.Distributor
	Transfer    bulk.Transferer
	Scheduler   scheduler.Scheduler
	Metrics     *Metrics
	Log         *zap.SugaredLogger

	chunkSize  uint64
	forwarding bool
}

// NewChunkServer builds a chunk server for the host described by cfg. Chunks
// are kept in store and request payloads move through transfer.
func NewChunkServer(cfg *Config, store ChunkStore, transfer bulk.Transferer, log *zap.SugaredLogger, reg prometheus.Registerer) (*ChunkServer, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	d, err := distributor.New(cfg.Distributor.Kind, model.Host(cfg.Hosts.ID), cfg.Hosts.Size, model.Host(cfg.Distributor.ForwardHost))
	if err != nil {
		return nil, err
	}

	metrics := NewMetrics(reg)

	return &ChunkServer{
		HealthMonitorService: NewHealthMonitorService(store, metrics, cfg.Stats.Interval, log),
		Cfg:                  cfg,
		Store:                store,
		Pool:                 iopool.New(cfg.IO.Workers),
		Distributor:          d,
		Transfer:             transfer,
		Scheduler:            scheduler.New(cfg.Scheduler.MaxRequests, log),
		Metrics:              metrics,
		Log:                  log,
		chunkSize:            cfg.Chunks.Size,
		forwarding:           distributor.IsForwarding(d),
	}, nil
}

func (c *ChunkServer) ChunkSize() uint64 {
	return c.chunkSize
}

// validate checks the request against this host's view of the cluster.
func (c *ChunkServer) validate(args *rpc.DataArgs) error {
	if args.HostSize != c.Distributor.HostsSize() {
		return fmt.Errorf("%w: got %d, want %d", ErrHostSizeMismatch, args.HostSize, c.Distributor.HostsSize())
	}

	if !c.forwarding && args.HostID != uint32(c.Distributor.LocalHost()) {
		return fmt.Errorf("%w: request for host %d reached host %d", ErrHostMismatch, args.HostID, c.Distributor.LocalHost())
	}

	if args.ChunkStart != uint64(chunkcalc.ChunkStart(args.Offset, c.chunkSize)) {
		return fmt.Errorf("%w: chunk start %d, offset %d", ErrChunkStartInvalid, args.ChunkStart, args.Offset)
	}

	if args.ChunkEnd < args.ChunkStart {
		return fmt.Errorf("%w: [%d, %d)", ErrInvalidRange, args.ChunkStart, args.ChunkEnd)
	}

	span := args.ChunkEnd - args.ChunkStart
	if args.ChunkN > span || span > math.MaxUint64/c.chunkSize {
		return fmt.Errorf("%w: %d chunks in [%d, %d)", ErrInvalidRange, args.ChunkN, args.ChunkStart, args.ChunkEnd)
	}

	if args.Offset > math.MaxUint64-args.TotalSize {
		return fmt.Errorf("%w: %d bytes at %d", ErrInvalidRange, args.TotalSize, args.Offset)
	}

	if args.TotalSize > args.ChunkN*c.chunkSize {
		return fmt.Errorf("%w: %d bytes in %d chunks", ErrSizeExceedsChunks, args.TotalSize, args.ChunkN)
	}

	if args.TotalSize > args.Bulk.Size || args.TotalSize > c.Cfg.Bulk.MaxRequestSize {
		return fmt.Errorf("%w: %d bytes, bulk buffer %d, limit %d", ErrRequestTooLarge, args.TotalSize, args.Bulk.Size, c.Cfg.Bulk.MaxRequestSize)
	}

	return nil
}

// admit runs the request through the scheduler. The returned release func must
// be called once the request is done.
func (c *ChunkServer) admit(ctx context.Context, id uuid.UUID, kind scheduler.Kind, args *rpc.DataArgs) (func(), error) {
	return c.Scheduler.Admit(ctx, scheduler.Request{
		ID:     id,
		Path:   args.Path,
		Kind:   kind,
		Offset: args.Offset,
		Size:   args.TotalSize,
	})
}

// TruncateData cuts the chunks of a file held by this host down to length.
// Chunks past the new end are removed, the chunk holding the new end is
// truncated in place.
func (c *ChunkServer) TruncateData(args *rpc.TruncateDataArgs) rpc.ErrReply {
	t := chunkcalc.Truncate(args.Length, c.chunkSize)

	c.Log.Debugw("chunkserver", "event", "TruncateData", "path", args.Path, "length", args.Length, "chunk", t.Chunk, "trimFrom", t.TrimFrom)

	var reply rpc.ErrReply
	if t.KeepsBoundary() {
		err := c.Store.TruncateChunk(args.Path, t.Chunk, t.LeftPad)
		if err != nil {
			c.Log.Errorw("chunkserver", "error", "truncate chunk failed", "path", args.Path, "chunk", t.Chunk, "err", err)
			reply.Err = errcode.FromError(err)
			c.Metrics.request(opTruncate, reply.Err)
			return reply
		}
	}

	err := c.Store.TrimChunkSpace(args.Path, t.TrimFrom)
	if err != nil {
		c.Log.Errorw("chunkserver", "error", "trim chunk space failed", "path", args.Path, "from", t.TrimFrom, "err", err)
		reply.Err = errcode.FromError(err)
	}

	c.Metrics.request(opTruncate, reply.Err)
	return reply
}

// RemoveData deletes every chunk of a file held by this host.
func (c *ChunkServer) RemoveData(args *rpc.RemoveDataArgs) rpc.ErrReply {
	c.Log.Debugw("chunkserver", "event", "RemoveData", "path", args.Path)

	var reply rpc.ErrReply
	err := c.Store.DestroyChunkSpace(args.Path)
	if err != nil {
		c.Log.Errorw("chunkserver", "error", "destroy chunk space failed", "path", args.Path, "err", err)
		reply.Err = errcode.FromError(err)
	}

	c.Metrics.request(opRemove, reply.Err)
	return reply
}

func (c *ChunkServer) ChunkStat() rpc.ChunkStatReply {
	stat, err := c.Report()
	if err != nil {
		return rpc.ChunkStatReply{Err: errcode.FromError(err)}
	}

	return rpc.ChunkStatReply{
		ChunkSize:  stat.ChunkSize,
		ChunkTotal: stat.ChunkTotal,
		ChunkFree:  stat.ChunkFree,
	}
}

// Shutdown waits for all queued chunk tasks to settle.
func (c *ChunkServer) Shutdown() {
	c.Pool.Wait()
}
