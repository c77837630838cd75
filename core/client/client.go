package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/pyropy/chunkfs/core/bulk"
	"github.com/pyropy/chunkfs/core/chunkcalc"
	"github.com/pyropy/chunkfs/core/distributor"
	"github.com/pyropy/chunkfs/core/model"
	"github.com/pyropy/chunkfs/lib/errcode"
	rpcBulk "github.com/pyropy/chunkfs/rpc/bulk"
	rpcChunkServer "github.com/pyropy/chunkfs/rpc/chunkserver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrHostCountMismatch = errors.New("number of hosts does not match the distributor")
	ErrChunkSizeMismatch = errors.New("hosts disagree on chunk size")
)

// Client splits file I/O into per host requests and lets the hosts move the
// payload through its bulk registry.
type Client struct {
	*FileMetadataStore

	Hosts       []DataServer
	Distributor distributor.Distributor
	ChunkSize   uint64
	Bulk        *bulk.Registry
	log         *zap.SugaredLogger
}

// NewClient creates a client for hosts, indexed by host id. files is
// optional; without it reads are not clipped to the file size.
func NewClient(hosts []DataServer, d distributor.Distributor, chunkSize uint64, registry *bulk.Registry, files *FileMetadataStore, log *zap.SugaredLogger) (*Client, error) {
	if uint32(len(hosts)) != d.HostsSize() {
		return nil, fmt.Errorf("%w: %d hosts, distributor expects %d", ErrHostCountMismatch, len(hosts), d.HostsSize())
	}

	if chunkSize == 0 {
		return nil, errors.New("chunk size must be greater than zero")
	}

	return &Client{
		FileMetadataStore: files,
		Hosts:             hosts,
		Distributor:       d,
		ChunkSize:         chunkSize,
		Bulk:              registry,
		log:               log,
	}, nil
}

// split builds one request per host that owns chunks of [offset, offset+length).
func (c *Client) split(path string, offset, length uint64, h rpcBulk.Handle) map[model.Host]*rpcChunkServer.DataArgs {
	start := chunkcalc.ChunkStart(offset, c.ChunkSize)
	end := chunkcalc.ChunkEnd(offset, length, c.ChunkSize)

	reqs := make(map[model.Host]*rpcChunkServer.DataArgs)
	for id := start; id < end; id++ {
		host := c.Distributor.LocateData(path, id)

		args, ok := reqs[host]
		if !ok {
			args = &rpcChunkServer.DataArgs{
				Path:       path,
				Offset:     offset,
				ChunkStart: uint64(start),
				ChunkEnd:   uint64(end),
				HostID:     uint32(host),
				HostSize:   c.Distributor.HostsSize(),
				Bulk:       h,
			}
			reqs[host] = args
		}

		args.ChunkN++
		args.TotalSize += chunkcalc.Size(id, offset, length, c.ChunkSize)
	}

	return reqs
}

type dataCall func(ds DataServer, ctx context.Context, args *rpcChunkServer.DataArgs) (*rpcChunkServer.DataReply, error)

// dispatch sends every request concurrently and waits for all of them. The
// returned size counts the bytes of all hosts, including failed ones.
func (c *Client) dispatch(ctx context.Context, reqs map[model.Host]*rpcChunkServer.DataArgs, call dataCall) (uint64, error) {
	var (
		g      errgroup.Group
		ioSize atomic.Uint64
	)

	for host, args := range reqs {
		g.Go(func() error {
			reply, err := call(c.Hosts[host], ctx, args)
			if err != nil {
				c.log.Errorw("client", "error", "request failed", "host", host, "path", args.Path, "err", err)
				return fmt.Errorf("host %d: %w", host, err)
			}

			ioSize.Add(reply.IOSize)

			if reply.Err != errcode.OK {
				return fmt.Errorf("host %d: %w", host, errcode.ToError(reply.Err))
			}

			return nil
		})
	}

	err := g.Wait()
	return ioSize.Load(), err
}

// WriteFile writes data at offset of path and returns the bytes written.
func (c *Client) WriteFile(ctx context.Context, path string, data []byte, offset uint64) (uint64, error) {
	if len(data) == 0 {
		return 0, nil
	}

	h := c.Bulk.Expose(data, bulk.ReadOnly)
	defer c.Bulk.Release(h)

	reqs := c.split(path, offset, uint64(len(data)), h)
	c.log.Debugw("client", "event", "WriteFile", "path", path, "offset", offset, "size", len(data), "hosts", len(reqs))

	n, err := c.dispatch(ctx, reqs, DataServer.WriteData)
	if err != nil {
		return n, err
	}

	if c.FileMetadataStore != nil {
		_, err = c.UpdateSize(ctx, path, offset+n, true)
		if err != nil {
			return n, err
		}
	}

	return n, nil
}

// ReadFile reads len(buf) bytes at offset of path into buf. Holes read as
// zeros. When the file size is known the read stops at the end of file and the
// returned count includes holes.
func (c *Client) ReadFile(ctx context.Context, path string, buf []byte, offset uint64) (uint64, error) {
	size := uint64(len(buf))
	known := false

	if c.FileMetadataStore != nil {
		file, err := c.Get(ctx, path)
		if err != nil {
			return 0, err
		}

		if offset >= file.Size {
			return 0, nil
		}

		size = min(size, file.Size-offset)
		known = true
	}

	if size == 0 {
		return 0, nil
	}

	buf = buf[:size]
	clear(buf)

	h := c.Bulk.Expose(buf, bulk.WriteOnly)
	defer c.Bulk.Release(h)

	reqs := c.split(path, offset, size, h)
	c.log.Debugw("client", "event", "ReadFile", "path", path, "offset", offset, "size", size, "hosts", len(reqs))

	n, err := c.dispatch(ctx, reqs, DataServer.ReadData)
	if err != nil {
		return n, err
	}

	if known {
		return size, nil
	}

	return n, nil
}

func (c *Client) broadcast(call func(ds DataServer) (*rpcChunkServer.ErrReply, error)) error {
	var g errgroup.Group
	for host, ds := range c.Hosts {
		g.Go(func() error {
			reply, err := call(ds)
			if err != nil {
				return fmt.Errorf("host %d: %w", host, err)
			}

			if reply.Err != errcode.OK {
				return fmt.Errorf("host %d: %w", host, errcode.ToError(reply.Err))
			}

			return nil
		})
	}

	return g.Wait()
}

// Truncate cuts path down to length on every host.
func (c *Client) Truncate(ctx context.Context, path string, length uint64) error {
	c.log.Debugw("client", "event", "Truncate", "path", path, "length", length)

	err := c.broadcast(func(ds DataServer) (*rpcChunkServer.ErrReply, error) {
		return ds.TruncateData(ctx, &rpcChunkServer.TruncateDataArgs{Path: path, Length: length})
	})
	if err != nil {
		return err
	}

	if c.FileMetadataStore != nil {
		_, err = c.UpdateSize(ctx, path, length, false)
	}

	return err
}

// Remove deletes all chunks of path on every host.
func (c *Client) Remove(ctx context.Context, path string) error {
	c.log.Debugw("client", "event", "Remove", "path", path)

	err := c.broadcast(func(ds DataServer) (*rpcChunkServer.ErrReply, error) {
		return ds.RemoveData(ctx, &rpcChunkServer.RemoveDataArgs{Path: path})
	})
	if err != nil {
		return err
	}

	if c.FileMetadataStore != nil {
		err = c.Delete(ctx, path)
	}

	return err
}

// ChunkStat sums the chunk capacity of all hosts.
func (c *Client) ChunkStat(ctx context.Context) (model.ChunkStat, error) {
	replies := make([]*rpcChunkServer.ChunkStatReply, len(c.Hosts))

	var g errgroup.Group
	for host, ds := range c.Hosts {
		g.Go(func() error {
			reply, err := ds.ChunkStat(ctx)
			if err != nil {
				return fmt.Errorf("host %d: %w", host, err)
			}

			if reply.Err != errcode.OK {
				return fmt.Errorf("host %d: %w", host, errcode.ToError(reply.Err))
			}

			replies[host] = reply
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return model.ChunkStat{}, err
	}

	var stat model.ChunkStat
	for _, r := range replies {
		if stat.ChunkSize != 0 && stat.ChunkSize != r.ChunkSize {
			return model.ChunkStat{}, fmt.Errorf("%w: %d and %d", ErrChunkSizeMismatch, stat.ChunkSize, r.ChunkSize)
		}

		stat.ChunkSize = r.ChunkSize
		stat.ChunkTotal += r.ChunkTotal
		stat.ChunkFree += r.ChunkFree
	}

	return stat, nil
}
