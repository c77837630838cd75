package main

import (
	"context"
	"net/http"
	"net/rpc"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	core "github.com/pyropy/chunkfs/core/chunkserver"
	"github.com/pyropy/chunkfs/core/client"
	rpcChunkServer "github.com/pyropy/chunkfs/rpc/chunkserver"
)

type ChunkServerAPI struct {
	server *core.ChunkServer
}

func NewChunkServerAPI(chunkServer *core.ChunkServer) *ChunkServerAPI {
	return &ChunkServerAPI{
		server: chunkServer,
	}
}

// WriteData ...
func (a *ChunkServerAPI) WriteData(args *rpcChunkServer.WriteDataArgs, reply *rpcChunkServer.DataReply) error {
	log.Infow("rpc", "event", "ChunkServerAPI.WriteData", "path", args.Path, "offset", args.Offset, "totalSize", args.TotalSize, "chunkN", args.ChunkN)
	*reply = a.server.WriteData(context.Background(), args)
	return nil
}

// ReadData ...
func (a *ChunkServerAPI) ReadData(args *rpcChunkServer.ReadDataArgs, reply *rpcChunkServer.DataReply) error {
	log.Infow("rpc", "event", "ChunkServerAPI.ReadData", "path", args.Path, "offset", args.Offset, "totalSize", args.TotalSize, "chunkN", args.ChunkN)
	*reply = a.server.ReadData(context.Background(), args)
	return nil
}

func (a *ChunkServerAPI) TruncateData(args *rpcChunkServer.TruncateDataArgs, reply *rpcChunkServer.ErrReply) error {
	log.Infow("rpc", "event", "ChunkServerAPI.TruncateData", "args", args)
	*reply = a.server.TruncateData(args)
	return nil
}

func (a *ChunkServerAPI) RemoveData(args *rpcChunkServer.RemoveDataArgs, reply *rpcChunkServer.ErrReply) error {
	log.Infow("rpc", "event", "ChunkServerAPI.RemoveData", "args", args)
	*reply = a.server.RemoveData(args)
	return nil
}

func (a *ChunkServerAPI) ChunkStat(_ *rpcChunkServer.ChunkStatArgs, reply *rpcChunkServer.ChunkStatReply) error {
	log.Infow("rpc", "event", "ChunkServerAPI.ChunkStat")
	*reply = a.server.ChunkStat()
	return nil
}

var _ rpcChunkServer.IChunkServer = (*ChunkServerAPI)(nil)

// newHandler serves the chunk server API on the net/rpc HTTP path and the
// metrics of reg on /metrics.
func newHandler(chunkServer *core.ChunkServer, reg prometheus.Gatherer) (http.Handler, error) {
	server := rpc.NewServer()
	err := server.RegisterName(client.ChunkServerService, NewChunkServerAPI(chunkServer))
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultRPCPath, server)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return mux, nil
}
