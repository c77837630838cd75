package client

import (
	"context"
	"net/rpc"

	"github.com/pyropy/chunkfs/core/chunkserver"
	rpcChunkServer "github.com/pyropy/chunkfs/rpc/chunkserver"
)

const ChunkServerService = "ChunkServerAPI"

// DataServer is one host of the data plane as seen by a client.
type DataServer interface {
	WriteData(ctx context.Context, args *rpcChunkServer.WriteDataArgs) (*rpcChunkServer.DataReply, error)
	ReadData(ctx context.Context, args *rpcChunkServer.ReadDataArgs) (*rpcChunkServer.DataReply, error)
	TruncateData(ctx context.Context, args *rpcChunkServer.TruncateDataArgs) (*rpcChunkServer.ErrReply, error)
	RemoveData(ctx context.Context, args *rpcChunkServer.RemoveDataArgs) (*rpcChunkServer.ErrReply, error)
	ChunkStat(ctx context.Context) (*rpcChunkServer.ChunkStatReply, error)
}

// RPCDataServer talks to a chunk server over net/rpc.
type RPCDataServer struct {
	Addr      string
	RpcClient *rpc.Client
}

func Dial(addr string) (*RPCDataServer, error) {
	rpcClient, err := rpc.DialHTTP("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &RPCDataServer{
		Addr:      addr,
		RpcClient: rpcClient,
	}, nil
}

func (s *RPCDataServer) call(ctx context.Context, method string, args, reply any) error {
	call := s.RpcClient.Go(ChunkServerService+"."+method, args, reply, make(chan *rpc.Call, 1))

	select {
	case <-call.Done:
		return call.Error
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *RPCDataServer) WriteData(ctx context.Context, args *rpcChunkServer.WriteDataArgs) (*rpcChunkServer.DataReply, error) {
	var reply rpcChunkServer.DataReply
	err := s.call(ctx, "WriteData", args, &reply)
	if err != nil {
		return nil, err
	}

	return &reply, nil
}

func (s *RPCDataServer) ReadData(ctx context.Context, args *rpcChunkServer.ReadDataArgs) (*rpcChunkServer.DataReply, error) {
	var reply rpcChunkServer.DataReply
	err := s.call(ctx, "ReadData", args, &reply)
	if err != nil {
		return nil, err
	}

	return &reply, nil
}

func (s *RPCDataServer) TruncateData(ctx context.Context, args *rpcChunkServer.TruncateDataArgs) (*rpcChunkServer.ErrReply, error) {
	var reply rpcChunkServer.ErrReply
	err := s.call(ctx, "TruncateData", args, &reply)
	if err != nil {
		return nil, err
	}

	return &reply, nil
}

func (s *RPCDataServer) RemoveData(ctx context.Context, args *rpcChunkServer.RemoveDataArgs) (*rpcChunkServer.ErrReply, error) {
	var reply rpcChunkServer.ErrReply
	err := s.call(ctx, "RemoveData", args, &reply)
	if err != nil {
		return nil, err
	}

	return &reply, nil
}

func (s *RPCDataServer) ChunkStat(ctx context.Context) (*rpcChunkServer.ChunkStatReply, error) {
	var reply rpcChunkServer.ChunkStatReply
	err := s.call(ctx, "ChunkStat", &rpcChunkServer.ChunkStatArgs{}, &reply)
	if err != nil {
		return nil, err
	}

	return &reply, nil
}

func (s *RPCDataServer) Close() error {
	return s.RpcClient.Close()
}

// LocalDataServer calls a chunk server living in the same process.
type LocalDataServer struct {
	Server *chunkserver.ChunkServer
}

func Local(server *chunkserver.ChunkServer) *LocalDataServer {
	return &LocalDataServer{Server: server}
}

func (s *LocalDataServer) WriteData(ctx context.Context, args *rpcChunkServer.WriteDataArgs) (*rpcChunkServer.DataReply, error) {
	reply := s.Server.WriteData(ctx, args)
	return &reply, nil
}

func (s *LocalDataServer) ReadData(ctx context.Context, args *rpcChunkServer.ReadDataArgs) (*rpcChunkServer.DataReply, error) {
	reply := s.Server.ReadData(ctx, args)
	return &reply, nil
}

func (s *LocalDataServer) TruncateData(_ context.Context, args *rpcChunkServer.TruncateDataArgs) (*rpcChunkServer.ErrReply, error) {
	reply := s.Server.TruncateData(args)
	return &reply, nil
}

func (s *LocalDataServer) RemoveData(_ context.Context, args *rpcChunkServer.RemoveDataArgs) (*rpcChunkServer.ErrReply, error) {
	reply := s.Server.RemoveData(args)
	return &reply, nil
}

func (s *LocalDataServer) ChunkStat(_ context.Context) (*rpcChunkServer.ChunkStatReply, error) {
	reply := s.Server.ChunkStat()
	return &reply, nil
}
