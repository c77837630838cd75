package chunkserver

import (
	"github.com/pyropy/chunkfs/rpc/bulk"
)

// DataArgs describes the part of a read or write a single host serves.
// Offset is the global byte offset of the whole request, TotalSize the number
// of bytes this host moves and ChunkN the number of chunks it owns within
// [ChunkStart, ChunkEnd).
type DataArgs struct {
	Path       string
	Offset     uint64
	TotalSize  uint64
	ChunkStart uint64
	ChunkEnd   uint64
	ChunkN     uint64
	HostID     uint32
	HostSize   uint32
	Bulk       bulk.Handle
}

type WriteDataArgs = DataArgs

type ReadDataArgs = DataArgs

// DataReply carries an errno (0 on success) and the bytes moved.
type DataReply struct {
	Err    int32
	IOSize uint64
}

type TruncateDataArgs struct {
	Path   string
	Length uint64
}

type RemoveDataArgs struct {
	Path string
}

type ErrReply struct {
	Err int32
}

type ChunkStatArgs struct {
}

type ChunkStatReply struct {
	Err        int32
	ChunkSize  uint64
	ChunkTotal uint64
	ChunkFree  uint64
}

type IChunkServer interface {
	WriteData(args *WriteDataArgs, reply *DataReply) error
	ReadData(args *ReadDataArgs, reply *DataReply) error
	TruncateData(args *TruncateDataArgs, reply *ErrReply) error
	RemoveData(args *RemoveDataArgs, reply *ErrReply) error
	ChunkStat(args *ChunkStatArgs, reply *ChunkStatReply) error
}
