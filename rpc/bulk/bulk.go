package bulk

import "github.com/google/uuid"

// Handle names a buffer exposed by a requester for one-sided transfers.
type Handle struct {
	ID   uuid.UUID
	Addr string // BulkAPI address of the exposing process, empty for in-process buffers
	Size uint64
}

type PullArgs struct {
	ID     uuid.UUID
	Offset uint64
	Length uint64
}

type PullReply struct {
	Data     []byte
	CheckSum uint32
}

type PushArgs struct {
	ID       uuid.UUID
	Offset   uint64
	Data     []byte
	CheckSum uint32
}

type PushReply struct {
	NumBytesReceived int
}

type IBulk interface {
	Pull(args *PullArgs, reply *PullReply) error
	Push(args *PushArgs, reply *PushReply) error
}
