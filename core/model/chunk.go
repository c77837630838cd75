package model

// ChunkID is the index of a chunk within a file. Chunk 0 starts at byte 0.
type ChunkID uint64

// Host identifies a data serving node, 0 <= Host < host_size.
type Host uint32

// ChunkStat is a snapshot of local chunk storage capacity, counted in chunks.
type ChunkStat struct {
	ChunkSize  uint64
	ChunkTotal uint64
	ChunkFree  uint64
}
