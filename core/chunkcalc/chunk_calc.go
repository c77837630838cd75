// Package chunkcalc maps byte ranges of a file onto fixed size chunks.
package chunkcalc

import "github.com/pyropy/chunkfs/core/model"

// ChunkStart returns the chunk holding byte offset.
func ChunkStart(offset, chunkSize uint64) model.ChunkID {
	return model.ChunkID(offset / chunkSize)
}

// ChunkEnd returns the exclusive upper chunk bound of [offset, offset+length).
func ChunkEnd(offset, length, chunkSize uint64) model.ChunkID {
	end := offset + length
	return model.ChunkID((end + chunkSize - 1) / chunkSize)
}

// ChunkCount returns how many chunks [offset, offset+length) touches.
func ChunkCount(offset, length, chunkSize uint64) uint64 {
	return uint64(ChunkEnd(offset, length, chunkSize) - ChunkStart(offset, chunkSize))
}

// LeftPad returns the number of bytes to skip inside the first touched chunk.
func LeftPad(offset, chunkSize uint64) uint64 {
	return offset % chunkSize
}

// OriginOffset returns where the bytes of chunk id begin inside a buffer that
// holds the range starting at offset. id must not precede the chunk of offset.
func OriginOffset(id model.ChunkID, offset, chunkSize uint64) uint64 {
	begin := uint64(id) * chunkSize
	if begin <= offset {
		return 0
	}

	return begin - offset
}

// Size returns how many bytes of [offset, offset+length) fall into chunk id.
func Size(id model.ChunkID, offset, length, chunkSize uint64) uint64 {
	begin := max(uint64(id)*chunkSize, offset)
	end := min(uint64(id+1)*chunkSize, offset+length)
	if end <= begin {
		return 0
	}

	return end - begin
}

// Truncation describes which chunks survive truncating a file to a new length.
type Truncation struct {
	// Chunk is the chunk holding the new end of file.
	Chunk model.ChunkID
	// LeftPad is the number of bytes Chunk keeps. Zero means Chunk is removed.
	LeftPad uint64
	// TrimFrom is the first chunk to delete.
	TrimFrom model.ChunkID
}

// Truncate computes the truncation boundary for newLength.
func Truncate(newLength, chunkSize uint64) Truncation {
	t := Truncation{
		Chunk:   ChunkStart(newLength, chunkSize),
		LeftPad: LeftPad(newLength, chunkSize),
	}

	t.TrimFrom = t.Chunk
	if t.LeftPad != 0 {
		t.TrimFrom++
	}

	return t
}

// KeepsBoundary reports whether the boundary chunk is truncated in place
// rather than deleted.
func (t Truncation) KeepsBoundary() bool {
	return t.LeftPad != 0
}
