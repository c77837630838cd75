package constants

const (
	// CHUNK_SIZE_BYTES is the default system wide chunk size.
	CHUNK_SIZE_BYTES uint64 = 512 * 1024
)
