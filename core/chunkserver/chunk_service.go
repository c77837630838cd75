package chunkserver

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	fp "path/filepath"
	"strconv"
	"strings"

	"github.com/pyropy/chunkfs/core/model"
	"golang.org/x/sys/unix"
)

// ChunkStore performs the local file operations for single chunks.
type ChunkStore interface {
	WriteChunk(path string, id model.ChunkID, data []byte, offset uint64) (int, error)
	ReadChunk(path string, id model.ChunkID, buf []byte, offset uint64) (int, error)
	TruncateChunk(path string, id model.ChunkID, size uint64) error
	TrimChunkSpace(path string, from model.ChunkID) error
	DestroyChunkSpace(path string) error
	ChunkStat() (model.ChunkStat, error)
}

// ChunkService stores every chunk as its own file below
// <root>/<chunk dir of path>/<decimal chunk id>.
type ChunkService struct {
	root      string
	chunkSize uint64
}

func NewChunkService(root string, chunkSize uint64) (*ChunkService, error) {
	err := os.MkdirAll(root, 0750)
	if err != nil {
		return nil, err
	}

	return &ChunkService{
		root:      root,
		chunkSize: chunkSize,
	}, nil
}

var chunkDirEscaper = strings.NewReplacer("%", "%25", ":", "%3A", "/", ":")

// GetChunkDir flattens a file path into a single directory name. Distinct
// paths always map to distinct names.
func GetChunkDir(filePath string) string {
	name := chunkDirEscaper.Replace(strings.TrimPrefix(filePath, "/"))

	switch name {
	case "":
		return "%2F"
	case ".", "..":
		return strings.ReplaceAll(name, ".", "%2E")
	}

	return name
}

func GetChunkFilename(id model.ChunkID) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (cs *ChunkService) chunkDir(filePath string) string {
	return fp.Join(cs.root, GetChunkDir(filePath))
}

func (cs *ChunkService) GetChunkPath(filePath string, id model.ChunkID) string {
	return fp.Join(cs.chunkDir(filePath), GetChunkFilename(id))
}

// WriteChunk writes data into chunk id at offset, creating the chunk dir and
// the chunk file when needed.
func (cs *ChunkService) WriteChunk(filePath string, id model.ChunkID, data []byte, offset uint64) (int, error) {
	if offset+uint64(len(data)) > cs.chunkSize {
		return 0, fmt.Errorf("write chunk %d of %s: %d bytes at %d exceed chunk size %d: %w", id, filePath, len(data), offset, cs.chunkSize, unix.EINVAL)
	}

	err := os.MkdirAll(cs.chunkDir(filePath), 0750)
	if err != nil && !os.IsExist(err) {
		return 0, err
	}

	f, err := os.OpenFile(cs.GetChunkPath(filePath, id), os.O_WRONLY|os.O_CREATE, 0640)
	if err != nil {
		return 0, err
	}

	defer f.Close()

	bytesWritten, err := f.WriteAt(data, int64(offset))
	if err != nil {
		return bytesWritten, err
	}

	return bytesWritten, nil
}

// ReadChunk reads up to len(buf) bytes of chunk id starting at offset. A
// missing chunk is a hole and reads as zero bytes without error.
func (cs *ChunkService) ReadChunk(filePath string, id model.ChunkID, buf []byte, offset uint64) (int, error) {
	f, err := os.Open(cs.GetChunkPath(filePath, id))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}

	if err != nil {
		return 0, err
	}

	defer f.Close()

	bytesRead, err := f.ReadAt(buf, int64(offset))
	if err != nil && !errors.Is(err, io.EOF) {
		return bytesRead, err
	}

	return bytesRead, nil
}

// TruncateChunk shrinks chunk id to size bytes. Chunks that do not exist on
// this host are ignored.
func (cs *ChunkService) TruncateChunk(filePath string, id model.ChunkID, size uint64) error {
	err := os.Truncate(cs.GetChunkPath(filePath, id), int64(size))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

// TrimChunkSpace removes every chunk of filePath with an id >= from. All
// chunks are attempted; the first failure is returned.
func (cs *ChunkService) TrimChunkSpace(filePath string, from model.ChunkID) error {
	dir := cs.chunkDir(filePath)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return err
	}

	var firstErr error
	for _, e := range entries {
		id, err := strconv.ParseUint(e.Name(), 10, 64)
		if err != nil || model.ChunkID(id) < from {
			continue
		}

		err = os.Remove(fp.Join(dir, e.Name()))
		if err != nil && !errors.Is(err, fs.ErrNotExist) && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// DestroyChunkSpace removes the chunk dir of filePath and all its chunks.
func (cs *ChunkService) DestroyChunkSpace(filePath string) error {
	return os.RemoveAll(cs.chunkDir(filePath))
}

// ChunkStat reports the capacity of the chunk root in units of chunks.
func (cs *ChunkService) ChunkStat() (model.ChunkStat, error) {
	var st unix.Statfs_t
	err := unix.Statfs(cs.root, &st)
	if err != nil {
		return model.ChunkStat{}, err
	}

	bsize := uint64(st.Bsize)

	return model.ChunkStat{
		ChunkSize:  cs.chunkSize,
		ChunkTotal: uint64(st.Blocks) * bsize / cs.chunkSize,
		ChunkFree:  uint64(st.Bavail) * bsize / cs.chunkSize,
	}, nil
}
