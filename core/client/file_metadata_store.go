package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	ds "github.com/ipfs/go-datastore"
	dsq "github.com/ipfs/go-datastore/query"
	dslvl "github.com/ipfs/go-ds-leveldb"
	"github.com/pyropy/chunkfs/core/model"
)

var (
	ErrFileNotFound = errors.New("file not found")
)

// FileMetadataStore remembers the files this client wrote and their sizes.
type FileMetadataStore struct {
	Files *dslvl.Datastore
}

func NewFileMetadataStore(dsPath string) (*FileMetadataStore, error) {
	p := fmt.Sprintf("%s/files", dsPath)
	store, err := dslvl.NewDatastore(p, nil)
	if err != nil {
		return nil, err
	}

	return &FileMetadataStore{
		Files: store,
	}, nil
}

func (f *FileMetadataStore) Get(ctx context.Context, filePath model.FilePath) (*model.FileMetadata, error) {
	k := ds.NewKey(filePath)
	b, err := f.Files.Get(ctx, k)
	if errors.Is(err, ds.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filePath)
	}

	if err != nil {
		return nil, err
	}

	var file model.FileMetadata
	err = json.Unmarshal(b, &file)
	if err != nil {
		return nil, err
	}

	return &file, nil
}

func (f *FileMetadataStore) CheckFileExists(ctx context.Context, filePath model.FilePath) (bool, error) {
	k := ds.NewKey(filePath)
	exists, err := f.Files.Has(ctx, k)
	if err != nil {
		return false, err
	}

	return exists, nil
}

func (f *FileMetadataStore) AddNewFileMetadata(ctx context.Context, filePath model.FilePath, metadata model.FileMetadata) error {
	b, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	k := ds.NewKey(filePath)
	return f.Files.Put(ctx, k, b)
}

// UpdateSize sets the size of filePath, creating its metadata if needed.
// With grow set the size only ever increases.
func (f *FileMetadataStore) UpdateSize(ctx context.Context, filePath model.FilePath, size uint64, grow bool) (*model.FileMetadata, error) {
	file, err := f.Get(ctx, filePath)
	if errors.Is(err, ErrFileNotFound) {
		metadata := model.NewFileMetadata(filePath)
		file, err = &metadata, nil
	}

	if err != nil {
		return nil, err
	}

	if grow && size < file.Size {
		return file, nil
	}

	file.Size = size
	err = f.AddNewFileMetadata(ctx, filePath, *file)
	if err != nil {
		return nil, err
	}

	return file, nil
}

func (f *FileMetadataStore) Delete(ctx context.Context, filePath model.FilePath) error {
	return f.Files.Delete(ctx, ds.NewKey(filePath))
}

func (f *FileMetadataStore) All(ctx context.Context) ([]*model.FileMetadata, error) {
	q := dsq.Query{}
	files := make([]*model.FileMetadata, 0)

	res, err := f.Files.Query(ctx, q)
	if err != nil {
		return files, err
	}

	defer res.Close()

	for {
		r, hasNext := res.NextSync()
		if !hasNext {
			break
		}

		if r.Error != nil {
			return files, r.Error
		}

		var file model.FileMetadata
		err = json.Unmarshal(r.Value, &file)
		if err != nil {
			return files, err
		}
		files = append(files, &file)
	}

	return files, nil
}

func (f *FileMetadataStore) Close() error {
	return f.Files.Close()
}
