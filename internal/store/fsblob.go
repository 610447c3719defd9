package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"document-qa-platform/internal/errs"
)

// FSBlobStore keeps uploaded files on local disk under a root directory.
// Keys are generated by this application, never taken from user input,
// but traversal is still rejected.
type FSBlobStore struct {
	root string
}

func NewFSBlobStore(root string) (*FSBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errs.NewStorageError("create storage dir", err)
	}
	return &FSBlobStore{root: root}, nil
}

func (f *FSBlobStore) path(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return "", errs.NewValidationError("blob_key", "malformed key: "+key)
	}
	return filepath.Join(f.root, key), nil
}

func (f *FSBlobStore) Put(ctx context.Context, key string, data []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}

	// Write through a temp file so a crashed write never leaves a
	// half-written blob under the final key.
	tmp, err := os.CreateTemp(f.root, ".upload-*")
	if err != nil {
		return errs.NewStorageError("create temp blob", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.NewStorageError("write blob", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errs.NewStorageError("close blob", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return errs.NewStorageError("store blob", err)
	}
	return nil
}

func (f *FSBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.NewNotFoundError("blob", key)
	}
	if err != nil {
		return nil, errs.NewStorageError("read blob", err)
	}
	return data, nil
}

func (f *FSBlobStore) Delete(ctx context.Context, key string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errs.NewStorageError("delete blob", err)
	}
	return nil
}

var _ BlobStore = (*FSBlobStore)(nil)
