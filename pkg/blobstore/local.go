package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/evura/portal-api/pkg/security"
)

// LocalStore writes blobs into a single directory. When an Encryptor is set,
// blobs are sealed with it before they touch the disk.
type LocalStore struct {
	dir     string
	maxSize int64
	enc     security.Encryptor
}

func NewLocalStore(dir string, maxSize int64, enc security.Encryptor) (*LocalStore, error) {
	if maxSize <= 0 {
		maxSize = MaxUploadSize
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, maxSize: maxSize, enc: enc}, nil
}

// Put stores the blob atomically: the content lands in a temp file which is
// renamed into place only after a successful write.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader) (*Object, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}
	data, err := readLimited(r, s.maxSize)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	obj := &Object{Key: key, Size: int64(len(data)), ContentType: DetectContentType(data)}

	if s.enc != nil {
		if data, err = s.enc.Encrypt(data); err != nil {
			return nil, fmt.Errorf("failed to encrypt blob: %w", err)
		}
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to sync blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to close blob: %w", err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to move blob into place: %w", err)
	}

	return obj, nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if !validKey(key) {
		return nil, ErrBlobNotFound
	}
	if s.enc == nil {
		f, err := os.Open(s.path(key))
		if err != nil {
			return nil, mapNotExist(err)
		}
		return f, nil
	}

	sealed, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, mapNotExist(err)
	}
	plain, err := s.enc.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt blob: %w", err)
	}
	return io.NopCloser(bytes.NewReader(plain)), nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	if err := os.Remove(s.path(key)); err != nil {
		return mapNotExist(err)
	}
	return nil
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.dir, key)
}

func mapNotExist(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return ErrBlobNotFound
	}
	return fmt.Errorf("blob I/O failed: %w", err)
}
