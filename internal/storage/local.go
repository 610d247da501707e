package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes documents below a directory on the local disk
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		root = "uploads"
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Store(ctx context.Context, blob []byte, maxSize int64, kind Kind) (string, error) {
	mime, err := Validate(blob, maxSize, kind)
	if err != nil {
		return "", err
	}

	handle := newHandle(mime)
	if err := os.WriteFile(filepath.Join(s.root, handle), blob, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return handle, nil
}

func (s *LocalStore) Load(ctx context.Context, handle string) ([]byte, error) {
	path, err := s.path(handle)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *LocalStore) Delete(ctx context.Context, handle string) error {
	path, err := s.path(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// path rejects handles that would escape the root directory
func (s *LocalStore) path(handle string) (string, error) {
	if handle == "" || strings.ContainsAny(handle, `/\`) || strings.Contains(handle, "..") {
		return "", ErrNotFound
	}
	return filepath.Join(s.root, handle), nil
}
