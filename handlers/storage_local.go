package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalBlobStore writes artifacts under a local directory and serves them
// through the /uploads/ static route. Used in development.
type LocalBlobStore struct {
	baseDir string
}

func NewLocalBlobStore(baseDir string) *LocalBlobStore {
	return &LocalBlobStore{baseDir: baseDir}
}

func (s *LocalBlobStore) Put(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(objectPath))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return "/uploads/" + objectPath, nil
}

func (s *LocalBlobStore) Delete(ctx context.Context, objectPath string) error {
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(objectPath))
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
