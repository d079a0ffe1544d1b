package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// FilesystemCache keeps tiles under root/layer/z/x/y.
type FilesystemCache struct {
	root string
}

func NewFilesystemCache(root string) (*FilesystemCache, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache root: %w", err)
	}
	return &FilesystemCache{root: root}, nil
}

var _ TileCache = (*FilesystemCache)(nil)

func (c *FilesystemCache) Get(_ context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	content, err := os.ReadFile(c.pathFor(k))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return content, true, nil
}

// Set writes through a temporary file so readers never see a partial tile.
func (c *FilesystemCache) Set(_ context.Context, k TileCacheKey, v TileCacheValue) error {
	path := c.pathFor(k)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tile-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(v); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (c *FilesystemCache) Close() error {
	return nil
}

func (c *FilesystemCache) pathFor(k TileCacheKey) string {
	return filepath.Join(c.root, k.Layer, strconv.Itoa(k.Z), strconv.Itoa(k.X), strconv.Itoa(k.Y))
}
