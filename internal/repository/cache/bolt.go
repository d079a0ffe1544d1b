package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/jaennil/guide_helper/backend/terrain/pkg/logger"
	bolt "go.etcd.io/bbolt"
)

// BoltCache keeps tiles in a single bbolt file with one bucket per layer.
type BoltCache struct {
	db     *bolt.DB
	logger logger.Logger
}

func NewBoltCache(path string, l logger.Logger) (*BoltCache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt cache: %w", err)
	}

	l.Info("bolt cache initialized", "path", path)

	return &BoltCache{db: db, logger: l}, nil
}

var _ TileCache = (*BoltCache)(nil)

func (c *BoltCache) Get(_ context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	var value TileCacheValue
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(k.Layer))
		if bucket == nil {
			return nil
		}
		// Bolt values are only valid inside the transaction.
		if v := bucket.Get(boltKey(k)); v != nil {
			value = append(TileCacheValue{}, v...)
			found = true
		}
		return nil
	})
	if err != nil {
		c.logger.Error("bolt cache get failed", "tile", k, "error", err)
		return nil, false, err
	}

	return value, found, nil
}

func (c *BoltCache) Set(_ context.Context, k TileCacheKey, v TileCacheValue) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(k.Layer))
		if err != nil {
			return err
		}
		return bucket.Put(boltKey(k), v)
	})
	if err != nil {
		c.logger.Error("bolt cache set failed", "tile", k, "error", err)
	}
	return err
}

func (c *BoltCache) Close() error {
	return c.db.Close()
}

// boltKey orders tiles by level, then row, then column.
func boltKey(k TileCacheKey) []byte {
	key := make([]byte, 12)
	binary.BigEndian.PutUint32(key[0:4], uint32(k.Z))
	binary.BigEndian.PutUint32(key[4:8], uint32(k.Y))
	binary.BigEndian.PutUint32(key[8:12], uint32(k.X))
	return key
}
