package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"

	"github.com/jaennil/guide_helper/backend/terrain/pkg/logger"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

type SQLiteCache struct {
	db     *sql.DB
	logger logger.Logger
}

func NewSQLiteCache(path string, l logger.Logger) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &SQLiteCache{
		db:     db,
		logger: l,
	}

	err = c.runMigrations()
	if err != nil {
		db.Close()
		return nil, err
	}

	l.Info("sqlite cache initialized", "path", path)

	return c, nil
}

func (c *SQLiteCache) runMigrations() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	err := goose.SetDialect("sqlite3")
	if err != nil {
		return err
	}

	return goose.Up(c.db, "migrations")
}

var _ TileCache = (*SQLiteCache)(nil)

func (c *SQLiteCache) Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	c.logger.Debug("sqlite cache get", "tile", k)

	query := `SELECT tile_data
	FROM tile_cache
	WHERE layer = ? AND z = ? AND x = ? AND y = ?`

	var tileData []byte
	err := c.db.QueryRowContext(ctx, query, k.Layer, k.Z, k.X, k.Y).Scan(&tileData)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		c.logger.Error("sqlite cache get failed", "tile", k, "error", err)
		return nil, false, err
	}

	return tileData, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, k TileCacheKey, v TileCacheValue) error {
	c.logger.Debug("sqlite cache set", "tile", k, "size", len(v))

	query := `INSERT INTO tile_cache (layer, z, x, y, tile_data)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(layer, z, x, y) DO UPDATE SET tile_data = excluded.tile_data`

	_, err := c.db.ExecContext(ctx, query, k.Layer, k.Z, k.X, k.Y, []byte(v))
	if err != nil {
		c.logger.Error("sqlite cache set failed", "tile", k, "error", err)
		return err
	}

	return nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
