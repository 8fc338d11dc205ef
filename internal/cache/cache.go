// Package cache stores generated modules in a SQLite database under the
// project directory, keyed by a hash of everything that went into them.
package cache

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dchest/siphash"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/funvibe/matchgen/internal/config"
)

// Fixed siphash keys; cache keys only need to be stable, not secret.
const (
	k0 = 0x6d6174636867265
	k1 = 0x6e2d636163686531
)

const schema = `CREATE TABLE IF NOT EXISTS artifacts (
	key     TEXT PRIMARY KEY,
	id      TEXT NOT NULL,
	created INTEGER NOT NULL,
	size    INTEGER NOT NULL,
	ir      BLOB NOT NULL
)`

// Entry describes a cached artifact.
type Entry struct {
	Key     string
	ID      string
	Created time.Time
	// Size is the uncompressed size of the IR.
	Size int
	IR   []byte
}

// Cache is an open artifact database.
type Cache struct {
	path string
	db   *sql.DB
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// Key returns the cache key of the given inputs, in order. The codegen
// version is always part of the key.
func Key(parts ...[]byte) string {
	var buf bytes.Buffer
	for _, p := range parts {
		fmt.Fprintf(&buf, "%d:", len(p))
		buf.Write(p)
	}
	buf.WriteString(config.CodegenVersion)
	lo, hi := siphash.Hash128(k0, k1, buf.Bytes())
	var sum [16]byte
	for i := 0; i < 8; i++ {
		sum[i] = byte(lo >> (8 * i))
		sum[8+i] = byte(hi >> (8 * i))
	}
	return hex.EncodeToString(sum[:])
}

// Open opens the cache database at path, creating it if needed.
func Open(ctx context.Context, path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache %s: %w", path, err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		enc.Close()
		db.Close()
		return nil, err
	}
	return &Cache{path: path, db: db, enc: enc, dec: dec}, nil
}

// Path returns the database file.
func (c *Cache) Path() string {
	return c.path
}

// Lookup returns the artifact stored under key. ok is false on a miss.
func (c *Cache) Lookup(ctx context.Context, key string) (e *Entry, ok bool, err error) {
	var (
		id      string
		created int64
		size    int
		blob    []byte
	)
	row := c.db.QueryRowContext(ctx,
		`SELECT id, created, size, ir FROM artifacts WHERE key = ?`, key)
	if err := row.Scan(&id, &created, &size, &blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache lookup: %w", err)
	}
	if size < 0 {
		return nil, false, fmt.Errorf("cache entry %s: invalid size %d", id, size)
	}
	ir, err := c.dec.DecodeAll(blob, make([]byte, 0, size))
	if err != nil {
		return nil, false, fmt.Errorf("cache entry %s: %w", id, err)
	}
	if len(ir) != size {
		return nil, false, fmt.Errorf("cache entry %s: size %d, want %d", id, len(ir), size)
	}
	return &Entry{Key: key, ID: id, Created: time.Unix(created, 0), Size: size, IR: ir}, true, nil
}

// Store saves ir under key, replacing any previous entry.
func (c *Cache) Store(ctx context.Context, key string, ir []byte) (*Entry, error) {
	e := &Entry{
		Key:     key,
		ID:      uuid.New().String(),
		Created: time.Now().Truncate(time.Second),
		Size:    len(ir),
		IR:      ir,
	}
	blob := c.enc.EncodeAll(ir, nil)
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO artifacts (key, id, created, size, ir) VALUES (?, ?, ?, ?, ?)`,
		e.Key, e.ID, e.Created.Unix(), e.Size, blob)
	if err != nil {
		return nil, fmt.Errorf("cache store: %w", err)
	}
	return e, nil
}

// Clean removes every entry and returns how many there were.
func (c *Cache) Clean(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM artifacts`)
	if err != nil {
		return 0, fmt.Errorf("cache clean: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database and the codecs.
func (c *Cache) Close() error {
	c.dec.Close()
	c.enc.Close()
	return c.db.Close()
}
