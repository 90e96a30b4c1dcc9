package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Buckets partition the asset cache. Only the textures bucket is validated
// against the server manifest.
const (
	BucketTextures = "textures"
	BucketStatic   = "static"
	BucketModels   = "models"
)

var buckets = map[string]bool{
	BucketTextures: true,
	BucketStatic:   true,
	BucketModels:   true,
}

// AssetCache is the persistent path -> blob store. Every call runs in its own
// transaction.
type AssetCache struct {
	db   *sql.DB
	once sync.Once
}

func OpenSQLite(path string) (*AssetCache, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &AssetCache{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS assets (
			bucket TEXT NOT NULL,
			path TEXT NOT NULL,
			blob BLOB NOT NULL,
			digest TEXT NOT NULL,
			stored_at TEXT NOT NULL,
			PRIMARY KEY (bucket, path)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *AssetCache) Close() error {
	var err error
	c.once.Do(func() {
		err = c.db.Close()
	})
	return err
}

// Bucket returns a handle scoped to one bucket.
func (c *AssetCache) Bucket(name string) (*Bucket, error) {
	if !buckets[name] {
		return nil, fmt.Errorf("indexdb: unknown bucket %q", name)
	}
	return &Bucket{db: c.db, name: name}, nil
}

func (c *AssetCache) Textures() *Bucket { return &Bucket{db: c.db, name: BucketTextures} }
func (c *AssetCache) Static() *Bucket   { return &Bucket{db: c.db, name: BucketStatic} }
func (c *AssetCache) Models() *Bucket   { return &Bucket{db: c.db, name: BucketModels} }

// SetMeta and Meta keep small bookkeeping values such as the last manifest digest.
func (c *AssetCache) SetMeta(ctx context.Context, key, value string) error {
	_, err := c.db.ExecContext(ctx, `INSERT INTO meta(key,value) VALUES(?,?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

func (c *AssetCache) Meta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

type Bucket struct {
	db   *sql.DB
	name string
}

func (b *Bucket) Name() string { return b.name }

func (b *Bucket) Get(ctx context.Context, path string) ([]byte, bool, error) {
	var blob []byte
	err := b.db.QueryRowContext(ctx, `SELECT blob FROM assets WHERE bucket=? AND path=?`, b.name, path).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", b.name, path, err)
	}
	return blob, true, nil
}

func (b *Bucket) Put(ctx context.Context, path string, blob []byte) error {
	return b.tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO assets(bucket,path,blob,digest,stored_at) VALUES(?,?,?,?,?)
			ON CONFLICT(bucket,path) DO UPDATE SET blob=excluded.blob, digest=excluded.digest, stored_at=excluded.stored_at`,
			b.name, path, blob, sha256Hex(blob), time.Now().UTC().Format(time.RFC3339Nano))
		return err
	})
}

func (b *Bucket) Clear(ctx context.Context) error {
	return b.tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE bucket=?`, b.name)
		return err
	})
}

func (b *Bucket) Count(ctx context.Context) (int, error) {
	var n int
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets WHERE bucket=?`, b.name).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", b.name, err)
	}
	return n, nil
}

// Keys lists stored paths in ascending order.
func (b *Bucket) Keys(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT path FROM assets WHERE bucket=? ORDER BY path`, b.name)
	if err != nil {
		return nil, fmt.Errorf("keys %s: %w", b.name, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// tx commits fn's writes as a unit or rolls them back.
func (b *Bucket) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", b.name, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%s: %w", b.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", b.name, err)
	}
	return nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
