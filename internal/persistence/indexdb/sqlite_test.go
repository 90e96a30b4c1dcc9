package indexdb

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestAssetCache_BucketRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache", "assets.db")
	c, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer c.Close()

	tex := c.Textures()
	if _, ok, err := tex.Get(ctx, "/textures/blocks/stone"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if err := tex.Put(ctx, "/textures/blocks/stone", []byte{1, 2, 3}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := tex.Put(ctx, "/textures/blocks/dirt", []byte{4}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := tex.Put(ctx, "/textures/blocks/stone", []byte{9}); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err := tex.Get(ctx, "/textures/blocks/stone")
	if err != nil || !ok || !bytes.Equal(got, []byte{9}) {
		t.Fatalf("Get mismatch: %v %v %v", got, ok, err)
	}
	keys, err := tex.Keys(ctx)
	if err != nil || len(keys) != 2 || keys[0] != "/textures/blocks/dirt" {
		t.Fatalf("Keys mismatch: %v %v", keys, err)
	}

	// Buckets are isolated.
	if err := c.Models().Put(ctx, "/models/coal", []byte{7}); err != nil {
		t.Fatalf("Put model: %v", err)
	}
	if err := tex.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n, err := tex.Count(ctx); err != nil || n != 0 {
		t.Fatalf("Count after clear: %d %v", n, err)
	}
	if n, err := c.Models().Count(ctx); err != nil || n != 1 {
		t.Fatalf("clear leaked into models bucket: %d %v", n, err)
	}
	if _, err := c.Bucket("junk"); err == nil {
		t.Fatalf("expected unknown bucket rejected")
	}
}

func TestAssetCache_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "assets.db")
	c, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := c.Static().Put(ctx, "/destroy_stage_0", []byte("png")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := c.SetMeta(ctx, "manifest_digest", "abc"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var (
		bucket string
		digest string
	)
	row := db.QueryRow(`SELECT bucket,digest FROM assets WHERE path='/destroy_stage_0'`)
	if err := row.Scan(&bucket, &digest); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if bucket != BucketStatic || digest != sha256Hex([]byte("png")) {
		t.Fatalf("row mismatch: bucket=%q digest=%q", bucket, digest)
	}

	c2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()
	if v, ok, err := c2.Meta(ctx, "manifest_digest"); err != nil || !ok || v != "abc" {
		t.Fatalf("Meta mismatch: %q %v %v", v, ok, err)
	}
}
