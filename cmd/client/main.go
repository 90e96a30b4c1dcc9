package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gridcraft.app/internal/assets"
	"gridcraft.app/internal/persistence/indexdb"
	persistlog "gridcraft.app/internal/persistence/log"
	"gridcraft.app/internal/render"
	"gridcraft.app/internal/session"
	"gridcraft.app/internal/settings"
	"gridcraft.app/internal/transport/ws"
)

func main() {
	var (
		settingsPath = flag.String("settings", "./settings.yaml", "settings file (yaml or json, optional)")
		backend      = flag.String("backend", "", "backend base url (or set GC_BACKEND_URL; default from settings)")
		storage      = flag.String("storage", "", "static storage base url (default from settings)")
		token        = flag.String("token", "", "session token (or set GC_TOKEN)")
		cachePath    = flag.String("cache", "./data/assets.db", "persistent asset cache")
		journalDir   = flag.String("journal", "", "session journal directory (empty to disable)")
		fps          = flag.Int("fps", 0, "frame rate override (0 = settings)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[client] ", log.LstdFlags|log.Lmicroseconds)

	st, err := settings.Load(*settingsPath)
	if err != nil {
		logger.Fatalf("load settings: %v", err)
	}
	st.BackendURL = firstNonEmpty(*backend, os.Getenv("GC_BACKEND_URL"), st.BackendURL)
	st.StorageURL = firstNonEmpty(*storage, st.StorageURL)
	if *fps > 0 {
		st.FPS = *fps
	}
	tok := firstNonEmpty(*token, os.Getenv("GC_TOKEN"))
	if tok == "" {
		logger.Fatalf("missing -token (or GC_TOKEN)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := indexdb.OpenSQLite(*cachePath)
	if err != nil {
		logger.Fatalf("open asset cache: %v", err)
	}
	defer cache.Close()

	httpClient := &http.Client{}
	manifest, err := assets.FetchManifest(ctx, httpClient, st.BackendURL)
	if err != nil {
		logger.Fatalf("manifest: %v", err)
	}
	noteManifest(ctx, cache, manifest, logger)

	base, err := url.Parse(strings.TrimRight(st.BackendURL, "/") + "/")
	if err != nil {
		logger.Fatalf("backend url: %v", err)
	}
	assetLog := log.New(os.Stdout, "[assets] ", log.LstdFlags|log.Lmicroseconds)
	pipe := &assets.Pipeline{
		Loader:     &assets.Loader{Client: httpClient, Base: base, Logger: assetLog},
		Textures:   cache.Textures(),
		Static:     cache.Static(),
		Models:     cache.Models(),
		StorageURL: st.StorageURL,
		Logger:     assetLog,
	}
	started := time.Now()
	catalog, err := pipe.Load(ctx, manifest)
	if err != nil {
		logger.Fatalf("assets: %v", err)
	}
	logger.Printf("assets ready: objects=%d icons=%d in %s", len(catalog.Objects), len(catalog.Icons), time.Since(started).Round(time.Millisecond))

	meshes, err := assets.NewMeshCache()
	if err != nil {
		logger.Fatalf("mesh cache: %v", err)
	}
	defer meshes.Close()

	conn := ws.NewClient(st.BackendURL, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds))
	if err := conn.Connect(ctx, tok); err != nil {
		logger.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	opts := session.Options{Sender: conn, Logger: logger}
	if *journalDir != "" {
		j := persistlog.NewSessionJournal(*journalDir)
		defer j.Close()
		opts.Recorder = j
	}
	sess := session.New(opts)
	orch := render.NewOrchestrator(sess, render.Options{
		Scene:    render.NewHeadlessScene(),
		Catalog:  catalog,
		Meshes:   meshes,
		Settings: st,
		Logger:   logger,
	})
	loop := render.NewLoop(sess, orch, st.FrameInterval(), logger)

	err = loop.Run(ctx, conn.Inbound())
	for _, n := range sess.Notices() {
		logger.Printf("notice %s: %s", n.Code, n.Description)
	}
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Printf("bye (frames=%d)", loop.Frames())
	case errors.Is(err, session.ErrFatal):
		logger.Fatalf("session ended: %v", err)
	case errors.Is(err, render.ErrInboundClosed):
		logger.Fatalf("connection lost: %v", conn.Err())
	default:
		logger.Fatalf("loop: %v", err)
	}
}

// noteManifest logs when the server manifest changed since the last run.
func noteManifest(ctx context.Context, cache *indexdb.AssetCache, m assets.Manifest, logger *log.Logger) {
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	sum := sha256.Sum256(b)
	digest := hex.EncodeToString(sum[:])
	prev, ok, err := cache.Meta(ctx, "manifest_digest")
	if err != nil {
		logger.Printf("cache meta: %v", err)
		return
	}
	if ok && prev != digest {
		logger.Printf("manifest changed since last run")
	}
	if err := cache.SetMeta(ctx, "manifest_digest", digest); err != nil {
		logger.Printf("cache meta: %v", err)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
