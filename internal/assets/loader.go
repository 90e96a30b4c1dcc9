package assets

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
)

// Source tells where a loaded blob came from.
type Source int

const (
	FromCache Source = iota + 1
	FromNetwork
	FromPlaceholder
)

func (s Source) String() string {
	switch s {
	case FromCache:
		return "cache"
	case FromNetwork:
		return "network"
	case FromPlaceholder:
		return "placeholder"
	}
	return "unknown"
}

// Loader resolves texture URLs through a cache bucket. Fetches have no timeout
// of their own; cancel ctx to abandon them.
type Loader struct {
	Client *http.Client
	Base   *url.URL // resolves relative references; may be nil
	Logger *log.Logger
}

// Load returns the blob for ref: from store if cached, else fetched and
// stored. A failed fetch yields Placeholder(), which is never stored.
func (l *Loader) Load(ctx context.Context, store Store, ref string) ([]byte, Source) {
	key := NormalizePath(ref)
	if blob, ok, err := store.Get(ctx, key); err == nil && ok {
		return blob, FromCache
	} else if err != nil {
		l.logf("cache get %s: %v", key, err)
	}
	blob, err := l.fetch(ctx, ref)
	if err != nil {
		l.logf("fetch %s: %v", ref, err)
		return Placeholder(), FromPlaceholder
	}
	if err := store.Put(ctx, key, blob); err != nil {
		l.logf("cache put %s: %v", key, err)
	}
	return blob, FromNetwork
}

func (l *Loader) fetch(ctx context.Context, ref string) ([]byte, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	if l.Base != nil {
		u = l.Base.ResolveReference(u)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (l *Loader) logf(format string, args ...any) {
	if l.Logger != nil {
		l.Logger.Printf(format, args...)
	}
}
