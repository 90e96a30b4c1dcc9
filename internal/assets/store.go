package assets

import (
	"context"
	"fmt"
	"log"
	"sort"
)

// Store is one bucket of the persistent asset cache.
type Store interface {
	Get(ctx context.Context, path string) ([]byte, bool, error)
	Put(ctx context.Context, path string, blob []byte) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Keys(ctx context.Context) ([]string, error)
}

// Validate compares the store against the expected key set. On any count or
// key mismatch the whole store is cleared; cleared reports whether that happened.
func Validate(ctx context.Context, s Store, expected []string, logger *log.Logger) (cleared bool, err error) {
	n, err := s.Count(ctx)
	if err != nil {
		return false, err
	}
	if n == len(expected) {
		keys, err := s.Keys(ctx)
		if err != nil {
			return false, err
		}
		if sameKeys(keys, expected) {
			return false, nil
		}
	}
	if logger != nil {
		logger.Printf("cache mismatch: %d cached, %d expected; clearing", n, len(expected))
	}
	if err := s.Clear(ctx); err != nil {
		return false, fmt.Errorf("clear cache: %w", err)
	}
	return true, nil
}

func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
