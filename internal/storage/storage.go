package storage

import (
	"fmt"
	"strings"
	"time"
)

// Package storage remembers which targets were fetched recently.

// Store tracks fetches by key. A key is seen until its TTL runs out.
type Store interface {
	Close() error
	SeenFetch(key string) (bool, error)
	MarkFetch(key string, status int) error
}

// Options controls retention for concrete store implementations.
type Options struct {
	FetchTTL        time.Duration
	CleanupInterval time.Duration
}

const (
	defaultFetchTTL        = time.Hour
	defaultCleanupInterval = 6 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.FetchTTL <= 0 {
		opts.FetchTTL = defaultFetchTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                   { return nil }
func (noopStore) SeenFetch(string) (bool, error) { return false, nil }
func (noopStore) MarkFetch(string, int) error    { return nil }
