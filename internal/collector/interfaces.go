package collector

import (
	"context"

	"github.com/samvad-hq/samvad-fetcher/pkg/fetcher"
	"github.com/samvad-hq/samvad-fetcher/pkg/publishers"
)

// Fetcher dispatches a single request. *fetcher.Engine satisfies it.
type Fetcher interface {
	Do(ctx context.Context, method, url string, opts fetcher.RequestOptions) (*fetcher.Response, error)
}

// EventPublisher publishes snapshots downstream and reports how many sinks accepted them.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Deduper remembers recent fetches.
type Deduper interface {
	SeenFetch(key string) (bool, error)
	MarkFetch(key string, status int) error
}
