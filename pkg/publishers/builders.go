package publishers

import (
	"context"
	"fmt"

	"github.com/samvad-hq/samvad-fetcher/internal/logger"
)

// Builder opens a sink from its config.
type Builder func(ctx context.Context, cfg Config, log logger.Logger) (Publisher, error)

// Builders maps sink types to their constructors.
type Builders map[string]Builder

// DefaultBuilders knows every sink type this package ships.
func DefaultBuilders() Builders {
	return Builders{
		TypeHTTP:   newHTTPPublisher,
		TypeSQS:    newSQSPublisher,
		TypeSNS:    newSNSPublisher,
		TypePubSub: newPubSubPublisher,
	}
}

// Open builds one sink per config and returns them behind a Fanout.
// Sinks opened before a failure are closed again.
func (b Builders) Open(ctx context.Context, cfgs []Config, log logger.Logger) (*Fanout, error) {
	log = logger.OrNop(log)

	sinks := make([]Publisher, 0, len(cfgs))
	for _, cfg := range cfgs {
		build, ok := b[cfg.Type]
		if !ok {
			_ = closeAll(sinks)
			return nil, fmt.Errorf("publisher %q: no builder for type %q", cfg.ID, cfg.Type)
		}
		sink, err := build(ctx, cfg, log)
		if err != nil {
			_ = closeAll(sinks)
			return nil, fmt.Errorf("publisher %q: %w", cfg.ID, err)
		}
		sinks = append(sinks, sink)
	}
	return NewFanout(sinks, log), nil
}
