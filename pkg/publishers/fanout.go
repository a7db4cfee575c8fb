package publishers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/samvad-hq/samvad-fetcher/internal/logger"
)

// Fanout hands every event to all sinks at once, so a slow sink does not
// hold back the others.
type Fanout struct {
	sinks []Publisher
	log   logger.Logger
}

// NewFanout drops nil sinks.
func NewFanout(sinks []Publisher, log logger.Logger) *Fanout {
	kept := make([]Publisher, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Fanout{sinks: kept, log: logger.OrNop(log)}
}

// Publish returns how many sinks accepted evt, with every failure joined
// into the error.
func (f *Fanout) Publish(ctx context.Context, evt Event) (int, error) {
	if f == nil || len(f.sinks) == 0 {
		return 0, nil
	}

	failures := make([]error, len(f.sinks))
	var wg sync.WaitGroup
	for i, sink := range f.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sink.Publish(ctx, evt); err != nil {
				failures[i] = fmt.Errorf("%s publisher[%s]: %w", sink.Type(), sink.ID(), err)
			}
		}()
	}
	wg.Wait()

	delivered := 0
	for _, err := range failures {
		if err == nil {
			delivered++
		}
	}
	if delivered < len(f.sinks) {
		f.log.WarnObj("event missed some sinks", "fanout_delivery", map[string]any{
			"target_id": evt.TargetID,
			"delivered": delivered,
			"sinks":     len(f.sinks),
		})
	}
	return delivered, errors.Join(failures...)
}

// Size returns the number of sinks.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.sinks)
}

// Close releases sinks that hold connections.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	return closeAll(f.sinks)
}

func closeAll(sinks []Publisher) error {
	var errs []error
	for _, s := range sinks {
		c, ok := s.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s publisher[%s]: %w", s.Type(), s.ID(), err))
		}
	}
	return errors.Join(errs...)
}
