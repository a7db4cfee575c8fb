package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-fetcher/internal/logger"
	"github.com/samvad-hq/samvad-fetcher/pkg/publishers"
	"github.com/samvad-hq/samvad-fetcher/pkg/targets"
)

// Service runs fetch passes over a list of targets.
type Service struct {
	fetcher   Fetcher
	publisher EventPublisher
	log       logger.Logger
	dedupe    Deduper
	now       func() time.Time
	wait      func(ctx context.Context, d time.Duration) error
}

// NewService wires a collector. publisher and dedupe may be nil.
func NewService(f Fetcher, pub EventPublisher, log logger.Logger, dedupe Deduper) *Service {
	log = logger.OrNop(log)
	return &Service{
		fetcher:   f,
		publisher: pub,
		log:       log,
		dedupe:    dedupe,
		now:       time.Now,
		wait:      sleepCtx,
	}
}

// Run fetches every target in order, pausing for each target's request
// delay between fetches. Failures are logged and joined into the result;
// a cancelled context stops the pass without an error.
func (s *Service) Run(ctx context.Context, tgts []targets.Target) error {
	if s == nil || s.fetcher == nil {
		return fmt.Errorf("collector service is not initialized")
	}
	if len(tgts) == 0 {
		return fmt.Errorf("no targets configured for fetching")
	}

	errs := s.runAll(ctx, tgts)
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (s *Service) runAll(ctx context.Context, tgts []targets.Target) []error {
	errs := make([]error, 0, len(tgts))

	for i, t := range tgts {
		if i > 0 {
			if err := s.wait(ctx, t.RequestDelay()); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		if err := s.runTarget(ctx, t); err != nil {
			if ctx.Err() != nil {
				break
			}
			errs = append(errs, err)
			s.log.ErrorObj("target fetch failed", "target_error", map[string]any{
				"target_id": t.ID,
				"error":     err.Error(),
			})
		}
	}

	return errs
}

func (s *Service) runTarget(ctx context.Context, t targets.Target) error {
	key := dedupeKey(t)
	if s.seen(t, key) {
		s.log.DebugObj("target fetched recently; skipping", "target_skip", map[string]any{
			"target_id": t.ID,
		})
		return nil
	}

	start := s.now()
	resp, err := s.fetcher.Do(ctx, t.Method, t.URL, t.Options())
	if err != nil {
		return fmt.Errorf("fetch target %s: %w", t.ID, err)
	}

	snap := BuildSnapshot(t, resp, start)
	s.log.InfoObj("target fetched", "target_result", map[string]any{
		"target_id":      t.ID,
		"status":         snap.Status,
		"final_url":      snap.FinalURL,
		"encoding":       snap.Encoding,
		"content_length": snap.ContentLength,
		"elapsed_ms":     s.now().Sub(start).Milliseconds(),
	})

	delivered, pubErr := s.publish(ctx, publishers.NewEvent(snap))
	if !delivered {
		return fmt.Errorf("publish target %s: %w", t.ID, pubErr)
	}

	if s.dedupe != nil {
		if err := s.dedupe.MarkFetch(key, snap.Status); err != nil {
			s.log.WarnObj("dedupe mark failed", "dedupe_error", map[string]any{
				"target_id": t.ID,
				"error":     err.Error(),
			})
		}
	}

	if pubErr != nil {
		return fmt.Errorf("publish target %s: %w", t.ID, pubErr)
	}
	return nil
}

// publish reports delivered when at least one sink accepted the event or no
// sink is configured at all.
func (s *Service) publish(ctx context.Context, evt publishers.Event) (bool, error) {
	if s.publisher == nil {
		return true, nil
	}
	n, err := s.publisher.Publish(ctx, evt)
	if n > 0 || err == nil {
		return true, err
	}
	return false, err
}

// seen treats lookup failures as unseen so the target is fetched anyway.
func (s *Service) seen(t targets.Target, key string) bool {
	if s.dedupe == nil {
		return false
	}
	seen, err := s.dedupe.SeenFetch(key)
	if err != nil {
		s.log.WarnObj("dedupe lookup failed", "dedupe_error", map[string]any{
			"target_id": t.ID,
			"error":     err.Error(),
		})
		return false
	}
	return seen
}

func dedupeKey(t targets.Target) string {
	return t.ID + ":" + t.Fingerprint()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
