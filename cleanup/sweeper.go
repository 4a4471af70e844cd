package cleanup

import (
	"context"
	"sync"
	"time"

	"github.com/RIZAmohammadkhan/Serma/model"
	"github.com/RIZAmohammadkhan/Serma/pkg/log"
	"github.com/RIZAmohammadkhan/Serma/pkg/metrics"
	"github.com/RIZAmohammadkhan/Serma/pkg/stop"
	"github.com/RIZAmohammadkhan/Serma/storage"
)

var logger = log.NewLogger("cleanup")

// Sweeper periodically scans storage and evicts records matching the
// eviction policy: own goroutine, closed channel, WaitGroup-joined
// Stop.
type Sweeper struct {
	cfg   Config
	store storage.Store

	closed chan struct{}
	wg     sync.WaitGroup
}

// New returns a Sweeper that has not yet started; call Start to launch
// its background ticker.
func New(cfg Config, store storage.Store) *Sweeper {
	return &Sweeper{
		cfg:    cfg.withDefaults(),
		store:  store,
		closed: make(chan struct{}),
	}
}

// Start launches the periodic sweep in the background.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTimer(s.cfg.Interval)
		defer t.Stop()
		for {
			select {
			case <-s.closed:
				return
			case <-t.C:
				start := time.Now()
				n, err := s.sweepOnce(context.Background())
				duration := time.Since(start)
				if metrics.Enabled() {
					metrics.PromGCDurationMilliseconds.Observe(float64(duration.Milliseconds()))
				}
				if err != nil {
					logger.Warn().Err(err).Msg("cleanup sweep failed")
				} else {
					logger.Debug().Int("evicted", n).Dur("timeTaken", duration).Msg("cleanup sweep complete")
				}
				t.Reset(s.cfg.Interval)
			}
		}
	}()
}

// Stop halts the ticker and waits for any in-flight sweep to finish.
func (s *Sweeper) Stop() stop.Result {
	c := make(stop.Channel)
	go func() {
		close(s.closed)
		s.wg.Wait()
		c.Done(nil)
	}()
	return c.Result()
}

// sweepOnce applies the eviction policy to every stored record,
// returning the number evicted.
func (s *Sweeper) sweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.cfg.StaleAfter).UnixMilli()

	var toEvict []model.InfoHash
	err := s.store.IterAll(ctx, func(rec *model.Record) bool {
		if shouldEvict(rec, s.cfg.MaxEnrichFailures, cutoff) {
			toEvict = append(toEvict, rec.InfoHash)
		}
		return true
	})
	if err != nil {
		return 0, err
	}

	evicted := 0
	for _, ih := range toEvict {
		if err := s.store.Delete(ctx, ih); err != nil {
			logger.Debug().Err(err).Str("info_hash", ih.String()).Msg("evict record")
			continue
		}
		evicted++
	}
	return evicted, nil
}

// shouldEvict applies the two eviction conditions: too many failed
// enrichment attempts with metadata still missing, or stale with no
// seeders.
func shouldEvict(rec *model.Record, maxFailures int32, cutoffMillis int64) bool {
	if rec.EnrichFailures > maxFailures && !rec.HasMetadata() {
		return true
	}
	if rec.Seeders == 0 && rec.LastSeenMillis < cutoffMillis {
		return true
	}
	return false
}
