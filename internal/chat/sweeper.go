package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically deletes stale connection bindings so crashed or
// silently dropped clients stop counting as online. It owns its timer and
// is stopped explicitly on shutdown.
type Sweeper struct {
	registry Registry
	interval time.Duration
	maxAge   time.Duration
	log      zerolog.Logger

	stopCh chan struct{}
	done   chan struct{}
}

// NewSweeper returns a Sweeper that removes bindings idle longer than maxAge,
// checking every interval.
func NewSweeper(registry Registry, interval, maxAge time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		registry: registry,
		interval: interval,
		maxAge:   maxAge,
		log:      log,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	go s.loop()
}

func (s *Sweeper) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep runs one pass. Sweep failures are logged, never fatal: presence data
// is best-effort and the next tick retries.
func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := s.registry.SweepStale(ctx, s.maxAge)
	if err != nil {
		s.log.Error().Err(err).Msg("stale connection sweep failed")
		return
	}
	s.log.Info().Int64("removed", removed).Msg("cleaned up inactive socket connections")
}

// Stop halts the loop and waits for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.done
}
