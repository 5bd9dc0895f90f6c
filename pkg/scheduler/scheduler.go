package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/chain-monitor/pkg/metrics"
	"github.com/ava-labs/chain-monitor/pkg/source"
)

const (
	DefaultInterval     = 15 * time.Second
	DefaultCycleTimeout = 30 * time.Second
)

// Config controls the poll loop. Zero values select the defaults.
type Config struct {
	// Interval is the pause between the end of one cycle and the start of the next.
	Interval time.Duration
	// CycleTimeout bounds how long a cycle waits for its sources.
	CycleTimeout time.Duration
}

func (c Config) withDefaults() (Config, error) {
	if c.Interval < 0 {
		return c, fmt.Errorf("invalid interval %s: must be >= 0", c.Interval)
	}
	if c.CycleTimeout < 0 {
		return c, fmt.Errorf("invalid cycle timeout %s: must be >= 0", c.CycleTimeout)
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.CycleTimeout == 0 {
		c.CycleTimeout = DefaultCycleTimeout
	}
	return c, nil
}

// Scheduler polls every source concurrently, one cycle at a time.
type Scheduler struct {
	log     *zap.SugaredLogger
	sources []source.Source
	rec     source.Recorder
	cfg     Config
	metrics *metrics.Metrics

	cycles atomic.Uint64
}

func New(
	log *zap.SugaredLogger,
	sources []source.Source,
	rec source.Recorder,
	cfg Config,
	m *metrics.Metrics,
) (*Scheduler, error) {
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}
	if len(sources) == 0 {
		return nil, errors.New("invalid sources: must not be empty")
	}
	if rec == nil {
		return nil, errors.New("invalid recorder: must not be nil")
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		log:     log,
		sources: sources,
		rec:     rec,
		cfg:     cfg,
		metrics: m,
	}, nil
}

// Run builds a Scheduler and runs it until ctx is cancelled.
func Run(
	ctx context.Context,
	log *zap.SugaredLogger,
	sources []source.Source,
	rec source.Recorder,
	cfg Config,
	m *metrics.Metrics,
) error {
	s, err := New(log, sources, rec, cfg, m)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

// Run polls until ctx is cancelled. It returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Infow("starting poll loop",
		"sources", len(s.sources),
		"interval", s.cfg.Interval,
		"cycleTimeout", s.cfg.CycleTimeout,
	)

	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Infow("poll loop stopped", "cycles", s.cycles.Load())
			return nil
		case <-t.C:
			s.RunCycle(ctx)
			t.Reset(s.cfg.Interval)
		}
	}
}

// RunCycle runs CheckUpdates on every source concurrently and waits for them
// or for the cycle timeout, whichever comes first. Sources still running at
// the timeout see their context cancelled and are not waited for. It
// reports whether the cycle timed out.
func (s *Scheduler) RunCycle(ctx context.Context) bool {
	start := time.Now()
	cycleCtx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()

	var g errgroup.Group
	for _, src := range s.sources {
		g.Go(func() error {
			if err := src.CheckUpdates(cycleCtx, s.rec); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				s.log.Warnw("source check failed", "source", src.ID(), "error", err)
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait() //nolint:errcheck // sources never return errors to the group
		close(done)
	}()

	timedOut := false
	select {
	case <-done:
	case <-cycleCtx.Done():
		timedOut = ctx.Err() == nil
	}

	elapsed := time.Since(start)
	n := s.cycles.Add(1)
	s.metrics.ObserveCycle(elapsed.Seconds(), timedOut)
	if timedOut {
		s.log.Warnw("poll cycle timed out, abandoning slow sources",
			"cycle", n,
			"timeout", s.cfg.CycleTimeout,
		)
	} else {
		s.log.Debugw("poll cycle finished", "cycle", n, "duration", elapsed)
	}
	return timedOut
}

// Cycles returns the number of finished cycles.
func (s *Scheduler) Cycles() uint64 {
	return s.cycles.Load()
}

// Ready reports whether at least one cycle has finished.
func (s *Scheduler) Ready() bool {
	return s.cycles.Load() > 0
}
