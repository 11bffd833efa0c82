package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of recurring background work.
type Task func(context.Context) error

// SweeperConfig tunes how often a task runs and how failures are retried.
type SweeperConfig struct {
	Interval   time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Sweeper runs a named task on a fixed interval, off the request path. A
// failing run is retried a bounded number of times before waiting for the
// next tick; Kick forces an immediate run between ticks.
type Sweeper struct {
	name string
	task Task

	interval   time.Duration
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	kick    chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewSweeper builds a sweeper around the given task.
func NewSweeper(name string, task Task, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Sweeper{
		name:       name,
		task:       task,
		interval:   cfg.Interval,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		kick:       make(chan struct{}, 1),
	}
}

// Start launches the sweep loop. Safe to call once.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.started = true
	s.logger.Sugar().Infow("sweeper started", "sweeper", s.name, "interval", s.interval)
}

// Stop cancels the loop and waits for any in-flight run to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Sugar().Infow("sweeper stopped", "sweeper", s.name)
}

// Kick requests a run ahead of the next tick. No-op when a kick is already
// pending or the sweeper is stopped.
func (s *Sweeper) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx)
		case <-s.kick:
			s.run(ctx)
		}
	}
}

func (s *Sweeper) run(ctx context.Context) {
	for attempt := 1; ; attempt++ {
		err := s.task(ctx)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		if attempt >= s.maxRetries {
			s.logger.Sugar().Errorw("sweep failed, giving up until next tick",
				"sweeper", s.name, "attempt", attempt, "error", err)
			return
		}
		s.logger.Sugar().Warnw("sweep failed, retrying",
			"sweeper", s.name, "attempt", attempt, "error", err)

		timer := time.NewTimer(s.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
