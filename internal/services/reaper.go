package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SessionReaper periodically moves idle active sessions to the timeout state.
type SessionReaper struct {
	service     *ChatService
	interval    time.Duration
	idleTimeout time.Duration
	batchSize   int
	logger      *zap.Logger
	done        chan struct{}
}

func NewSessionReaper(service *ChatService, interval, idleTimeout time.Duration, batchSize int, logger *zap.Logger) *SessionReaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionReaper{
		service:     service,
		interval:    interval,
		idleTimeout: idleTimeout,
		batchSize:   batchSize,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

func (r *SessionReaper) Start(ctx context.Context) {
	go r.run(ctx)
}

// Done is closed once the loop has returned.
func (r *SessionReaper) Done() <-chan struct{} {
	return r.done
}

func (r *SessionReaper) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("[REAPER] Started",
		zap.Duration("interval", r.interval),
		zap.Duration("idle_timeout", r.idleTimeout))
	for {
		select {
		case <-ticker.C:
			r.Sweep(ctx)
		case <-ctx.Done():
			r.logger.Info("[REAPER] Stopping session reaper")
			return
		}
	}
}

// Sweep runs a single pass and returns how many sessions were closed.
func (r *SessionReaper) Sweep(ctx context.Context) int {
	closed, err := r.service.TimeoutStale(ctx, r.idleTimeout, r.batchSize)
	if err != nil {
		r.logger.Error("[REAPER] Failed to list idle sessions", zap.Error(err))
		return 0
	}
	if closed > 0 {
		r.logger.Info("[REAPER] Timed out idle sessions", zap.Int("count", closed))
	}
	return closed
}
