package utils

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

type ShutdownManager struct {
	cancelFunc    context.CancelFunc
	shutdownTasks []func(context.Context) error
	mu            sync.Mutex
	logger        *zap.Logger
	done          chan struct{}
}

func NewShutdownManager(ctx context.Context, logger *zap.Logger) (context.Context, *ShutdownManager) {
	ctx, cancel := context.WithCancel(ctx)
	manager := &ShutdownManager{
		cancelFunc: cancel,
		logger:     logger,
		done:       make(chan struct{}),
	}
	return ctx, manager
}

func (sm *ShutdownManager) Register(task func(context.Context) error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.shutdownTasks = append(sm.shutdownTasks, task)
}

func (sm *ShutdownManager) StartListening() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		sm.logger.Info("[SHUTDOWN] Received signal", zap.String("signal", sig.String()))
		sm.Shutdown()
	}()
}

// Shutdown cancels the root context and runs registered tasks in reverse
// registration order, so the HTTP server stops before its stores close.
func (sm *ShutdownManager) Shutdown() {
	sm.cancelFunc()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	sm.mu.Lock()
	tasks := append([]func(context.Context) error(nil), sm.shutdownTasks...)
	sm.shutdownTasks = nil
	sm.mu.Unlock()

	for i := len(tasks) - 1; i >= 0; i-- {
		if err := tasks[i](ctx); err != nil {
			sm.logger.Error("[SHUTDOWN] Error during shutdown", zap.Error(err))
		}
	}

	sm.logger.Info("[SHUTDOWN] Graceful shutdown complete")
	select {
	case <-sm.done:
	default:
		close(sm.done)
	}
}

// Done is closed once Shutdown has finished.
func (sm *ShutdownManager) Done() <-chan struct{} {
	return sm.done
}
