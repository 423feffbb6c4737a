package utils

import (
	"context"
	"errors"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// ShutdownManager runs registered teardown tasks in reverse registration order.
type ShutdownManager struct {
	logger        log.Logger
	shutdownTasks []shutdownTask
	mu            sync.Mutex
	done          bool
}

type shutdownTask struct {
	name string
	fn   func(context.Context) error
}

func NewShutdownManager(logger log.Logger) *ShutdownManager {
	return &ShutdownManager{logger: logger}
}

func (sm *ShutdownManager) Register(name string, task func(context.Context) error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.shutdownTasks = append(sm.shutdownTasks, shutdownTask{name: name, fn: task})
}

// Shutdown runs every task once, last registered first. Later calls are no-ops.
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.done {
		return nil
	}
	sm.done = true

	var errs []error
	for i := len(sm.shutdownTasks) - 1; i >= 0; i-- {
		task := sm.shutdownTasks[i]
		level.Info(sm.logger).Log("msg", "shutting down", "component", task.name)
		if err := task.fn(ctx); err != nil {
			level.Error(sm.logger).Log("msg", "error during shutdown", "component", task.name, "err", err)
			errs = append(errs, err)
		}
	}

	level.Info(sm.logger).Log("msg", "graceful shutdown complete")
	return errors.Join(errs...)
}
