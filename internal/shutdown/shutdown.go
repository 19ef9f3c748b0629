// Package shutdown runs registered closers once, in reverse registration
// order, on normal exit or on SIGINT/SIGTERM.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

type hook struct {
	name string
	fn   func() error
}

// Hooks is an ordered registry of closers.
type Hooks struct {
	logger *zap.Logger

	mu    sync.Mutex
	hooks []hook
	done  bool

	once sync.Once
	err  error
}

// New returns an empty registry.
func New(logger *zap.Logger) *Hooks {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hooks{logger: logger}
}

// Add registers fn under name. Hooks added after Run are executed immediately.
func (h *Hooks) Add(name string, fn func() error) {
	h.mu.Lock()
	if !h.done {
		h.hooks = append(h.hooks, hook{name: name, fn: fn})
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	if err := fn(); err != nil {
		h.logger.Warn("shutdown hook failed", zap.String("hook", name), zap.Error(err))
	}
}

// Run executes every hook once, last registered first. Concurrent and later
// calls wait for the first one and return its error.
func (h *Hooks) Run() error {
	h.once.Do(func() { h.err = h.run() })
	return h.err
}

func (h *Hooks) run() error {
	h.mu.Lock()
	h.done = true
	hooks := h.hooks
	h.hooks = nil
	h.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		hk := hooks[i]
		h.logger.Debug("running shutdown hook", zap.String("hook", hk.name))
		if err := hk.fn(); err != nil {
			h.logger.Warn("shutdown hook failed", zap.String("hook", hk.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", hk.name, err))
		}
	}

	return errors.Join(errs...)
}

// Context returns a context cancelled on SIGINT or SIGTERM. When the signal
// arrives the context is cancelled first and the hooks are run after it. The
// returned stop function releases the signal handler.
func (h *Hooks) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case s := <-sig:
			h.logger.Info("received signal, shutting down", zap.String("signal", s.String()))
			cancel()
			_ = h.Run()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sig)
		cancel()
	}
}
