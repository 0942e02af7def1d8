// Package shutdown runs long-lived services and tears them down on signal.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"stencil/internal/pkg/logger"
)

const defaultTimeout = 30 * time.Second

// Service is a long-running task. Run must return once ctx is done.
type Service struct {
	Name string
	Run  func(ctx context.Context) error
}

type step struct {
	name    string
	cleanup func(ctx context.Context) error
}

// Manager supervises services and releases resources in reverse order of
// acquisition once they stop.
type Manager struct {
	log     *logger.Logger
	timeout time.Duration

	mu    sync.Mutex
	steps []step

	once sync.Once
	done chan struct{}
	err  error
}

// NewManager creates a Manager whose cleanup phase is bounded by timeout
// (30s when zero).
func NewManager(log *logger.Logger, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Manager{log: log.WithComponent("shutdown"), timeout: timeout, done: make(chan struct{})}
}

// Register adds a cleanup step. Steps run last-registered first, so a
// resource registered right after it is opened is closed after everything
// that was built on top of it.
func (m *Manager) Register(name string, cleanup func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{name: name, cleanup: cleanup})
}

// RegisterSimple adds a cleanup step that cannot fail, such as pool.Close.
func (m *Manager) RegisterSimple(name string, cleanup func()) {
	m.Register(name, func(context.Context) error {
		cleanup()
		return nil
	})
}

// Run starts services and blocks until SIGINT/SIGTERM/SIGHUP, ctx
// cancellation or the first service returning. It then runs Shutdown and
// returns the first service failure, or the shutdown error when every
// service ended cleanly.
func (m *Manager) Run(ctx context.Context, services ...Service) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	stopAll, cancel := context.WithCancel(gctx)
	defer cancel()

	for _, s := range services {
		g.Go(func() error {
			// Any service ending, cleanly or not, stops the rest.
			defer cancel()
			m.log.Info("service started", "service", s.Name)
			if err := s.Run(stopAll); err != nil && !errors.Is(err, context.Canceled) {
				m.log.Error("service failed", "service", s.Name, "error", err.Error())
				return fmt.Errorf("%s: %w", s.Name, err)
			}
			m.log.Info("service stopped", "service", s.Name)
			return nil
		})
	}

	cleaned := make(chan error, 1)
	go func() {
		<-stopAll.Done()
		if sigCtx.Err() != nil && ctx.Err() == nil {
			m.log.Info("shutdown signal received")
		}
		cleaned <- m.Shutdown()
	}()

	err := g.Wait()
	cancel()
	if cleanupErr := <-cleaned; err == nil {
		err = cleanupErr
	}
	return err
}

// Shutdown runs the cleanup steps within the timeout. A step still running
// when the timeout expires is abandoned along with every step after it.
// Repeated calls return the first result.
func (m *Manager) Shutdown() error {
	m.once.Do(func() {
		m.err = m.cleanup()
		close(m.done)
	})
	return m.err
}

// Done is closed once Shutdown has finished.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) cleanup() error {
	m.mu.Lock()
	steps := append([]step(nil), m.steps...)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.log.Info("releasing resources", "steps", len(steps), "timeout", m.timeout.String())

	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]
		if err := m.runStep(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			if ctx.Err() != nil {
				m.log.Warn("shutdown timed out", "pending", s.name)
				return errors.Join(errs...)
			}
		}
	}

	m.log.Info("resources released")
	return errors.Join(errs...)
}

func (m *Manager) runStep(ctx context.Context, s step) error {
	start := time.Now()
	result := make(chan error, 1)
	go func() { result <- s.cleanup(ctx) }()

	var err error
	select {
	case err = <-result:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		m.log.Error("cleanup failed", "step", s.name, "error", err.Error(), "duration_ms", time.Since(start).Milliseconds())
		return err
	}
	m.log.Debug("cleanup done", "step", s.name, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
