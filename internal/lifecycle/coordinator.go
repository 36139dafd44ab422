// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lifecycle makes sure the local inference service is reachable
// before the session engine talks to it, starting it when allowed.
//
// The coordinator never owns the service process: it spawns it detached
// and only observes it through health checks afterwards.
package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/jeranaias/termsage/internal/ollama"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrServiceUnavailable matches every UnavailableError with errors.Is.
var ErrServiceUnavailable = errors.New("service unavailable")

// Reasons reported by UnavailableError.
const (
	ReasonNotRunning  = "not running"
	ReasonTimeout     = "timeout"
	ReasonCancelled   = "cancelled"
	ReasonStartFailed = "start failed"
)

// UnavailableError reports why the service could not be made ready.
type UnavailableError struct {
	Reason string
	Err    error
}

func (e *UnavailableError) Error() string {
	msg := "service unavailable: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrServiceUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrServiceUnavailable
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// HealthChecker performs one health check. *ollama.Client satisfies it.
type HealthChecker interface {
	Health(ctx context.Context) (ollama.ServiceHealth, error)
}

// Spawner starts the service as a detached process. It must not wait
// for the process or retain a handle to it.
type Spawner interface {
	Spawn() error
}

// ProcessFinder reports whether a service process already exists.
type ProcessFinder interface {
	Running(ctx context.Context) (bool, error)
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Config controls the readiness sequence.
type Config struct {
	// AutoStart permits spawning the service when it is unreachable.
	AutoStart bool

	// PollInterval is the fixed delay between health checks after a spawn.
	PollInterval time.Duration
}

// DefaultPollInterval is used when Config.PollInterval is unset.
const DefaultPollInterval = 500 * time.Millisecond

// Coordinator runs the readiness sequence. Concurrent callers share a
// single in-flight sequence, so at most one process is spawned per
// sequence.
type Coordinator struct {
	health  HealthChecker
	spawner Spawner
	finder  ProcessFinder
	logger  *zap.Logger

	autoStart    atomic.Bool
	pollInterval time.Duration

	group singleflight.Group
}

// New creates a coordinator. finder may be nil, in which case the service
// is always assumed absent when unreachable.
func New(health HealthChecker, spawner Spawner, finder ProcessFinder, cfg Config, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	c := &Coordinator{
		health:       health,
		spawner:      spawner,
		finder:       finder,
		logger:       logger.Named("lifecycle"),
		pollInterval: cfg.PollInterval,
	}
	c.autoStart.Store(cfg.AutoStart)
	return c
}

// SetAutoStart changes whether later sequences may spawn the service.
func (c *Coordinator) SetAutoStart(enabled bool) {
	c.autoStart.Store(enabled)
}

// AutoStart reports the current spawn policy.
func (c *Coordinator) AutoStart() bool {
	return c.autoStart.Load()
}

// EnsureReady returns nil once the service answers a health check, or an
// *UnavailableError explaining why it could not be reached within timeout.
// A caller whose ctx is cancelled stops waiting immediately with reason
// "cancelled". The shared sequence ignores every caller's cancellation and
// is bounded by timeout alone, so the remaining callers still get its result.
func (c *Coordinator) EnsureReady(ctx context.Context, timeout time.Duration) error {
	ch := c.group.DoChan("ensure-ready", func() (any, error) {
		return nil, c.ensure(context.WithoutCancel(ctx), timeout)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("joined in-flight readiness check")
		}
		return res.Err
	case <-ctx.Done():
		return &UnavailableError{Reason: ReasonCancelled, Err: ctx.Err()}
	}
}

func (c *Coordinator) ensure(ctx context.Context, timeout time.Duration) error {
	if c.healthy(ctx) {
		return nil
	}

	if !c.autoStart.Load() {
		c.logger.Info("service unreachable and auto-start disabled")
		return &UnavailableError{Reason: ReasonNotRunning}
	}

	if c.alreadyRunning(ctx) {
		c.logger.Info("service process found, waiting for it to answer")
	} else {
		c.logger.Info("starting service")
		if err := c.spawner.Spawn(); err != nil {
			c.logger.Warn("service start failed", zap.Error(err))
			return &UnavailableError{Reason: ReasonStartFailed, Err: err}
		}
	}

	return c.poll(ctx, timeout)
}

// poll checks health on a fixed interval until healthy or timeout.
func (c *Coordinator) poll(ctx context.Context, timeout time.Duration) error {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	limiter := rate.NewLimiter(rate.Every(c.pollInterval), 1)

	for {
		if err := limiter.Wait(pollCtx); err != nil {
			break
		}
		if c.healthy(pollCtx) {
			c.logger.Info("service ready", zap.Duration("elapsed", time.Since(start)))
			return nil
		}
	}

	c.logger.Warn("service did not become ready", zap.Duration("timeout", timeout))
	return &UnavailableError{Reason: ReasonTimeout}
}

func (c *Coordinator) healthy(ctx context.Context) bool {
	h, err := c.health.Health(ctx)
	if err != nil {
		c.logger.Debug("health check failed", zap.Error(err))
		return false
	}
	return h.Reachable
}

func (c *Coordinator) alreadyRunning(ctx context.Context) bool {
	if c.finder == nil {
		return false
	}
	running, err := c.finder.Running(ctx)
	if err != nil {
		c.logger.Debug("process lookup failed", zap.Error(err))
		return false
	}
	return running
}
