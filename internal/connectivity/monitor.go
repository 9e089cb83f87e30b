// Package connectivity tracks whether the remote API is reachable and
// notifies subscribers once per offline->online transition.
package connectivity

import (
	"context"
	"sync"
	"time"

	"snapshoot-sync/pkg/logger"

	"go.uber.org/zap"
)

// Signal is the read side consumed by domain operations and the sync
// orchestrator.
type Signal interface {
	Online() bool
	// Subscribe registers fn for the offline->online edge and returns a
	// function that removes it.
	Subscribe(fn func()) (unsubscribe func())
}

// Prober checks reachability once. A nil error means online.
type Prober interface {
	Probe(ctx context.Context) error
}

// Monitor is the process-wide Signal. State changes come either from a
// Prober polled by Run or from explicit SetOnline calls (for example a
// platform network-change callback).
type Monitor struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func()

	prober   Prober
	interval time.Duration
	logger   *logger.Logger
}

type Option func(*Monitor)

func WithProber(p Prober, interval time.Duration) Option {
	return func(m *Monitor) {
		m.prober = p
		m.interval = interval
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(m *Monitor) {
		m.logger = l
	}
}

// NewMonitor creates a monitor in the given initial state. Starting online
// does not fire subscribers.
func NewMonitor(initiallyOnline bool, opts ...Option) *Monitor {
	m := &Monitor{
		online:   initiallyOnline,
		subs:     make(map[int]func()),
		interval: 5 * time.Second,
		logger:   logger.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Monitor) Subscribe(fn func()) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// SetOnline records the current state. Subscribers run synchronously, outside
// the lock, only when the state flips from offline to online.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	edge := online && !m.online
	changed := online != m.online
	m.online = online
	var fns []func()
	if edge {
		fns = make([]func(), 0, len(m.subs))
		for _, fn := range m.subs {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	if changed {
		m.logger.Logger.Info("connectivity changed", zap.Bool("online", online))
	}
	for _, fn := range fns {
		fn()
	}
}

// Run polls the prober until ctx is cancelled. It probes once immediately.
func (m *Monitor) Run(ctx context.Context) {
	if m.prober == nil {
		return
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// Check probes once and records the result. Without a prober the state is
// left as is.
func (m *Monitor) Check(ctx context.Context) bool {
	if m.prober != nil {
		m.check(ctx)
	}
	return m.Online()
}

func (m *Monitor) check(ctx context.Context) {
	err := m.prober.Probe(ctx)
	if err != nil && ctx.Err() != nil {
		return
	}
	if err != nil {
		m.logger.Logger.Debug("probe failed", zap.Error(err))
	}
	m.SetOnline(err == nil)
}
