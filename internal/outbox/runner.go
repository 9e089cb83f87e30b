package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"snapshoot-sync/internal/connectivity"
	"snapshoot-sync/internal/metrics"
	"snapshoot-sync/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Identity tells the orchestrator whether anyone is signed in. Replays carry
// the user's token, so a pass without one is skipped.
type Identity interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// Orchestrator drains the pending queues against the server whenever the
// device comes back online.
type Orchestrator struct {
	steps   []Step
	signal  connectivity.Signal
	auth    Identity
	limiter *rate.Limiter
	log     *logger.Logger
	metrics *metrics.Sync
	now     func() time.Time
	hooks   []func(Report)

	mu      sync.Mutex
	running bool
	again   bool
	last    *Report

	stop func()
	wg   sync.WaitGroup
}

type Option func(*Orchestrator)

// WithRateLimit spaces out replayed calls. Without it replays run unthrottled.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *Orchestrator) {
		if perSecond > 0 {
			if burst < 1 {
				burst = 1
			}
			o.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func WithMetrics(m *metrics.Sync) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithReportHook calls fn with the report of every pass, skipped ones
// included. Hooks run on the pass goroutine and must not block.
func WithReportHook(fn func(Report)) Option {
	return func(o *Orchestrator) {
		o.hooks = append(o.hooks, fn)
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New builds an orchestrator that runs steps in the given order.
func New(signal connectivity.Signal, auth Identity, steps []Step, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		steps:   steps,
		signal:  signal,
		auth:    auth,
		limiter: rate.NewLimiter(rate.Inf, 1),
		log:     logger.NewNop(),
		now:     time.Now,
		stop:    func() {},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start subscribes to online edges and runs a first pass when already
// online, since no edge will arrive for work queued before startup. Passes
// run on ctx until Stop.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	unsubscribe := o.signal.Subscribe(func() {
		o.trigger(ctx)
	})
	o.mu.Lock()
	o.stop = func() {
		unsubscribe()
		cancel()
	}
	o.mu.Unlock()

	if o.signal.Online() {
		o.trigger(ctx)
	}
}

// Stop unsubscribes and waits for a running pass to return.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	stop := o.stop
	o.stop = func() {}
	o.mu.Unlock()
	stop()
	o.wg.Wait()
}

// Trigger requests a pass in the background, as an online edge does.
func (o *Orchestrator) Trigger(ctx context.Context) {
	o.trigger(ctx)
}

// trigger starts a pass unless one is running. Edges that arrive during a
// pass collapse into a single follow-up pass.
func (o *Orchestrator) trigger(ctx context.Context) {
	o.mu.Lock()
	if o.running {
		o.again = true
		o.mu.Unlock()
		return
	}
	o.running = true
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		for {
			o.Sync(ctx)

			o.mu.Lock()
			if !o.again || ctx.Err() != nil {
				o.running = false
				o.again = false
				o.mu.Unlock()
				return
			}
			o.again = false
			o.mu.Unlock()
		}
	}()
}

// Sync runs one pass over every queue, in order, and returns its report.
func (o *Orchestrator) Sync(ctx context.Context) Report {
	rep := Report{StartedAt: o.now()}

	switch {
	case !o.signal.Online():
		rep.Skipped = "offline"
	default:
		if _, err := o.auth.CurrentUserID(ctx); err != nil {
			rep.Skipped = "not authenticated"
		}
	}
	if rep.Skipped != "" {
		rep.FinishedAt = o.now()
		o.metrics.Pass("skipped", 0)
		o.log.Info(ctx, "sync pass skipped", zap.String("reason", rep.Skipped))
		o.record(rep)
		return rep
	}

	for _, step := range o.steps {
		if ctx.Err() != nil {
			break
		}
		q := step.drain(ctx, o)
		rep.Queues = append(rep.Queues, q)
		o.metrics.Queue(q.Queue, q.Synced, q.Failed, q.Discarded, q.Remaining)
	}
	rep.FinishedAt = o.now()

	result := "complete"
	if rep.Pending() > 0 {
		result = "partial"
	}
	o.metrics.Pass(result, rep.FinishedAt.Sub(rep.StartedAt).Seconds())
	o.log.Info(ctx, "sync pass finished",
		zap.Int("synced", rep.Synced()),
		zap.Int("failed", rep.Failed()),
		zap.Int("discarded", rep.Discarded()),
		zap.Int("pending", rep.Pending()),
	)
	o.record(rep)
	return rep
}

func (o *Orchestrator) record(rep Report) {
	o.mu.Lock()
	o.last = &rep
	o.mu.Unlock()
	for _, fn := range o.hooks {
		fn(rep)
	}
}

// QueueDepth is how many entries one queue holds right now.
type QueueDepth struct {
	Queue   string `json:"queue"`
	Pending int    `json:"pending"`
}

// Depths reads every queue's length without replaying anything.
func (o *Orchestrator) Depths(ctx context.Context) ([]QueueDepth, error) {
	out := make([]QueueDepth, 0, len(o.steps))
	for _, step := range o.steps {
		n, err := step.Len(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", step.Name(), err)
		}
		out = append(out, QueueDepth{Queue: step.Name(), Pending: n})
	}
	return out, nil
}

// LastReport returns the report of the most recent pass.
func (o *Orchestrator) LastReport() (Report, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return Report{}, false
	}
	return *o.last, true
}

// Running reports whether a background pass is in progress.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}
