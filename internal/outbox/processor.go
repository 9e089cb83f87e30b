package outbox

import (
	"context"
	"errors"
	"sync"

	"snapshoot-sync/internal/api"
	"snapshoot-sync/internal/domain/pending"

	"go.uber.org/zap"
)

// Queue is the part of a pending queue the processor drains.
type Queue[T pending.Entry] interface {
	Name() string
	PeekAll(ctx context.Context) ([]T, error)
	RemoveEntries(ctx context.Context, done []T) (int, error)
	Len(ctx context.Context) (int, error)
}

// Replayer re-executes the remote half of the operation that queued e.
// Returning pending.ErrDiscard drops the entry without retrying it.
type Replayer[T pending.Entry] func(ctx context.Context, e T) error

// Step drains one queue. Steps of different queues share nothing; a step
// never runs two drains of its own queue at once.
type Step interface {
	Name() string
	Len(ctx context.Context) (int, error)
	drain(ctx context.Context, o *Orchestrator) QueueReport
}

type processor[T pending.Entry] struct {
	queue    Queue[T]
	replay   Replayer[T]
	orderKey func(T) string
	mu       sync.Mutex
}

// NewStep drains queue with replay. Entries are independent: a failure
// leaves that entry queued and the rest still run.
func NewStep[T pending.Entry](queue Queue[T], replay Replayer[T]) Step {
	return &processor[T]{queue: queue, replay: replay}
}

// NewOrderedStep is NewStep for entries that must reach the server in queue
// order within a group. Once an entry fails, later entries with the same key
// wait for the next pass.
func NewOrderedStep[T pending.Entry](queue Queue[T], replay Replayer[T], key func(T) string) Step {
	return &processor[T]{queue: queue, replay: replay, orderKey: key}
}

// NewSerialStep keeps the whole queue in order: the first failure ends the
// drain. Used for snapshot-style updates where an older entry replayed after
// a newer one would win.
func NewSerialStep[T pending.Entry](queue Queue[T], replay Replayer[T]) Step {
	return NewOrderedStep(queue, replay, func(T) string { return "" })
}

func (p *processor[T]) Name() string {
	return p.queue.Name()
}

func (p *processor[T]) Len(ctx context.Context) (int, error) {
	return p.queue.Len(ctx)
}

func (p *processor[T]) drain(ctx context.Context, o *Orchestrator) QueueReport {
	p.mu.Lock()
	defer p.mu.Unlock()

	name := p.queue.Name()
	rep := QueueReport{Queue: name}
	log := o.log.With(zap.String("queue", name))

	entries, err := p.queue.PeekAll(ctx)
	if err != nil {
		rep.Error = err.Error()
		log.Error(ctx, "reading pending queue", zap.Error(err))
		return rep
	}

	var done []T
	blocked := make(map[string]bool)
	for _, e := range entries {
		if ctx.Err() != nil || !o.signal.Online() {
			break
		}
		var key string
		if p.orderKey != nil {
			key = p.orderKey(e)
			if blocked[key] {
				continue
			}
		}
		if err := o.limiter.Wait(ctx); err != nil {
			break
		}

		rep.Attempted++
		callCtx := api.WithIdempotencyKey(ctx, pending.IdempotencyKey(name, e))
		err := p.replay(callCtx, e)
		switch {
		case err == nil:
			rep.Synced++
			done = append(done, e)
		case errors.Is(err, pending.ErrDiscard):
			rep.Discarded++
			done = append(done, e)
		default:
			rep.Failed++
			if p.orderKey != nil {
				blocked[key] = true
			}
			log.Warn(ctx, "replay failed, kept for next pass", zap.String("entry_id", e.EntryID()), zap.Error(err))
		}
	}

	if len(done) > 0 {
		if _, err := p.queue.RemoveEntries(ctx, done); err != nil {
			rep.Error = err.Error()
			log.Error(ctx, "removing replayed entries", zap.Error(err))
		}
	}
	remaining, err := p.queue.Len(ctx)
	if err != nil {
		remaining = len(entries) - len(done)
	}
	rep.Remaining = remaining
	return rep
}
