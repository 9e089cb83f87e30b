package services

import (
	"context"
	"sync"
	"time"

	"snapshoot-sync/internal/connectivity"
	"snapshoot-sync/internal/domain/pending"
	"snapshoot-sync/internal/domain/user"
	"snapshoot-sync/pkg/logger"

	"go.uber.org/zap"
)

// Outcome is the path a mutating operation took. Every outcome means the
// change is visible locally; only Synced means the server has it too.
type Outcome int

const (
	Synced Outcome = iota
	// Degraded means the remote attempt failed and the change was queued.
	Degraded
	// Offline means no remote attempt was made and the change was queued.
	Offline
)

func (o Outcome) String() string {
	switch o {
	case Degraded:
		return "degraded"
	case Offline:
		return "offline"
	}
	return "synced"
}

// Identity resolves the signed-in user.
type Identity interface {
	CurrentUser(ctx context.Context) (user.User, error)
	CurrentUserID(ctx context.Context) (string, error)
}

// Env is shared by every service.
type Env struct {
	Signal connectivity.Signal
	Auth   Identity
	Log    *logger.Logger
	Now    func() time.Time

	bg sync.WaitGroup
}

func (e *Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Env) logger() *logger.Logger {
	if e.Log == nil {
		return logger.NewNop()
	}
	return e.Log
}

// Wait blocks until background refreshes have finished.
func (e *Env) Wait() {
	e.bg.Wait()
}

// background runs fn detached from ctx's cancellation and logs its error.
func (e *Env) background(ctx context.Context, op string, fn func(context.Context) error) {
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		if err := fn(context.WithoutCancel(ctx)); err != nil {
			e.logger().Warn(ctx, "background refresh failed", zap.String("op", op), zap.Error(err))
		}
	}()
}

// replayable refuses entries another account queued on this device. They
// are discarded, never sent under the current user's token.
func (e *Env) replayable(ctx context.Context, entry pending.Entry) error {
	userID, err := e.Auth.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	if !pending.OwnedBy(entry, userID) {
		e.logger().Warn(ctx, "dropping entry queued by another user",
			zap.String("entry_id", entry.EntryID()), zap.String("owner", entry.Owner()))
		return pending.ErrDiscard
	}
	return nil
}

// attempt runs the two-path state machine every mutation shares. When online
// it tries remote; on success confirm writes the server's answer locally.
// Without a connection, or when remote fails, fallback writes the local copy
// and queues the change. Remote errors never reach the caller; errors from
// confirm or fallback do.
func attempt[T any](
	ctx context.Context,
	env *Env,
	op string,
	remote func(context.Context) (T, error),
	confirm func(context.Context, T) error,
	fallback func(context.Context) error,
) (Outcome, error) {
	outcome := Offline
	if env.Signal.Online() {
		res, err := remote(ctx)
		if err == nil {
			return Synced, confirm(ctx, res)
		}
		env.logger().Warn(ctx, "remote attempt failed, queued for sync", zap.String("op", op), zap.Error(err))
		outcome = Degraded
	}
	return outcome, fallback(ctx)
}

// bestEffort calls remote when online and only logs a failure.
func bestEffort(ctx context.Context, env *Env, op string, remote func(context.Context) error) bool {
	if !env.Signal.Online() {
		return false
	}
	if err := remote(ctx); err != nil {
		env.logger().Warn(ctx, "best-effort remote call failed", zap.String("op", op), zap.Error(err))
		return false
	}
	return true
}
