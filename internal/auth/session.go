// Package auth resolves the current user from the persisted token and the
// cached profile. Only token presence matters offline; the signature is the
// backend's concern.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"snapshoot-sync/internal/api"
	"snapshoot-sync/internal/connectivity"
	"snapshoot-sync/internal/domain/user"
	"snapshoot-sync/internal/repository"
	snapshoot_errors "snapshoot-sync/pkg/errors"
	"snapshoot-sync/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Remote is the part of the API the session needs.
type Remote interface {
	Login(ctx context.Context, credential, password string) (api.Session, error)
	Register(ctx context.Context, in api.RegisterInput) (api.Session, error)
	Me(ctx context.Context) (user.User, error)
}

type Session struct {
	remote Remote
	tokens *repository.TokenStore
	users  *repository.UserStore
	signal connectivity.Signal
	log    *logger.Logger
	claim  ClaimFunc
}

// ClaimFunc hands the local data to userID, dropping what another user left
// behind. switched reports that it did.
type ClaimFunc func(ctx context.Context, userID string) (switched bool, err error)

type Option func(*Session)

// WithClaim runs claim on every login before the profile is stored.
func WithClaim(claim ClaimFunc) Option {
	return func(s *Session) {
		s.claim = claim
	}
}

func NewSession(remote Remote, tokens *repository.TokenStore, users *repository.UserStore, signal connectivity.Signal, log *logger.Logger, opts ...Option) *Session {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Session{remote: remote, tokens: tokens, users: users, signal: signal, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TokenClaims are the fields read from the bearer token without verifying it.
type TokenClaims struct {
	UserID    string
	Role      string
	ExpiresAt time.Time
}

// Token returns the stored bearer token, empty when logged out.
func (s *Session) Token(ctx context.Context) (string, error) {
	return s.tokens.Get(ctx)
}

func (s *Session) Login(ctx context.Context, credential, password string) (user.User, error) {
	if credential == "" || password == "" {
		return user.User{}, snapshoot_errors.ErrInvalidInput
	}
	if !s.signal.Online() {
		return user.User{}, snapshoot_errors.ErrOffline
	}
	sess, err := s.remote.Login(ctx, credential, password)
	if err != nil {
		return user.User{}, authError("login", err)
	}
	return s.establish(ctx, sess)
}

func (s *Session) Register(ctx context.Context, in api.RegisterInput) (user.User, error) {
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return user.User{}, snapshoot_errors.ErrInvalidInput
	}
	if !s.signal.Online() {
		return user.User{}, snapshoot_errors.ErrOffline
	}
	sess, err := s.remote.Register(ctx, in)
	if err != nil {
		return user.User{}, authError("register", err)
	}
	return s.establish(ctx, sess)
}

// establish persists the token, then the profile, fetching it when the
// response carried only a token.
func (s *Session) establish(ctx context.Context, sess api.Session) (user.User, error) {
	if sess.Token == "" {
		return user.User{}, fmt.Errorf("%w: empty token in response", snapshoot_errors.ErrRemoteUnavailable)
	}
	if err := s.tokens.Set(ctx, sess.Token); err != nil {
		return user.User{}, err
	}

	var u user.User
	if sess.User != nil {
		u = *sess.User
	} else {
		me, err := s.remote.Me(ctx)
		if err != nil {
			s.log.Warn(ctx, "fetching profile after login failed", zap.Error(err))
			claims, _ := parseClaims(sess.Token)
			u = user.User{ID: claims.UserID}
		} else {
			u = me
		}
	}
	if u.ID == "" {
		return user.User{}, fmt.Errorf("%w: no user id in session", snapshoot_errors.ErrRemoteUnavailable)
	}
	if s.claim != nil {
		switched, err := s.claim(ctx, u.ID)
		if err != nil {
			return user.User{}, err
		}
		if switched {
			s.log.Info(logger.WithUserID(ctx, u.ID), "another user signed in, dropped previous local data")
		}
	}
	if err := s.users.Set(ctx, u); err != nil {
		return user.User{}, err
	}
	s.log.Info(logger.WithUserID(ctx, u.ID), "session established")
	return u, nil
}

// Logout forgets the token and the cached profile. Caches and pending queues
// are kept for the same user's next login; a different user's login drops
// them.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.tokens.Clear(ctx); err != nil {
		return err
	}
	return s.users.Clear(ctx)
}

// CurrentUser returns the cached profile. With a token but no cached profile
// it returns a user carrying only the id from the token claims.
func (s *Session) CurrentUser(ctx context.Context) (user.User, error) {
	tok, err := s.tokens.Get(ctx)
	if err != nil {
		return user.User{}, err
	}
	if tok == "" {
		return user.User{}, snapshoot_errors.ErrNotAuthenticated
	}
	u, ok, err := s.users.Get(ctx)
	if err != nil {
		return user.User{}, err
	}
	if ok && u.ID != "" {
		return u, nil
	}
	claims, err := parseClaims(tok)
	if err != nil || claims.UserID == "" {
		return user.User{}, snapshoot_errors.ErrNotAuthenticated
	}
	return user.User{ID: claims.UserID}, nil
}

func (s *Session) CurrentUserID(ctx context.Context) (string, error) {
	u, err := s.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// Claims decodes the stored token. It fails with ErrNotAuthenticated when
// there is no token.
func (s *Session) Claims(ctx context.Context) (TokenClaims, error) {
	tok, err := s.tokens.Get(ctx)
	if err != nil {
		return TokenClaims{}, err
	}
	if tok == "" {
		return TokenClaims{}, snapshoot_errors.ErrNotAuthenticated
	}
	return parseClaims(tok)
}

func parseClaims(token string) (TokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenClaims{}, fmt.Errorf("parsing token: %w", err)
	}

	var out TokenClaims
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		out.UserID = sub
	} else if id, ok := claims["user_id"].(string); ok {
		out.UserID = id
	}
	if role, ok := claims["role"].(string); ok {
		out.Role = role
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// authError maps a failed login/register. Rejected credentials are
// Unauthorized; everything else means the backend could not be reached.
func authError(op string, err error) error {
	if api.IsStatus(err, http.StatusUnauthorized) || api.IsStatus(err, http.StatusForbidden) ||
		api.IsStatus(err, http.StatusBadRequest) || api.IsStatus(err, http.StatusConflict) {
		return fmt.Errorf("%s: %w: %v", op, snapshoot_errors.ErrUnauthorized, err)
	}
	return fmt.Errorf("%s: %w: %v", op, snapshoot_errors.ErrRemoteUnavailable, err)
}
