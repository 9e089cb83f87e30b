package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"snapshoot-sync/internal/api"
	"snapshoot-sync/internal/connectivity"
	"snapshoot-sync/internal/domain/pending"
	"snapshoot-sync/internal/domain/user"
	"snapshoot-sync/internal/kv"
	"snapshoot-sync/internal/repository"
	snapshoot_errors "snapshoot-sync/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	session  api.Session
	loginErr error
	me       user.User
	meErr    error
	meCalls  int
}

func (f *fakeRemote) Login(context.Context, string, string) (api.Session, error) {
	return f.session, f.loginErr
}

func (f *fakeRemote) Register(context.Context, api.RegisterInput) (api.Session, error) {
	return f.session, f.loginErr
}

func (f *fakeRemote) Me(context.Context) (user.User, error) {
	f.meCalls++
	return f.me, f.meErr
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func newSession(remote Remote, online bool) (*Session, *repository.Repositories) {
	repos := repository.New(kv.NewMemoryStore(), nil)
	return NewSession(remote, repos.Token, repos.User, connectivity.NewMonitor(online), nil), repos
}

func TestSession_LoginPersistsTokenAndUser(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{session: api.Session{Token: "tok", User: &user.User{ID: "u1", Username: "ann"}}}
	s, repos := newSession(remote, true)

	u, err := s.Login(ctx, "ann", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Zero(t, remote.meCalls)

	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)

	cached, ok, err := repos.User.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ann", cached.Username)
}

func TestSession_LoginAsAnotherUserDropsLocalData(t *testing.T) {
	ctx := context.Background()
	repos := repository.New(kv.NewMemoryStore(), nil)
	remote := &fakeRemote{session: api.Session{Token: "tok-a", User: &user.User{ID: "u1"}}}
	s := NewSession(remote, repos.Token, repos.User, connectivity.NewMonitor(true), nil, WithClaim(repos.ClaimFor))

	_, err := s.Login(ctx, "ann", "pw")
	require.NoError(t, err)
	_, err = repos.PendingSocial.Enqueue(ctx, pending.SocialAction{Type: pending.SocialFollow, SubjectUserID: "42", OwnerID: "u1", LoggedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, s.Logout(ctx))

	remote.session = api.Session{Token: "tok-b", User: &user.User{ID: "u2"}}
	u, err := s.Login(ctx, "bob", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u2", u.ID)

	n, err := repos.PendingSocial.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSession_LoginFetchesProfileWhenOnlyTokenReturned(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{session: api.Session{Token: "tok"}, me: user.User{ID: "u9"}}
	s, _ := newSession(remote, true)

	u, err := s.Login(ctx, "ann", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u9", u.ID)
	assert.Equal(t, 1, remote.meCalls)
}

func TestSession_LoginOfflineAndRejected(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(&fakeRemote{}, false)
	_, err := s.Login(ctx, "ann", "pw")
	require.ErrorIs(t, err, snapshoot_errors.ErrOffline)

	rejected := &fakeRemote{loginErr: &api.APIError{StatusCode: http.StatusUnauthorized, Message: "bad credentials"}}
	s, _ = newSession(rejected, true)
	_, err = s.Login(ctx, "ann", "pw")
	require.ErrorIs(t, err, snapshoot_errors.ErrUnauthorized)

	down := &fakeRemote{loginErr: errors.New("connection refused")}
	s, _ = newSession(down, true)
	_, err = s.Login(ctx, "ann", "pw")
	require.ErrorIs(t, err, snapshoot_errors.ErrRemoteUnavailable)

	_, err = s.Login(ctx, "", "pw")
	require.ErrorIs(t, err, snapshoot_errors.ErrInvalidInput)
}

func TestSession_CurrentUser(t *testing.T) {
	ctx := context.Background()
	s, repos := newSession(&fakeRemote{}, false)

	_, err := s.CurrentUserID(ctx)
	require.ErrorIs(t, err, snapshoot_errors.ErrNotAuthenticated)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, repos.Token.Set(ctx, signedToken(t, jwt.MapClaims{
		"user_id": "from-claims",
		"role":    "User",
		"exp":     exp.Unix(),
	})))

	id, err := s.CurrentUserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from-claims", id)

	claims, err := s.Claims(ctx)
	require.NoError(t, err)
	assert.Equal(t, "User", claims.Role)
	assert.True(t, claims.ExpiresAt.Equal(exp))

	require.NoError(t, repos.User.Set(ctx, user.User{ID: "cached"}))
	id, err = s.CurrentUserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cached", id)

	require.NoError(t, s.Logout(ctx))
	_, err = s.CurrentUser(ctx)
	require.ErrorIs(t, err, snapshoot_errors.ErrNotAuthenticated)
}

func TestSession_SubClaimPreferred(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{"sub": "s-1", "user_id": "u-1"})
	claims, err := parseClaims(tok)
	require.NoError(t, err)
	assert.Equal(t, "s-1", claims.UserID)

	_, err = parseClaims("not-a-jwt")
	require.Error(t, err)
}
