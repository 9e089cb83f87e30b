package services

import (
	"context"
	"testing"

	"snapshoot-sync/internal/domain"
	"snapshoot-sync/internal/domain/location"
	snapshoot_errors "snapshoot-sync/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateLocation_OfflineThenOnline(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, false)
	paris := location.Coordinates{Latitude: 48.85, Longitude: 2.35}

	outcome, err := fx.svc.Location.UpdateLocation(ctx, paris)
	require.NoError(t, err)
	assert.Equal(t, Offline, outcome)

	fix, ok, err := fx.svc.Location.GetCachedLocation(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, paris, fix.Coordinates)
	assert.False(t, fix.Synced)

	fx.monitor.SetOnline(true)
	lyon := location.Coordinates{Latitude: 45.76, Longitude: 4.84}
	outcome, err = fx.svc.Location.UpdateLocation(ctx, lyon)
	require.NoError(t, err)
	assert.Equal(t, Synced, outcome)

	n, err := fx.repos.PendingLocations.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	fix, _, err = fx.svc.Location.GetCachedLocation(ctx)
	require.NoError(t, err)
	assert.True(t, fix.Synced)
	assert.Equal(t, lyon, fix.Coordinates)
}

func TestUpdateLocation_RejectsOutOfRange(t *testing.T) {
	fx := newFixture(t, true)
	_, err := fx.svc.Location.UpdateLocation(context.Background(), location.Coordinates{Latitude: 91})
	assert.ErrorIs(t, err, snapshoot_errors.ErrInvalidInput)
}

func TestReplayLocation_MarksFixSynced(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, false)
	c := location.Coordinates{Latitude: 10, Longitude: 20}
	_, err := fx.svc.Location.UpdateLocation(ctx, c)
	require.NoError(t, err)

	queued, err := fx.repos.PendingLocations.PeekAll(ctx)
	require.NoError(t, err)
	require.NoError(t, fx.svc.Location.ReplayLocation(ctx, queued[0]))

	fix, _, err := fx.svc.Location.GetCachedLocation(ctx)
	require.NoError(t, err)
	assert.True(t, fix.Synced)
}

func TestLocationEnabled_DefaultsOff(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, false)

	on, err := fx.svc.Location.LocationEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, fx.svc.Location.SetLocationEnabled(ctx, true))
	on, err = fx.svc.Location.LocationEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, on)
}

func TestPrivacy_LocalChangeIsNotOverwrittenByRefresh(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, false)
	fx.remote.privacy = location.Privacy{ShareLocation: true, Visibility: domain.PrivacySettingEveryone}

	p, err := fx.svc.Location.GetPrivacy(ctx)
	require.NoError(t, err)
	assert.Equal(t, location.DefaultPrivacy(), p)

	hidden := location.Privacy{ShareLocation: false, Visibility: domain.PrivacySettingNobody}
	outcome, err := fx.svc.Location.UpdatePrivacy(ctx, hidden)
	require.NoError(t, err)
	assert.Equal(t, Offline, outcome)

	fx.monitor.SetOnline(true)
	p, err = fx.svc.Location.GetPrivacy(ctx)
	require.NoError(t, err)
	fx.svc.Env.Wait()
	assert.Equal(t, hidden, p)
	assert.NotContains(t, fx.remote.Calls(), "get_privacy")

	_, err = fx.svc.Location.UpdatePrivacy(ctx, location.Privacy{Visibility: "FRIENDS"})
	assert.ErrorIs(t, err, snapshoot_errors.ErrInvalidInput)
}

func TestNearbyUsers_NeedsNetwork(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, false)
	center := location.Coordinates{Latitude: 1, Longitude: 1}

	_, err := fx.svc.Location.NearbyUsers(ctx, center, 5)
	assert.ErrorIs(t, err, snapshoot_errors.ErrOffline)

	fx.monitor.SetOnline(true)
	users, err := fx.svc.Location.NearbyUsers(ctx, center, 5)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
