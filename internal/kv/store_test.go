package kv

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, "stories", `[{"id":"1"}]`))
	v, ok, err := s.Get(ctx, "stories")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `[{"id":"1"}]`, v)

	require.NoError(t, s.Set(ctx, "stories", `[]`))
	v, _, err = s.Get(ctx, "stories")
	require.NoError(t, err)
	require.Equal(t, `[]`, v)

	require.NoError(t, s.Remove(ctx, "stories"))
	_, ok, err = s.Get(ctx, "stories")
	require.NoError(t, err)
	require.False(t, ok)

	// removing twice is fine
	require.NoError(t, s.Remove(ctx, "stories"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exerciseStore(t, s)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "auth_token", "abc"))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	v, ok, err := reopened.Get(ctx, "auth_token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc", v)
}

func TestOpenSQLite_MissingDirectory(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "nope", "kv.db"))
	require.Error(t, err)
}

func TestWithPrefix(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	s := WithPrefix(mem, "user42/")

	exerciseStore(t, s)

	require.NoError(t, s.Set(ctx, "stories", "x"))
	require.Equal(t, []string{"user42/stories"}, mem.Keys())
	require.Same(t, mem, WithPrefix(mem, ""))
}

func TestLocker_SerializesSameKey(t *testing.T) {
	l := NewLocker()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("stories")
			v := counter
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, 50, counter)
}
