package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	bolt, err := Open(BackendBolt, filepath.Join(dir, "store.db"))
	require.NoError(t, err)
	sqlite, err := Open(BackendSQLite, filepath.Join(dir, "store.sqlite"))
	require.NoError(t, err)
	memory, err := Open(BackendMemory, "")
	require.NoError(t, err)

	stores := map[string]Store{
		BackendMemory: memory,
		BackendBolt:   bolt,
		BackendSQLite: sqlite,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "handle:b", []byte("2")))
			require.NoError(t, s.Set(ctx, "handle:a", []byte("1")))
			require.NoError(t, s.Set(ctx, "handle_x", []byte("x")))
			require.NoError(t, s.Set(ctx, "recent-locations", []byte("[]")))

			v, err := s.Get(ctx, "handle:a")
			require.NoError(t, err)
			assert.Equal(t, []byte("1"), v)

			require.NoError(t, s.Set(ctx, "handle:a", []byte("updated")))
			v, err = s.Get(ctx, "handle:a")
			require.NoError(t, err)
			assert.Equal(t, []byte("updated"), v)

			keys, err := s.Keys(ctx, "handle:")
			require.NoError(t, err)
			assert.Equal(t, []string{"handle:a", "handle:b"}, keys)

			require.NoError(t, s.Delete(ctx, "handle:a"))
			require.NoError(t, s.Delete(ctx, "never-set"))
			_, err = s.Get(ctx, "handle:a")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	value := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", value))
	value[0] = 'z'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")

	s, err := OpenBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "recent-locations", []byte(`[{"sourceKey":"/data"}]`)))
	require.NoError(t, s.Close())

	s, err = OpenBoltStore(path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get(ctx, "recent-locations")
	require.NoError(t, err)
	assert.Equal(t, `[{"sourceKey":"/data"}]`, string(v))
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open("etcd", "")
	assert.Error(t, err)
}
