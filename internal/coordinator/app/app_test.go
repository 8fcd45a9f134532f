package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/adapter/outbound/snapshot"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/config"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
)

func TestAdvertiseAddr(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Equal(t, ":9000", advertiseAddr(cfg))

	cfg.Server.AdvertiseAddr = "10.0.0.1:9000"
	assert.Equal(t, "10.0.0.1:9000", advertiseAddr(cfg))
}

func TestOpenSnapshotStore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		a := &App{cfg: config.DefaultConfig()}
		store, err := a.openSnapshotStore()
		require.NoError(t, err)
		assert.IsType(t, &snapshot.MemoryStore{}, store)
		assert.Empty(t, a.closers)
	})

	t.Run("badger registers a closer", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Snapshot.Backend = "badger"
		cfg.Snapshot.BadgerDir = filepath.Join(t.TempDir(), "snap")
		a := &App{cfg: cfg}

		store, err := a.openSnapshotStore()
		require.NoError(t, err)
		require.Len(t, a.closers, 1)
		t.Cleanup(a.close)

		_, err = store.Load(context.Background())
		assert.ErrorIs(t, err, domain.ErrNoSnapshot)
	})
}
