package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/adapter/outbound/repository"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/config"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/domain"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

func TestOpenRepository(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		repo, err := openRepository(config.StoreConfig{Backend: "memory"})
		require.NoError(t, err)
		assert.IsType(t, &repository.MemoryRepository{}, repo)
		require.NoError(t, repo.Close())
	})

	t.Run("badger creates its directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "records")
		repo, err := openRepository(config.StoreConfig{Backend: "badger", DataDir: dir})
		require.NoError(t, err)
		t.Cleanup(func() { _ = repo.Close() })

		ctx := context.Background()
		require.NoError(t, repo.Put(ctx, domain.Record{Name: "a", Slot: 3, Sequence: 1, Hash: "h"}))
		recs, err := repo.List(ctx, []slotmap.Range{{Start: 0, End: 9}})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "a", recs[0].Name)
		assert.DirExists(t, dir)
	})
}
