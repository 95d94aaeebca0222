package service

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tentpost/internal/db"
	"gorm.io/gorm"
)

func TestTypeRegistry_FindOrCreateIsIdempotent(t *testing.T) {
	gdb := setupServiceTestDB(t)
	registry := NewTypeRegistry()

	typ, base, err := registry.FindOrCreate(gdb, "https://tent.io/types/status/v0#")
	require.NoError(t, err)
	assert.Equal(t, "https://tent.io/types/status", base.Base)
	assert.Equal(t, base.ID, typ.TypeBaseID)

	reply, replyBase, err := registry.FindOrCreate(gdb, "https://tent.io/types/status/v0#reply")
	require.NoError(t, err)
	assert.Equal(t, base.ID, replyBase.ID)
	assert.NotEqual(t, typ.ID, reply.ID)

	again, againBase, err := NewTypeRegistry().FindOrCreate(gdb, "https://tent.io/types/status/v0#")
	require.NoError(t, err)
	assert.Equal(t, typ.ID, again.ID)
	assert.Equal(t, base.ID, againBase.ID)

	assert.Equal(t, int64(1), countRows(t, gdb, &db.TypeBase{}, ""))
	assert.Equal(t, int64(2), countRows(t, gdb, &db.Type{}, ""))

	_, _, err = registry.FindOrCreate(gdb, "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestTypeRegistry_CacheOnlyHoldsRememberedRecords(t *testing.T) {
	gdb := setupServiceTestDB(t)
	registry := NewTypeRegistry()

	_ = gdb.Transaction(func(tx *gorm.DB) error {
		_, _, err := registry.FindOrCreate(tx, "https://tent.io/types/status/v0#")
		require.NoError(t, err)
		return assert.AnError
	})
	assert.Equal(t, int64(0), countRows(t, gdb, &db.Type{}, ""))

	typ, base, err := registry.FindOrCreate(gdb, "https://tent.io/types/status/v0#")
	require.NoError(t, err)
	assert.Equal(t, int64(1), countRows(t, gdb, &db.Type{}, ""))

	registry.Remember(typ, base)
	cached, cachedBase, err := registry.FindOrCreate(gdb, "https://tent.io/types/status/v0#")
	require.NoError(t, err)
	assert.Equal(t, typ.ID, cached.ID)
	assert.Equal(t, base.ID, cachedBase.ID)
}

func TestTypeRegistry_ConcurrentFirstUse(t *testing.T) {
	gdb, err := db.Open(db.DriverSQLite, filepath.Join(t.TempDir(), "registry.db"), true)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry := NewTypeRegistry()
			errs <- gdb.Transaction(func(tx *gorm.DB) error {
				_, _, err := registry.FindOrCreate(tx, "https://tent.io/types/photo/v0#")
				return err
			})
			errs <- gdb.Transaction(func(tx *gorm.DB) error {
				_, err := NewMentionGraph(gdb).ResolveEntity(tx, "https://bob.example.com")
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), countRows(t, gdb, &db.Type{}, ""))
	assert.Equal(t, int64(1), countRows(t, gdb, &db.TypeBase{}, ""))
	assert.Equal(t, int64(1), countRows(t, gdb, &db.Entity{}, ""))
}
