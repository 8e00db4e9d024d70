package injector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csicar/tables/internal/config"
	"github.com/csicar/tables/internal/core/storage"
)

func TestInitializeApp(t *testing.T) {
	for _, backend := range []string{storage.BackendMemory, storage.BackendDisk, storage.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Log.Level = "none"
			cfg.Storage.Backend = backend
			cfg.Storage.Path = filepath.Join(t.TempDir(), "tables")
			cfg.History.Divisor = 20

			app, cleanup, err := InitializeApp(cfg)
			require.NoError(t, err)
			defer cleanup()

			assert.Equal(t, float64(20), app.Block.Divisor)
			ctx := context.Background()
			require.NoError(t, app.Workspace.Open(ctx, cfg.Storage.Key))
			n, err := app.Workspace.SaveAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			docs, err := app.Workspace.Documents(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{cfg.Storage.Key}, docs)
		})
	}
}

func TestInitializeAppErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "loud"
	_, _, err := InitializeApp(cfg)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Log.Level = "none"
	cfg.Storage.Backend = "badger"
	_, _, err = InitializeApp(cfg)
	assert.Error(t, err)
}
