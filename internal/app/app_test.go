package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsbot/internal/cache"
	"partsbot/internal/config"
)

func TestOpenWiresMemoryCacheWithoutRedis(t *testing.T) {
	cfg := config.Config{
		DBPath:            filepath.Join(t.TempDir(), "data", "app.db"),
		CatalogAPIBaseURL: "https://catalog.test",
		CatalogAPIToken:   "token",
	}
	a, err := Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	_, isMemory := a.Cache.(*cache.Memory)
	assert.True(t, isMemory)
	assert.NotNil(t, a.Service)
}

func TestOpenFailsWithoutCatalog(t *testing.T) {
	cfg := config.Config{DBPath: filepath.Join(t.TempDir(), "app.db")}
	_, err := Open(context.Background(), cfg, zerolog.Nop())
	require.ErrorIs(t, err, config.ErrCatalogNotConfigured)
}
