package storage

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"healthsync/internal/app/server/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestOpen(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("sqlite", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.DB.Driver = config.DriverSQLite
		cfg.DB.DatabaseURI = filepath.Join(t.TempDir(), "healthsync.db")

		b, err := Open(context.Background(), cfg, log)
		require.NoError(t, err)
		defer b.Close()

		assert.NoError(t, b.Ping(context.Background()))
		assert.NotNil(t, b.Records())
		assert.NotNil(t, b.Ledger())
		assert.NotNil(t, b.Sessions())
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.DB.Driver = "mysql"

		_, err := Open(context.Background(), cfg, log)
		assert.ErrorContains(t, err, "unsupported database driver")
	})
}
