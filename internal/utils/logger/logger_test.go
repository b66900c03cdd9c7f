package logger

import (
	"context"
	"testing"

	"healthsync/internal/app/server/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		debug bool
	}{
		{name: "local environment", env: config.EnvLocal, debug: true},
		{name: "dev environment", env: config.EnvDev, debug: true},
		{name: "prod environment", env: config.EnvProd, debug: false},
		{name: "unknown environment falls back to prod", env: "staging", debug: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := New(tt.env)
			require.NotNil(t, log)

			ctx := context.Background()
			assert.Equal(t, tt.debug, log.Enabled(ctx, slog.LevelDebug))
			assert.True(t, log.Enabled(ctx, slog.LevelInfo))
		})
	}
}

func TestSetupPrettySlog(t *testing.T) {
	log := setupPrettySlog()
	require.NotNil(t, log)

	assert.True(t, log.Enabled(context.Background(), slog.LevelDebug))
}
