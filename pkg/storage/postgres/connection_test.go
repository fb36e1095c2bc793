package postgres

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modulink/pkg/storage"
)

func TestConnectionConfigFrom(t *testing.T) {
	cfg := storage.DefaultConfig()
	cfg.PostgresURL = "postgres://db:5432/modulink"

	cc := ConnectionConfigFrom(cfg)
	assert.Equal(t, "postgres://db:5432/modulink", cc.URL)
	assert.Equal(t, 20, cc.MaxConns)
	assert.Equal(t, 2, cc.MinConns)
	assert.Equal(t, 10*time.Second, cc.Timeout)
}

func TestConnectionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  ConnectionConfig
		wantErr string
	}{
		{
			name:   "valid",
			config: ConnectionConfig{URL: "postgres://localhost/modulink", MaxConns: 10, MinConns: 2},
		},
		{
			name:    "missing url",
			config:  ConnectionConfig{MaxConns: 10},
			wantErr: "postgres URL is required",
		},
		{
			name:    "negative pool",
			config:  ConnectionConfig{URL: "postgres://localhost/modulink", MaxConns: -1},
			wantErr: "must not be negative",
		},
		{
			name:    "min above max",
			config:  ConnectionConfig{URL: "postgres://localhost/modulink", MaxConns: 2, MinConns: 5},
			wantErr: "exceeds max conns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStats(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	stats := Stats(db)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	assert.Equal(t, int64(0), stats.WaitCount)
}
