package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modulink/pkg/config"
	"github.com/platinummonkey/modulink/pkg/entitlement"
	"github.com/platinummonkey/modulink/pkg/storage"
	"github.com/platinummonkey/modulink/pkg/storage/postgres"
	"github.com/platinummonkey/modulink/pkg/storage/testdb"
)

func TestNewCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := postgres.NewRedisClient(storage.Config{RedisURL: "redis://" + mr.Addr(), RedisDB: 0})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	tests := []struct {
		mode    string
		redis   *postgres.RedisClient
		name    string
		wantErr bool
	}{
		{mode: "", name: "none"},
		{mode: config.CacheNone, name: "none"},
		{mode: config.CacheMemory, name: "memory"},
		{mode: config.CacheRedis, redis: client, name: "redis"},
		{mode: config.CacheRedis, wantErr: true},
		{mode: "memcached", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.mode+"/"+tt.name, func(t *testing.T) {
			cache, err := NewCache(config.CacheConfig{Mode: tt.mode, TTL: time.Minute, Size: 10, Prefix: "t"}, tt.redis)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, cache.Name())
		})
	}
}

func TestAssemble(t *testing.T) {
	db := testdb.New(t)
	logger, hook := test.NewNullLogger()
	cfg := &config.Config{Cache: config.CacheConfig{Mode: config.CacheMemory, TTL: time.Minute, Size: 100}}

	a, err := Assemble(context.Background(), cfg, logger, db, nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	require.NotNil(t, a.Engine)
	require.NotNil(t, a.Metrics)
	assert.Equal(t, "memory", hook.LastEntry().Data["cache"])

	tenantID := testdb.InsertTenant(t, db, "Acme", "IT001")
	owner := testdb.InsertUser(t, db, tenantID, "owner@acme.test")
	testdb.InsertModule(t, db, 0, "Dashboard", false)
	testdb.InsertModule(t, db, 1, "Sales", true)
	testdb.InsertModule(t, db, 2, "HR", true)
	testdb.InsertModule(t, db, 3, "Support", true)

	_, err = a.Engine.BootstrapTenant(context.Background(), tenantID, owner)
	require.NoError(t, err)

	allowed, err := a.Engine.CanAccess(context.Background(), entitlement.Subject{UserID: owner, TenantID: tenantID}, 1)
	require.NoError(t, err)
	assert.True(t, allowed)

	// audit events are written asynchronously
	assert.Eventually(t, func() bool {
		var n int
		err := db.QueryRow(`SELECT COUNT(*) FROM audit_logs`).Scan(&n)
		return err == nil && n > 0
	}, 2*time.Second, 20*time.Millisecond)

	families, err := a.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
