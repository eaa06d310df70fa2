package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clc-ministry/forms-backend/pkg/utils"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("COGNITO_USER_POOL_ID", "us-east-2_abc")
	t.Setenv("COGNITO_CLIENT_ID", "client-1")
	t.Setenv("AWS_REGION", "us-east-2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverDynamoDB, cfg.Store.Driver)
	assert.Equal(t, "WorkshopRegistrations", cfg.Store.WorkshopTable)
	assert.Equal(t, "SpaghettiOrders", cfg.Store.OrdersTable)
	assert.Equal(t, "us-east-2", cfg.Cognito.Region)
	assert.True(t, cfg.Cognito.Enabled())
	assert.False(t, cfg.LocalAuth.Enabled())
	assert.False(t, cfg.Exports.Enabled)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoadLocalAuthAndPostgres(t *testing.T) {
	hash, err := utils.HashPassword("hunter22")
	require.NoError(t, err)
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("ADMIN_USERS", "pastor:"+hash)
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_MAX_CONNS", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.LocalAuth.Enabled())
	assert.Equal(t, map[string]string{"pastor": hash}, cfg.LocalAuth.Users)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://postgres:postgres@db:5432/forms?sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, int32(4), cfg.Database.MaxConns)
}

func TestLoadRejectsBadSettings(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("EXPORTS_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorContains(t, err, "STORE_DRIVER")
	assert.ErrorContains(t, err, "no admin credential provider")
	assert.ErrorContains(t, err, "AWS_S3_EXPORTS_BUCKET")

	t.Setenv("ADMIN_USERS", "pastor")
	_, err = Load()
	assert.ErrorContains(t, err, "ADMIN_USERS")
}

func TestDSNPrefersURL(t *testing.T) {
	c := DatabaseConfig{URL: "postgres://u@h/db", Host: "ignored"}
	assert.Equal(t, "postgres://u@h/db", c.DSN())
}
