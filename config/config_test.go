package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "shipcheck-node-0", cfg.NodeID)
	assert.Equal(t, "3001", cfg.HTTPPort)
	assert.Equal(t, "shipcheck_db", cfg.DatabaseName)
	assert.Equal(t, 24*time.Hour, cfg.InspectionTTL)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("NODE_ID", "wh-east-1")
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("INSPECTION_TTL_HOURS", "6")

	cfg := LoadConfig()
	assert.Equal(t, "wh-east-1", cfg.NodeID)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "db.internal", cfg.DatabaseHost)
	assert.Equal(t, 6*time.Hour, cfg.InspectionTTL)
}

func TestLoadConfigBadTTLFallsBack(t *testing.T) {
	t.Setenv("INSPECTION_TTL_HOURS", "zero")
	cfg := LoadConfig()
	assert.Equal(t, 24*time.Hour, cfg.InspectionTTL)
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{
		DatabaseHost: "localhost",
		DatabasePort: "5432",
		DatabaseUser: "postgres",
		DatabasePass: "secret",
		DatabaseName: "shipcheck_db",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=secret dbname=shipcheck_db sslmode=disable",
		cfg.GetDSN())
}

func TestValidate(t *testing.T) {
	cfg := LoadConfig()
	cfg.NodeID = ""
	assert.Error(t, cfg.Validate())

	cfg = LoadConfig()
	cfg.InspectionTTL = 0
	assert.Error(t, cfg.Validate())
}
