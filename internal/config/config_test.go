package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "user", cfg.Auth.Username)
	assert.Equal(t, RecordStorePostgres, cfg.RecordStore)
	assert.Equal(t, ArtefactStoreS3, cfg.ArtefactStore)
	assert.Equal(t, "model-table", cfg.DynamoDB.Table)
	assert.Equal(t, "my-model-bucket", cfg.S3.Bucket)
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Equal(t, 10*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, 3, cfg.Storage.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Storage.RetryInitialInterval)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("RECORD_STORE", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/registry.db")
	t.Setenv("ARTEFACT_STORE", "local")
	t.Setenv("STORAGE_TIMEOUT", "2s")
	t.Setenv("STORAGE_MAX_ATTEMPTS", "0")
	t.Setenv("AUTH_PASSWORD", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, RecordStoreSQLite, cfg.RecordStore)
	assert.Equal(t, "/tmp/registry.db", cfg.SQLite.Path)
	assert.Equal(t, ArtefactStoreLocal, cfg.ArtefactStore)
	assert.Equal(t, 2*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, 1, cfg.Storage.MaxAttempts)
	assert.Equal(t, "secret", cfg.Auth.Password)
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("STORAGE_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Storage.Timeout)
}

func TestLoad_RejectsUnknownBackends(t *testing.T) {
	t.Setenv("RECORD_STORE", "mongo")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("RECORD_STORE", "sqlite")
	t.Setenv("ARTEFACT_STORE", "gcs")
	_, err = Load()
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", Name: "registry", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/registry?sslmode=disable", d.DSN())
}
