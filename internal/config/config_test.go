package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "snowday", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 5*time.Minute, cfg.Upstream.StatusCacheTTL)
	assert.Equal(t, 10*time.Second, cfg.Upstream.Timeout)
	assert.NotEmpty(t, cfg.Tracking.Schools)
	assert.Contains(t, cfg.Tracking.Schools, "parkland-sd")

	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_CustomEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STATUS_CACHE_TTL", "90s")
	t.Setenv("SCHOOLS", "parkland-sd, easton-asd ,nazareth-asd")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 90*time.Second, cfg.Upstream.StatusCacheTTL)
	assert.Equal(t, []string{"parkland-sd", "easton-asd", "nazareth-asd"}, cfg.Tracking.Schools)
}

func TestLoadConfig_InvalidInt(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	t.Setenv("STATUS_CACHE_TTL", "five minutes")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STATUS_CACHE_TTL")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadConfig()
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Database.Host = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Tracking.Schools = nil
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Upstream.StatusCacheTTL = 0
	assert.Error(t, cfg.Validate())
}
