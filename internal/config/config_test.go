package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/meme-party/internal/platform/logging"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "meme-party-api", cfg.ServiceName)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 3, cfg.GameTotalRounds)
	assert.Equal(t, 90, cfg.CreativePhaseSeconds)
	assert.Equal(t, 20, cfg.ScorePhaseSeconds)
	assert.Equal(t, 10, cfg.RoundEndSeconds)
	assert.Equal(t, 8, cfg.SchedulerWorkers)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
	assert.Equal(t, logging.LevelInfo, cfg.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "meme-party-api", cfg.PyroscopeAppName)
	assert.Equal(t, 30*time.Second, cfg.GameCacheTTL)
	assert.Equal(t, 10, cfg.DBMaxOpenConns)
}

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_StoreDriver(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)

	t.Setenv("STORE_DRIVER", "Postgres")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)

	t.Setenv("GAME_CACHE_TTL", "0s")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.GameCacheTTL)

	t.Setenv("STORE_DRIVER", "redis")
	_, err = Load()
	require.Error(t, err)
}

func TestLoad_GameTimings(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)

	t.Setenv("GAME_CREATIVE_PHASE_SECONDS", "45")
	t.Setenv("GAME_TOTAL_ROUNDS", "5")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.CreativePhaseSeconds)
	assert.Equal(t, 5, cfg.GameTotalRounds)

	t.Setenv("GAME_SCORE_PHASE_SECONDS", "500")
	_, err = Load()
	require.ErrorContains(t, err, "GAME_SCORE_PHASE_SECONDS")

	t.Setenv("GAME_SCORE_PHASE_SECONDS", "20")
	t.Setenv("GAME_TOTAL_ROUNDS", "21")
	_, err = Load()
	require.ErrorContains(t, err, "GAME_TOTAL_ROUNDS")
}

func TestLoad_WebhookRequiresURLWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("WEBHOOK_ENABLED", "true")
	t.Setenv("WEBHOOK_URL", "")

	_, err := Load()
	require.ErrorContains(t, err, "WEBHOOK_URL")
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")

	_, err := Load()
	require.ErrorContains(t, err, "UPTRACE_DSN")
}

func TestLoad_PyroscopeRequiresServerWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("PYROSCOPE_ENABLED", "true")
	t.Setenv("PYROSCOPE_SERVER_ADDRESS", "")

	_, err := Load()
	require.ErrorContains(t, err, "PYROSCOPE_SERVER_ADDRESS")
}
