package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setValidEnv sets the minimum valid environment and clears every optional
// variable so the defaults under test are actually the defaults.
func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123456:ABC-DEF1234ghIkl")
	t.Setenv("WHITELISTED_USER_IDS", "100,200")
	t.Setenv("HELIUS_WSS", "wss://mainnet.helius-rpc.com/?api-key=secret123")
	t.Setenv("HELIUS_API_URL", "https://api.helius.xyz/v0/transactions?api-key=secret123")
	for _, name := range []string{
		"DB_PATH", "COMMITMENT", "SOLANA_RPC_URL", "WORKER_COUNT",
		"SEMAPHORE_LIMIT", "MAX_RETRY", "FEE_THRESHOLD_LAMPORTS",
		"RECONCILE_INTERVAL", "LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	setValidEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int64{100, 200}, cfg.WhitelistedUserIDs)
	assert.Equal(t, "soltrack.db", cfg.DBPath)
	assert.Equal(t, "confirmed", cfg.Commitment)
	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.SolanaRPCURL)
	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, 8, cfg.SemaphoreLimit)
	assert.Equal(t, 5, cfg.MaxRetry)
	assert.Equal(t, int64(8000), cfg.FeeThresholdLamports)
	assert.Equal(t, 5*time.Second, cfg.ReconcileInterval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	setValidEnv(t)
	t.Setenv("DB_PATH", "/var/lib/soltrack/state.db")
	t.Setenv("COMMITMENT", "Finalized")
	t.Setenv("WORKER_COUNT", "4")
	t.Setenv("SEMAPHORE_LIMIT", "16")
	t.Setenv("FEE_THRESHOLD_LAMPORTS", "12000")
	t.Setenv("RECONCILE_INTERVAL", "10s")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/soltrack/state.db", cfg.DBPath)
	assert.Equal(t, "finalized", cfg.Commitment)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 16, cfg.SemaphoreLimit)
	assert.Equal(t, int64(12000), cfg.FeeThresholdLamports)
	assert.Equal(t, 10*time.Second, cfg.ReconcileInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingRequired(t *testing.T) {
	setValidEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("HELIUS_WSS", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN")
	assert.Contains(t, err.Error(), "HELIUS_WSS")
}

func TestLoadRejectsBadSchemes(t *testing.T) {
	setValidEnv(t)
	t.Setenv("HELIUS_WSS", "https://mainnet.helius-rpc.com")
	t.Setenv("HELIUS_API_URL", "http://api.helius.xyz")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must start with wss://")
	assert.Contains(t, err.Error(), "must start with https://")
}

func TestLoadRejectsBadWhitelist(t *testing.T) {
	setValidEnv(t)
	t.Setenv("WHITELISTED_USER_IDS", "100,abc")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WHITELISTED_USER_IDS")
}

func TestLoadRejectsBadCommitment(t *testing.T) {
	setValidEnv(t)
	t.Setenv("COMMITMENT", "maybe")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COMMITMENT")
}

func TestLoadRejectsBadInterval(t *testing.T) {
	setValidEnv(t)
	t.Setenv("RECONCILE_INTERVAL", "-5s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECONCILE_INTERVAL")
}

func TestParseUserIDs(t *testing.T) {
	ids, err := parseUserIDs(" 100, 200 ,300,")
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200, 300}, ids)

	_, err = parseUserIDs("0")
	assert.Error(t, err)

	_, err = parseUserIDs(" , ,")
	assert.Error(t, err)
}

func TestRedactedSummaryHidesSecrets(t *testing.T) {
	setValidEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	s := cfg.RedactedSummary()
	assert.NotContains(t, s, "secret123")
	assert.NotContains(t, s, cfg.TelegramBotToken)
	assert.Contains(t, s, "api-key=***")
	assert.Contains(t, s, "123456...(redacted)")
}
