package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the service.
type Config struct {
	// Required
	TelegramBotToken   string
	WhitelistedUserIDs []int64
	HeliusWSS          string
	HeliusAPIURL       string

	// Optional (with defaults)
	DBPath               string        // default: "soltrack.db"
	Commitment           string        // default: "confirmed"
	SolanaRPCURL         string        // metadata lookups
	WorkerCount          int           // default: 2
	SemaphoreLimit       int           // default: 8, concurrent upstream fetches
	ReconcileInterval    time.Duration // default: 5s
	FeeThresholdLamports int64         // default: 8000
	MaxRetry             int           // default: 5, listener dial attempts
	LogLevel             string
}

// allowedCommitments is kept small and explicit to avoid surprises.
var allowedCommitments = map[string]struct{}{
	"processed": {},
	"confirmed": {},
	"finalized": {},
}

// Load reads environment variables, applies defaults, validates,
// and returns a Config instance. It attempts to load .env if present.
func Load() (Config, error) {
	// Load .env if it exists; ignore if missing.
	_ = godotenv.Load()

	var cfg Config
	var errs []string

	// --- Required Fields ---

	cfg.TelegramBotToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	if cfg.TelegramBotToken == "" {
		errs = append(errs, "TELEGRAM_BOT_TOKEN is required (get it from @BotFather)")
	}

	whitelistStr := strings.TrimSpace(os.Getenv("WHITELISTED_USER_IDS"))
	if whitelistStr == "" {
		errs = append(errs, "WHITELISTED_USER_IDS is required (comma-separated telegram ids)")
	} else {
		ids, err := parseUserIDs(whitelistStr)
		if err != nil {
			errs = append(errs, fmt.Sprintf("WHITELISTED_USER_IDS must be comma-separated integers, got %q", whitelistStr))
		} else {
			cfg.WhitelistedUserIDs = ids
		}
	}

	cfg.HeliusWSS = strings.TrimSpace(os.Getenv("HELIUS_WSS"))
	if cfg.HeliusWSS == "" {
		errs = append(errs, "HELIUS_WSS is required (your Helius WebSocket RPC URL, incl. api key)")
	} else if !strings.HasPrefix(strings.ToLower(cfg.HeliusWSS), "wss://") {
		errs = append(errs, fmt.Sprintf("HELIUS_WSS must start with wss://, got %q", cfg.HeliusWSS))
	}

	cfg.HeliusAPIURL = strings.TrimSpace(os.Getenv("HELIUS_API_URL"))
	if cfg.HeliusAPIURL == "" {
		errs = append(errs, "HELIUS_API_URL is required (your Helius HTTP API URL for fetching transactions)")
	} else if !strings.HasPrefix(strings.ToLower(cfg.HeliusAPIURL), "https://") {
		errs = append(errs, fmt.Sprintf("HELIUS_API_URL must start with https://, got %q", cfg.HeliusAPIURL))
	}

	// --- Optional Fields with Defaults ---

	cfg.DBPath = strings.TrimSpace(os.Getenv("DB_PATH"))
	if cfg.DBPath == "" {
		cfg.DBPath = "soltrack.db"
	}

	commitment := strings.TrimSpace(os.Getenv("COMMITMENT"))
	if commitment == "" {
		commitment = "confirmed"
	}
	commitment = strings.ToLower(commitment)
	if _, ok := allowedCommitments[commitment]; !ok {
		errs = append(errs, fmt.Sprintf("COMMITMENT must be one of processed|confirmed|finalized, got %q", commitment))
	} else {
		cfg.Commitment = commitment
	}

	cfg.SolanaRPCURL = strings.TrimSpace(os.Getenv("SOLANA_RPC_URL"))
	if cfg.SolanaRPCURL == "" {
		cfg.SolanaRPCURL = "https://api.mainnet-beta.solana.com"
	}

	cfg.WorkerCount = intEnv("WORKER_COUNT", 2, &errs)
	cfg.SemaphoreLimit = intEnv("SEMAPHORE_LIMIT", 8, &errs)
	cfg.MaxRetry = intEnv("MAX_RETRY", 5, &errs)
	cfg.FeeThresholdLamports = int64(intEnv("FEE_THRESHOLD_LAMPORTS", 8000, &errs))

	intervalStr := strings.TrimSpace(os.Getenv("RECONCILE_INTERVAL"))
	if intervalStr == "" {
		cfg.ReconcileInterval = 5 * time.Second
	} else {
		d, err := time.ParseDuration(intervalStr)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Sprintf("RECONCILE_INTERVAL must be a positive duration (e.g. 5s), got %q", intervalStr))
		} else {
			cfg.ReconcileInterval = d
		}
	}

	logLevel := strings.TrimSpace(strings.ToLower(os.Getenv("LOG_LEVEL")))
	switch logLevel {
	case "", "info", "debug", "warn", "error":
		// OK (empty becomes "info")
	default:
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of debug|info|warn|error, got %q", logLevel))
	}
	if logLevel == "" {
		logLevel = "info"
	}
	cfg.LogLevel = logLevel

	if len(errs) > 0 {
		return Config{}, errors.New("config validation error:\n  - " + strings.Join(errs, "\n  - "))
	}

	return cfg, nil
}

// MustLoad is a convenience for main(): exit fast with a readable error.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		// Print a clean error (no stack trace) so non-Go users can fix env quickly.
		fmt.Fprintf(os.Stderr, "\nFATAL: %v\n\n", err)
		os.Exit(1)
	}
	return cfg
}

func parseUserIDs(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid user id %q", p)
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, errors.New("no user ids")
	}
	return out, nil
}

func intEnv(name string, def int, errs *[]string) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s must be a positive integer, got %q", name, raw))
		return def
	}
	return v
}

// RedactedSummary returns a safe human-readable snapshot of the config.
// Useful to log at startup for quick debugging without leaking secrets.
func (c Config) RedactedSummary() string {
	return fmt.Sprintf(
		"config{ commitment=%s, db=%s, helius_wss=%s, helius_api=%s, solana_rpc=%s, telegram_bot_token=%s, whitelist=%d users, workers=%d, semaphore=%d, reconcile=%s, fee_threshold=%d, max_retry=%d, log_level=%s }",
		c.Commitment,
		c.DBPath,
		redactURL(c.HeliusWSS),
		redactURL(c.HeliusAPIURL),
		c.SolanaRPCURL, // Public RPCs don't need redaction
		redactToken(c.TelegramBotToken),
		len(c.WhitelistedUserIDs),
		c.WorkerCount,
		c.SemaphoreLimit,
		c.ReconcileInterval,
		c.FeeThresholdLamports,
		c.MaxRetry,
		c.LogLevel,
	)
}

func redactToken(tok string) string {
	if len(tok) > 6 {
		return tok[:6] + "...(redacted)"
	}
	if tok == "" {
		return "(empty)"
	}
	return "***"
}

func redactURL(u string) string {
	parts := strings.Split(u, "api-key=")
	if len(parts) < 2 {
		return u
	}
	tail := parts[1]
	if i := strings.IndexAny(tail, "&;"); i >= 0 {
		tail = tail[:i]
	}
	return strings.Replace(u, "api-key="+tail, "api-key=***", 1)
}
