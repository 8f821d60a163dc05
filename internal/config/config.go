package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment
// variables.
type Config struct {
	BalanceAPIURL        string
	RateAPIURL           string
	DatabaseURL          string
	BaseCurrency         string
	AccountsFile         string
	BalanceRetryMax      int
	BalanceRetryDelay    time.Duration
	RateRetryMax         int
	RateRetryDelay       time.Duration
	RateCacheTTL         time.Duration
	MemberTimeout        time.Duration
	ChangeLookback       time.Duration
	ChangeCacheTTL       time.Duration
	RateWorkerInterval   time.Duration
	SnapshotInterval     time.Duration
	HTTPPort             string
	AdminAPIKey          string
	SheetsSpreadsheetID  string
	SheetsCredentials    string
	ExportFile           string
	ExportHistoryPeriods int
}

// Load reads configuration from environment variables with sensible
// defaults.
func Load() Config {
	return Config{
		BalanceAPIURL:        envOrDefault("BALANCE_API_URL", "https://api.wallet.example.com"),
		RateAPIURL:           envOrDefault("RATE_API_URL", "https://api.coingecko.com/api/v3"),
		DatabaseURL:          envOrDefaultWarn("DATABASE_URL", ""),
		BaseCurrency:         envOrDefault("BASE_CURRENCY", "USD"),
		AccountsFile:         envOrDefault("ACCOUNTS_FILE", ""),
		BalanceRetryMax:      envOrDefaultInt("BALANCE_RETRY_MAX", 5),
		BalanceRetryDelay:    envOrDefaultDuration("BALANCE_RETRY_DELAY", 2*time.Second),
		RateRetryMax:         envOrDefaultInt("RATE_RETRY_MAX", 5),
		RateRetryDelay:       envOrDefaultDuration("RATE_RETRY_DELAY", 6*time.Second),
		RateCacheTTL:         envOrDefaultDuration("RATE_CACHE_TTL", time.Minute),
		MemberTimeout:        envOrDefaultDuration("MEMBER_TIMEOUT", 15*time.Second),
		ChangeLookback:       envOrDefaultDuration("CHANGE_LOOKBACK", 24*time.Hour),
		ChangeCacheTTL:       envOrDefaultDuration("CHANGE_CACHE_TTL", time.Minute),
		RateWorkerInterval:   envOrDefaultDuration("RATE_WORKER_INTERVAL", time.Minute),
		SnapshotInterval:     envOrDefaultDuration("SNAPSHOT_INTERVAL", 24*time.Hour),
		HTTPPort:             envOrDefault("HTTP_PORT", "8080"),
		AdminAPIKey:          envOrDefault("ADMIN_API_KEY", ""),
		SheetsSpreadsheetID:  envOrDefault("SHEETS_SPREADSHEET_ID", ""),
		SheetsCredentials:    envOrDefault("SHEETS_CREDENTIALS_JSON", ""),
		ExportFile:           envOrDefault("EXPORT_XLSX_FILE", ""),
		ExportHistoryPeriods: envOrDefaultInt("EXPORT_HISTORY_DAYS", 90),
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	v := envOrDefault(key, defaultVal)
	if v == "" {
		slog.Warn("required env var not set", "key", key)
	}
	return v
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}
