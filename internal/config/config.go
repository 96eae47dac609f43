// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes backend selection,
// spreadsheet credentials, cache tuning, the legacy group-label mapping, and
// logging/metrics settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// SheetsConfig defines how the spreadsheet backend reaches the remote
// document. Empty credentials put the store into offline in-memory mode.
type SheetsConfig struct {
	CredentialsFile string // GOOGLE_CREDENTIALS_FILE
	SpreadsheetID   string // SPREADSHEET_ID
	SheetName       string // SHEET_NAME
}

// Config holds all configuration values for the application.
type Config struct {
	// Backend selection
	UseDatabase bool   // USE_DATABASE: relational backend instead of sheets
	DBPath      string // SQLite path

	// Spreadsheet backend
	Sheets SheetsConfig

	// Cache
	CacheTTL time.Duration // CACHE_TTL, entry lifetime

	// Legacy group labels, "label=chatID;label=chatID". Labels may contain
	// commas, hence the semicolon separator.
	LegacyGroupMap map[string]int64

	// Logging / Metrics
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	MetricsAddr string // listen address for /metrics, empty disables
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	legacy, err := parseLegacyMap(getenv("LEGACY_GROUP_MAP", ""))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		UseDatabase: getbool("USE_DATABASE", false),
		DBPath:      getenv("DB_PATH", "ledger.db"),

		Sheets: SheetsConfig{
			CredentialsFile: getenv("GOOGLE_CREDENTIALS_FILE", ""),
			SpreadsheetID:   getenv("SPREADSHEET_ID", ""),
			SheetName:       getenv("SHEET_NAME", "Transactions"),
		},

		CacheTTL:       getdur("CACHE_TTL", 10*time.Second),
		LegacyGroupMap: legacy,

		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		MetricsAddr: getenv("METRICS_ADDR", ""),
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if cfg.UseDatabase && strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty when USE_DATABASE is set")
	}
	if cfg.CacheTTL <= 0 {
		return cfg, errors.New("CACHE_TTL must be a positive duration")
	}
	if strings.TrimSpace(cfg.Sheets.SheetName) == "" {
		return cfg, errors.New("SHEET_NAME must not be empty")
	}

	return cfg, nil
}

// parseLegacyMap parses "label=chatID;label=chatID" into a lookup map.
// Empty segments are skipped; a malformed segment fails the load.
func parseLegacyMap(s string) (map[string]int64, error) {
	out := map[string]int64{}
	for _, seg := range strings.Split(s, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		label, idStr, ok := strings.Cut(seg, "=")
		label = strings.TrimSpace(label)
		idStr = strings.TrimSpace(idStr)
		if !ok || label == "" || idStr == "" {
			return nil, fmt.Errorf("LEGACY_GROUP_MAP: malformed entry %q", seg)
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("LEGACY_GROUP_MAP: bad chat id in %q", seg)
		}
		out[label] = id
	}
	return out, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
