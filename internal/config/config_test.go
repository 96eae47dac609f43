package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.UseDatabase {
		t.Fatal("UseDatabase default must be false")
	}
	if cfg.DBPath != "ledger.db" {
		t.Fatalf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Sheets.SheetName != "Transactions" {
		t.Fatalf("SheetName = %q", cfg.Sheets.SheetName)
	}
	if cfg.CacheTTL != 10*time.Second {
		t.Fatalf("CacheTTL = %v", cfg.CacheTTL)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
	if len(cfg.LegacyGroupMap) != 0 {
		t.Fatalf("LegacyGroupMap = %v; want empty", cfg.LegacyGroupMap)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("USE_DATABASE", "true")
	t.Setenv("DB_PATH", "/tmp/test.db")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("LOG_LEVEL", "warning") // alias normalized to warn
	t.Setenv("METRICS_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.UseDatabase || cfg.DBPath != "/tmp/test.db" {
		t.Fatalf("database settings wrong: %+v", cfg)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Fatalf("CacheTTL = %v", cfg.CacheTTL)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q; want warn", cfg.LogLevel)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Fatalf("MetricsAddr = %q", cfg.MetricsAddr)
	}
}

func TestLoad_LegacyGroupMap(t *testing.T) {
	// Labels may contain commas, so entries are semicolon-separated.
	t.Setenv("LEGACY_GROUP_MAP", "Exchange Office, Moscow=-100555; Downtown=-100777")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.LegacyGroupMap) != 2 {
		t.Fatalf("map = %v", cfg.LegacyGroupMap)
	}
	if cfg.LegacyGroupMap["Exchange Office, Moscow"] != -100555 {
		t.Fatalf("map = %v", cfg.LegacyGroupMap)
	}
	if cfg.LegacyGroupMap["Downtown"] != -100777 {
		t.Fatalf("map = %v", cfg.LegacyGroupMap)
	}
}

func TestLoad_LegacyGroupMapMalformed(t *testing.T) {
	t.Setenv("LEGACY_GROUP_MAP", "no-equals-sign")
	if _, err := Load(); err == nil {
		t.Fatal("malformed mapping must fail the load")
	}

	t.Setenv("LEGACY_GROUP_MAP", "Office=not-a-number")
	if _, err := Load(); err == nil {
		t.Fatal("non-numeric chat id must fail the load")
	}
}

func TestLoad_Validation(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	if _, err := Load(); err == nil {
		t.Fatal("bad log level must fail")
	}
	t.Setenv("LOG_LEVEL", "info")

	t.Setenv("CACHE_TTL", "-5s")
	if _, err := Load(); err == nil {
		t.Fatal("negative TTL must fail")
	}
}
