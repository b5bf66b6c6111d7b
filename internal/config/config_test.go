package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	t.Setenv("SECPACK_SEC_USER_AGENT", "")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.SEC.RequestsPerSecond != 10 {
		t.Errorf("SEC.RequestsPerSecond: got %v, want 10", cfg.SEC.RequestsPerSecond)
	}
	if cfg.SEC.TickerCacheTTL != 24*time.Hour {
		t.Errorf("SEC.TickerCacheTTL: got %v, want 24h", cfg.SEC.TickerCacheTTL)
	}
	if cfg.SEC.Retry.MaxAttempts != 5 {
		t.Errorf("SEC.Retry.MaxAttempts: got %d, want 5", cfg.SEC.Retry.MaxAttempts)
	}
	if cfg.SEC.Retry.InitialInterval != 500*time.Millisecond {
		t.Errorf("SEC.Retry.InitialInterval: got %v", cfg.SEC.Retry.InitialInterval)
	}

	if cfg.Pack.DaysBack != 365 {
		t.Errorf("Pack.DaysBack: got %d, want 365", cfg.Pack.DaysBack)
	}
	if cfg.Pack.MaxExhibits != 25 {
		t.Errorf("Pack.MaxExhibits: got %d, want 25", cfg.Pack.MaxExhibits)
	}
	if cfg.Pack.MaxMB != 75 {
		t.Errorf("Pack.MaxMB: got %d, want 75", cfg.Pack.MaxMB)
	}
	if !cfg.Pack.Exhibits || cfg.Pack.Deep || !cfg.Pack.FullHistory {
		t.Errorf("Pack flags: got exhibits=%v deep=%v full=%v", cfg.Pack.Exhibits, cfg.Pack.Deep, cfg.Pack.FullHistory)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("API.Port: got %d, want 8080", cfg.API.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Tracing.Exporter != "none" {
		t.Errorf("Tracing.Exporter: got %q, want %q", cfg.Tracing.Exporter, "none")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SECPACK_SEC_USER_AGENT", "Acme Research ops@acme.test")
	t.Setenv("SECPACK_API_PORT", "9191")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SEC.UserAgent != "Acme Research ops@acme.test" {
		t.Errorf("SEC.UserAgent: got %q", cfg.SEC.UserAgent)
	}
	if cfg.API.Port != 9191 {
		t.Errorf("API.Port: got %d, want 9191", cfg.API.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: unexpected error %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("SECPACK_SEC_USER_AGENT", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
sec:
  user_agent: "File Agent file@example.test"
  retry:
    max_attempts: 2
pack:
  days_back: 90
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.SEC.UserAgent != "File Agent file@example.test" {
		t.Errorf("SEC.UserAgent: got %q", cfg.SEC.UserAgent)
	}
	if cfg.SEC.Retry.MaxAttempts != 2 {
		t.Errorf("SEC.Retry.MaxAttempts: got %d, want 2", cfg.SEC.Retry.MaxAttempts)
	}
	// Unset keys keep their defaults.
	if cfg.SEC.Retry.MaxInterval != 8*time.Second {
		t.Errorf("SEC.Retry.MaxInterval: got %v, want 8s", cfg.SEC.Retry.MaxInterval)
	}
	if cfg.Pack.DaysBack != 90 {
		t.Errorf("Pack.DaysBack: got %d, want 90", cfg.Pack.DaysBack)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level: got %q", cfg.Logging.Level)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// ── Validate ──

func TestValidateMissingUserAgent(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); !errors.Is(err, ErrMissingUserAgent) {
		t.Fatalf("Validate: got %v, want ErrMissingUserAgent", err)
	}

	cfg.SEC.UserAgent = "   "
	if err := cfg.Validate(); !errors.Is(err, ErrMissingUserAgent) {
		t.Fatalf("Validate with blank UA: got %v", err)
	}
}

func TestAddr(t *testing.T) {
	cfg := &Config{API: APIConfig{Host: "127.0.0.1", Port: 8081}}
	if got := cfg.Addr(); got != "127.0.0.1:8081" {
		t.Errorf("Addr: got %q", got)
	}
}

// ── Settings status ──

func TestCheckSettings(t *testing.T) {
	t.Setenv("SECPACK_SEC_USER_AGENT", "")

	unset := CheckSettings(&Config{})
	if len(unset) != 1 {
		t.Fatalf("expected 1 setting, got %d", len(unset))
	}
	if unset[0].IsSet || unset[0].Source != SourceNone {
		t.Errorf("unset setting: got %+v", unset[0])
	}

	set := CheckSettings(&Config{SEC: SECConfig{UserAgent: "Acme Research ops@acme.test"}})
	if !set[0].IsSet || set[0].Source != SourceConfig {
		t.Errorf("config setting: got %+v", set[0])
	}
	if set[0].Masked != "Acm...est" {
		t.Errorf("Masked: got %q", set[0].Masked)
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"short", "***"},
		{"12345678", "***"},
		{"123456789", "123...789"},
	}
	for _, tt := range tests {
		if got := mask(tt.in); got != tt.want {
			t.Errorf("mask(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}
