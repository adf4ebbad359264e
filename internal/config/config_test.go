package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Set only required env var
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	defer os.Unsetenv("DATABASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Verify defaults
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Import.BatchSize != 100 {
		t.Errorf("Import.BatchSize = %d, want %d", cfg.Import.BatchSize, 100)
	}
	if cfg.Import.GracePeriod != time.Second {
		t.Errorf("Import.GracePeriod = %s, want %s", cfg.Import.GracePeriod, time.Second)
	}
	if cfg.Disk.MinFreeBytes != 1073741824 {
		t.Errorf("Disk.MinFreeBytes = %d, want %d", cfg.Disk.MinFreeBytes, 1073741824)
	}
	if cfg.Disk.Path != "/" {
		t.Errorf("Disk.Path = %q, want %q", cfg.Disk.Path, "/")
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("IMPORT_BATCH_SIZE", "250")
	os.Setenv("LOG_LEVEL", "debug")
	defer func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("IMPORT_BATCH_SIZE")
		os.Unsetenv("LOG_LEVEL")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Import.BatchSize != 250 {
		t.Errorf("Import.BatchSize = %d, want %d", cfg.Import.BatchSize, 250)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	// Test that DB_URL works as fallback
	os.Setenv("DB_URL", "postgres://localhost/alttest")
	defer os.Unsetenv("DB_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.URL != "postgres://localhost/alttest" {
		t.Errorf("Database.URL = %q, want %q", cfg.Database.URL, "postgres://localhost/alttest")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	// Ensure DATABASE_URL is not set
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("DB_URL")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing DATABASE_URL")
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.Import.BatchSize = 0 }},
		{"negative min free bytes", func(c *Config) { c.Disk.MinFreeBytes = -1 }},
		{"empty guard path", func(c *Config) { c.Disk.Path = "" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"max conns below min conns", func(c *Config) {
			c.Database.MaxConns = 1
			c.Database.MinConns = 4
		}},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	defer os.Unsetenv("DATABASE_URL")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error, got nil")
			}
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("IMPORT_STREAM_TIMEOUT", "soon")
	defer func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("IMPORT_STREAM_TIMEOUT")
	}()

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for invalid duration")
	}
}
