package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPipelineDefaults(t *testing.T) {
	t.Setenv("ENCRYPTION_SECRET", "test-secret")
	t.Setenv("MASKED_DIGITS", "")
	t.Setenv("MIN_CONFIDENCE", "")
	t.Setenv("MAX_FILE_SIZE_MB", "")
	t.Setenv("MAX_BULK_FILES", "")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaskedDigits != 8 {
		t.Fatalf("expected default masked digits 8, got %d", cfg.MaskedDigits)
	}
	if cfg.MinConfidence != 0.5 {
		t.Fatalf("expected default min confidence 0.5, got %v", cfg.MinConfidence)
	}
	if cfg.MaxFileSizeMB != 10 {
		t.Fatalf("expected default max file size 10, got %d", cfg.MaxFileSizeMB)
	}
	if cfg.MaxBulkFiles != 10 {
		t.Fatalf("expected default max bulk files 10, got %d", cfg.MaxBulkFiles)
	}
	if cfg.NATSSubject != "cards.staged" {
		t.Fatalf("expected default subject cards.staged, got %q", cfg.NATSSubject)
	}
}

func TestLoadParsesEnvOverrides(t *testing.T) {
	t.Setenv("ENCRYPTION_SECRET", "test-secret")
	t.Setenv("MASKED_DIGITS", "4")
	t.Setenv("MIN_CONFIDENCE", "0.75")
	t.Setenv("RATE_LIMIT_RPS", "5")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaskedDigits != 4 {
		t.Fatalf("expected masked digits 4, got %d", cfg.MaskedDigits)
	}
	if cfg.MinConfidence != 0.75 {
		t.Fatalf("expected min confidence 0.75, got %v", cfg.MinConfidence)
	}
	if cfg.RateLimitRPS != 5 {
		t.Fatalf("expected rate limit 5, got %v", cfg.RateLimitRPS)
	}
}

func TestLoadRequiresEncryptionSecret(t *testing.T) {
	t.Setenv("ENCRYPTION_SECRET", "")
	t.Setenv("CONFIG_FILE", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing encryption secret")
	}
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	t.Setenv("ENCRYPTION_SECRET", "test-secret")
	t.Setenv("CONFIG_FILE", "")

	t.Setenv("MASKED_DIGITS", "13")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for masked digits above 12")
	}

	t.Setenv("MASKED_DIGITS", "8")
	t.Setenv("MIN_CONFIDENCE", "1.5")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for confidence above 1")
	}
}

func TestLoadAppliesConfigFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("masked_digits: 6\nnats_subject: cards.staged.test\nrate_limit_rps: 2.5\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("ENCRYPTION_SECRET", "test-secret")
	t.Setenv("MASKED_DIGITS", "")
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaskedDigits != 6 {
		t.Fatalf("expected file overlay masked digits 6, got %d", cfg.MaskedDigits)
	}
	if cfg.NATSSubject != "cards.staged.test" {
		t.Fatalf("expected file overlay subject, got %q", cfg.NATSSubject)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected file overlay rate limit 2.5, got %v", cfg.RateLimitRPS)
	}
	// Env defaults untouched by the file stay in place.
	if cfg.MaxBulkFiles != 10 {
		t.Fatalf("expected default max bulk files 10, got %d", cfg.MaxBulkFiles)
	}
}

func TestLoadFailsOnMalformedConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("masked_digits: [not an int"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("ENCRYPTION_SECRET", "test-secret")
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed config file")
	}
}
