package config

import (
	"strings"
	"testing"
)

func minimalValidConfig() *GuardrailConfig {
	cfg := &GuardrailConfig{}
	cfg.SetDefaults()
	return cfg
}

func TestValidate_DefaultedConfig(t *testing.T) {
	t.Parallel()
	cfg := minimalValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_RejectsUnknownMode(t *testing.T) {
	t.Parallel()
	cfg := minimalValidConfig()
	cfg.Mode = "bogus"
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected error for invalid mode")
	}
	if !strings.Contains(err.Error(), "Mode") {
		t.Errorf("expected error to mention Mode, got %v", err)
	}
}

func TestValidate_SigningEnabledRequiresKeys(t *testing.T) {
	t.Parallel()
	cfg := minimalValidConfig()
	cfg.Signing.Enabled = true
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "public_keys") {
		t.Fatalf("expected public_keys error, got %v", err)
	}
}

func TestValidate_PinnedHashRequiresPinnedVersion(t *testing.T) {
	t.Parallel()
	cfg := minimalValidConfig()
	cfg.Signing.PinnedHash = "deadbeef"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "pinned_version") {
		t.Fatalf("expected pinned_version error, got %v", err)
	}
}

func TestValidate_RedactPathRejectsBlank(t *testing.T) {
	t.Parallel()
	cfg := minimalValidConfig()
	cfg.Explanation.RedactPaths = []string{"  "}
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected error for blank redact path")
	}
}

func TestSetDevDefaults_OnlyAppliesWhenDevModeEnabled(t *testing.T) {
	t.Parallel()
	cfg := &GuardrailConfig{Mode: "strict", DevMode: false}
	cfg.SetDevDefaults()
	if cfg.Mode != "strict" {
		t.Errorf("expected mode untouched when dev mode disabled, got %q", cfg.Mode)
	}

	cfg2 := &GuardrailConfig{DevMode: true}
	cfg2.SetDevDefaults()
	if cfg2.Mode != "log" {
		t.Errorf("expected log-mode default in dev mode, got %q", cfg2.Mode)
	}
}
