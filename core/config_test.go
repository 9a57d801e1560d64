package core

import (
	"context"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Secret = "test-secret"
	cfg.APIKey = "test-api-key"
	return cfg
}

func TestConfig_ValidateRequiresSigningMaterial(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	missingSecret := cfg
	missingSecret.Secret = "   "
	if err := missingSecret.Validate(); err == nil {
		t.Fatalf("expected missing secret to be fatal")
	}

	missingKey := cfg
	missingKey.APIKey = ""
	if err := missingKey.Validate(); err == nil {
		t.Fatalf("expected missing api key to be fatal")
	}
}

func TestConfig_ValidateRejectsUnknownProcessMode(t *testing.T) {
	cfg := validTestConfig()
	cfg.Webhook.ProcessMode = "both"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unsupported process mode to be rejected")
	}
}

func TestCfgxConfigProvider_AppliesDefaultsAndOverrides(t *testing.T) {
	provider := NewCfgxConfigProvider(StaticRawConfigLoader{Values: map[string]any{
		"secret":               "s3cret",
		"api_key":              "key_1",
		"environment":          EnvironmentProduction,
		"webhook.process_mode": ProcessModeInline,
	}})

	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Environment != EnvironmentProduction {
		t.Fatalf("expected environment override, got %q", cfg.Environment)
	}
	if cfg.Webhook.ProcessMode != ProcessModeInline {
		t.Fatalf("expected process mode override, got %q", cfg.Webhook.ProcessMode)
	}
	if cfg.Market != "MY" {
		t.Fatalf("expected default market, got %q", cfg.Market)
	}
	if cfg.Provider.FetchTimeout != 15*time.Second {
		t.Fatalf("expected default fetch timeout, got %v", cfg.Provider.FetchTimeout)
	}
}

func TestGoOptionsResolver_RuntimeWinsOverLoaded(t *testing.T) {
	defaults := DefaultConfig()

	loaded := Config{
		Secret: "loaded-secret",
		APIKey: "loaded-key",
		Market: "SG",
	}
	runtime := Config{
		Market: "TH",
	}

	resolved, err := GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if resolved.Market != "TH" {
		t.Fatalf("expected runtime layer to win, got market %q", resolved.Market)
	}
	if resolved.Secret != "loaded-secret" {
		t.Fatalf("expected loaded secret to survive, got %q", resolved.Secret)
	}
	if resolved.Webhook.ProcessMode != ProcessModeQueue {
		t.Fatalf("expected default process mode, got %q", resolved.Webhook.ProcessMode)
	}
}
