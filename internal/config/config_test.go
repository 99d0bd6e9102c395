package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPrecedenceFlagsOverEnvOverFile(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(configPath, []byte("output: plain\nretries: 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DEFISH_OUTPUT", "json")
	flags := GlobalFlags{ConfigPath: configPath, Plain: true, Retries: 5}
	settings, err := Load(flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "plain" {
		t.Fatalf("expected flag to win, got output=%s", settings.OutputMode)
	}
	if settings.Retries != 5 {
		t.Fatalf("expected retries from flags, got %d", settings.Retries)
	}
}

func TestLoadMutuallyExclusiveOutputFlags(t *testing.T) {
	_, err := Load(GlobalFlags{JSON: true, Plain: true, Retries: -1})
	if err == nil {
		t.Fatal("expected error with --json and --plain")
	}
}

func TestLoadDispatcherKnobs(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	content := "" +
		"fuzzy_threshold: 0.8\n" +
		"protocol_preference: [uniswap-v4, jupiter]\n" +
		"command_defaults:\n" +
		"  swap: uniswap-v4\n" +
		"  bridge: lifi\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	settings, err := Load(GlobalFlags{ConfigPath: configPath, Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.FuzzyThreshold != 0.8 {
		t.Fatalf("expected fuzzy threshold 0.8, got %v", settings.FuzzyThreshold)
	}
	if len(settings.ProtocolPreference) != 2 || settings.ProtocolPreference[0] != "uniswap-v4" {
		t.Fatalf("unexpected protocol preference: %v", settings.ProtocolPreference)
	}
	if settings.CommandDefaults["bridge"] != "lifi" {
		t.Fatalf("unexpected command defaults: %v", settings.CommandDefaults)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(configPath, []byte("fuzzy_threshold: 0.5\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DEFISH_FUZZY_THRESHOLD", "0.9")
	t.Setenv("DEFISH_PROTOCOL_PREFERENCE", "lifi, aave-v3")
	settings, err := Load(GlobalFlags{ConfigPath: configPath, Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.FuzzyThreshold != 0.9 {
		t.Fatalf("expected env to win, got %v", settings.FuzzyThreshold)
	}
	if len(settings.ProtocolPreference) != 2 || settings.ProtocolPreference[1] != "aave-v3" {
		t.Fatalf("unexpected protocol preference: %v", settings.ProtocolPreference)
	}
}

func TestLoadInvalidFuzzyThresholdFallsBack(t *testing.T) {
	t.Setenv("DEFISH_FUZZY_THRESHOLD", "3.5")
	settings, err := Load(GlobalFlags{Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.FuzzyThreshold != 0.6 {
		t.Fatalf("expected out-of-range threshold to fall back to 0.6, got %v", settings.FuzzyThreshold)
	}
}
