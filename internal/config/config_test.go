package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// validJSON returns a minimal valid configuration JSON string.
func validJSON() string {
	return `{
		"db_path": "/tmp/test.db",
		"ecosystem_base_url": "https://eco.example.com",
		"providers": {
			"test-provider": {
				"base_url": "https://llm.example.com/v1",
				"model": "test-model"
			}
		}
	}`
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "config.json")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validJSON())

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want /tmp/test.db", cfg.DBPath)
	}
	if cfg.EcosystemBaseURL != "https://eco.example.com" {
		t.Errorf("EcosystemBaseURL = %q", cfg.EcosystemBaseURL)
	}
	if len(cfg.Providers) != 1 {
		t.Errorf("Providers count = %d, want 1", len(cfg.Providers))
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), validJSON())

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9810" {
		t.Errorf("ListenAddr = %q, want :9810", cfg.ListenAddr)
	}
	if cfg.Intervals.RefreshSec != 300 {
		t.Errorf("RefreshSec = %d, want 300", cfg.Intervals.RefreshSec)
	}
	if cfg.Gate.ChecklistPassCount != 6 {
		t.Errorf("ChecklistPassCount = %d, want 6", cfg.Gate.ChecklistPassCount)
	}
	if cfg.Gate.ObjectiveWeight != 0.4 || cfg.Gate.ModelWeight != 0.6 {
		t.Errorf("weights = %v/%v, want 0.4/0.6", cfg.Gate.ObjectiveWeight, cfg.Gate.ModelWeight)
	}
	if cfg.Gate.NoveltyCutoff != 0.8 {
		t.Errorf("NoveltyCutoff = %v, want 0.8", cfg.Gate.NoveltyCutoff)
	}
	if cfg.Strategy.MinQualityScore != 6 || cfg.Strategy.MaxDailyActions != 5 {
		t.Errorf("strategy defaults = %+v", cfg.Strategy)
	}
	if cfg.Ledger.Namespace != "APULSE1" {
		t.Errorf("Namespace = %q, want APULSE1", cfg.Ledger.Namespace)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.json"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{not valid json}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{"listen_addr": ":9999"}`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	for _, want := range []string{"db_path", "ecosystem_base_url", "provider"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_LedgerEnabledRequiresEndpoint(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{
		"db_path": "/tmp/test.db",
		"ecosystem_base_url": "https://eco.example.com",
		"providers": {"p": {"base_url": "https://llm.example.com", "model": "m"}},
		"ledger": {"enabled": true}
	}`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for enabled ledger without endpoint")
	}
	if !strings.Contains(err.Error(), "rpc_url") {
		t.Errorf("error %q does not mention rpc_url", err)
	}
}

func TestLoad_PassCountCannotExceedChecklist(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{
		"db_path": "/tmp/test.db",
		"ecosystem_base_url": "https://eco.example.com",
		"providers": {"p": {"base_url": "https://llm.example.com", "model": "m"}},
		"gate": {"checklist_pass_count": 9}
	}`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for pass count above the checklist length")
	}
}

func TestLoad_WeightsMustSumToOne(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{
		"db_path": "/tmp/test.db",
		"ecosystem_base_url": "https://eco.example.com",
		"providers": {"p": {"base_url": "https://llm.example.com", "model": "m"}},
		"gate": {"objective_weight": 0.5, "model_weight": 0.6}
	}`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for weights summing to 1.1")
	}
}

func TestLoadSecrets_ReadsEnvironment(t *testing.T) {
	t.Setenv("AGENTPULSE_WALLET_KEY", "wallet-secret")
	t.Setenv("AGENTPULSE_REASONING_KEY", "reasoning-secret")
	t.Setenv("AGENTPULSE_ECOSYSTEM_KEY", "ecosystem-secret")

	s := LoadSecrets()
	if s.WalletKey != "wallet-secret" {
		t.Errorf("WalletKey = %q", s.WalletKey)
	}
	if s.ReasoningKey != "reasoning-secret" {
		t.Errorf("ReasoningKey = %q", s.ReasoningKey)
	}
	if s.EcosystemKey != "ecosystem-secret" {
		t.Errorf("EcosystemKey = %q", s.EcosystemKey)
	}
}
