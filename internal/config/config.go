package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/joho/godotenv"

	"github.com/agentpulse/engine/internal/domain"
)

// ProviderConfig defines a reasoning provider endpoint.
type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

// Intervals holds the per-loop firing periods in seconds.
type Intervals struct {
	RefreshSec    int `json:"refresh_sec"`
	InsightSec    int `json:"insight_sec"`
	VoteSec       int `json:"vote_sec"`
	AdaptationSec int `json:"adaptation_sec"`
	SnapshotSec   int `json:"snapshot_sec"`
}

// GateDefaults holds the tunable constants behind the decision gates.
// The score weights and pass threshold are product decisions kept
// configurable rather than hardcoded.
type GateDefaults struct {
	ChecklistPassCount int     `json:"checklist_pass_count"`
	ObjectiveWeight    float64 `json:"objective_weight"`
	ModelWeight        float64 `json:"model_weight"`
	NoveltyCutoff      float64 `json:"novelty_cutoff"`
	MinPostGapSec      int     `json:"min_post_gap_sec"`
}

// StrategyDefaults seeds the version-1 strategy when none is persisted.
type StrategyDefaults struct {
	PostingTone     string `json:"posting_tone"`
	InsightFocus    string `json:"insight_focus"`
	MinQualityScore int    `json:"min_quality_score"`
	MaxDailyActions int    `json:"max_daily_actions"`
	OptimalHour     int    `json:"optimal_hour"`
}

// LedgerConfig locates the public ledger RPC and this agent's wallet.
type LedgerConfig struct {
	RPCURL        string `json:"rpc_url"`
	WalletAddress string `json:"wallet_address"`
	Namespace     string `json:"namespace"`
	Enabled       bool   `json:"enabled"`
}

// Config holds the engine's runtime configuration.
type Config struct {
	DBPath           string                    `json:"db_path"`
	LogPath          string                    `json:"log_path"`
	ListenAddr       string                    `json:"listen_addr"`
	EcosystemBaseURL string                    `json:"ecosystem_base_url"`
	Providers        map[string]ProviderConfig `json:"providers"`
	DefaultProvider  string                    `json:"default_provider"`
	Intervals        Intervals                 `json:"intervals"`
	Gate             GateDefaults              `json:"gate"`
	Strategy         StrategyDefaults          `json:"strategy"`
	Ledger           LedgerConfig              `json:"ledger"`
}

// Secrets are environment-only credentials, never stored in the config file.
type Secrets struct {
	WalletKey    string
	ReasoningKey string
	EcosystemKey string
}

// Load reads a JSON config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadSecrets reads credentials from the environment, loading a .env file
// first when one exists next to the process.
func LoadSecrets() Secrets {
	_ = godotenv.Load()
	return Secrets{
		WalletKey:    os.Getenv("AGENTPULSE_WALLET_KEY"),
		ReasoningKey: os.Getenv("AGENTPULSE_REASONING_KEY"),
		EcosystemKey: os.Getenv("AGENTPULSE_ECOSYSTEM_KEY"),
	}
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":9810"
	}
	if c.Intervals.RefreshSec == 0 {
		c.Intervals.RefreshSec = 300
	}
	if c.Intervals.InsightSec == 0 {
		c.Intervals.InsightSec = 3600
	}
	if c.Intervals.VoteSec == 0 {
		c.Intervals.VoteSec = 14400
	}
	if c.Intervals.AdaptationSec == 0 {
		c.Intervals.AdaptationSec = 43200
	}
	if c.Intervals.SnapshotSec == 0 {
		c.Intervals.SnapshotSec = 43200
	}
	if c.Gate.ChecklistPassCount == 0 {
		c.Gate.ChecklistPassCount = 6
	}
	if c.Gate.ObjectiveWeight == 0 {
		c.Gate.ObjectiveWeight = 0.4
	}
	if c.Gate.ModelWeight == 0 {
		c.Gate.ModelWeight = 0.6
	}
	if c.Gate.NoveltyCutoff == 0 {
		c.Gate.NoveltyCutoff = 0.8
	}
	if c.Gate.MinPostGapSec == 0 {
		c.Gate.MinPostGapSec = 3600
	}
	if c.Strategy.PostingTone == "" {
		c.Strategy.PostingTone = "analytical"
	}
	if c.Strategy.InsightFocus == "" {
		c.Strategy.InsightFocus = "ecosystem_growth"
	}
	if c.Strategy.MinQualityScore == 0 {
		c.Strategy.MinQualityScore = 6
	}
	if c.Strategy.MaxDailyActions == 0 {
		c.Strategy.MaxDailyActions = 5
	}
	if c.Ledger.Namespace == "" {
		c.Ledger.Namespace = "APULSE1"
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.DBPath == "" {
		problems = append(problems, "db_path is required")
	}
	if c.EcosystemBaseURL == "" {
		problems = append(problems, "ecosystem_base_url is required")
	}
	if len(c.Providers) == 0 {
		problems = append(problems, "at least one reasoning provider is required")
	}
	if c.DefaultProvider != "" {
		if _, ok := c.Providers[c.DefaultProvider]; !ok {
			problems = append(problems, fmt.Sprintf("default_provider %q is not in providers", c.DefaultProvider))
		}
	}
	if c.Gate.ChecklistPassCount < 1 || c.Gate.ChecklistPassCount > domain.ChecklistSize {
		problems = append(problems, fmt.Sprintf("checklist_pass_count must be between 1 and %d", domain.ChecklistSize))
	}
	if math.Abs(c.Gate.ObjectiveWeight+c.Gate.ModelWeight-1) > 1e-9 {
		problems = append(problems, "objective_weight and model_weight must sum to 1")
	}
	if c.Ledger.Enabled && c.Ledger.RPCURL == "" {
		problems = append(problems, "ledger.rpc_url is required when ledger is enabled")
	}
	if c.Ledger.Enabled && c.Ledger.WalletAddress == "" {
		problems = append(problems, "ledger.wallet_address is required when ledger is enabled")
	}

	if len(problems) > 0 {
		return &domain.AgentError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}
