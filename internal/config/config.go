// Package config handles YAML configuration for Purku.
package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yairfalse/purku/types"
)

// Environment labels recognised in the accounts map. The management account
// is the one the run is normally invoked from.
const (
	EnvManagement = "management"
	EnvDev        = "dev"
	EnvStaging    = "staging"
	EnvProd       = "prod"
)

const minPatternLength = 3

// Config is the root configuration structure.
type Config struct {
	Accounts map[string]string `yaml:"accounts"` // env label -> account ID
	RoleName string            `yaml:"role_name"`
	Patterns []string          `yaml:"patterns"`
	Regions  []string          `yaml:"regions"`
	Run      RunConfig         `yaml:"run"`
}

// RunConfig holds the per-run flags. Immutable once loaded; every component
// reads it, none mutates it.
type RunConfig struct {
	DryRun         bool     `yaml:"dry_run"`
	Force          bool     `yaml:"force"`
	AccountFilter  []string `yaml:"account_filter"`
	CrossAccount   bool     `yaml:"cross_account"`
	CloseAccounts  bool     `yaml:"close_accounts"`
	TfstateCleanup bool     `yaml:"tfstate_cleanup"`

	ConfirmTimeoutStr string        `yaml:"confirm_timeout"`
	ConfirmTimeout    time.Duration `yaml:"-"`
	RunTimeoutStr     string        `yaml:"run_timeout"`
	RunTimeout        time.Duration `yaml:"-"`
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses raw YAML configuration.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := parseTimeouts(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.RoleName == "" {
		cfg.RoleName = "OrganizationAccountAccessRole"
	}
	if len(cfg.Regions) == 0 {
		cfg.Regions = []string{"us-east-1"}
	}
	if cfg.Run.ConfirmTimeoutStr == "" {
		cfg.Run.ConfirmTimeoutStr = "30s"
	}
	if cfg.Run.RunTimeoutStr == "" {
		cfg.Run.RunTimeoutStr = "0"
	}
}

func parseTimeouts(cfg *Config) error {
	d, err := time.ParseDuration(cfg.Run.ConfirmTimeoutStr)
	if err != nil {
		return fmt.Errorf("parse confirm_timeout %q: %w", cfg.Run.ConfirmTimeoutStr, err)
	}
	cfg.Run.ConfirmTimeout = d

	if cfg.Run.RunTimeoutStr == "0" {
		cfg.Run.RunTimeout = 0
		return nil
	}
	d, err = time.ParseDuration(cfg.Run.RunTimeoutStr)
	if err != nil {
		return fmt.Errorf("parse run_timeout %q: %w", cfg.Run.RunTimeoutStr, err)
	}
	cfg.Run.RunTimeout = d
	return nil
}

// Validate checks the configuration is safe to run with. Short patterns are
// rejected outright: a two-character substring match against an entire AWS
// estate is a deletion accident waiting to happen.
func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("accounts: at least one account required")
	}
	if len(c.Patterns) == 0 {
		return fmt.Errorf("patterns: at least one project pattern required")
	}
	for _, p := range c.Patterns {
		if len(p) < minPatternLength {
			return fmt.Errorf("patterns: %q is shorter than %d characters", p, minPatternLength)
		}
	}
	for env, id := range c.Accounts {
		if id == "" {
			return fmt.Errorf("accounts: %s has an empty account ID", env)
		}
	}
	return nil
}

// RoleARN builds the role-assumption ARN for a member account.
func (c *Config) RoleARN(accountID string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, c.RoleName)
}

// AccountSet resolves the ordered account list for a run. The current
// (invoking) account comes first; member accounts follow sorted by env label
// so runs are deterministic.
func (c *Config) AccountSet(currentID string) []types.Account {
	accounts := []types.Account{{ID: currentID, Env: c.envFor(currentID), Current: true}}

	envs := make([]string, 0, len(c.Accounts))
	for env := range c.Accounts {
		envs = append(envs, env)
	}
	sort.Strings(envs)

	for _, env := range envs {
		id := c.Accounts[env]
		if id == currentID {
			continue
		}
		accounts = append(accounts, types.Account{
			ID:      id,
			Env:     env,
			RoleARN: c.RoleARN(id),
		})
	}
	return accounts
}

// Allowed reports whether an account passes the allow-list filter.
// An empty filter allows everything.
func (c *Config) Allowed(accountID string) bool {
	if len(c.Run.AccountFilter) == 0 {
		return true
	}
	for _, id := range c.Run.AccountFilter {
		if id == accountID {
			return true
		}
	}
	return false
}

func (c *Config) envFor(accountID string) string {
	for env, id := range c.Accounts {
		if id == accountID {
			return env
		}
	}
	return ""
}
