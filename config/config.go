/*
Package config loads server configuration from YAML with env overrides.

Precedence: defaults < config.yaml < environment variables.
*/
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/assignia/staffing-engine/engine"
)

type Config struct {
	Port   int    `yaml:"port"`
	DBPath string `yaml:"db_path"`

	// "all" or "approved_only"; see engine.SettlementPolicy.
	SettlementPolicy string `yaml:"settlement_policy"`

	// Monthly settlement scheduler. CronSpec uses the standard 5-field
	// cron syntax; the default fires on the 1st of each month at 02:00.
	SchedulerEnabled bool   `yaml:"scheduler_enabled"`
	SchedulerSpec    string `yaml:"scheduler_spec"`

	// Tenure thresholds (in consecutive months) at which incentive rates
	// kick in, and the hourly rates propagated when one is crossed.
	IncentiveThresholds    []int  `yaml:"incentive_thresholds"`
	ClientIncentiveRate    string `yaml:"client_incentive_rate"`
	SecretaryIncentiveRate string `yaml:"secretary_incentive_rate"`

	CORSOrigins []string `yaml:"cors_origins"`
}

// Load reads the config file at path (optional; missing file means
// defaults), applies env overrides, and validates.
func Load(path string) (Config, error) {
	var cfg Config

	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		path = envPath
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	// Env vars override YAML values
	if err := envOverrideInt(&cfg.Port, "PORT"); err != nil {
		return cfg, err
	}
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.SettlementPolicy, "SETTLEMENT_POLICY")
	envOverride(&cfg.SchedulerSpec, "SCHEDULER_SPEC")
	envOverride(&cfg.ClientIncentiveRate, "CLIENT_INCENTIVE_RATE")
	envOverride(&cfg.SecretaryIncentiveRate, "SECRETARY_INCENTIVE_RATE")
	if val := os.Getenv("SCHEDULER_ENABLED"); val != "" {
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			return cfg, fmt.Errorf("invalid SCHEDULER_ENABLED %q: %w", val, err)
		}
		cfg.SchedulerEnabled = parsed
	}

	// Defaults
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./staffing.db"
	}
	if cfg.SettlementPolicy == "" {
		cfg.SettlementPolicy = string(engine.IncludeAllWork)
	}
	if cfg.SchedulerSpec == "" {
		cfg.SchedulerSpec = "0 2 1 * *"
	}
	if len(cfg.IncentiveThresholds) == 0 {
		cfg.IncentiveThresholds = []int{6, 12, 24}
	}
	if cfg.ClientIncentiveRate == "" {
		cfg.ClientIncentiveRate = "0"
	}
	if cfg.SecretaryIncentiveRate == "" {
		cfg.SecretaryIncentiveRate = "0"
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Validate
	switch engine.SettlementPolicy(cfg.SettlementPolicy) {
	case engine.IncludeAllWork, engine.ApprovedOnly:
	default:
		return cfg, fmt.Errorf("settlement_policy must be %q or %q, got %q",
			engine.IncludeAllWork, engine.ApprovedOnly, cfg.SettlementPolicy)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("invalid port %d", cfg.Port)
	}
	for _, t := range cfg.IncentiveThresholds {
		if t < 1 {
			return cfg, fmt.Errorf("invalid incentive threshold %d: must be >= 1", t)
		}
	}
	if _, err := decimal.NewFromString(cfg.ClientIncentiveRate); err != nil {
		return cfg, fmt.Errorf("invalid client_incentive_rate %q: %w", cfg.ClientIncentiveRate, err)
	}
	if _, err := decimal.NewFromString(cfg.SecretaryIncentiveRate); err != nil {
		return cfg, fmt.Errorf("invalid secretary_incentive_rate %q: %w", cfg.SecretaryIncentiveRate, err)
	}

	return cfg, nil
}

// Policy returns the settlement policy as its engine type.
func (c Config) Policy() engine.SettlementPolicy {
	return engine.SettlementPolicy(c.SettlementPolicy)
}

// IncentiveRates returns the configured propagation rates.
func (c Config) IncentiveRates() (client, secretary decimal.Decimal) {
	client, _ = decimal.NewFromString(c.ClientIncentiveRate)
	secretary, _ = decimal.NewFromString(c.SecretaryIncentiveRate)
	return client, secretary
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}
