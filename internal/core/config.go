package core

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/probelab/fabmon/internal/scenario"
	"github.com/probelab/fabmon/internal/status"
)

type Config struct {
	ResultsDir string `mapstructure:"results_dir"`
	LogLevel   string `mapstructure:"log_level"`
	LogPretty  bool   `mapstructure:"log_pretty"`

	Fabric    FabricConfig     `mapstructure:"fabric"`
	Catalog   CatalogConfig    `mapstructure:"catalog"`
	Scenarios []ScenarioConfig `mapstructure:"scenarios"`
	Status    StatusConfig     `mapstructure:"status"`
	Dashboard DashboardConfig  `mapstructure:"dashboard"`
}

type FabricConfig struct {
	StatusURL     string        `mapstructure:"status_url"`
	RequestURL    string        `mapstructure:"request_url"`
	APIKey        string        `mapstructure:"api_key"`
	StatusTimeout time.Duration `mapstructure:"status_timeout"`
}

type CatalogConfig struct {
	Baseline        []string `mapstructure:"baseline"`
	IncludeHot      bool     `mapstructure:"include_hot"`
	MaxExtraPerArch int      `mapstructure:"max_extra_per_arch"`
}

type ScenarioConfig struct {
	Name        string        `mapstructure:"name"`
	Description string        `mapstructure:"description"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ThresholdMS int64         `mapstructure:"threshold_ms"`
}

type StatusConfig struct {
	// AllOKPolicy is "strict" (every scenario exactly OK) or "allow-slow".
	AllOKPolicy string `mapstructure:"all_ok_policy"`
}

type DashboardConfig struct {
	Days              int `mapstructure:"days"`
	FailureWindowDays int `mapstructure:"failure_window_days"`
	FailureLimit      int `mapstructure:"failure_limit"`
	RetentionDays     int `mapstructure:"retention_days"`
}

// Load builds the effective configuration: defaults, then the optional
// YAML file, then FABMON_* environment overrides. The API key may also
// arrive via FABRIC_API_KEY (typically from .env.local).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetDefault("results_dir", DefaultResultsDir)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", true)

	v.SetDefault("fabric.status_url", DefaultStatusURL)
	v.SetDefault("fabric.request_url", DefaultRequestURL)
	v.SetDefault("fabric.status_timeout", "30s")

	v.SetDefault("catalog.baseline", DefaultBaselineModels)
	v.SetDefault("catalog.include_hot", true)
	v.SetDefault("catalog.max_extra_per_arch", DefaultMaxExtraPerArch)

	v.SetDefault("status.all_ok_policy", string(status.AllOKStrict))

	v.SetDefault("dashboard.days", DefaultHeatmapDays)
	v.SetDefault("dashboard.failure_window_days", DefaultFailureWindowDays)
	v.SetDefault("dashboard.failure_limit", DefaultFailureLimit)
	v.SetDefault("dashboard.retention_days", DefaultRetentionDays)

	v.SetEnvPrefix("FABMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("fabric.api_key", APIKeyEnv)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ScenarioList returns the configured probe suite, falling back to the
// defaults when the config file does not define one.
func (c *Config) ScenarioList() []scenario.Scenario {
	if len(c.Scenarios) == 0 {
		return scenario.Defaults()
	}
	list := make([]scenario.Scenario, 0, len(c.Scenarios))
	for _, sc := range c.Scenarios {
		if sc.Name == "" {
			continue
		}
		list = append(list, scenario.Scenario{
			Name:        sc.Name,
			Description: sc.Description,
			Timeout:     sc.Timeout,
			ThresholdMS: sc.ThresholdMS,
		})
	}
	return list
}

// AllOKPolicy parses the configured policy, defaulting to strict.
func (c *Config) AllOKPolicy() status.AllOKPolicy {
	if status.AllOKPolicy(c.Status.AllOKPolicy) == status.AllOKAllowSlow {
		return status.AllOKAllowSlow
	}
	return status.AllOKStrict
}

func (c *Config) ModelsDir() string   { return filepath.Join(c.ResultsDir, ModelsDirName) }
func (c *Config) RunsDir() string     { return filepath.Join(c.ResultsDir, RunsDirName) }
func (c *Config) ReproDir() string    { return filepath.Join(c.ResultsDir, ReproDirName) }
func (c *Config) HistoryPath() string { return filepath.Join(c.ResultsDir, HistoryFileName) }
func (c *Config) CyclePath() string   { return filepath.Join(c.ResultsDir, CycleFileName) }
