package app

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/eleron96/bimbot/core/config"
	coredatabase "github.com/eleron96/bimbot/core/database"
	"github.com/eleron96/bimbot/internal/ai"
	"github.com/eleron96/bimbot/internal/cloud"
	"github.com/eleron96/bimbot/internal/plan"
	"github.com/eleron96/bimbot/internal/speckle"
	"github.com/eleron96/bimbot/internal/subs"
)

// SubsConfig extends the metrics client settings with the access list.
type SubsConfig struct {
	subs.Config `yaml:",inline"`
	// Allowlist restricts /subs to the listed user IDs.
	Allowlist []int64 `yaml:"allowlist" envconfig:"SUBS_ALLOWLIST"`
}

// Config aggregates core settings with the bot's collaborator sections.
// Collaborators with empty sections stay disabled.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`
	Speckle  speckle.Config      `yaml:"speckle"`
	Plan     plan.Config         `yaml:"plan"`
	AI       ai.Config           `yaml:"ai"`
	Subs     SubsConfig          `yaml:"subs"`
	Cloud    cloud.Config        `yaml:"cloud"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Core
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	return &cfg, nil
}
