package sight

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TableConfig defines an orientation table from the config file
type TableConfig struct {
	ID           string        `yaml:"id" json:"id"`
	Name         string        `yaml:"name,omitempty" json:"name,omitempty"`
	Topic        string        `yaml:"topic,omitempty" json:"topic,omitempty"`         // MQTT topic carrying estimate requests
	SourceURL    string        `yaml:"sourceUrl,omitempty" json:"sourceUrl,omitempty"` // Optional URL serving the observation set
	Strategy     Strategy      `yaml:"strategy,omitempty" json:"strategy,omitempty"`   // Overrides estimator.strategy
	Observations []Observation `yaml:"observations,omitempty" json:"observations,omitempty"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// Config represents the full configuration file
type Config struct {
	MQTT      MQTTConfig      `yaml:"mqtt" json:"mqtt"`
	Strategy  Strategy        `yaml:"strategy,omitempty" json:"strategy,omitempty"` // Default strategy for every table
	Estimator EstimatorConfig `yaml:"estimator" json:"-"`
	Tables    []TableConfig   `yaml:"tables" json:"tables"`
}

// GetTableByID returns the table config for the given ID
func (c *Config) GetTableByID(id string) *TableConfig {
	for i := range c.Tables {
		if c.Tables[i].ID == id {
			return &c.Tables[i]
		}
	}
	return nil
}

// StrategyFor returns the effective strategy for a table:
// table override, then file default, then DefaultStrategy
func (c *Config) StrategyFor(tableID string) Strategy {
	if tc := c.GetTableByID(tableID); tc != nil && tc.Strategy != "" {
		return tc.Strategy
	}
	if c.Strategy != "" {
		return c.Strategy
	}
	return DefaultStrategy
}

// LoadConfig loads the configuration from a YAML file. Estimator settings
// absent from the file keep DefaultEstimatorConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates YAML configuration bytes
func ParseConfig(data []byte) (*Config, error) {
	config := Config{Estimator: DefaultEstimatorConfig()}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.Estimator = config.Estimator.WithDefaults()
	return &config, nil
}

// Validate checks required fields and strategy names
func (c *Config) Validate() error {
	if len(c.Tables) == 0 {
		return fmt.Errorf("at least one table must be defined")
	}

	if c.Strategy != "" && !c.Strategy.Valid() {
		return fmt.Errorf("strategy: %w: %q", ErrUnknownStrategy, c.Strategy)
	}
	if c.Estimator.RefitStrategy != "" && !c.Estimator.RefitStrategy.Valid() {
		return fmt.Errorf("estimator.refitStrategy: %w: %q", ErrUnknownStrategy, c.Estimator.RefitStrategy)
	}

	seen := make(map[string]bool)
	for i, tc := range c.Tables {
		if tc.ID == "" {
			return fmt.Errorf("tables[%d].id is required", i)
		}
		if seen[tc.ID] {
			return fmt.Errorf("tables[%d].id %q is duplicated", i, tc.ID)
		}
		seen[tc.ID] = true

		if c.MQTT.Broker != "" && tc.Topic == "" {
			return fmt.Errorf("tables[%d].topic is required for %s when mqtt.broker is set", i, tc.ID)
		}
		if tc.Strategy != "" && !tc.Strategy.Valid() {
			return fmt.Errorf("tables[%d].strategy: %w: %q", i, ErrUnknownStrategy, tc.Strategy)
		}
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
