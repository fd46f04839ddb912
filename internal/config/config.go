// Package config loads CLI settings from an optional file and IMODEL_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/lucasrosaalves/industrial-model/internal/schema"
	"github.com/lucasrosaalves/industrial-model/internal/statement"
)

// EnvPrefix prefixes every environment override, e.g. IMODEL_DATABASE or
// IMODEL_POLICY_SELF_CHAIN_DEPTH.
const EnvPrefix = "IMODEL"

// Config holds the settings shared by the CLI commands.
type Config struct {
	Database     string `mapstructure:"database"`
	Separator    string `mapstructure:"separator"`
	DefaultLimit int    `mapstructure:"default_limit"`
	Policy       Policy `mapstructure:"policy"`
	Space        string `mapstructure:"space"` // default space for loaded instances
}

// Policy mirrors schema.Policy.
type Policy struct {
	SelfChainDepth int `mapstructure:"self_chain_depth"`
	MaxTypeVisits  int `mapstructure:"max_type_visits"`
}

// Default returns the built-in settings.
func Default() Config {
	p := schema.DefaultPolicy()
	return Config{
		Database:     "industrial-model.db",
		Separator:    "|",
		DefaultLimit: statement.DefaultLimit,
		Policy:       Policy{SelfChainDepth: p.SelfChainDepth, MaxTypeVisits: p.MaxTypeVisits},
	}
}

// Load reads path (YAML, JSON or TOML; "" skips the file) and applies
// environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Every key needs a default so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("database", d.Database)
	v.SetDefault("separator", d.Separator)
	v.SetDefault("default_limit", d.DefaultLimit)
	v.SetDefault("policy.self_chain_depth", d.Policy.SelfChainDepth)
	v.SetDefault("policy.max_type_visits", d.Policy.MaxTypeVisits)
	v.SetDefault("space", d.Space)
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.Database == "" {
		errs = append(errs, errors.New("database must not be empty"))
	}
	if c.Separator == "" {
		errs = append(errs, errors.New("separator must not be empty"))
	}
	if c.DefaultLimit <= 0 {
		errs = append(errs, fmt.Errorf("default_limit must be positive, got %d", c.DefaultLimit))
	}
	if err := c.SchemaPolicy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("policy: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// SchemaPolicy converts the policy settings.
func (c Config) SchemaPolicy() schema.Policy {
	return schema.Policy{SelfChainDepth: c.Policy.SelfChainDepth, MaxTypeVisits: c.Policy.MaxTypeVisits}
}
