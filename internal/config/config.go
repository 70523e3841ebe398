// Package config loads earlyalloc settings from defaults, an optional YAML
// file and EARLYALLOC_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/joshuapare/earlyalloc/alloc"
)

// EnvPrefix is the prefix of environment overrides, e.g. EARLYALLOC_PAGE_SIZE.
const EnvPrefix = "EARLYALLOC"

// Config holds all configuration settings.
type Config struct {
	// Span is the memory handed to Init by the stats command.
	Span struct {
		Start uint64 `mapstructure:"start"`
		Size  uint64 `mapstructure:"size"`
	} `mapstructure:"span"`

	PageSize uint64 `mapstructure:"page_size"`
	Align    string `mapstructure:"align"`
	Strict   bool   `mapstructure:"strict"`

	// Arena controls the memory mapped behind scenario runs.
	Arena struct {
		Enabled bool   `mapstructure:"enabled"`
		Max     uint64 `mapstructure:"max"`
	} `mapstructure:"arena"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

// New returns a viper instance with defaults and environment overrides set
// up. Flags may be bound to it before Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults sets default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// 16MB at 1MB, the conventional low-memory boot window
	v.SetDefault("span.start", 0x100000)
	v.SetDefault("span.size", 16<<20)
	v.SetDefault("page_size", 4096)
	v.SetDefault("align", alloc.AlignEnforce.String())
	v.SetDefault("strict", false)

	v.SetDefault("arena.enabled", true)
	v.SetDefault("arena.max", 256<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "human")
}

// Load reads the config file and decodes v into a Config.
//
// With file empty, earlyalloc.yaml is looked up in the working directory and
// in $HOME/.earlyalloc; a missing file is not an error. An explicit file must
// exist.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("earlyalloc")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.earlyalloc")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that the decoder cannot.
func (c *Config) Validate() error {
	if c.PageSize == 0 || c.PageSize&(c.PageSize-1) != 0 {
		return fmt.Errorf("config: page_size %d is not a power of two", c.PageSize)
	}
	if c.Span.Start+c.Span.Size < c.Span.Start {
		return fmt.Errorf("config: span %#x+%#x overflows", c.Span.Start, c.Span.Size)
	}
	if _, err := c.AlignPolicy(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "human", "json":
	default:
		return fmt.Errorf("config: log.format %q (want human or json)", c.Log.Format)
	}
	return nil
}

// AlignPolicy returns the allocator policy named by c.Align.
func (c *Config) AlignPolicy() (alloc.AlignPolicy, error) {
	switch c.Align {
	case "enforce":
		return alloc.AlignEnforce, nil
	case "ignore":
		return alloc.AlignIgnore, nil
	default:
		return 0, fmt.Errorf("config: align %q (want enforce or ignore)", c.Align)
	}
}

// AllocOptions returns the allocator options the config selects.
func (c *Config) AllocOptions() []alloc.Option {
	policy, _ := c.AlignPolicy()
	return []alloc.Option{alloc.WithAlignPolicy(policy), alloc.WithStrict(c.Strict)}
}
