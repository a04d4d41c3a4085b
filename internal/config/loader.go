package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".mutree"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix, e.g. MUTREE_WALK_SEED.
const envPrefix = "MUTREE"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// FlagKeys maps command line flag names to configuration keys.
var FlagKeys = map[string]string{
	"matrix":     "input.matrix",
	"mutations":  "input.mutations",
	"particles":  "walk.particles",
	"iterations": "walk.iterations",
	"seed":       "walk.seed",
	"k":          "walk.k",
	"max-losses": "walk.max_losses",
	"init":       "walk.init",
	"uids":       "walk.uids",
	"ops":        "walk.ops",
	"db":         "output.db",
	"dot":        "output.dot",
	"metrics":    "output.metrics",
}

// Load builds the configuration. If configPath is non-empty it is used as
// the config file; otherwise .mutree.yaml is looked up in the working
// directory and $HOME. A missing file is not an error. Flags in flags that
// appear in FlagKeys override every other source when set; pass nil to
// skip them.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("input.matrix", "")
	v.SetDefault("input.mutations", "")

	v.SetDefault("walk.particles", DefaultParticles)
	v.SetDefault("walk.iterations", DefaultIterations)
	v.SetDefault("walk.seed", DefaultSeed)
	v.SetDefault("walk.k", DefaultK)
	v.SetDefault("walk.max_losses", DefaultMaxLosses)
	v.SetDefault("walk.init", DefaultInit)
	v.SetDefault("walk.uids", DefaultUIDs)
	v.SetDefault("walk.ops", []string{})

	v.SetDefault("output.db", "")
	v.SetDefault("output.dot", "")
	v.SetDefault("output.metrics", "")
}
