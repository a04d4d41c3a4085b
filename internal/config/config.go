// Package config loads the run configuration from defaults, a YAML file,
// MUTREE_* environment variables and command line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/mutree/internal/mutree"
	"github.com/roach88/mutree/internal/uid"
	"github.com/roach88/mutree/internal/walk"
)

// Defaults.
const (
	DefaultParticles  = 1
	DefaultIterations = 100
	DefaultSeed       = -1
	DefaultK          = 3
	DefaultMaxLosses  = 0
	DefaultInit       = string(walk.InitRandom)
	DefaultUIDs       = string(uid.KindSequential)
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the top-level configuration of a run.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Input  InputConfig  `mapstructure:"input"`
	Walk   WalkConfig   `mapstructure:"walk"`
	Output OutputConfig `mapstructure:"output"`
}

// InputConfig names the input files.
type InputConfig struct {
	Matrix    string `mapstructure:"matrix" validate:"required"`
	Mutations string `mapstructure:"mutations"`
}

// WalkConfig holds the random walk knobs.
type WalkConfig struct {
	Particles  int    `mapstructure:"particles" validate:"gte=1"`
	Iterations int    `mapstructure:"iterations" validate:"gte=0"`
	Seed       int64  `mapstructure:"seed" validate:"gte=-1"`
	K          int    `mapstructure:"k" validate:"gte=0"`
	MaxLosses  int    `mapstructure:"max_losses" validate:"gte=0"`
	Init       string `mapstructure:"init" validate:"oneof=random chain flat"`
	UIDs       string `mapstructure:"uids" validate:"oneof=sequential token uuid"`

	// Ops restricts the operator pool; empty means the default mix.
	Ops []string `mapstructure:"ops" validate:"dive,oneof=add_back_mutation delete_back_mutation delete_node prune_regraft switch_nodes"`
}

// OutputConfig holds optional output destinations.
type OutputConfig struct {
	DB      string `mapstructure:"db"`
	DOT     string `mapstructure:"dot"`
	Metrics string `mapstructure:"metrics"`
}

var configValidate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Config."))
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must be at least %s, got %v", field, fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

// WalkOptions converts the walk section to walk.Options. K becomes the
// per-mutation loss limit.
func (c *Config) WalkOptions() (walk.Options, error) {
	opts := walk.Options{
		Particles:  c.Walk.Particles,
		Iterations: c.Walk.Iterations,
		Seed:       c.Walk.Seed,
		Init:       walk.Init(c.Walk.Init),
		Limits: mutree.Limits{
			MaxLosses:            c.Walk.MaxLosses,
			MaxLossesPerMutation: c.Walk.K,
		},
		UIDKind: uid.Kind(c.Walk.UIDs),
	}
	for _, name := range c.Walk.Ops {
		op, err := mutree.ParseOperation(name)
		if err != nil {
			return walk.Options{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		opts.Mix = append(opts.Mix, op)
	}
	return opts, nil
}
