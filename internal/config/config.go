// Package config loads the environment-variable knobs that tune the
// engine's resource limits, grounded in the teacher's use of
// github.com/caarlos0/env/v6 for ambient configuration (mna-nenuphar's
// maincmd.Cmd flags are parsed by mna/mainer directly from env+flags;
// this package covers the knobs that are pure environment, not CLI
// flags, per SPEC_FULL.md's ambient-stack section).
package config

import "github.com/caarlos0/env/v6"

// Config holds resource limits for one engine run (spec.md §5/§7:
// "Timeouts: None" in-language, but this port's host safety valve --
// see lang/vm/thread.go).
type Config struct {
	MaxSteps  int  `env:"DOLLARVM_MAX_STEPS" envDefault:"1000000"`
	MaxResets int  `env:"DOLLARVM_MAX_RESETS" envDefault:"10000"`
	Debug     bool `env:"DOLLARVM_DEBUG" envDefault:"false"`
}

// Load reads Config from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
