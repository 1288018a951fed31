package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

const (
	// FileName is read from the working directory when present
	FileName = "graph-analyzer.toml"

	// EnvPrefix prefixes environment overrides, e.g. GRAPH_ANALYZER_SEARCH_BUDGET=100
	EnvPrefix = "GRAPH_ANALYZER_"
)

// Config holds all configuration for the application
type Config struct {
	Input         string  `koanf:"input"`
	InputDims     []int   `koanf:"input_dims"`
	Target        string  `koanf:"target"`
	Family        string  `koanf:"family"`
	QuantMean     float64 `koanf:"q_mean"`
	QuantStd      float64 `koanf:"q_std"`
	SearchBudget  int     `koanf:"search_budget"`
	TrackVisited  bool    `koanf:"track_visited"`
	JSON          bool    `koanf:"json"`
	WriteGraphDef string  `koanf:"write_graphdef"`
	Watch         bool    `koanf:"watch"`
	WebMode       bool    `koanf:"web"`
	Port          int     `koanf:"port"`
	Verbosity     string  `koanf:"verbosity"`
	LogJSON       bool    `koanf:"log_json"`
	VerboseCnt    int     `koanf:"verbose"`
}

// Defaults are the lowest-priority layer
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"input":          "",
		"input_dims":     []int{},
		"target":         "all",
		"family":         "ssd",
		"q_mean":         128.0,
		"q_std":          128.0,
		"search_budget":  50,
		"track_visited":  false,
		"json":           false,
		"write_graphdef": "",
		"watch":          false,
		"web":            false,
		"port":           8080,
		"verbosity":      "",
		"log_json":       false,
		"verbose":        0,
	}
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return load(f, FileName)
}

func load(f *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(makeMapProvider(Defaults()), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	// The config file is optional
	_ = k.Load(file.Provider(path), toml.Parser())

	// Lists are comma separated, e.g. GRAPH_ANALYZER_INPUT_DIMS=1,300,300,3
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if key == "input_dims" {
			return key, strings.Split(value, ",")
		}
		return key, value
	}), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load env vars")
	}

	// Flags are spelled with dashes, keys with underscores
	if f != nil {
		if err := k.Load(posflag.ProviderWithFlag(f, ".", k, func(flag *pflag.Flag) (string, interface{}) {
			return strings.ReplaceAll(flag.Name, "-", "_"), posflag.FlagVal(f, flag)
		}), nil); err != nil {
			return nil, errors.Wrap(err, "failed to load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	// A positional argument names the input when no layer did
	if cfg.Input == "" && f != nil && f.NArg() > 0 {
		cfg.Input = f.Arg(0)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values no later stage would reject with a clearer message
func (c *Config) Validate() error {
	switch {
	case c.SearchBudget < 0:
		return errors.Errorf("search_budget must not be negative, got %d", c.SearchBudget)
	case c.QuantStd == 0:
		return errors.New("q_std must not be zero")
	case c.Port <= 0 || c.Port > 65535:
		return errors.Errorf("port %d out of range", c.Port)
	case c.Watch && c.Input == "":
		return errors.New("watch requires an input file")
	}
	for i, d := range c.InputDims {
		if d <= 0 {
			return errors.Errorf("input_dims[%d] = %d, dimensions must be positive", i, d)
		}
	}
	return nil
}

// DeclaredDims returns the declared input dimensions, nil when none were given
func (c *Config) DeclaredDims() []int {
	if len(c.InputDims) == 0 {
		return nil
	}
	return c.InputDims
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
