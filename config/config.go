// Package config holds the tunables of an extraction run. Values start from
// Default, may be overridden by an HCL file and finally by command line
// flags.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/mitchellh/copystructure"
)

type Config struct {
	// meters between street segment endpoints that still connect
	MergeTolerance float64 `hcl:"merge_tolerance,optional"`
	// meters between boundary fragment endpoints that still connect
	RingTolerance  float64 `hcl:"ring_tolerance,optional"`

	AdminLevels    []int    `hcl:"admin_levels,optional"`
	StreetHighways []string `hcl:"street_highways,optional"`

	Workers   int    `hcl:"workers,optional"`
	LogLevel  string `hcl:"log_level,optional"`
	LogFormat string `hcl:"log_format,optional"`
}

var defaults = Config{
	MergeTolerance: 50,
	RingTolerance:  5,
	AdminLevels:    []int{4, 6, 8, 9, 10},
	StreetHighways: []string{
		"primary",
		"secondary",
		"tertiary",
		"residential",
		"service",
		"living_street",
		"pedestrian",
	},
	LogLevel:  "info",
	LogFormat: "text",
}

var logFormats = []string{"text", "json"}

// Default returns a fresh copy of the built-in configuration. Workers
// defaults to the number of CPUs.
func Default() *Config {
	cfg := defaults.Clone()
	cfg.Workers = runtime.NumCPU()
	return cfg
}

func (c Config) Clone() *Config {
	cp := copystructure.Must(copystructure.Copy(c)).(Config)
	return &cp
}

// Load reads an HCL file on top of the defaults.
func Load(path string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}
	return decode(file, path)
}

// LoadBytes is Load for in-memory sources; filename is used in diagnostics.
func LoadBytes(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config %s: %w", filename, diags)
	}
	return decode(file, filename)
}

func decode(file *hcl.File, filename string) (*Config, error) {
	cfg := Default()
	if diags := gohcl.DecodeBody(file.Body, nil, cfg); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config %s: %w", filename, diags)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.MergeTolerance < 0 {
		errs = append(errs, fmt.Errorf("merge_tolerance must not be negative, got %v", c.MergeTolerance))
	}
	if c.RingTolerance < 0 {
		errs = append(errs, fmt.Errorf("ring_tolerance must not be negative, got %v", c.RingTolerance))
	}
	if len(c.AdminLevels) == 0 {
		errs = append(errs, errors.New("admin_levels must not be empty"))
	}
	if len(c.StreetHighways) == 0 {
		errs = append(errs, errors.New("street_highways must not be empty"))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if _, ok := logLevels[c.LogLevel]; !ok {
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	if !slices.Contains(logFormats, c.LogFormat) {
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
