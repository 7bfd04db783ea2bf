package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mushkilali/certifiable-bench/bench/runner"
)

// fileConfig is the on-disk form of a benchmark config, loaded from YAML.
// Only the fields a caller commonly wants to override are exposed; a
// field omitted from the file keeps its runner.DefaultConfig value, while
// an explicit value (including 0 or false) replaces it.
type fileConfig struct {
	WarmupIterations   *uint32 `yaml:"warmup_iterations,omitempty"`
	MeasureIterations  *uint32 `yaml:"measure_iterations,omitempty"`
	BatchSize          *uint32 `yaml:"batch_size,omitempty"`
	VerifyOutputs      *bool   `yaml:"verify_outputs,omitempty"`
	MonitorEnvironment *bool   `yaml:"monitor_environment,omitempty"`
}

// loadConfigFile reads a YAML config file and overlays it onto
// runner.DefaultConfig. Uses strict parsing: unrecognized keys are
// rejected so a typo'd field doesn't silently fall through to a default.
// An empty file yields the defaults unchanged.
func loadConfigFile(path string) (runner.Config, error) {
	cfg := runner.DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	var fc fileConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	if fc.WarmupIterations != nil {
		cfg.WarmupIterations = *fc.WarmupIterations
	}
	if fc.MeasureIterations != nil {
		cfg.MeasureIterations = *fc.MeasureIterations
	}
	if fc.BatchSize != nil {
		cfg.BatchSize = *fc.BatchSize
	}
	if fc.VerifyOutputs != nil {
		cfg.VerifyOutputs = *fc.VerifyOutputs
	}
	if fc.MonitorEnvironment != nil {
		cfg.MonitorEnvironment = *fc.MonitorEnvironment
	}

	return cfg, nil
}
