package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// scenario describes one bench run. A YAML file overrides the flag
// defaults; durations are strings ("250ms", "5s") parsed after unmarshal.
type scenario struct {
	Keys         int     `yaml:"keys"`
	Workers      int     `yaml:"workers"`
	ErrRate      float64 `yaml:"err_rate"`
	PreloadShare float64 `yaml:"preload_share"`
	NetworkClass string  `yaml:"network_class"`

	Duration   time.Duration `yaml:"-"`
	MinLatency time.Duration `yaml:"-"`
	MaxLatency time.Duration `yaml:"-"`

	RawDuration   string `yaml:"duration"`
	RawMinLatency string `yaml:"min_latency"`
	RawMaxLatency string `yaml:"max_latency"`

	Engine engineConfig `yaml:"engine"`
}

type engineConfig struct {
	MaxConcurrentLoads int    `yaml:"max_concurrent_loads"`
	MaxRetries         int    `yaml:"max_retries"`
	RetryStrategy      string `yaml:"retry_strategy"`

	ChunkTimeout time.Duration `yaml:"-"`
	BaseDelay    time.Duration `yaml:"-"`
	MaxDelay     time.Duration `yaml:"-"`

	RawChunkTimeout string `yaml:"chunk_timeout"`
	RawBaseDelay    string `yaml:"base_delay"`
	RawMaxDelay     string `yaml:"max_delay"`
}

// load reads a YAML scenario over the current values. Environment
// variables in the file are expanded before parsing.
func (s *scenario) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read scenario file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), s); err != nil {
		return fmt.Errorf("parse scenario file: %w", err)
	}

	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{s.RawDuration, &s.Duration},
		{s.RawMinLatency, &s.MinLatency},
		{s.RawMaxLatency, &s.MaxLatency},
		{s.Engine.RawChunkTimeout, &s.Engine.ChunkTimeout},
		{s.Engine.RawBaseDelay, &s.Engine.BaseDelay},
		{s.Engine.RawMaxDelay, &s.Engine.MaxDelay},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", d.raw, err)
		}
		*d.dst = v
	}
	return nil
}
