// Package sfconfig loads the YAML tuning file read by cmd/sfcli: streaming
// buffer sizes, the default sample rate assumed when a caller doesn't
// specify one, and logging destination.
package sfconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StreamConfig tunes pkg/sfstream's Reader/Writer buffer construction.
type StreamConfig struct {
	BufferBytes int `yaml:"buffer_bytes"`
	ReadSize    int `yaml:"read_size"`
	WriteSize   int `yaml:"write_size"`
}

// LogConfig selects where structured log output goes.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Config is the full tuning file.
type Config struct {
	Stream            StreamConfig `yaml:"stream"`
	DefaultSampleRate int          `yaml:"default_sample_rate"`
	Log               LogConfig    `yaml:"log"`
}

const (
	defaultBufferBytes = 256 * 1024
	defaultReadSize    = 4096
	defaultWriteSize   = 4096
	defaultSampleRate  = 44100

	minBufferBytes = 4 * 4096
	maxBufferBytes = 16 << 20
	minReadWrite   = 64
	maxReadWrite   = 1 << 20
)

// Default returns a Config filled with the same defaults Load applies to a
// file that sets nothing, for callers with no config file to read.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.clamp()
	return cfg
}

// Load reads and parses the YAML file at path, filling unset fields with
// defaults and clamping out-of-range buffer sizes rather than failing, so a
// hand-edited config with an unreasonable value still produces a working
// Config instead of an outright error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sfconfig: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("sfconfig: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.clamp()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Stream.BufferBytes == 0 {
		c.Stream.BufferBytes = defaultBufferBytes
	}
	if c.Stream.ReadSize == 0 {
		c.Stream.ReadSize = defaultReadSize
	}
	if c.Stream.WriteSize == 0 {
		c.Stream.WriteSize = defaultWriteSize
	}
	if c.DefaultSampleRate == 0 {
		c.DefaultSampleRate = defaultSampleRate
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) clamp() {
	c.Stream.BufferBytes = clamp(c.Stream.BufferBytes, minBufferBytes, maxBufferBytes)
	c.Stream.ReadSize = clamp(c.Stream.ReadSize, minReadWrite, maxReadWrite)
	c.Stream.WriteSize = clamp(c.Stream.WriteSize, minReadWrite, maxReadWrite)
	if c.DefaultSampleRate < 0 {
		c.DefaultSampleRate = defaultSampleRate
	}
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
