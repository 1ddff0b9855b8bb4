package tickwheel

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Config is the file form of the driver settings.
//
//	resolution: 10ms
//	error_buffer: 64
//	error_log_rate: 1
//	log:
//	  level: info
//	  console: true
type Config struct {
	Resolution   string    `yaml:"resolution"`
	ErrorBuffer  int       `yaml:"error_buffer"`
	ErrorLogRate int       `yaml:"error_log_rate"`
	Log          LogConfig `yaml:"log"`
}

// LogConfig selects the logger built by NewLogger.
type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// ParseConfig decodes YAML config. Unknown fields are rejected and an empty
// document yields the zero Config, which means all defaults.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("yaml unmarshal: %w", err)
	}

	if _, err := cfg.resolution(); err != nil {
		return Config{}, err
	}
	if cfg.ErrorBuffer < 0 {
		return Config{}, fmt.Errorf("error_buffer: must be >= 0")
	}
	if cfg.ErrorLogRate < 0 {
		return Config{}, fmt.Errorf("error_log_rate: must be >= 0")
	}

	return cfg, nil
}

// Options converts the config into options for New or NewDriver.
func (c Config) Options() ([]Option, error) {
	res, err := c.resolution()
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithResolution(res),
		WithLogger(NewLogger(c.Log)),
	}
	if c.ErrorBuffer > 0 {
		opts = append(opts, WithErrorBuffer(c.ErrorBuffer))
	}
	if c.ErrorLogRate > 0 {
		opts = append(opts, WithErrorLogRate(c.ErrorLogRate))
	}

	return opts, nil
}

func (c Config) resolution() (time.Duration, error) {
	return parseDurationOrDefault("resolution", c.Resolution, DefaultResolution)
}

func parseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	if d == 0 {
		return def, nil
	}

	return d, nil
}
