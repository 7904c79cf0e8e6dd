package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds viaems-dump settings, loadable from a YAML file and
// overridable by flags.
type Config struct {
	// Device is the serial device path (e.g. /dev/ttyACM0).
	Device string `yaml:"device"`

	// Sim is the simulator binary to fork instead of opening Device.
	Sim string `yaml:"sim"`

	// Timeout bounds each blocking request.
	Timeout time.Duration `yaml:"timeout"`

	// Duration is how long to watch the feed before exiting.
	Duration time.Duration `yaml:"duration"`

	// LogFile captures protocol events in CBOR form.
	LogFile string `yaml:"log_file"`

	// RecordDB records feed samples into a SQLite database.
	RecordDB string `yaml:"record_db"`

	// Note annotates the recording session.
	Note string `yaml:"note"`
}

// DefaultConfig returns the defaults applied before file and flags.
func DefaultConfig() Config {
	return Config{
		Device:   "/dev/ttyACM0",
		Timeout:  time.Second,
		Duration: 5 * time.Second,
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	return config, nil
}
