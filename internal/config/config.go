// Package config holds the recon run configuration: scan output layout,
// probe limits, logging and metrics export. Values come from defaults, an
// optional YAML file, and command-line flags, in that order.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/recon/internal/errors"
	"github.com/anstrom/recon/internal/logging"
)

const (
	// DefaultProbeTimeout bounds every banner grab and web request.
	DefaultProbeTimeout = 5 * time.Second

	// DefaultBannerBytes is the most a banner grab reads from a service.
	DefaultBannerBytes = 1024

	defaultMaxBodyBytes = 2 << 20
	defaultUserAgent    = "recon/1.0"
)

// Config represents the complete run configuration.
type Config struct {
	// Verbose enables the detailed console lines. Set once from --quiet.
	Verbose bool `yaml:"verbose" json:"verbose"`

	Scan    ScanConfig    `yaml:"scan" json:"scan"`
	Probe   ProbeConfig   `yaml:"probe" json:"probe"`
	Output  OutputConfig  `yaml:"output" json:"output"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ScanConfig holds scan engine invocation settings.
type ScanConfig struct {
	// Directory the XML and text reports are written to
	OutputDir string `yaml:"output_dir" json:"output_dir" validate:"required"`

	// File name prefix shared by both reports
	Prefix string `yaml:"prefix" json:"prefix" validate:"required,excludesall=/"`

	// Port specification handed to the engine
	Ports string `yaml:"ports" json:"ports" validate:"required"`

	// Path to the nmap binary; empty means look it up on PATH
	NmapPath string `yaml:"nmap_path" json:"nmap_path"`
}

// ProbeConfig holds follow-up probe settings.
type ProbeConfig struct {
	// Timeout for each banner grab and web request
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`

	// Maximum bytes read by a banner grab
	BannerBytes int `yaml:"banner_bytes" json:"banner_bytes" validate:"min=1,max=65536"`

	// Maximum response body bytes parsed by a web probe
	MaxBodyBytes int64 `yaml:"max_body_bytes" json:"max_body_bytes" validate:"min=1"`

	// Skip TLS certificate verification for https probes
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`

	// User-Agent header sent by web probes
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// OutputConfig holds optional end-of-run outputs.
type OutputConfig struct {
	// Render the service inventory as a table after probing
	Table bool `yaml:"table" json:"table"`

	// Write run metrics in Prometheus text format to this file
	MetricsFile string `yaml:"metrics_file" json:"metrics_file"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`

	// Log format (text, json)
	Format string `yaml:"format" json:"format" validate:"oneof=text json"`

	// Log output (stdout, stderr, file path)
	Output string `yaml:"output" json:"output" validate:"required"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Verbose: true,
		Scan: ScanConfig{
			OutputDir: ".",
			Prefix:    "nmap_scan",
			Ports:     "1-65535",
		},
		Probe: ProbeConfig{
			Timeout:      DefaultProbeTimeout,
			BannerBytes:  DefaultBannerBytes,
			MaxBodyBytes: defaultMaxBodyBytes,
			UserAgent:    defaultUserAgent,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads a YAML configuration file on top of the defaults. An empty path
// returns the defaults; a path that does not exist is an error because the
// caller asked for it explicitly.
func Load(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapConfigError(errors.CodeFileNotFound, "config file not found", err)
		}
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to read config file", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to parse YAML config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

var validate = validator.New()

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return errors.NewConfigFieldError(errors.CodeValidation,
				fmt.Sprintf("failed %q check", fe.Tag()), fe.Namespace(), fe.Value())
		}
		return errors.WrapConfigError(errors.CodeValidation, "invalid configuration", err)
	}
	return nil
}

// LoggerConfig converts the logging section into a logging.Config.
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{
		Level:     logging.LogLevel(c.Logging.Level),
		Format:    logging.LogFormat(c.Logging.Format),
		Output:    c.Logging.Output,
		AddSource: c.Logging.Level == "debug",
	}
}
