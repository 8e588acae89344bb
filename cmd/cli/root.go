// Package cli provides the command-line interface for recon.
// The root command takes a single target, runs the scan and prints the
// service inventory with follow-up probe results.
package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/anstrom/recon/internal/config"
	"github.com/anstrom/recon/internal/logging"
	"github.com/anstrom/recon/internal/scanning"
)

const toolTitle = "Smart Recon & Scanning Tool"

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// errReported marks a failure whose message has already been printed.
var errReported = stderrors.New("reported")

// engineFactory builds the scan engine once configuration is known.
type engineFactory func(cfg *config.Config, logger *logging.Logger) scanning.Engine

// app carries the writers and collaborators of one command invocation.
type app struct {
	stdout    io.Writer
	stderr    io.Writer
	newEngine engineFactory
	v         *viper.Viper

	configFile string
}

func nmapEngine(cfg *config.Config, logger *logging.Logger) scanning.Engine {
	return scanning.NewNmapEngine(cfg.Scan.NmapPath, cfg.Scan.Ports, logger)
}

// NewRootCommand creates the recon command writing its report to stdout and
// its logs to stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	return newRootCommand(&app{
		stdout:    stdout,
		stderr:    stderr,
		newEngine: nmapEngine,
		v:         viper.New(),
	})
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recon <target> [--quiet]",
		Short: "Scan a target and probe every open service",
		Long: `recon runs an nmap service scan against a single target, prints an
inventory line for every open port and follows up on each service: web
services get their page title and meta tags fetched, everything else gets a
short banner grab. The raw nmap reports are kept on disk.`,
		Example: `  recon 192.168.1.10
  recon scanme.nmap.org --quiet
  recon 10.0.0.0/30 --output-dir ./reports --table
  recon 10.0.0.5 --ports 22,80,443 --timeout 2s --metrics-file recon.prom`,
		Version:       getVersion(),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.run,
	}
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	defaults := config.Default()
	flags := cmd.Flags()
	flags.StringVar(&a.configFile, "config", "", "YAML config file (read only when given)")
	flags.BoolP("quiet", "q", false, "only print the inventory, titles and fetch failures")
	flags.String("output-dir", defaults.Scan.OutputDir, "directory for the XML and text reports")
	flags.String("ports", defaults.Scan.Ports, "Port specification: '80,443' or '1-1000' or 'T:100' for top ports")
	flags.String("nmap-path", "", "nmap binary to run (default: nmap on PATH)")
	flags.Duration("timeout", defaults.Probe.Timeout, "timeout for each banner grab and web request")
	flags.Bool("insecure", false, "skip TLS certificate verification for https probes")
	flags.Bool("table", false, "render the inventory as a table after probing")
	flags.String("metrics-file", "", "write run metrics in Prometheus text format to this file")
	flags.String("log-level", defaults.Logging.Level, "log level: debug, info, warn, error")
	flags.String("log-format", defaults.Logging.Format, "log format: text, json")

	if err := bindFlags(a.v, flags); err != nil {
		fmt.Fprintf(a.stderr, "Warning: %v\n", err)
	}

	return cmd
}

// bindFlags binds every override flag to its configuration key.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for key, name := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind %s flag: %w", name, err)
		}
	}
	return nil
}

// flagKeys maps configuration keys to the flags that override them.
var flagKeys = map[string]string{
	"quiet":                      "quiet",
	"scan.output_dir":            "output-dir",
	"scan.ports":                 "ports",
	"scan.nmap_path":             "nmap-path",
	"probe.timeout":              "timeout",
	"probe.insecure_skip_verify": "insecure",
	"output.table":               "table",
	"output.metrics_file":        "metrics-file",
	"logging.level":              "log-level",
	"logging.format":             "log-format",
}

// loadConfig reads the config file, if one was given, and applies every
// flag the user set on top of it.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return nil, err
	}

	v := a.v
	if v.IsSet("quiet") && v.GetBool("quiet") {
		cfg.Verbose = false
	}
	if v.IsSet("scan.output_dir") {
		cfg.Scan.OutputDir = v.GetString("scan.output_dir")
	}
	if v.IsSet("scan.ports") {
		cfg.Scan.Ports = v.GetString("scan.ports")
	}
	if v.IsSet("scan.nmap_path") {
		cfg.Scan.NmapPath = v.GetString("scan.nmap_path")
	}
	if v.IsSet("probe.timeout") {
		cfg.Probe.Timeout = v.GetDuration("probe.timeout")
	}
	if v.IsSet("probe.insecure_skip_verify") {
		cfg.Probe.InsecureSkipVerify = v.GetBool("probe.insecure_skip_verify")
	}
	if v.IsSet("output.table") {
		cfg.Output.Table = v.GetBool("output.table")
	}
	if v.IsSet("output.metrics_file") {
		cfg.Output.MetricsFile = v.GetString("output.metrics_file")
	}
	if v.IsSet("logging.level") {
		cfg.Logging.Level = v.GetString("logging.level")
	}
	if v.IsSet("logging.format") {
		cfg.Logging.Format = v.GetString("logging.format")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validatePorts(cfg.Scan.Ports); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Execute runs the root command against the process arguments.
// This is called by main.main().
func Execute() {
	if err := NewRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		if !stderrors.Is(err, errReported) {
			fmt.Fprintf(os.Stdout, "[!] %v\n", err)
		}
		os.Exit(1)
	}
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
}
