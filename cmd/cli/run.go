package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/anstrom/recon/internal/config"
	"github.com/anstrom/recon/internal/errors"
	"github.com/anstrom/recon/internal/logging"
	"github.com/anstrom/recon/internal/metrics"
	"github.com/anstrom/recon/internal/output"
	"github.com/anstrom/recon/internal/probe"
	"github.com/anstrom/recon/internal/recon"
	"github.com/anstrom/recon/internal/scanning"
)

const engineMissingMessage = "[!] Nmap is not installed. Please install it and try again."

func (a *app) run(cmd *cobra.Command, args []string) error {
	header := output.NewConsole(a.stdout, false)
	header.Banner(toolTitle)

	if len(args) < 1 {
		header.Printf("Usage: %s", cmd.Use)
		return errReported
	}
	target := args[0]

	cfg, err := a.loadConfig()
	if err != nil {
		header.Printf("[!] %v", err)
		return errReported
	}

	logger, err := a.newLogger(cfg)
	if err != nil {
		header.Printf("[!] %v", err)
		return errReported
	}
	defer func() { _ = logger.Close() }()

	scanID := uuid.NewString()
	logger = logger.WithScanID(scanID)

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := metrics.NewRecorder()
	pipeline := a.buildPipeline(cfg, logger, rec)

	logger.InfoScan("Starting recon run", target, "ports", cfg.Scan.Ports, "output_dir", cfg.Scan.OutputDir)
	_, runErr := pipeline.Run(ctx, target)

	if cfg.Output.MetricsFile != "" {
		if err := rec.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			logger.WithError(err).Warn("Failed to write metrics file", "path", cfg.Output.MetricsFile)
		}
	}

	if runErr != nil {
		logger.ErrorScan("Recon run failed", target, runErr, "fatal", errors.IsFatal(runErr))
		if errors.IsCode(runErr, errors.CodeDependencyMissing) {
			header.Printf("%s", engineMissingMessage)
		} else {
			header.Printf("[!] %v", runErr)
		}
		return errReported
	}

	logger.InfoScan("Recon run finished", target)
	return nil
}

// newLogger sends logs to the command's stderr unless a file is configured.
func (a *app) newLogger(cfg *config.Config) (*logging.Logger, error) {
	lc := cfg.LoggerConfig()
	switch lc.Output {
	case "stderr":
		return logging.NewWithWriter(lc, a.stderr), nil
	case "stdout":
		return logging.NewWithWriter(lc, a.stdout), nil
	default:
		logger, err := logging.New(lc)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logging: %w", err)
		}
		return logger, nil
	}
}

func (a *app) buildPipeline(cfg *config.Config, logger *logging.Logger, rec *metrics.Recorder) *recon.Pipeline {
	console := output.NewConsole(a.stdout, cfg.Verbose)
	engine := a.newEngine(cfg, logger)

	prober := probe.NewProber(
		probe.NewWebProber(cfg.Probe, logger),
		probe.NewBannerGrabber(cfg.Probe, logger),
		console, logger, rec)

	return recon.New(recon.Options{
		Engine:  engine,
		Scanner: scanning.NewInvoker(engine, cfg.Scan.OutputDir, cfg.Scan.Prefix, logger, rec),
		Prober:  prober,
		Console: console,
		Logger:  logger,
		Metrics: rec,
		Table:   cfg.Output.Table,
	})
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
