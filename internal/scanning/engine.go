package scanning

import (
	"context"
	stderrors "errors"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Ullaakut/nmap/v3"

	"github.com/anstrom/recon/internal/errors"
	"github.com/anstrom/recon/internal/logging"
)

const (
	defaultBinary = "nmap"

	// topPortsPrefix marks a "T:<n>" most-common-ports spec.
	topPortsPrefix = "T:"
)

// Engine runs an external scanner that writes an Artifact.
type Engine interface {
	// Available reports whether the engine can be executed at all.
	Available(ctx context.Context) error

	// Invoke scans target and writes both reports named by artifact. It blocks
	// until the engine exits.
	Invoke(ctx context.Context, target string, artifact Artifact) error
}

// NmapEngine invokes nmap with version detection, aggressive timing and the
// full port range.
type NmapEngine struct {
	binaryPath string
	ports      string
	logger     *logging.Logger
}

// NewNmapEngine creates an engine. An empty binaryPath means nmap is looked
// up on PATH; an empty ports spec means every TCP port.
func NewNmapEngine(binaryPath, ports string, logger *logging.Logger) *NmapEngine {
	if ports == "" {
		ports = "1-65535"
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &NmapEngine{
		binaryPath: binaryPath,
		ports:      ports,
		logger:     logger.WithComponent("nmap"),
	}
}

// Available implements Engine.
func (e *NmapEngine) Available(ctx context.Context) error {
	if e.binaryPath != "" {
		if _, err := exec.LookPath(e.binaryPath); err != nil {
			return errors.ErrEngineMissing(e.binaryPath, err)
		}
		return nil
	}

	if _, err := nmap.NewScanner(ctx); err != nil {
		if stderrors.Is(err, nmap.ErrNmapNotInstalled) {
			return errors.ErrEngineMissing(defaultBinary, err)
		}
		return errors.WrapScanError(errors.CodeScanFailed, "create scanner", err)
	}
	return nil
}

// buildOptions creates nmap options for one invocation.
func (e *NmapEngine) buildOptions(target string, artifact Artifact) []nmap.Option {
	options := []nmap.Option{
		nmap.WithTargets(target),
		nmap.WithServiceInfo(),
		nmap.WithTimingTemplate(nmap.TimingAggressive),
		portsOption(e.ports),
		nmap.WithNmapOutput(artifact.TextPath),
	}
	if e.binaryPath != "" {
		options = append(options, nmap.WithBinaryPath(e.binaryPath))
	}
	return options
}

// portsOption maps a port spec to nmap flags. "T:<n>" selects the n most
// common ports (--top-ports); anything else is passed to -p as is.
func portsOption(ports string) nmap.Option {
	if top, ok := strings.CutPrefix(ports, topPortsPrefix); ok {
		if n, err := strconv.Atoi(top); err == nil && n > 0 {
			return nmap.WithMostCommonPorts(n)
		}
	}
	return nmap.WithPorts(ports)
}

// Invoke implements Engine. Engine warnings are logged; a non-zero exit is
// returned as a SCAN_FAILED error for the caller to judge.
func (e *NmapEngine) Invoke(ctx context.Context, target string, artifact Artifact) error {
	scanner, err := nmap.NewScanner(ctx, e.buildOptions(target, artifact)...)
	if err != nil {
		if stderrors.Is(err, nmap.ErrNmapNotInstalled) {
			return errors.ErrEngineMissing(defaultBinary, err)
		}
		return errors.WrapScanErrorWithTarget(errors.CodeScanFailed, "create scanner", target, err)
	}
	scanner.ToFile(artifact.XMLPath)

	logger := e.logger.WithTarget(target)
	logger.Info("Starting nmap",
		"xml", artifact.XMLPath,
		"text", artifact.TextPath,
		"ports", e.ports)

	_, warnings, err := scanner.Run()
	if warnings != nil && len(*warnings) > 0 {
		logger.Warn("nmap reported warnings",
			"warnings", strings.Join(*warnings, "; "))
	}
	if err != nil {
		return errors.WrapScanErrorWithTarget(errors.CodeScanFailed, "nmap run failed", target, err)
	}

	return nil
}
