package scanning

import (
	"context"
	"os"
	"time"

	"github.com/anstrom/recon/internal/errors"
	"github.com/anstrom/recon/internal/logging"
	"github.com/anstrom/recon/internal/metrics"
)

const outputDirPerm = 0750

// Invoker runs the scan engine against a target and hands back the reports.
type Invoker struct {
	engine    Engine
	outputDir string
	prefix    string
	logger    *logging.Logger
	metrics   *metrics.Recorder
	now       func() time.Time
}

// NewInvoker creates an invoker that writes reports into outputDir using prefix.
func NewInvoker(engine Engine, outputDir, prefix string, logger *logging.Logger, rec *metrics.Recorder) *Invoker {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Invoker{
		engine:    engine,
		outputDir: outputDir,
		prefix:    prefix,
		logger:    logger.WithComponent("invoker"),
		metrics:   rec,
		now:       time.Now,
	}
}

// Run scans target and returns the artifact paths. An engine failure is
// logged and otherwise ignored: whatever the engine left on disk is for the
// parser to judge. Only a missing output directory or a cancelled context
// fail the call.
func (i *Invoker) Run(ctx context.Context, target string) (Artifact, error) {
	if err := os.MkdirAll(i.outputDir, outputDirPerm); err != nil {
		return Artifact{}, errors.WrapScanErrorWithTarget(errors.CodeDirectoryCreate,
			"create report directory", i.outputDir, err)
	}

	artifact, err := NewArtifact(i.outputDir, i.prefix, i.now())
	if err != nil {
		return Artifact{}, errors.WrapScanError(errors.CodeFilePermission, "allocate report names", err)
	}

	start := time.Now()
	err = i.engine.Invoke(ctx, target, artifact)
	elapsed := time.Since(start)
	i.metrics.ObserveScan(elapsed, err)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return artifact, errors.WrapScanErrorWithTarget(errors.CodeCanceled, "scan interrupted", target, ctxErr)
	}

	if err != nil {
		i.logger.ErrorScan("Scan engine failed; continuing with whatever report it produced",
			target, err, "xml", artifact.XMLPath, "duration", elapsed)
		return artifact, nil
	}

	i.logger.InfoScan("Scan engine finished", target,
		"xml", artifact.XMLPath,
		"text", artifact.TextPath,
		"duration", elapsed)
	return artifact, nil
}
