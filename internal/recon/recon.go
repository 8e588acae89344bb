// Package recon runs the full pipeline for one target: scan, parse the
// structured report, print the inventory and probe each service.
package recon

import (
	"context"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/anstrom/recon/internal/errors"
	"github.com/anstrom/recon/internal/logging"
	"github.com/anstrom/recon/internal/metrics"
	"github.com/anstrom/recon/internal/output"
	"github.com/anstrom/recon/internal/scanning"
)

// Scanner produces the report artifacts for a target.
type Scanner interface {
	Run(ctx context.Context, target string) (scanning.Artifact, error)
}

// Prober runs the follow-up probe for one service.
type Prober interface {
	Probe(ctx context.Context, rec scanning.ServiceRecord)
}

// Options wires a Pipeline. Logger and Metrics may be nil.
type Options struct {
	Engine  scanning.Engine
	Scanner Scanner
	Prober  Prober
	Console *output.Console
	Logger  *logging.Logger
	Metrics *metrics.Recorder

	// Table renders the inventory as a table after probing.
	Table bool
}

// Pipeline is one configured recon run.
type Pipeline struct {
	engine  scanning.Engine
	scanner Scanner
	prober  Prober
	console *output.Console
	logger  *logging.Logger
	metrics *metrics.Recorder
	table   bool
}

// Result is what a completed run produced.
type Result struct {
	Artifact scanning.Artifact
	Records  []scanning.ServiceRecord
}

// New creates a pipeline from opts.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewDiscard()
	}
	console := opts.Console
	if console == nil {
		console = output.NewConsole(nil, false)
	}
	return &Pipeline{
		engine:  opts.Engine,
		scanner: opts.Scanner,
		prober:  opts.Prober,
		console: console,
		logger:  logger.WithComponent("recon"),
		metrics: opts.Metrics,
		table:   opts.Table,
	}
}

// Run executes the pipeline against target. The engine must be available
// before anything is scanned. A report that cannot be parsed fails the run
// before any inventory line is printed.
func (p *Pipeline) Run(ctx context.Context, target string) (*Result, error) {
	if strings.TrimSpace(target) == "" {
		return nil, errors.NewScanError(errors.CodeTargetInvalid, "target is empty")
	}

	if err := p.engine.Available(ctx); err != nil {
		return nil, err
	}

	p.console.Verbosef("[+] Running Nmap scan on %s...", target)
	artifact, err := p.scanner.Run(ctx, target)
	if err != nil {
		return nil, err
	}
	p.console.Verbosef("[+] Scan complete! XML: %s, TXT: %s", artifact.XMLPath, artifact.TextPath)

	records, err := scanning.ParseReport(artifact.XMLPath)
	if err != nil {
		p.logger.ErrorScan("Report parsing failed", target, err, "xml", artifact.XMLPath)
		return nil, err
	}
	p.metrics.SetServices(len(records))
	p.logger.InfoScan("Report parsed", target, "services", len(records))

	for i := range records {
		if err := ctx.Err(); err != nil {
			return nil, errors.WrapScanErrorWithTarget(errors.CodeCanceled, "probing interrupted", target, err)
		}
		rec := records[i]
		p.console.Printf("[+] %s:%d - %s (%s)", rec.IP, rec.Port, rec.Service, rec.Description())
		p.prober.Probe(ctx, rec)
	}

	if p.table && len(records) > 0 {
		p.renderTable(records)
	}

	p.console.Printf("[+] Detailed scan saved to: %s", artifact.TextPath)
	return &Result{Artifact: artifact, Records: records}, nil
}

func (p *Pipeline) renderTable(records []scanning.ServiceRecord) {
	table := tablewriter.NewWriter(p.console.Writer())
	table.Header("IP", "Port", "Service", "Product", "Version")

	for i := range records {
		rec := &records[i]
		_ = table.Append([]string{
			rec.IP,
			strconv.Itoa(rec.Port),
			rec.Service,
			rec.Product,
			rec.Version,
		})
	}

	_ = table.Render()
}
