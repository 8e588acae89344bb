package probe

import (
	"context"
	"time"

	"github.com/anstrom/recon/internal/logging"
	"github.com/anstrom/recon/internal/metrics"
	"github.com/anstrom/recon/internal/output"
	"github.com/anstrom/recon/internal/scanning"
)

// Prober dispatches each record to the web or banner probe and reports the
// result on the console.
type Prober struct {
	web     WebFetcher
	banner  BannerReader
	console *output.Console
	logger  *logging.Logger
	metrics *metrics.Recorder
}

// NewProber wires the two probes to a console. logger and rec may be nil.
func NewProber(web WebFetcher, banner BannerReader, console *output.Console,
	logger *logging.Logger, rec *metrics.Recorder) *Prober {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Prober{
		web:     web,
		banner:  banner,
		console: console,
		logger:  logger.WithComponent("probe"),
		metrics: rec,
	}
}

// Probe runs the follow-up probe for rec. Failures are reported, never
// returned: one unreachable service must not stop the rest.
func (p *Prober) Probe(ctx context.Context, rec scanning.ServiceRecord) {
	action := Classify(rec)
	p.logger.DebugProbe("Probing service", rec.Address(), "service", rec.Label(), "action", action.String())

	switch action {
	case ActionWeb:
		p.probeWeb(ctx, WebURL(rec))
	default:
		p.probeBanner(ctx, rec.Address())
	}
}

func (p *Prober) probeWeb(ctx context.Context, url string) {
	p.console.Verbosef("    [Web] Fetching: %s", url)

	start := time.Now()
	res := p.web.Fetch(ctx, url)
	elapsed := time.Since(start)

	if res.Err != nil {
		p.metrics.ObserveProbe(metrics.KindWeb, metrics.OutcomeFailure, elapsed)
		p.logger.DebugProbe("Web probe failed", url, "error", res.Err)
		p.console.Printf("    [Web] Could not fetch %s - %s", url, reason(res.Err))
		return
	}

	p.metrics.ObserveProbe(metrics.KindWeb, metrics.OutcomeSuccess, elapsed)
	p.console.Printf("    [Web] Title: %s", res.Title)
	for _, m := range res.Meta {
		p.console.Verbosef("    [Web] Meta: %s = %s", m.Name, m.Content)
	}
}

func (p *Prober) probeBanner(ctx context.Context, address string) {
	start := time.Now()
	res := p.banner.Grab(ctx, address)
	elapsed := time.Since(start)

	switch {
	case res.Err != nil:
		p.metrics.ObserveProbe(metrics.KindBanner, metrics.OutcomeFailure, elapsed)
		p.logger.DebugProbe("Banner grab failed", address, "error", res.Err)
	case res.Banner == "":
		p.metrics.ObserveProbe(metrics.KindBanner, metrics.OutcomeEmpty, elapsed)
	default:
		p.metrics.ObserveProbe(metrics.KindBanner, metrics.OutcomeSuccess, elapsed)
		p.console.Verbosef("    [Banner] %s", res.Banner)
	}
}
