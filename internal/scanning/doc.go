// Package scanning runs the external scan engine and turns its structured
// report into a service inventory.
//
// The Invoker names a timestamped pair of report files (Artifact), hands
// them to an Engine and waits for it to exit. NmapEngine is the production
// Engine; tests substitute a fake that writes a canned report. An engine
// failure does not fail the Invoker: the run continues and ParseReport
// decides whether the report on disk is usable.
//
// ParseReport reads an nmap XML report and returns one ServiceRecord per
// port in the "open" state, in document order. A missing, empty or
// malformed report is a *errors.ParseError.
//
//	invoker := scanning.NewInvoker(scanning.NewNmapEngine("", "", logger), ".", "nmap_scan", logger, nil)
//	artifact, err := invoker.Run(ctx, "10.0.0.5")
//	if err != nil {
//		return err
//	}
//	records, err := scanning.ParseReport(artifact.XMLPath)
package scanning
