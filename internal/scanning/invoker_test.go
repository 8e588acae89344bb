package scanning

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/recon/internal/errors"
	"github.com/anstrom/recon/internal/metrics"
)

// fakeEngine writes a canned report instead of running nmap.
type fakeEngine struct {
	report    string
	err       error
	available error

	targets   []string
	artifacts []Artifact
}

func (f *fakeEngine) Available(context.Context) error {
	return f.available
}

func (f *fakeEngine) Invoke(_ context.Context, target string, artifact Artifact) error {
	f.targets = append(f.targets, target)
	f.artifacts = append(f.artifacts, artifact)
	if f.report != "" {
		if err := os.WriteFile(artifact.XMLPath, []byte(f.report), 0600); err != nil {
			return err
		}
		if err := os.WriteFile(artifact.TextPath, []byte("Nmap done\n"), 0600); err != nil {
			return err
		}
	}
	return f.err
}

func fixedClock(ts string) func() time.Time {
	return func() time.Time {
		t, err := time.Parse("2006-01-02 15:04:05", ts)
		if err != nil {
			panic(err)
		}
		return t
	}
}

func TestNewArtifact(t *testing.T) {
	dir := t.TempDir()
	now := fixedClock("2026-10-17 09:05:03")()

	a, err := NewArtifact(dir, "nmap_scan", now)
	require.NoError(t, err)

	assert.Equal(t, "20261017_090503", a.Stamp)
	assert.Equal(t, filepath.Join(dir, "nmap_scan_20261017_090503.xml"), a.XMLPath)
	assert.Equal(t, filepath.Join(dir, "nmap_scan_20261017_090503.txt"), a.TextPath)
}

func TestNewArtifact_NeverReusesExistingNames(t *testing.T) {
	dir := t.TempDir()
	now := fixedClock("2026-10-17 09:05:03")()

	first, err := NewArtifact(dir, "nmap_scan", now)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(first.XMLPath, []byte("<nmaprun/>"), 0600))

	second, err := NewArtifact(dir, "nmap_scan", now)
	require.NoError(t, err)
	assert.NotEqual(t, first.XMLPath, second.XMLPath)
	assert.Equal(t, "20261017_090503_1", second.Stamp)

	// A leftover text report alone also blocks the name.
	require.NoError(t, os.WriteFile(second.TextPath, []byte("raw"), 0600))
	third, err := NewArtifact(dir, "nmap_scan", now)
	require.NoError(t, err)
	assert.Equal(t, "20261017_090503_2", third.Stamp)
}

func TestInvoker_Run(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	engine := &fakeEngine{report: `<nmaprun></nmaprun>`}
	rec := metrics.NewRecorder()

	inv := NewInvoker(engine, dir, "nmap_scan", nil, rec)
	inv.now = fixedClock("2026-10-17 12:00:00")

	artifact, err := inv.Run(context.Background(), "10.0.0.0/30")
	require.NoError(t, err)

	assert.Equal(t, []string{"10.0.0.0/30"}, engine.targets)
	assert.Equal(t, filepath.Join(dir, "nmap_scan_20261017_120000.xml"), artifact.XMLPath)
	assert.FileExists(t, artifact.XMLPath)
	assert.FileExists(t, artifact.TextPath)
	assertEngineErrors(t, rec, 0)
}

func assertEngineErrors(t *testing.T, rec *metrics.Recorder, n int) {
	t.Helper()
	expected := fmt.Sprintf(`# HELP recon_scan_engine_errors_total Scan engine invocations that exited with an error
# TYPE recon_scan_engine_errors_total counter
recon_scan_engine_errors_total %d
`, n)
	assert.NoError(t, testutil.GatherAndCompare(rec.GetRegistry(),
		strings.NewReader(expected), "recon_scan_engine_errors_total"))
}

func TestInvoker_EngineFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	engine := &fakeEngine{err: errors.NewScanError(errors.CodeScanFailed, "exit status 1")}
	rec := metrics.NewRecorder()

	inv := NewInvoker(engine, dir, "nmap_scan", nil, rec)
	artifact, err := inv.Run(context.Background(), "10.0.0.5")
	require.NoError(t, err)
	assert.NotEmpty(t, artifact.XMLPath)
	assertEngineErrors(t, rec, 1)

	// The problem surfaces when the missing report is parsed.
	_, err = ParseReport(artifact.XMLPath)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeFileNotFound))
}

func TestInvoker_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := &fakeEngine{err: context.Canceled}
	inv := NewInvoker(engine, t.TempDir(), "nmap_scan", nil, nil)

	_, err := inv.Run(ctx, "10.0.0.5")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeCanceled))
}

func TestInvoker_OutputDirUnavailable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	engine := &fakeEngine{}
	inv := NewInvoker(engine, filepath.Join(blocker, "reports"), "nmap_scan", nil, nil)

	_, err := inv.Run(context.Background(), "10.0.0.5")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDirectoryCreate))
	assert.Empty(t, engine.targets, "engine must not run without an output directory")
}
