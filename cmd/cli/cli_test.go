package cli

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/recon/internal/config"
	"github.com/anstrom/recon/internal/errors"
	"github.com/anstrom/recon/internal/logging"
	"github.com/anstrom/recon/internal/scanning"
)

var bannerLines = strings.Repeat("=", 60) + "\n   Smart Recon & Scanning Tool   \n" + strings.Repeat("=", 60) + "\n"

// fakeEngine writes a canned report instead of running nmap.
type fakeEngine struct {
	report    string
	available error
	ports     string
}

func (f *fakeEngine) Available(context.Context) error { return f.available }

func (f *fakeEngine) Invoke(_ context.Context, _ string, a scanning.Artifact) error {
	if err := os.WriteFile(a.XMLPath, []byte(f.report), 0600); err != nil {
		return err
	}
	return os.WriteFile(a.TextPath, []byte("Nmap done\n"), 0600)
}

type testApp struct {
	*app
	engine *fakeEngine
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestApp(report string) *testApp {
	ta := &testApp{
		engine: &fakeEngine{report: report},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	ta.app = &app{
		stdout: ta.stdout,
		stderr: ta.stderr,
		newEngine: func(cfg *config.Config, _ *logging.Logger) scanning.Engine {
			ta.engine.ports = cfg.Scan.Ports
			return ta.engine
		},
		v: viper.New(),
	}
	return ta
}

func (ta *testApp) execute(args ...string) error {
	cmd := newRootCommand(ta.app)
	cmd.SetArgs(append([]string{}, args...))
	return cmd.Execute()
}

// localReport describes a web service on a live test server and an ssh
// service on a port nothing listens on.
func localReport(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>Test Console</title><meta name="generator" content="recon-test"></head></html>`)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	_, webPort, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, closedPort, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	return fmt.Sprintf(`<nmaprun><host><address addr="127.0.0.1" addrtype="ipv4"/><ports>
<port protocol="tcp" portid="%s"><state state="open"/><service name="ssh" product="OpenSSH"/></port>
<port protocol="tcp" portid="%s"><state state="open"/><service name="http" product="Go" version="1.26"/></port>
</ports></host></nmaprun>`, closedPort, webPort)
}

func TestRoot_MissingTarget(t *testing.T) {
	ta := newTestApp("")

	err := ta.execute()
	require.ErrorIs(t, err, errReported)
	assert.Equal(t, bannerLines+"Usage: recon <target> [--quiet]\n", ta.stdout.String())
}

func TestRoot_EngineMissing(t *testing.T) {
	ta := newTestApp("")
	ta.engine.available = errors.ErrEngineMissing("nmap", assert.AnError)

	err := ta.execute("10.0.0.5", "--output-dir", t.TempDir())
	require.ErrorIs(t, err, errReported)
	assert.Equal(t, bannerLines+engineMissingMessage+"\n", ta.stdout.String())
}

func TestRoot_Run(t *testing.T) {
	dir := t.TempDir()
	metricsFile := filepath.Join(dir, "recon.prom")
	ta := newTestApp(localReport(t))

	err := ta.execute("127.0.0.1", "--output-dir", dir, "--metrics-file", metricsFile, "--timeout", "1s")
	require.NoError(t, err)

	out := ta.stdout.String()
	assert.True(t, strings.HasPrefix(out, bannerLines))
	assert.Contains(t, out, "[+] Running Nmap scan on 127.0.0.1...")
	assert.Contains(t, out, " - ssh (OpenSSH )\n")
	assert.Contains(t, out, " - http (Go 1.26)\n")
	assert.Contains(t, out, "    [Web] Title: Test Console\n")
	assert.Contains(t, out, "    [Web] Meta: generator = recon-test\n")
	assert.NotContains(t, out, "[Banner]")
	assert.Contains(t, out, "[+] Detailed scan saved to: "+filepath.Join(dir, "nmap_scan_"))

	assert.Contains(t, ta.stderr.String(), "scan_id=")
	assert.Equal(t, "1-65535", ta.engine.ports)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "recon_services_discovered 2")
	assert.Contains(t, string(prom), `recon_probe_total{kind="web",outcome="success"} 1`)
	assert.Contains(t, string(prom), `recon_probe_total{kind="banner",outcome="failure"} 1`)
}

func TestRoot_MetricsFileFailureIsLogged(t *testing.T) {
	dir := t.TempDir()
	ta := newTestApp(localReport(t))

	err := ta.execute("127.0.0.1", "--quiet", "--output-dir", dir,
		"--metrics-file", filepath.Join(dir, "missing", "recon.prom"))
	require.NoError(t, err)

	logs := ta.stderr.String()
	assert.Contains(t, logs, "Failed to write metrics file")
	assert.Contains(t, logs, "error=")
}

func TestRoot_Quiet(t *testing.T) {
	dir := t.TempDir()
	ta := newTestApp(localReport(t))

	err := ta.execute("127.0.0.1", "--quiet", "--output-dir", dir)
	require.NoError(t, err)

	out := ta.stdout.String()
	assert.NotContains(t, out, "Running Nmap scan")
	assert.NotContains(t, out, "[Web] Fetching")
	assert.NotContains(t, out, "[Web] Meta")
	assert.Contains(t, out, "    [Web] Title: Test Console\n")
	assert.Contains(t, out, "[+] Detailed scan saved to: ")
}

func TestRoot_ParseFailure(t *testing.T) {
	ta := newTestApp("Starting Nmap 7.94")

	err := ta.execute("10.0.0.5", "--quiet", "--output-dir", t.TempDir())
	require.ErrorIs(t, err, errReported)

	out := ta.stdout.String()
	assert.Contains(t, out, "[!] [PARSE] malformed structured report")
	assert.NotContains(t, out, "Detailed scan saved")
}

func TestRoot_InvalidFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{
			name:     "log level",
			args:     []string{"--log-level", "loud"},
			contains: "Config.Logging.Level",
		},
		{
			name:     "zero timeout",
			args:     []string{"--timeout", "0s"},
			contains: "Config.Probe.Timeout",
		},
		{
			name:     "ports",
			args:     []string{"--ports", "80-abc"},
			contains: "invalid ports",
		},
		{
			name:     "missing config file",
			args:     []string{"--config", "/nonexistent/recon.yaml"},
			contains: "config file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp("")

			err := ta.execute(append([]string{"10.0.0.5"}, tt.args...)...)
			require.ErrorIs(t, err, errReported)
			assert.Contains(t, ta.stdout.String(), "[!] ")
			assert.Contains(t, ta.stdout.String(), tt.contains)
		})
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scan:
  output_dir: /var/lib/recon
  ports: "22,80"
probe:
  timeout: 2s
  insecure_skip_verify: true
output:
  table: true
logging:
  level: debug
`), 0600))

	ta := newTestApp("")
	cmd := newRootCommand(ta.app)
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", path,
		"--output-dir", "/tmp/reports",
		"--log-format", "json",
		"-q",
	}))

	cfg, err := ta.loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/reports", cfg.Scan.OutputDir, "flag beats file")
	assert.Equal(t, "22,80", cfg.Scan.Ports, "file beats default")
	assert.Equal(t, 2*time.Second, cfg.Probe.Timeout)
	assert.True(t, cfg.Probe.InsecureSkipVerify)
	assert.True(t, cfg.Output.Table)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Verbose)
}

func TestLoadConfig_UnsetFlagsKeepDefaults(t *testing.T) {
	ta := newTestApp("")
	cmd := newRootCommand(ta.app)
	require.NoError(t, cmd.ParseFlags(nil))

	cfg, err := ta.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestValidatePorts(t *testing.T) {
	tests := []struct {
		name    string
		ports   string
		wantErr bool
	}{
		{"valid single port", "80", false},
		{"valid port list", "80,443,8080", false},
		{"valid port range", "80-443", false},
		{"full range", "1-65535", false},
		{"valid top ports", "T:100", false},
		{"valid mixed", "22,80-443,8080", false},
		{"empty string", "", true},
		{"invalid top ports", "T:many", true},
		{"invalid port - too high", "65536", true},
		{"invalid port - zero", "0", true},
		{"invalid port - negative", "-1", true},
		{"invalid range - reversed", "443-80", true},
		{"invalid range - too many parts", "80-443-8080", true},
		{"invalid characters", "80,abc,443", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePorts(tt.ports)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.CodeValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRoot_PortsFlagUsage(t *testing.T) {
	cmd := newRootCommand(newTestApp("").app)

	flag := cmd.Flags().Lookup("ports")
	require.NotNil(t, flag)
	assert.Equal(t, "Port specification: '80,443' or '1-1000' or 'T:100' for top ports", flag.Usage)
	assert.Equal(t, "1-65535", flag.DefValue)
}
