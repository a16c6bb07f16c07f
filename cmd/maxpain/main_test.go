package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/btc-maxpain/internal/config"
	"github.com/yourorg/btc-maxpain/internal/export"
	"github.com/yourorg/btc-maxpain/internal/guard"
	"github.com/yourorg/btc-maxpain/internal/metrics"
	"github.com/yourorg/btc-maxpain/internal/model"
	"github.com/yourorg/btc-maxpain/internal/security"
)

func deribitStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/public/get_index_price":
			w.Write([]byte(`{"result":{"index_price":95000}}`))
		case "/public/get_book_summary_by_currency":
			w.Write([]byte(`{"result":[
				{"instrument_name":"BTC-29NOV24-90000-C","open_interest":10},
				{"instrument_name":"BTC-29NOV24-100000-C","open_interest":5},
				{"instrument_name":"BTC-29NOV24-90000-P","open_interest":8},
				{"instrument_name":"BTC-29NOV24-100000-P","open_interest":12},
				{"instrument_name":"BTC-PERPETUAL","open_interest":1}
			]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRun_WritesReports(t *testing.T) {
	srv := deribitStub(t)
	dir := t.TempDir()
	t.Setenv("DERIBIT_BASE_URL", srv.URL)
	t.Setenv("RATE_LIMIT_RPS", "0")
	t.Setenv("LOG_LEVEL", "error")

	out, err := execute(t, "--output-dir", dir, "--csv", "--sign")
	require.NoError(t, err)

	assert.Contains(t, out, "BTC LONG/SHORT MAX PAIN CALCULATOR")
	assert.Contains(t, out, "$90,000")
	assert.Contains(t, out, filepath.Join(dir, "maxpain_longshort.json"))

	rep, err := export.ReadReport(filepath.Join(dir, "maxpain_longshort.json"))
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, 95000.0, rep.CurrentPrice)
	assert.Equal(t, []string{"12H", "24H", "48H", "3D", "1W", "2W", "1M"}, rep.Timeframes.Names())

	text, err := os.ReadFile(filepath.Join(dir, "tradingview_format.txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(text), "# BTC Long/Short Max Pain Levels\n"))
	assert.True(t, strings.HasSuffix(string(text), "1M_SHORT=100000"))

	_, err = os.Stat(filepath.Join(dir, "maxpain_longshort.csv"))
	assert.NoError(t, err)

	out, err = execute(t, "verify", "--output-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "signature valid")
}

func TestVerifyCommand_DetectsTampering(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Output.Dir = dir
	cfg.Signing.Enabled = true

	files, err := buildFiles(cfg)
	require.NoError(t, err)
	rep := model.NewReport(time.Date(2024, time.November, 22, 10, 0, 0, 0, time.UTC), 95000)
	require.NoError(t, files.Export(context.Background(), rep))

	_, err = execute(t, "verify", "--output-dir", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(cfg.JSONPath(), []byte(`{"current_price":1}`), 0o644))
	_, err = execute(t, "verify", "--output-dir", dir)
	assert.ErrorIs(t, err, security.ErrTampered)
}

func TestRun_UpstreamFailureWritesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":11050,"message":"bad_request"}}`))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "data")
	t.Setenv("DERIBIT_BASE_URL", srv.URL)
	t.Setenv("RATE_LIMIT_RPS", "0")
	t.Setenv("LOG_LEVEL", "error")

	out, err := execute(t, "--output-dir", dir)
	require.Error(t, err)
	assert.Contains(t, out, "RUN FAILED")

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "no artifacts after an upstream failure")
}

func TestRun_QuietAndInvalidConfig(t *testing.T) {
	t.Setenv("DERIBIT_BASE_URL", "not a url")

	out, err := execute(t, "--quiet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an absolute URL")
	assert.NotContains(t, out, "BTC LONG/SHORT MAX PAIN CALCULATOR")
}

func TestApplyFlags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--output-dir", "/srv/out", "--csv"}))

	cfg := config.Default()
	opts := &cliOptions{outputDir: "/srv/out", csv: true}
	applyFlags(cmd, opts, &cfg)

	assert.Equal(t, "/srv/out", cfg.Output.Dir)
	assert.True(t, cfg.Output.CSVEnabled)
	assert.Equal(t, "info", cfg.Logging.Level, "unset flags leave configuration alone")
}

func TestBuildSinks_WebhookOnly(t *testing.T) {
	cfg := config.Default()
	cfg.Webhook.URL = "https://hooks.example.com/maxpain"

	log, _ := logtest.NewNullLogger()
	sinks := buildSinks(context.Background(), cfg, log)
	require.Len(t, sinks, 1)
	assert.Equal(t, "webhook", sinks[0].Name())
}

func TestBuildGuard_RecordsTrippedCheck(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	cfg.Guard.MinContracts = 10

	log, _ := logtest.NewNullLogger()
	recorder := metrics.NewRecorder()
	g := buildGuard(cfg, log, recorder)

	err := g.Check(95000, []model.Contract{{Instrument: "BTC-29NOV24-90000-C", OpenInterest: 1}})
	require.ErrorIs(t, err, guard.ErrTripped)

	path := filepath.Join(t.TempDir(), "btc_maxpain.prom")
	require.NoError(t, recorder.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `btc_maxpain_guard_trips_total{check="contracts"} 1`)
}

func TestBuildFiles(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Dir = "/srv/out"
	cfg.Output.CSVEnabled = true

	files, err := buildFiles(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/srv/out/maxpain_longshort.json",
		"/srv/out/tradingview_format.txt",
		"/srv/out/maxpain_longshort.csv",
	}, files.Paths())
}
