// ABOUTME: Tests for root command configuration
// ABOUTME: Verifies config path resolution and flag overrides

package cmd

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigPath(t *testing.T) {
	resetFlags(t)
	t.Setenv("TECHNOSHIELD_CONFIG", "/etc/technoshield.yaml")

	assert.Equal(t, "/etc/technoshield.yaml", GetConfigPath())

	configPath = "/tmp/flag.yaml"
	assert.Equal(t, "/tmp/flag.yaml", GetConfigPath(), "flag wins over env")
}

func TestLoadConfig_FlagOverridesFileAndEnv(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("TECHNOSHIELD_API_URL", "http://env.example:8000")

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  url: http://file.example:8000\nviews:\n  page_size: 20\n"), 0600))
	t.Setenv("TECHNOSHIELD_CONFIG", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://env.example:8000", cfg.API.URL)
	assert.Equal(t, 20, cfg.Views.PageSize)

	apiURL = "https://flag.example"
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://flag.example", cfg.API.URL)
}

func TestLoadConfig_RejectsBadFlagURL(t *testing.T) {
	resetFlags(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TECHNOSHIELD_CONFIG", "")
	apiURL = "ftp://nope"

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--api-url")
}

func TestMetricsRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "technoshield_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv := httptest.NewServer(metricsRouter(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body := new(strings.Builder)
	_, err = io.Copy(body, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), "technoshield_test_total 1")
}
