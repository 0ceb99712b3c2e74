package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drake-forum/technoshield/internal/session"
	"github.com/drake-forum/technoshield/internal/testutil"
)

// useBackend points every command at b with an isolated config directory.
// A non-empty token is written to the credential file first.
func useBackend(t *testing.T, b *testutil.Backend, token string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("TECHNOSHIELD_CONFIG", "")
	t.Setenv("TECHNOSHIELD_API_URL", b.URL())

	tokenFile := filepath.Join(dir, "token.json")
	t.Setenv("TECHNOSHIELD_TOKEN_FILE", tokenFile)
	if token != "" {
		require.NoError(t, session.NewFileStore(tokenFile).Save(token))
	}

	resetFlags(t)
	return tokenFile
}

// resetFlags puts package-level flag values back to their defaults
// before and after the test.
func resetFlags(t *testing.T) {
	t.Helper()
	reset := func() {
		apiURL, configPath, jsonOutput = "", "", false
		incidentSeverity, incidentStatus, incidentPage = "", "", 0
		alertSeverity, alertStatus, alertPage = "", "", 0
		maxCritical, maxActive, maxNew = 0, 10, -1
		newTitle, newDescription, newSeverity, newType, newAffected = "", "", "medium", "other", ""
		updateStatus, updateSeverity, updateResolution = "", "", ""
		loginUsername, loginPasswordStdin = "", false
		metricsAddr, openRoute = "", ""
	}
	reset()
	t.Cleanup(reset)
}
