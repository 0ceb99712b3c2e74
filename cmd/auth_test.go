// ABOUTME: Tests for login, logout, and whoami
// ABOUTME: Uses the non-interactive stdin path and a temp credential file

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drake-forum/technoshield/internal/client"
	"github.com/drake-forum/technoshield/internal/session"
	"github.com/drake-forum/technoshield/internal/testutil"
)

func noTerminal(t *testing.T) {
	t.Helper()
	orig := stdinIsTerminal
	stdinIsTerminal = func() bool { return false }
	t.Cleanup(func() { stdinIsTerminal = orig })
}

func TestRunLogin_StoresToken(t *testing.T) {
	noTerminal(t)
	b := testutil.NewBackend(t)
	tokenFile := useBackend(t, b, "")
	loginUsername = testutil.Username

	var buf bytes.Buffer
	code := runLogin(context.Background(), &buf, strings.NewReader(testutil.Password+"\n"))

	require.Equal(t, 0, code, buf.String())
	assert.Contains(t, buf.String(), "Logged in as analyst")

	token, err := session.NewFileStore(tokenFile).Load()
	require.NoError(t, err)
	assert.Equal(t, testutil.Token, token)
}

func TestRunLogin_WrongPasswordKeepsExistingToken(t *testing.T) {
	noTerminal(t)
	b := testutil.NewBackend(t)
	tokenFile := useBackend(t, b, "older-token")
	loginUsername = testutil.Username

	var buf bytes.Buffer
	code := runLogin(context.Background(), &buf, strings.NewReader("wrong\n"))

	assert.Equal(t, 2, code)
	assert.Contains(t, buf.String(), "Incorrect username or password")

	token, err := session.NewFileStore(tokenFile).Load()
	require.NoError(t, err)
	assert.Equal(t, "older-token", token)
}

func TestRunLogin_RequiresUsernameWithoutTerminal(t *testing.T) {
	noTerminal(t)
	b := testutil.NewBackend(t)
	useBackend(t, b, "")

	var buf bytes.Buffer
	assert.Equal(t, 2, runLogin(context.Background(), &buf, strings.NewReader("hunter2\n")))
	assert.Contains(t, buf.String(), "--username is required")
	assert.Empty(t, b.Records())
}

func TestRunLogin_EmptyPassword(t *testing.T) {
	noTerminal(t)
	useBackend(t, testutil.NewBackend(t), "")
	loginUsername = testutil.Username

	var buf bytes.Buffer
	assert.Equal(t, 2, runLogin(context.Background(), &buf, strings.NewReader("")))
	assert.Contains(t, buf.String(), "empty password")
}

func TestRunLogout(t *testing.T) {
	b := testutil.NewBackend(t)
	tokenFile := useBackend(t, b, testutil.Token)

	var buf bytes.Buffer
	require.Equal(t, 0, runLogout(context.Background(), &buf))
	assert.Contains(t, buf.String(), "Logged out")
	assert.NoFileExists(t, tokenFile)
	assert.Equal(t, 1, b.Hits(client.APIPrefix+client.PathLogout))
}

func TestRunLogout_WhenLoggedOut(t *testing.T) {
	b := testutil.NewBackend(t)
	useBackend(t, b, "")

	var buf bytes.Buffer
	assert.Equal(t, 0, runLogout(context.Background(), &buf))
	assert.Zero(t, b.Hits(client.APIPrefix+client.PathLogout), "no backend call without a token")
}

func TestRunWhoami(t *testing.T) {
	b := testutil.NewBackend(t)

	t.Run("logged out", func(t *testing.T) {
		useBackend(t, b, "")
		var buf bytes.Buffer
		assert.Equal(t, 2, runWhoami(&buf))
		assert.Contains(t, buf.String(), "Not logged in to "+b.URL())
	})

	t.Run("logged in json", func(t *testing.T) {
		useBackend(t, b, testutil.Token)
		jsonOutput = true
		var buf bytes.Buffer
		require.Equal(t, 0, runWhoami(&buf))

		var got whoamiResult
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "authenticated", got.Status)
		assert.Equal(t, b.URL(), got.APIURL)
		assert.Nil(t, got.ExpiresAt, "opaque tokens carry no expiry")
	})
}

func TestFormatWhoamiHuman_ShowsExpiry(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour)
	out := formatWhoamiHuman(whoamiResult{
		Status:    "authenticated",
		APIURL:    "http://alerts.internal:8000",
		TokenFile: "/tmp/token.json",
		ExpiresAt: &exp,
	})
	assert.Contains(t, out, "Logged in to http://alerts.internal:8000")
	assert.Contains(t, out, "Expires:")
	assert.Contains(t, out, "in 2h0m0s")
}
