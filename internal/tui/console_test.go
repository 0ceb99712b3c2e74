package tui

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"

	"github.com/drake-forum/technoshield/internal/client"
	"github.com/drake-forum/technoshield/internal/testutil"
)

// waitForText blocks until one read of the output holds every text.
// Output is consumed as it is read and unchanged frames are not redrawn,
// so texts from the same frame must be awaited together.
func waitForText(t *testing.T, tm *teatest.TestModel, texts ...string) {
	t.Helper()
	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		for _, text := range texts {
			if !bytes.Contains(bts, []byte(text)) {
				return false
			}
		}
		return true
	}, teatest.WithDuration(5*time.Second), teatest.WithCheckInterval(20*time.Millisecond))
}

func quit(t *testing.T, tm *teatest.TestModel) {
	t.Helper()
	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	tm.WaitFinished(t, teatest.WithFinalTimeout(3*time.Second))
}

func TestConsole_DashboardThenLogout(t *testing.T) {
	b := testutil.NewBackend(t)
	b.SetSummary(map[string]any{
		"total_alerts":       42,
		"alerts_by_severity": map[string]any{"critical": 3, "high": 5},
		"incidents_by_status": map[string]any{"new": 2, "closed": 4},
		"total_users":        9,
		"recent_alerts":      []any{testutil.Alert(11, "critical", "open")},
		"recent_incidents":   []any{testutil.Incident(21, "high", "investigating")},
	})

	app := New(newTestDeps(t, b, testutil.Token))
	t.Cleanup(app.Close)
	tm := teatest.NewTestModel(t, app, teatest.WithInitialTermSize(120, 40))

	waitForText(t, tm, "Recent incidents", "Incident 21")

	tm.Send(key("o"))
	waitForText(t, tm, "Sign in")
	quit(t, tm)

	if hits := b.Hits(client.APIPrefix + client.PathLogout); hits != 1 {
		t.Errorf("logout calls = %d, want 1", hits)
	}
}

func TestConsole_RejectedTokenRedirectsToLogin(t *testing.T) {
	b := testutil.NewBackend(t)
	deps := newTestDeps(t, b, "revoked-token")

	app := New(deps)
	t.Cleanup(app.Close)
	tm := teatest.NewTestModel(t, app, teatest.WithInitialTermSize(100, 30))

	waitForText(t, tm, "Username")
	quit(t, tm)

	if deps.Store.AuthState().IsAuthenticated() {
		t.Error("credential should have been cleared after 401")
	}
}

func TestConsole_IncidentListAndDetail(t *testing.T) {
	b := testutil.NewBackend(t)
	b.SetIncidents(
		testutil.Incident(1, "critical", "new"),
		testutil.Incident(2, "low", "resolved"),
	)

	deps := newTestDeps(t, b, testutil.Token)
	deps.StartRoute = "incidents"
	app := New(deps)
	t.Cleanup(app.Close)
	tm := teatest.NewTestModel(t, app, teatest.WithInitialTermSize(120, 40))

	waitForText(t, tm, "Incident 2")
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})
	waitForText(t, tm, "Incident #1: Incident 1")

	tm.Send(key("u"))
	waitForText(t, tm, "is now investigating")
	quit(t, tm)

	var updated bool
	for _, rec := range b.Records() {
		if rec.Method == http.MethodPut && rec.Path == client.APIPrefix+client.IncidentPath(1) {
			updated = true
		}
	}
	if !updated {
		t.Error("expected PUT for incident 1")
	}
}
