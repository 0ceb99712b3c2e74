// ABOUTME: Tests for the root model's guard handling and navigation
// ABOUTME: Drives Update directly against an in-process backend

package tui

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drake-forum/technoshield/internal/client"
	"github.com/drake-forum/technoshield/internal/guard"
	"github.com/drake-forum/technoshield/internal/logger"
	"github.com/drake-forum/technoshield/internal/querycache"
	"github.com/drake-forum/technoshield/internal/session"
	"github.com/drake-forum/technoshield/internal/testutil"
	"github.com/drake-forum/technoshield/internal/views"
)

func newTestDeps(t *testing.T, b *testutil.Backend, token string) Deps {
	t.Helper()
	store := session.NewStore(session.NewMemoryStore(token))
	require.NoError(t, store.Init())

	c := client.New(b.URL(), store)
	cache := querycache.New(c, querycache.Config{GCDelay: -1})
	t.Cleanup(cache.Close)

	return Deps{
		Store:    store,
		Client:   c,
		Cache:    cache,
		Bindings: views.DefaultBindings(),
		Logger:   logger.New(io.Discard),
	}
}

func newTestApp(t *testing.T, deps Deps) *App {
	t.Helper()
	app := New(deps)
	t.Cleanup(app.Close)
	app.Init()
	return app
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestApp_WithoutCredentialShowsLogin(t *testing.T) {
	deps := newTestDeps(t, testutil.NewBackend(t), "")
	app := newTestApp(t, deps)

	assert.Equal(t, ScreenLogin, app.screen)
	assert.NotNil(t, app.login)
	assert.Zero(t, app.mount.Len())
	assert.Contains(t, app.View(), "Sign in")
}

func TestApp_WithCredentialMountsDashboard(t *testing.T) {
	deps := newTestDeps(t, testutil.NewBackend(t), testutil.Token)
	app := newTestApp(t, deps)

	assert.Equal(t, ScreenDashboard, app.screen)
	require.Len(t, app.subs, 1)
	assert.Equal(t, deps.Bindings.DashboardKey(), app.subs[0].Key())

	target, mounted := app.mount.Current()
	assert.True(t, mounted)
	assert.Equal(t, guard.RouteDashboard, target.Route)
	assert.Equal(t, 1, app.mount.Len())
}

func TestApp_StartRoute(t *testing.T) {
	deps := newTestDeps(t, testutil.NewBackend(t), testutil.Token)
	deps.StartRoute = "incidents/42"
	app := newTestApp(t, deps)

	assert.Equal(t, ScreenIncidentDetail, app.screen)
	assert.Equal(t, 42, app.target.ID)
	require.Len(t, app.subs, 1)
	assert.Equal(t, views.IncidentKey(42), app.subs[0].Key())
}

func TestApp_LogoutUnmountsAndReturnsAfterLogin(t *testing.T) {
	deps := newTestDeps(t, testutil.NewBackend(t), testutil.Token)
	deps.StartRoute = "alerts"
	app := newTestApp(t, deps)
	require.Equal(t, ScreenAlerts, app.screen)

	require.NoError(t, deps.Store.ClearCredential())
	// The guard releases the view before the model hears about it.
	assert.Zero(t, app.mount.Len())

	app.Update(decisionMsg{})
	assert.Equal(t, ScreenLogin, app.screen)
	assert.Empty(t, app.subs)
	require.NotNil(t, app.pending)
	assert.Equal(t, guard.RouteAlerts, app.pending.Route)

	require.NoError(t, deps.Store.SetCredential(testutil.Token))
	app.Update(decisionMsg{})
	assert.Equal(t, ScreenAlerts, app.screen)
	assert.Nil(t, app.pending)
	assert.Equal(t, 1, app.mount.Len())
}

func TestApp_NavigationReplacesSubscriptions(t *testing.T) {
	deps := newTestDeps(t, testutil.NewBackend(t), testutil.Token)
	app := newTestApp(t, deps)
	old := app.subs[0]

	app.Update(key("i"))
	assert.Equal(t, ScreenIncidents, app.screen)
	require.Len(t, app.subs, 1)
	assert.NotSame(t, old, app.subs[0])
	assert.Equal(t, 1, app.mount.Len())

	// A late snapshot from the dashboard is dropped.
	cmd := app.handleSnapshot(snapshotMsg{sub: old, snap: querycache.Snapshot{Key: old.Key()}})
	assert.Nil(t, cmd)
	_, seen := app.snaps[old.Key()]
	assert.False(t, seen)

	app.Update(key("b"))
	assert.Equal(t, ScreenDashboard, app.screen)
}

func TestApp_ListFilterChangesKey(t *testing.T) {
	deps := newTestDeps(t, testutil.NewBackend(t), testutil.Token)
	deps.StartRoute = "incidents"
	app := newTestApp(t, deps)

	app.Update(key("s"))
	assert.Equal(t, "critical", app.incidentFilter.Severity)
	assert.Equal(t, "critical", app.subs[0].Key().Param("severity"))

	app.Update(key("t"))
	assert.Equal(t, "new", app.subs[0].Key().Param("status"))

	// The first page is as far left as it goes.
	app.Update(tea.KeyMsg{Type: tea.KeyLeft})
	assert.Zero(t, app.incidentFilter.Page)
}

func TestApp_EnterOpensFirstRowWithoutMovingCursor(t *testing.T) {
	tests := []struct {
		name   string
		start  string
		rows   []map[string]any
		detail Screen
		id     int
	}{
		{
			name:   "incidents",
			start:  "incidents",
			rows:   []map[string]any{testutil.Incident(1, "critical", "new"), testutil.Incident(2, "low", "resolved")},
			detail: ScreenIncidentDetail,
			id:     1,
		},
		{
			name:   "alerts",
			start:  "alerts",
			rows:   []map[string]any{testutil.Alert(10, "high", "open")},
			detail: ScreenAlertDetail,
			id:     10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps(t, testutil.NewBackend(t), testutil.Token)
			deps.StartRoute = tt.start
			app := newTestApp(t, deps)
			app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
			require.Len(t, app.subs, 1)

			data, err := json.Marshal(tt.rows)
			require.NoError(t, err)
			sub := app.subs[0]
			app.Update(snapshotMsg{sub: sub, snap: querycache.Snapshot{
				Key:           sub.Key(),
				Status:        querycache.StatusSuccess,
				Data:          data,
				LastFetchedAt: time.Now(),
			}})
			require.Len(t, app.rowIDs, len(tt.rows))
			assert.Equal(t, 0, app.table.Cursor())

			app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
			assert.Equal(t, 0, app.table.Cursor(), "resizing keeps the selection")

			app.Update(tea.KeyMsg{Type: tea.KeyEnter})
			assert.Equal(t, tt.detail, app.screen)
			assert.Equal(t, tt.id, app.target.ID)
		})
	}
}

func TestApp_FocusPausesPolling(t *testing.T) {
	deps := newTestDeps(t, testutil.NewBackend(t), testutil.Token)
	app := newTestApp(t, deps)
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 30})

	app.Update(tea.BlurMsg{})
	assert.False(t, deps.Cache.Active())
	assert.False(t, app.focused)
	assert.Contains(t, app.renderFooter(), "paused")

	app.Update(tea.FocusMsg{})
	assert.True(t, deps.Cache.Active())
}

func TestApp_CtrlCQuitsFromAnyScreen(t *testing.T) {
	deps := newTestDeps(t, testutil.NewBackend(t), "")
	app := newTestApp(t, deps)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestApp_TrendSkipsRepeatedFetches(t *testing.T) {
	deps := newTestDeps(t, testutil.NewBackend(t), testutil.Token)
	app := newTestApp(t, deps)

	at := time.Now()
	snap := querycache.Snapshot{
		Status:        querycache.StatusSuccess,
		Data:          []byte(`{"total_alerts": 7}`),
		LastFetchedAt: at,
	}
	app.recordTrend(snap)
	app.recordTrend(snap)
	snap.LastFetchedAt = at.Add(time.Minute)
	snap.Data = []byte(`{"total_alerts": 9}`)
	app.recordTrend(snap)

	assert.Equal(t, []float64{7, 9}, app.trend)
}

func TestNextStatus(t *testing.T) {
	assert.Equal(t, "investigating", nextStatus("new"))
	assert.Equal(t, "closed", nextStatus("resolved"))
	assert.Equal(t, "", nextStatus("closed"))
	assert.Equal(t, "", nextStatus("bogus"))
}

func TestFormatTimeSince(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{2 * time.Second, "just now"},
		{30 * time.Second, "30s ago"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, formatTimeSince(tc.d))
	}
}
