// ABOUTME: Root bubbletea model for the analyst console
// ABOUTME: Follows route guard decisions and renders cache snapshots as they arrive

package tui

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/drake-forum/technoshield/internal/client"
	"github.com/drake-forum/technoshield/internal/guard"
	"github.com/drake-forum/technoshield/internal/querycache"
	"github.com/drake-forum/technoshield/internal/querykey"
	"github.com/drake-forum/technoshield/internal/session"
	"github.com/drake-forum/technoshield/internal/tui/styles"
	"github.com/drake-forum/technoshield/internal/views"
)

// Deps are the long-lived services the console runs on.
type Deps struct {
	Store    *session.Store
	Client   *client.Client
	Cache    *querycache.Cache
	Bindings views.Bindings
	Logger   *slog.Logger
	// StartRoute is where to land after login, e.g. "incidents/42".
	StartRoute string
}

// Screen is what the console is currently showing.
type Screen int

const (
	ScreenLoading Screen = iota
	ScreenLogin
	ScreenDashboard
	ScreenIncidents
	ScreenIncidentDetail
	ScreenAlerts
	ScreenAlertDetail
	ScreenCreateIncident
)

func screenFor(route guard.Route) Screen {
	switch route {
	case guard.RouteIncidents:
		return ScreenIncidents
	case guard.RouteIncidentDetail:
		return ScreenIncidentDetail
	case guard.RouteIncidentNew:
		return ScreenCreateIncident
	case guard.RouteAlerts:
		return ScreenAlerts
	case guard.RouteAlertDetail:
		return ScreenAlertDetail
	default:
		return ScreenDashboard
	}
}

func (s Screen) protected() bool {
	return s >= ScreenDashboard
}

func (s Screen) title() string {
	switch s {
	case ScreenLogin:
		return "Sign in"
	case ScreenDashboard:
		return "Dashboard"
	case ScreenIncidents:
		return "Incidents"
	case ScreenIncidentDetail:
		return "Incident"
	case ScreenAlerts:
		return "Alerts"
	case ScreenAlertDetail:
		return "Alert"
	case ScreenCreateIncident:
		return "New incident"
	default:
		return ""
	}
}

func (s Screen) shortcuts() []string {
	switch s {
	case ScreenLoading:
		return []string{"ctrl+c Quit"}
	case ScreenLogin:
		return []string{"tab Next", "enter Submit", "ctrl+c Quit"}
	case ScreenDashboard:
		return []string{"i Incidents", "a Alerts", "n New", "r Refresh", "o Logout", "q Quit"}
	case ScreenIncidents, ScreenAlerts:
		return []string{"↑↓ Move", "enter Open", "s Sev", "t Status", "←→ Page", "r Refresh", "b Back", "q Quit"}
	case ScreenIncidentDetail:
		return []string{"u Advance", "r Refresh", "b Back", "q Quit"}
	case ScreenAlertDetail:
		return []string{"r Refresh", "b Back", "q Quit"}
	case ScreenCreateIncident:
		return []string{"tab Next", "enter Submit", "esc Cancel"}
	default:
		return nil
	}
}

// maxTrend caps how many dashboard polls the alert sparkline remembers.
const maxTrend = 24

// decisionMsg wakes the model after the guard changed its decision.
type decisionMsg struct{}

// snapshotMsg carries one update from a view subscription.
type snapshotMsg struct {
	sub    *querycache.Subscription
	snap   querycache.Snapshot
	closed bool
}

type loginDoneMsg struct {
	err error
}

type logoutDoneMsg struct {
	err error
}

// incidentSavedMsg reports a create or update round trip.
type incidentSavedMsg struct {
	incident *client.Incident
	created  bool
	err      error
}

// App is the root model.
type App struct {
	deps   Deps
	ctx    context.Context
	logger *slog.Logger
	now    func() time.Time

	mount     *guard.Mount
	guard     *guard.Guard
	decisions chan struct{}

	screen   Screen
	target   guard.Target
	pending  *guard.Target
	history  []guard.Target
	subs     []*querycache.Subscription
	snaps    map[querykey.Key]querycache.Snapshot
	focused  bool
	loggedIn bool

	incidentFilter views.IncidentFilter
	alertFilter    views.AlertFilter
	table          table.Model
	rowIDs         []int

	trend      []float64
	trendAt    time.Time
	login      *loginForm
	create     *incidentForm
	spinner    spinner.Model
	busy       bool
	notice     string
	err        error
	width      int
	height     int
	lastUpdate time.Time
}

// New builds the console and attaches it to the route guard.
func New(deps Deps) *App {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Bindings.PageSize <= 0 {
		deps.Bindings = views.DefaultBindings()
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Subtitle

	a := &App{
		deps:      deps,
		ctx:       context.Background(),
		logger:    logger,
		now:       time.Now,
		mount:     &guard.Mount{},
		decisions: make(chan struct{}, 1),
		screen:    ScreenLoading,
		snaps:     make(map[querykey.Key]querycache.Snapshot),
		focused:   true,
		spinner:   s,
		table:     newTable(),
	}
	a.guard = guard.New(deps.Store, a.mount, func(guard.Decision) {
		select {
		case a.decisions <- struct{}{}:
		default:
		}
	})
	return a
}

// Close detaches from the guard and releases the mounted view.
func (a *App) Close() {
	a.guard.Close()
	if err := a.mount.Unmount(); err != nil {
		a.logger.Warn("unmounting view", "error", err)
	}
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.waitForDecision(), a.applyDecision(a.guard.Decision()))
}

func (a *App) waitForDecision() tea.Cmd {
	return func() tea.Msg {
		<-a.decisions
		return decisionMsg{}
	}
}

func waitForSnapshot(sub *querycache.Subscription) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-sub.Updates()
		return snapshotMsg{sub: sub, snap: snap, closed: !ok}
	}
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resizeTable()
		return a, a.forwardToForm(msg)

	case tea.FocusMsg:
		a.setActive(true)
		return a, nil

	case tea.BlurMsg:
		a.setActive(false)
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case decisionMsg:
		return a, tea.Batch(a.waitForDecision(), a.applyDecision(a.guard.Decision()))

	case snapshotMsg:
		return a, a.handleSnapshot(msg)

	case loginDoneMsg:
		a.busy = false
		if msg.err != nil && a.login != nil {
			a.logger.Info("login failed", "error", msg.err)
			a.login = newLoginForm(a.login.username, loginError(msg.err))
			return a, a.login.form.Init()
		}
		return a, nil

	case logoutDoneMsg:
		a.busy = false
		if msg.err != nil {
			a.err = msg.err
		}
		return a, nil

	case incidentSavedMsg:
		return a, a.handleIncidentSaved(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		switch a.screen {
		case ScreenLogin:
			return a, a.updateLogin(msg)
		case ScreenCreateIncident:
			return a, a.updateCreate(msg)
		case ScreenLoading:
			return a, nil
		}
		return a, a.handleKey(msg)
	}

	// huh forms need their internal messages
	return a, a.forwardToForm(msg)
}

func (a *App) setActive(active bool) {
	a.focused = active
	if err := a.deps.Cache.SetActive(active); err != nil {
		a.logger.Debug("cache focus change ignored", "error", err)
	}
}

// applyDecision moves to the screen the guard allows.
func (a *App) applyDecision(d guard.Decision) tea.Cmd {
	switch d {
	case guard.RenderProtected:
		if a.loggedIn && a.screen.protected() {
			return nil
		}
		a.loggedIn = true
		a.login = nil
		target := guard.Resolve(a.deps.StartRoute)
		if a.pending != nil {
			target = *a.pending
			a.pending = nil
		}
		a.history = nil
		return a.navigate(target)

	case guard.RedirectLogin:
		if a.screen == ScreenLogin && a.login != nil {
			return nil
		}
		if a.screen.protected() {
			t := a.target
			a.pending = &t
		}
		a.loggedIn = false
		a.releaseView()
		a.screen = ScreenLogin
		a.busy = false
		a.create = nil
		a.login = newLoginForm("", "")
		return a.login.form.Init()

	default:
		a.loggedIn = false
		a.releaseView()
		a.screen = ScreenLoading
		return nil
	}
}

// releaseView unmounts the current view. The guard already does this on
// logout; doing it again covers a navigation that raced the logout.
func (a *App) releaseView() {
	if err := a.mount.Unmount(); err != nil {
		a.logger.Warn("unmounting view", "error", err)
	}
	a.subs = nil
	a.snaps = make(map[querykey.Key]querycache.Snapshot)
	a.err = nil
	a.notice = ""
}

// open navigates forward, remembering where we came from.
func (a *App) open(target guard.Target) tea.Cmd {
	if a.screen.protected() {
		a.history = append(a.history, a.target)
	}
	return a.navigate(target)
}

func (a *App) back() tea.Cmd {
	if len(a.history) == 0 {
		if a.target.Route == guard.RouteDashboard {
			return nil
		}
		return a.navigate(guard.Target{Route: guard.RouteDashboard})
	}
	prev := a.history[len(a.history)-1]
	a.history = a.history[:len(a.history)-1]
	return a.navigate(prev)
}

// navigate mounts target: it subscribes to the keys the view reads and
// hands the subscriptions to the mount so logout closes them.
func (a *App) navigate(target guard.Target) tea.Cmd {
	if a.guard.Decision() != guard.RenderProtected {
		a.pending = &target
		return nil
	}

	a.err = nil
	a.notice = ""
	a.target = target
	a.screen = screenFor(target.Route)
	a.snaps = make(map[querykey.Key]querycache.Snapshot)

	var subs []*querycache.Subscription
	for _, b := range a.bindingsFor(target) {
		sub, err := a.deps.Cache.Subscribe(b.key, b.opts, nil)
		if err != nil {
			for _, s := range subs {
				_ = s.Close()
			}
			a.err = err
			return nil
		}
		subs = append(subs, sub)
	}

	owned := make([]guard.Closer, len(subs))
	for i, s := range subs {
		owned[i] = s
	}
	if err := a.mount.Set(target, owned...); err != nil {
		a.logger.Warn("closing previous view", "error", err)
	}
	a.subs = subs

	cmds := make([]tea.Cmd, 0, len(subs)+1)
	for _, s := range subs {
		cmds = append(cmds, waitForSnapshot(s))
	}
	if a.screen == ScreenCreateIncident {
		a.create = newIncidentForm()
		cmds = append(cmds, a.create.form.Init())
	} else {
		a.create = nil
		a.configureTable()
	}
	return tea.Batch(cmds...)
}

type binding struct {
	key  querykey.Key
	opts querycache.Options
}

func (a *App) bindingsFor(target guard.Target) []binding {
	b := a.deps.Bindings
	switch target.Route {
	case guard.RouteDashboard:
		return []binding{{b.DashboardKey(), b.DashboardOptions()}}
	case guard.RouteIncidents:
		return []binding{{b.IncidentsKey(a.incidentFilter), b.ListOptions()}}
	case guard.RouteIncidentDetail:
		return []binding{{views.IncidentKey(target.ID), views.DetailOptions()}}
	case guard.RouteAlerts:
		return []binding{{b.AlertsKey(a.alertFilter), b.ListOptions()}}
	case guard.RouteAlertDetail:
		return []binding{{views.AlertKey(target.ID), views.DetailOptions()}}
	default:
		return nil
	}
}

func (a *App) handleSnapshot(msg snapshotMsg) tea.Cmd {
	if msg.closed || !a.owns(msg.sub) {
		return nil
	}
	a.snaps[msg.sub.Key()] = msg.snap
	if msg.snap.Status == querycache.StatusSuccess && msg.snap.LastFetchedAt.After(a.lastUpdate) {
		a.lastUpdate = msg.snap.LastFetchedAt
	}
	switch a.screen {
	case ScreenDashboard:
		a.recordTrend(msg.snap)
	case ScreenIncidents, ScreenAlerts:
		a.refreshRows()
	}
	return waitForSnapshot(msg.sub)
}

func (a *App) owns(sub *querycache.Subscription) bool {
	for _, s := range a.subs {
		if s == sub {
			return true
		}
	}
	return false
}

// primary returns the snapshot of the view's first subscription.
func (a *App) primary() (querycache.Snapshot, bool) {
	if len(a.subs) == 0 {
		return querycache.Snapshot{}, false
	}
	snap, ok := a.snaps[a.subs[0].Key()]
	return snap, ok
}

func (a *App) fetching() bool {
	for _, snap := range a.snaps {
		if snap.IsFetching {
			return true
		}
	}
	return false
}

func (a *App) recordTrend(snap querycache.Snapshot) {
	if snap.Status != querycache.StatusSuccess || !snap.LastFetchedAt.After(a.trendAt) {
		return
	}
	summary, err := a.deps.Bindings.Summary(snap)
	if err != nil {
		return
	}
	a.trendAt = snap.LastFetchedAt
	a.trend = append(a.trend, float64(summary.TotalAlerts))
	if len(a.trend) > maxTrend {
		a.trend = a.trend[len(a.trend)-maxTrend:]
	}
}

func (a *App) refresh() {
	for _, s := range a.subs {
		if err := a.deps.Cache.Invalidate(s.Key()); err != nil {
			a.err = err
			return
		}
	}
}

func (a *App) logout() tea.Cmd {
	a.busy = true
	ctx := a.ctx
	c := a.deps.Client
	return func() tea.Msg {
		return logoutDoneMsg{err: c.Logout(ctx)}
	}
}

// View implements tea.Model
func (a *App) View() string {
	return a.wrapWithFrame(a.viewContent())
}

// Run starts the console and blocks until the user quits or ctx ends.
func Run(ctx context.Context, deps Deps) error {
	app := New(deps)
	app.ctx = ctx
	defer app.Close()

	p := tea.NewProgram(
		app,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithReportFocus(),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
