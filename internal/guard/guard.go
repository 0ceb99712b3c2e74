// ABOUTME: Route guard deciding whether protected views may mount
// ABOUTME: Tracks the mounted view's cache subscriptions and closes them on logout

package guard

import (
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/drake-forum/technoshield/internal/session"
)

// Decision is what the shell should render for the current auth state.
type Decision int

const (
	ShowLoading Decision = iota
	RedirectLogin
	RenderProtected
)

func (d Decision) String() string {
	switch d {
	case ShowLoading:
		return "loading"
	case RedirectLogin:
		return "login"
	case RenderProtected:
		return "protected"
	default:
		return "unknown"
	}
}

// Decide maps an auth state to a rendering decision.
func Decide(state session.AuthState) Decision {
	switch state.Status {
	case session.StatusAuthenticated:
		return RenderProtected
	case session.StatusUnauthenticated:
		return RedirectLogin
	default:
		return ShowLoading
	}
}

// Route names a protected view.
type Route string

const (
	RouteDashboard      Route = "dashboard"
	RouteIncidents      Route = "incidents"
	RouteIncidentDetail Route = "incident"
	RouteIncidentNew    Route = "incident/new"
	RouteAlerts         Route = "alerts"
	RouteAlertDetail    Route = "alert"
)

// DefaultRoute is the landing view after login and for unknown routes.
const DefaultRoute = RouteDashboard

// Target is a resolved navigation destination.
type Target struct {
	Route Route
	ID    int
}

// Resolve parses a path like "incidents", "incidents/42", or "/alerts/7".
// Anything it does not recognize lands on the dashboard.
func Resolve(path string) Target {
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch parts[0] {
	case "", string(RouteDashboard):
		if len(parts) == 1 {
			return Target{Route: RouteDashboard}
		}
	case string(RouteIncidents):
		if len(parts) == 1 {
			return Target{Route: RouteIncidents}
		}
		if len(parts) == 2 && parts[1] == "new" {
			return Target{Route: RouteIncidentNew}
		}
		if id, ok := parseID(parts); ok {
			return Target{Route: RouteIncidentDetail, ID: id}
		}
	case string(RouteAlerts):
		if len(parts) == 1 {
			return Target{Route: RouteAlerts}
		}
		if id, ok := parseID(parts); ok {
			return Target{Route: RouteAlertDetail, ID: id}
		}
	}
	return Target{Route: DefaultRoute}
}

func parseID(parts []string) (int, bool) {
	if len(parts) != 2 {
		return 0, false
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Closer is anything the mounted view must release on unmount,
// typically a *querycache.Subscription.
type Closer interface {
	Close() error
}

// Mount holds the resources of the currently mounted protected view.
type Mount struct {
	mu      sync.Mutex
	target  Target
	mounted bool
	owned   []Closer
}

// Set replaces the mounted view, closing everything the previous one held.
func (m *Mount) Set(target Target, owned ...Closer) error {
	m.mu.Lock()
	prev := m.owned
	m.target = target
	m.mounted = true
	m.owned = owned
	m.mu.Unlock()
	return closeAll(prev)
}

// Add attaches more resources to the mounted view.
func (m *Mount) Add(owned ...Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owned = append(m.owned, owned...)
}

// Unmount releases the current view.
func (m *Mount) Unmount() error {
	m.mu.Lock()
	prev := m.owned
	m.owned = nil
	m.mounted = false
	m.target = Target{}
	m.mu.Unlock()
	return closeAll(prev)
}

// Current returns the mounted target, if any.
func (m *Mount) Current() (Target, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target, m.mounted
}

// Len returns how many resources the mounted view holds.
func (m *Mount) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.owned)
}

func closeAll(owned []Closer) error {
	var errs []error
	for _, c := range owned {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Guard re-evaluates Decide on every auth change and unmounts the
// protected view as soon as the decision is no longer RenderProtected.
type Guard struct {
	store *session.Store
	mount *Mount

	mu       sync.Mutex
	decision Decision
	onChange func(Decision)
	stop     func()
}

// New attaches a guard to store. onChange, if non-nil, runs after each
// decision change, after any unmount has completed.
func New(store *session.Store, mount *Mount, onChange func(Decision)) *Guard {
	g := &Guard{
		store:    store,
		mount:    mount,
		decision: Decide(store.AuthState()),
		onChange: onChange,
	}
	g.stop = store.Subscribe(g.evaluate)
	return g
}

// Decision returns the latest decision.
func (g *Guard) Decision() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decision
}

// Close detaches the guard from the store.
func (g *Guard) Close() {
	g.stop()
}

func (g *Guard) evaluate(state session.AuthState) {
	next := Decide(state)

	g.mu.Lock()
	changed := next != g.decision
	g.decision = next
	g.mu.Unlock()

	if next != RenderProtected {
		_ = g.mount.Unmount()
	}
	if changed && g.onChange != nil {
		g.onChange(next)
	}
}
