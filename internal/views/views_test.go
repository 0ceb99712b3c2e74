package views

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drake-forum/technoshield/internal/client"
	"github.com/drake-forum/technoshield/internal/querycache"
	"github.com/drake-forum/technoshield/internal/querykey"
)

func TestIncidentFilter_Validate(t *testing.T) {
	tests := []struct {
		name    string
		filter  IncidentFilter
		wantErr bool
	}{
		{"empty", IncidentFilter{}, false},
		{"critical new", IncidentFilter{Severity: "critical", Status: "new"}, false},
		{"mitigated", IncidentFilter{Status: "mitigated"}, false},
		{"bad severity", IncidentFilter{Severity: "urgent"}, true},
		{"alert status", IncidentFilter{Status: "acknowledged"}, true},
		{"negative page", IncidentFilter{Page: -1}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.filter.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestAlertFilter_Validate(t *testing.T) {
	if err := (AlertFilter{Severity: "low", Status: "acknowledged"}).Validate(); err != nil {
		t.Errorf("expected valid filter, got %v", err)
	}
	if err := (AlertFilter{Status: "investigating"}).Validate(); err == nil {
		t.Error("expected incident status to be rejected for alerts")
	}
}

func TestKeys_EmptyFilterMatchesAbsent(t *testing.T) {
	b := DefaultBindings()

	if b.IncidentsKey(IncidentFilter{Severity: ""}) != b.IncidentsKey(IncidentFilter{}) {
		t.Error("expected empty severity to normalize to absent")
	}
	if b.IncidentsKey(IncidentFilter{Severity: "critical"}) == b.IncidentsKey(IncidentFilter{Severity: "low"}) {
		t.Error("expected different severities to produce different keys")
	}
}

func TestKeys_Paging(t *testing.T) {
	b := DefaultBindings()

	first := b.AlertsKey(AlertFilter{Severity: "high"})
	if first.String() != "/alerts/?limit=5&severity=high" {
		t.Errorf("unexpected first page key %q", first.String())
	}

	third := b.AlertsKey(AlertFilter{Severity: "high", Page: 2})
	if third.Param("skip") != "10" || third.Param("limit") != "5" {
		t.Errorf("unexpected paging params in %q", third.String())
	}
}

func TestDetailKeys(t *testing.T) {
	if IncidentKey(42).Endpoint() != "/incidents/42" {
		t.Errorf("unexpected incident key %q", IncidentKey(42))
	}
	if AlertKey(7).Endpoint() != "/alerts/7" {
		t.Errorf("unexpected alert key %q", AlertKey(7))
	}
	if !IncidentKey(42).HasPrefix("/incidents") {
		t.Error("expected detail key to share the list prefix")
	}
}

func TestDefaultBindings(t *testing.T) {
	b := DefaultBindings()
	if b.DashboardOptions().RefetchInterval != 60*time.Second {
		t.Errorf("expected 60s dashboard refetch, got %v", b.DashboardOptions().RefetchInterval)
	}
	if b.ListOptions().RefetchInterval != 60*time.Second {
		t.Errorf("expected 60s list refetch, got %v", b.ListOptions().RefetchInterval)
	}
	if b.PageSize != 5 {
		t.Errorf("expected page size 5, got %d", b.PageSize)
	}
}

func TestSummary_TrimsRecentLists(t *testing.T) {
	b := Bindings{PageSize: 2}
	snap := querycache.Snapshot{
		Status: querycache.StatusSuccess,
		Data: json.RawMessage(`{
			"total_alerts": 9,
			"alerts_by_severity": {"critical": 2},
			"recent_alerts": [{"id":1},{"id":2},{"id":3}],
			"recent_incidents": [{"id":4}]
		}`),
	}

	summary, err := b.Summary(snap)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.TotalAlerts != 9 || summary.AlertsBySeverity["critical"] != 2 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if len(summary.RecentAlerts) != 2 {
		t.Errorf("expected 2 recent alerts, got %d", len(summary.RecentAlerts))
	}
	if len(summary.RecentIncidents) != 1 {
		t.Errorf("expected 1 recent incident, got %d", len(summary.RecentIncidents))
	}
}

func TestDecodeEmptyList(t *testing.T) {
	incidents, err := Incidents(querycache.Snapshot{Data: json.RawMessage(`[]`)})
	if err != nil {
		t.Fatalf("Incidents: %v", err)
	}
	if incidents == nil || len(incidents) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", incidents)
	}
}

func TestCycle(t *testing.T) {
	values := []string{"a", "b"}
	seq := []string{"a", "b", "", "a"}
	current := ""
	for _, want := range seq {
		current = Cycle(current, values)
		if current != want {
			t.Fatalf("Cycle() = %q, want %q", current, want)
		}
	}
}

func TestActiveIncidents(t *testing.T) {
	summary := &client.DashboardSummary{
		IncidentsByStatus: map[string]int{"new": 2, "investigating": 1, "resolved": 4, "closed": 3},
	}
	if got := ActiveIncidents(summary); got != 3 {
		t.Errorf("expected 3 active incidents, got %d", got)
	}
}

func TestValidateNewIncident(t *testing.T) {
	ok := &client.IncidentCreate{Title: "Beaconing host", Severity: "high", IncidentType: "malware"}
	if err := ValidateNewIncident(ok); err != nil {
		t.Errorf("expected valid incident, got %v", err)
	}

	missing := &client.IncidentCreate{Severity: "high", IncidentType: "malware"}
	if err := ValidateNewIncident(missing); err == nil {
		t.Error("expected missing title to be rejected")
	}

	badSeverity := &client.IncidentCreate{Title: "Beaconing host", Severity: "urgent", IncidentType: "malware"}
	if err := ValidateNewIncident(badSeverity); err == nil {
		t.Error("expected unknown severity to be rejected")
	}
}

func TestInvalidateIncidents_RefetchesListsAndDashboard(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]int{}
	fetcher := querycache.FetcherFunc(func(_ context.Context, key querykey.Key) (json.RawMessage, error) {
		mu.Lock()
		calls[key.Endpoint()]++
		mu.Unlock()
		return json.RawMessage(`[]`), nil
	})
	count := func(endpoint string) int {
		mu.Lock()
		defer mu.Unlock()
		return calls[endpoint]
	}

	cache := querycache.New(fetcher, querycache.Config{})
	defer cache.Close()

	b := DefaultBindings()
	for _, key := range []querykey.Key{b.IncidentsKey(IncidentFilter{}), IncidentKey(7), b.DashboardKey(), b.AlertsKey(AlertFilter{})} {
		sub, err := cache.Subscribe(key, querycache.Options{StaleTime: time.Hour}, nil)
		require.NoError(t, err)
		defer sub.Close()
	}
	require.Eventually(t, func() bool {
		return count("/incidents/") == 1 && count("/incidents/7") == 1 && count("/dashboard/summary") == 1 && count("/alerts/") == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, b.InvalidateIncidents(cache))

	require.Eventually(t, func() bool {
		return count("/incidents/") == 2 && count("/incidents/7") == 2 && count("/dashboard/summary") == 2
	}, time.Second, 10*time.Millisecond)
	if count("/alerts/") != 1 {
		t.Errorf("expected alerts to stay cached, got %d fetches", count("/alerts/"))
	}
}
