// ABOUTME: Declares which cache key and options each console screen subscribes to
// ABOUTME: Validates list filters and decodes cached payloads into typed records

package views

import (
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/drake-forum/technoshield/internal/client"
	"github.com/drake-forum/technoshield/internal/querycache"
	"github.com/drake-forum/technoshield/internal/querykey"
)

// Allowed filter values.
var (
	Severities       = []string{"critical", "high", "medium", "low"}
	IncidentStatuses = []string{"new", "investigating", "mitigated", "resolved", "closed"}
	AlertStatuses    = []string{"open", "acknowledged", "resolved"}
	IncidentTypes    = []string{"malware", "ransomware", "phishing", "data_breach", "ddos", "unauthorized_access", "other"}
)

// Defaults for Bindings.
const (
	DefaultDashboardRefetch = 60 * time.Second
	DefaultListRefetch      = 60 * time.Second
	DefaultPageSize         = 5
)

// IncidentFilter parameterizes the incident list. Empty fields mean "any".
type IncidentFilter struct {
	Severity string
	Status   string
	Page     int
}

// Validate checks the filter against the values the backend accepts.
func (f IncidentFilter) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Severity, validation.In(toAny(Severities)...)),
		validation.Field(&f.Status, validation.In(toAny(IncidentStatuses)...)),
		validation.Field(&f.Page, validation.Min(0)),
	)
}

// AlertFilter parameterizes the alert list. Empty fields mean "any".
type AlertFilter struct {
	Severity string
	Status   string
	Page     int
}

// Validate checks the filter against the values the backend accepts.
func (f AlertFilter) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Severity, validation.In(toAny(Severities)...)),
		validation.Field(&f.Status, validation.In(toAny(AlertStatuses)...)),
		validation.Field(&f.Page, validation.Min(0)),
	)
}

// Bindings holds the polling and paging settings shared by all screens.
type Bindings struct {
	DashboardRefetch time.Duration
	ListRefetch      time.Duration
	PageSize         int
}

// DefaultBindings returns the stock polling and paging settings.
func DefaultBindings() Bindings {
	return Bindings{
		DashboardRefetch: DefaultDashboardRefetch,
		ListRefetch:      DefaultListRefetch,
		PageSize:         DefaultPageSize,
	}
}

// DashboardKey identifies the dashboard summary.
func (b Bindings) DashboardKey() querykey.Key {
	return querykey.New(client.PathDashboardSummary, nil)
}

// DashboardOptions polls the summary every DashboardRefetch.
func (b Bindings) DashboardOptions() querycache.Options {
	return querycache.Options{RefetchInterval: b.DashboardRefetch}
}

// IncidentsKey identifies one page of the filtered incident list.
func (b Bindings) IncidentsKey(f IncidentFilter) querykey.Key {
	return querykey.New(client.PathIncidents, b.listParams(f.Severity, f.Status, f.Page))
}

// AlertsKey identifies one page of the filtered alert list.
func (b Bindings) AlertsKey(f AlertFilter) querykey.Key {
	return querykey.New(client.PathAlerts, b.listParams(f.Severity, f.Status, f.Page))
}

// ListOptions polls list screens every ListRefetch.
func (b Bindings) ListOptions() querycache.Options {
	return querycache.Options{RefetchInterval: b.ListRefetch}
}

// IncidentKey identifies a single incident.
func IncidentKey(id int) querykey.Key {
	return querykey.New(client.IncidentPath(id), nil)
}

// AlertKey identifies a single alert.
func AlertKey(id int) querykey.Key {
	return querykey.New(client.AlertPath(id), nil)
}

// DetailOptions fetch once on mount; detail screens do not poll.
func DetailOptions() querycache.Options {
	return querycache.Options{}
}

func (b Bindings) listParams(severity, status string, page int) map[string]string {
	params := map[string]string{
		"severity": severity,
		"status":   status,
	}
	if b.PageSize > 0 {
		params["limit"] = strconv.Itoa(b.PageSize)
		if page > 0 {
			params["skip"] = strconv.Itoa(page * b.PageSize)
		}
	}
	return params
}

// Summary decodes a dashboard snapshot, trimming the recent lists to the page size.
func (b Bindings) Summary(snap querycache.Snapshot) (*client.DashboardSummary, error) {
	summary, err := client.Decode[client.DashboardSummary](snap.Data)
	if err != nil {
		return nil, err
	}
	if b.PageSize > 0 {
		if len(summary.RecentAlerts) > b.PageSize {
			summary.RecentAlerts = summary.RecentAlerts[:b.PageSize]
		}
		if len(summary.RecentIncidents) > b.PageSize {
			summary.RecentIncidents = summary.RecentIncidents[:b.PageSize]
		}
	}
	return &summary, nil
}

// Incidents decodes an incident list snapshot.
func Incidents(snap querycache.Snapshot) ([]client.Incident, error) {
	return client.Decode[[]client.Incident](snap.Data)
}

// Incident decodes a single incident snapshot.
func Incident(snap querycache.Snapshot) (*client.Incident, error) {
	incident, err := client.Decode[client.Incident](snap.Data)
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

// Alerts decodes an alert list snapshot.
func Alerts(snap querycache.Snapshot) ([]client.Alert, error) {
	return client.Decode[[]client.Alert](snap.Data)
}

// Alert decodes a single alert snapshot.
func Alert(snap querycache.Snapshot) (*client.Alert, error) {
	alert, err := client.Decode[client.Alert](snap.Data)
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// ActiveIncidents counts incidents that are neither resolved nor closed.
func ActiveIncidents(summary *client.DashboardSummary) int {
	n := 0
	for status, count := range summary.IncidentsByStatus {
		if status != "resolved" && status != "closed" {
			n += count
		}
	}
	return n
}

// ValidateNewIncident checks a create request before it is sent.
func ValidateNewIncident(in *client.IncidentCreate) error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Title, validation.Required, validation.Length(3, 200)),
		validation.Field(&in.Severity, validation.Required, validation.In(toAny(Severities)...)),
		validation.Field(&in.IncidentType, validation.Required, validation.In(toAny(IncidentTypes)...)),
	)
}

// InvalidateIncidents marks every incident key and the dashboard stale after
// an incident was created or changed.
func (b Bindings) InvalidateIncidents(cache *querycache.Cache) error {
	if err := cache.InvalidatePrefix(client.PathIncidents); err != nil {
		return err
	}
	return cache.Invalidate(b.DashboardKey())
}

// Cycle returns the value after current in "" + values, wrapping around.
func Cycle(current string, values []string) string {
	if current == "" {
		return values[0]
	}
	for i, v := range values {
		if v == current {
			if i+1 < len(values) {
				return values[i+1]
			}
			return ""
		}
	}
	return ""
}

func toAny(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
