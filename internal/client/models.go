// ABOUTME: Backend payload types for alerts, incidents, and the dashboard
// ABOUTME: Field names follow the JSON the backend sends

package client

import "time"

// Incident is a security incident as returned by the backend.
type Incident struct {
	ID                int        `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Severity          string     `json:"severity"`
	Status            string     `json:"status"`
	IncidentType      string     `json:"incident_type"`
	AffectedSystems   string     `json:"affected_systems,omitempty"`
	ImpactAssessment  string     `json:"impact_assessment,omitempty"`
	ResponseStrategy  string     `json:"response_strategy,omitempty"`
	ResolutionSummary string     `json:"resolution_summary,omitempty"`
	LessonsLearned    string     `json:"lessons_learned,omitempty"`
	AssignedToID      *int       `json:"assigned_to_id,omitempty"`
	DetectedAt        *time.Time `json:"detected_at,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Alert is a single detection raised by a monitoring source.
type Alert struct {
	ID              int        `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Severity        string     `json:"severity"`
	Status          string     `json:"status"`
	Source          string     `json:"source"`
	SourceIP        string     `json:"source_ip,omitempty"`
	DestinationIP   string     `json:"destination_ip,omitempty"`
	AffectedAsset   string     `json:"affected_asset,omitempty"`
	AlertType       string     `json:"alert_type"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
	IncidentID      *int       `json:"incident_id,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// DashboardSummary represents the /dashboard/summary endpoint response
type DashboardSummary struct {
	TotalAlerts           int            `json:"total_alerts"`
	AlertsChange          float64        `json:"alerts_change"`
	AlertsBySeverity      map[string]int `json:"alerts_by_severity"`
	CriticalAlertsChange  float64        `json:"critical_alerts_change"`
	IncidentsByStatus     map[string]int `json:"incidents_by_status"`
	ActiveIncidentsChange float64        `json:"active_incidents_change"`
	TotalUsers            int            `json:"total_users"`
	RecentAlerts          []Alert        `json:"recent_alerts"`
	RecentIncidents       []Incident     `json:"recent_incidents"`
}

// IncidentCreate is the body of POST /incidents/.
type IncidentCreate struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Severity        string `json:"severity"`
	IncidentType    string `json:"incident_type"`
	AffectedSystems string `json:"affected_systems,omitempty"`
}

// IncidentUpdate is the body of PUT /incidents/:id. Nil fields are left unchanged.
type IncidentUpdate struct {
	Title             *string `json:"title,omitempty"`
	Description       *string `json:"description,omitempty"`
	Severity          *string `json:"severity,omitempty"`
	Status            *string `json:"status,omitempty"`
	ResolutionSummary *string `json:"resolution_summary,omitempty"`
	AssignedToID      *int    `json:"assigned_to_id,omitempty"`
}

// Token is the body returned by /auth/login.
type Token struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
}
