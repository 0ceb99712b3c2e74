// ABOUTME: Human-readable rendering shared by the list and detail commands
// ABOUTME: Tables use lipgloss so they match the dashboard look

package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/drake-forum/technoshield/internal/client"
	"github.com/drake-forum/technoshield/internal/views"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(false).
		Headers(headers...)
}

func incidentTable(items []client.Incident) string {
	if len(items) == 0 {
		return "No incidents match."
	}
	t := newTable("ID", "SEVERITY", "STATUS", "TYPE", "TITLE", "UPDATED")
	for _, inc := range items {
		t.Row(strconv.Itoa(inc.ID), strings.ToUpper(inc.Severity), inc.Status, inc.IncidentType, inc.Title, age(inc.UpdatedAt))
	}
	return t.String()
}

func alertTable(items []client.Alert) string {
	if len(items) == 0 {
		return "No alerts match."
	}
	t := newTable("ID", "SEVERITY", "STATUS", "SOURCE", "TITLE", "RAISED")
	for _, al := range items {
		t.Row(strconv.Itoa(al.ID), strings.ToUpper(al.Severity), al.Status, al.Source, al.Title, age(al.CreatedAt))
	}
	return t.String()
}

// countsLine renders "critical 2  high 5" in the given order, then any extra keys sorted.
func countsLine(counts map[string]int, order []string) string {
	seen := make(map[string]bool, len(order))
	var parts []string
	for _, k := range order {
		seen[k] = true
		parts = append(parts, fmt.Sprintf("%s %d", k, counts[k]))
	}
	var extra []string
	for k := range counts {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		parts = append(parts, fmt.Sprintf("%s %d", k, counts[k]))
	}
	return strings.Join(parts, "  ")
}

func formatChange(pct float64) string {
	if pct > 0 {
		return fmt.Sprintf("+%.1f%%", pct)
	}
	return fmt.Sprintf("%.1f%%", pct)
}

func formatSummaryHuman(s *client.DashboardSummary) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Alerts:            %d (%s)\n", s.TotalAlerts, formatChange(s.AlertsChange)))
	sb.WriteString(fmt.Sprintf("  by severity:     %s\n", countsLine(s.AlertsBySeverity, views.Severities)))
	sb.WriteString(fmt.Sprintf("Critical alerts:   %d (%s)\n", s.AlertsBySeverity["critical"], formatChange(s.CriticalAlertsChange)))
	sb.WriteString(fmt.Sprintf("Active incidents:  %d (%s)\n", views.ActiveIncidents(s), formatChange(s.ActiveIncidentsChange)))
	sb.WriteString(fmt.Sprintf("  by status:       %s\n", countsLine(s.IncidentsByStatus, views.IncidentStatuses)))
	sb.WriteString(fmt.Sprintf("Users:             %d\n", s.TotalUsers))

	sb.WriteString("\nRecent alerts\n")
	sb.WriteString(alertTable(s.RecentAlerts))
	sb.WriteString("\n\nRecent incidents\n")
	sb.WriteString(incidentTable(s.RecentIncidents))

	return sb.String()
}

func formatIncidentHuman(inc *client.Incident) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Incident #%d: %s\n", inc.ID, inc.Title))
	sb.WriteString(fmt.Sprintf("Severity:  %s\n", strings.ToUpper(inc.Severity)))
	sb.WriteString(fmt.Sprintf("Status:    %s\n", inc.Status))
	sb.WriteString(fmt.Sprintf("Type:      %s\n", inc.IncidentType))
	if inc.AffectedSystems != "" {
		sb.WriteString(fmt.Sprintf("Affected:  %s\n", inc.AffectedSystems))
	}
	if inc.DetectedAt != nil {
		sb.WriteString(fmt.Sprintf("Detected:  %s\n", inc.DetectedAt.Local().Format(time.RFC822)))
	}
	sb.WriteString(fmt.Sprintf("Updated:   %s\n", age(inc.UpdatedAt)))
	if inc.Description != "" {
		sb.WriteString("\n" + inc.Description + "\n")
	}
	if inc.ResolutionSummary != "" {
		sb.WriteString("\nResolution: " + inc.ResolutionSummary + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatAlertHuman(al *client.Alert) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Alert #%d: %s\n", al.ID, al.Title))
	sb.WriteString(fmt.Sprintf("Severity:  %s\n", strings.ToUpper(al.Severity)))
	sb.WriteString(fmt.Sprintf("Status:    %s\n", al.Status))
	sb.WriteString(fmt.Sprintf("Source:    %s (%s)\n", al.Source, al.AlertType))
	if al.SourceIP != "" || al.DestinationIP != "" {
		sb.WriteString(fmt.Sprintf("Flow:      %s -> %s\n", orDash(al.SourceIP), orDash(al.DestinationIP)))
	}
	if al.AffectedAsset != "" {
		sb.WriteString(fmt.Sprintf("Asset:     %s\n", al.AffectedAsset))
	}
	if al.IncidentID != nil {
		sb.WriteString(fmt.Sprintf("Incident:  #%d\n", *al.IncidentID))
	}
	sb.WriteString(fmt.Sprintf("Raised:    %s\n", age(al.CreatedAt)))
	if al.Description != "" {
		sb.WriteString("\n" + al.Description + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// age formats t relative to now, falling back to a date past a week.
func age(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Local().Format("2006-01-02")
	}
}
