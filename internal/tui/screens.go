// ABOUTME: Key handling, tables, and rendering for each console screen
// ABOUTME: List paging and filters, dashboard blocks, incident and alert details

package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/drake-forum/technoshield/internal/client"
	"github.com/drake-forum/technoshield/internal/guard"
	"github.com/drake-forum/technoshield/internal/querycache"
	"github.com/drake-forum/technoshield/internal/tui/icons"
	"github.com/drake-forum/technoshield/internal/tui/styles"
	"github.com/drake-forum/technoshield/internal/tui/widgets"
	"github.com/drake-forum/technoshield/internal/views"
)

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		return tea.Quit
	case "d":
		return a.goTo(guard.RouteDashboard)
	case "i":
		return a.goTo(guard.RouteIncidents)
	case "a":
		return a.goTo(guard.RouteAlerts)
	case "n":
		return a.goTo(guard.RouteIncidentNew)
	case "r":
		a.refresh()
		return nil
	case "o":
		if a.busy {
			return nil
		}
		return a.logout()
	case "b", "esc":
		return a.back()
	}

	switch a.screen {
	case ScreenIncidents, ScreenAlerts:
		return a.handleListKey(msg)
	case ScreenIncidentDetail:
		if msg.String() == "u" {
			return a.advanceIncident()
		}
	}
	return nil
}

func (a *App) goTo(route guard.Route) tea.Cmd {
	if a.target.Route == route {
		return nil
	}
	return a.open(guard.Target{Route: route})
}

func (a *App) handleListKey(msg tea.KeyMsg) tea.Cmd {
	incidents := a.screen == ScreenIncidents

	switch msg.String() {
	case "s":
		if incidents {
			a.incidentFilter.Severity = views.Cycle(a.incidentFilter.Severity, views.Severities)
			a.incidentFilter.Page = 0
		} else {
			a.alertFilter.Severity = views.Cycle(a.alertFilter.Severity, views.Severities)
			a.alertFilter.Page = 0
		}
		return a.navigate(a.target)

	case "t":
		if incidents {
			a.incidentFilter.Status = views.Cycle(a.incidentFilter.Status, views.IncidentStatuses)
			a.incidentFilter.Page = 0
		} else {
			a.alertFilter.Status = views.Cycle(a.alertFilter.Status, views.AlertStatuses)
			a.alertFilter.Page = 0
		}
		return a.navigate(a.target)

	case "left", "h":
		page := a.page()
		if page == 0 {
			return nil
		}
		a.setPage(page - 1)
		return a.navigate(a.target)

	case "right", "l":
		// A short page is the last one.
		if len(a.rowIDs) < a.deps.Bindings.PageSize {
			return nil
		}
		a.setPage(a.page() + 1)
		return a.navigate(a.target)

	case "enter":
		cursor := a.table.Cursor()
		if cursor < 0 || cursor >= len(a.rowIDs) {
			return nil
		}
		route := guard.RouteAlertDetail
		if incidents {
			route = guard.RouteIncidentDetail
		}
		return a.open(guard.Target{Route: route, ID: a.rowIDs[cursor]})
	}

	var cmd tea.Cmd
	a.table, cmd = a.table.Update(msg)
	return cmd
}

func (a *App) page() int {
	if a.screen == ScreenIncidents {
		return a.incidentFilter.Page
	}
	return a.alertFilter.Page
}

func (a *App) setPage(page int) {
	if a.screen == ScreenIncidents {
		a.incidentFilter.Page = page
	} else {
		a.alertFilter.Page = page
	}
}

func newTable() table.Model {
	t := table.New(table.WithFocused(true), table.WithHeight(views.DefaultPageSize+2))
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Muted).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#000000")).
		Background(styles.Primary).
		Bold(false)
	t.SetStyles(s)
	return t
}

// configureTable sets the columns for the current list screen. Rows are
// cleared first so they never outnumber the columns.
func (a *App) configureTable() {
	a.table.SetRows(nil)
	a.rowIDs = nil

	var cols []table.Column
	switch a.screen {
	case ScreenIncidents:
		cols = fitColumns(a.frameWidth()-4, []table.Column{
			{Title: "ID", Width: 6},
			{Title: "SEVERITY", Width: 9},
			{Title: "STATUS", Width: 13},
			{Title: "TYPE", Width: 19},
			{Title: "UPDATED", Width: 9},
			{Title: "TITLE"},
		})
	case ScreenAlerts:
		cols = fitColumns(a.frameWidth()-4, []table.Column{
			{Title: "ID", Width: 6},
			{Title: "SEVERITY", Width: 9},
			{Title: "STATUS", Width: 12},
			{Title: "SOURCE", Width: 14},
			{Title: "CREATED", Width: 9},
			{Title: "TITLE"},
		})
	default:
		return
	}
	a.table.SetColumns(cols)
	a.table.SetHeight(a.deps.Bindings.PageSize + 2)
	a.table.SetCursor(0)
	a.refreshRows()
}

// fitColumns gives the zero-width column whatever space remains. Each
// cell carries one column of padding on both sides.
func fitColumns(total int, cols []table.Column) []table.Column {
	used := 0
	for _, c := range cols {
		used += c.Width + 2
	}
	for i := range cols {
		if cols[i].Width == 0 {
			cols[i].Width = max(10, total-used-2)
		}
	}
	return cols
}

func (a *App) resizeTable() {
	if a.screen == ScreenIncidents || a.screen == ScreenAlerts {
		cursor := a.table.Cursor()
		a.configureTable()
		a.table.SetCursor(max(0, min(cursor, len(a.rowIDs)-1)))
	}
}

func (a *App) refreshRows() {
	snap, ok := a.primary()
	if !ok || !snap.HasData() {
		a.table.SetRows(nil)
		a.rowIDs = nil
		return
	}

	var rows []table.Row
	var ids []int
	now := a.now()
	switch a.screen {
	case ScreenIncidents:
		incidents, err := views.Incidents(snap)
		if err != nil {
			a.err = err
			return
		}
		for _, inc := range incidents {
			ids = append(ids, inc.ID)
			rows = append(rows, table.Row{
				strconv.Itoa(inc.ID), inc.Severity, inc.Status, inc.IncidentType,
				shortAge(now.Sub(inc.UpdatedAt)), inc.Title,
			})
		}
	case ScreenAlerts:
		alerts, err := views.Alerts(snap)
		if err != nil {
			a.err = err
			return
		}
		for _, al := range alerts {
			ids = append(ids, al.ID)
			rows = append(rows, table.Row{
				strconv.Itoa(al.ID), al.Severity, al.Status, al.Source,
				shortAge(now.Sub(al.CreatedAt)), al.Title,
			})
		}
	default:
		return
	}

	a.rowIDs = ids
	a.table.SetRows(rows)
	// An empty table parks the cursor at -1; bring it back once rows exist.
	switch cursor := a.table.Cursor(); {
	case cursor >= len(rows):
		a.table.SetCursor(max(0, len(rows)-1))
	case cursor < 0 && len(rows) > 0:
		a.table.SetCursor(0)
	}
}

func shortAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func (a *App) viewContent() string {
	switch a.screen {
	case ScreenLoading:
		return "\n  " + a.spinner.View() + " Checking session...\n"
	case ScreenLogin:
		return a.viewLogin()
	case ScreenCreateIncident:
		return a.viewCreate()
	}

	snap, gate, ok := a.gate()
	if !ok {
		return a.withBanner(snap, gate)
	}

	var body string
	switch a.screen {
	case ScreenDashboard:
		body = a.viewDashboard(snap)
	case ScreenIncidents:
		body = a.viewList("Incidents", a.incidentFilter.Severity, a.incidentFilter.Status, a.incidentFilter.Page, "No incidents match.")
	case ScreenAlerts:
		body = a.viewList("Alerts", a.alertFilter.Severity, a.alertFilter.Status, a.alertFilter.Page, "No alerts match.")
	case ScreenIncidentDetail:
		body = a.viewIncident(snap)
	case ScreenAlertDetail:
		body = a.viewAlert(snap)
	}
	return a.withBanner(snap, body)
}

// gate returns placeholder content until the view's first payload exists.
func (a *App) gate() (querycache.Snapshot, string, bool) {
	snap, ok := a.primary()
	if !ok || (!snap.HasData() && snap.Status != querycache.StatusError) {
		return snap, "\n  " + a.spinner.View() + " Loading...", false
	}
	if !snap.HasData() {
		msg := fmt.Sprintf("%s Could not load: %v", icons.Critical.String(), snap.Err)
		return snap, "\n  " + styles.StatusCritical.Render(msg) + "\n  " + styles.Subtitle.Render("press r to retry"), false
	}
	return snap, "", true
}

// withBanner prefixes notices, action errors, and refresh failures that
// left cached data on screen.
func (a *App) withBanner(snap querycache.Snapshot, body string) string {
	var lines []string
	if a.notice != "" {
		lines = append(lines, styles.StatusOK.Render(icons.CheckOK.String()+" "+a.notice))
	}
	if a.err != nil {
		lines = append(lines, styles.StatusCritical.Render(icons.Critical.String()+" "+a.err.Error()))
	}
	if snap.HasData() && snap.Err != nil {
		msg := fmt.Sprintf("%s Refresh failed after %d attempts, showing cached data: %v", icons.Warning.String(), snap.FailureCount, snap.Err)
		lines = append(lines, styles.StatusWarning.Render(msg))
	}
	if a.busy {
		lines = append(lines, a.spinner.View()+" Working...")
	}
	if len(lines) == 0 {
		return body
	}
	return strings.Join(lines, "\n") + "\n" + body
}

func (a *App) viewLogin() string {
	var sb strings.Builder
	sb.WriteString("\n")
	if a.login != nil {
		if a.login.errText != "" {
			sb.WriteString(styles.StatusCritical.Render(icons.Lock.String()+" "+a.login.errText) + "\n\n")
		}
		sb.WriteString(a.login.form.View())
	}
	if a.busy {
		sb.WriteString("\n" + a.spinner.View() + " Signing in...")
	}
	return sb.String()
}

func (a *App) viewCreate() string {
	var sb strings.Builder
	sb.WriteString("\n")
	if a.create != nil {
		if a.create.errText != "" {
			sb.WriteString(styles.StatusCritical.Render(a.create.errText) + "\n\n")
		}
		sb.WriteString(a.create.form.View())
	}
	if a.busy {
		sb.WriteString("\n" + a.spinner.View() + " Filing incident...")
	}
	return sb.String()
}

func (a *App) viewDashboard(snap querycache.Snapshot) string {
	summary, err := a.deps.Bindings.Summary(snap)
	if err != nil {
		return styles.StatusCritical.Render("Unreadable summary: " + err.Error())
	}

	width := a.frameWidth() - 2
	blockWidth := (width - 3) / 4
	critical := summary.AlertsBySeverity["critical"]
	active := views.ActiveIncidents(summary)

	criticalColor := styles.Secondary
	if critical > 0 {
		criticalColor = styles.Danger
	}

	blocks := lipgloss.JoinHorizontal(lipgloss.Top,
		widgets.MetricBlock(icons.Alert, "Alerts", strconv.Itoa(summary.TotalAlerts), widgets.DeltaBadge(summary.AlertsChange), blockWidth, styles.Primary),
		" ",
		widgets.MetricBlock(icons.Critical, "Critical", strconv.Itoa(critical), widgets.DeltaBadge(summary.CriticalAlertsChange), blockWidth, criticalColor),
		" ",
		widgets.MetricBlock(icons.Incident, "Active", strconv.Itoa(active), widgets.DeltaBadge(summary.ActiveIncidentsChange), blockWidth, styles.Warning),
		" ",
		widgets.MetricBlock(icons.Users, "Users", strconv.Itoa(summary.TotalUsers), styles.Subtitle.Render("analysts"), blockWidth, styles.Info),
	)

	var sb strings.Builder
	sb.WriteString(blocks + "\n")
	sb.WriteString(severityLine(summary.AlertsBySeverity) + "\n")
	if len(a.trend) > 1 {
		sb.WriteString(styles.Subtitle.Render("Alert trend ") + widgets.Sparkline(a.trend, maxTrend, styles.Primary) + "\n")
	}

	sb.WriteString("\n" + styles.Title.Render(icons.Alert.String()+" Recent alerts") + "\n")
	if len(summary.RecentAlerts) == 0 {
		sb.WriteString(styles.Subtitle.Render("  none") + "\n")
	}
	for _, al := range summary.RecentAlerts {
		sb.WriteString(recentLine(al.Severity, al.Status, fmt.Sprintf("#%d %s", al.ID, al.Title), width) + "\n")
	}

	sb.WriteString("\n" + styles.Title.Render(icons.Incident.String()+" Recent incidents") + "\n")
	if len(summary.RecentIncidents) == 0 {
		sb.WriteString(styles.Subtitle.Render("  none") + "\n")
	}
	for _, inc := range summary.RecentIncidents {
		sb.WriteString(recentLine(inc.Severity, inc.Status, fmt.Sprintf("#%d %s", inc.ID, inc.Title), width) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func severityLine(counts map[string]int) string {
	parts := make([]string, 0, len(views.Severities))
	for _, sev := range views.Severities {
		style := lipgloss.NewStyle().Foreground(styles.SeverityColor(sev))
		parts = append(parts, style.Render(fmt.Sprintf("%s %d", sev, counts[sev])))
	}
	return " " + strings.Join(parts, styles.Subtitle.Render("  ·  "))
}

func recentLine(severity, status, text string, width int) string {
	badge := widgets.SeverityBadge(severity)
	st := widgets.StatusText(status)
	room := width - lipgloss.Width(badge) - lipgloss.Width(st) - 4
	if room < 10 {
		room = 10
	}
	text = truncateText(text, room)
	pad := max(0, room-lipgloss.Width(text))
	return " " + badge + " " + text + strings.Repeat(" ", pad) + " " + st
}

func truncateText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func (a *App) viewList(title, severity, status string, page int, empty string) string {
	filter := fmt.Sprintf("severity: %s   status: %s   page: %d", orAny(severity), orAny(status), page+1)

	var sb strings.Builder
	sb.WriteString(styles.Title.Render(title) + "\n")
	sb.WriteString(styles.Subtitle.Render(filter) + "\n\n")
	if len(a.rowIDs) == 0 {
		sb.WriteString(styles.Subtitle.Render(empty))
		return sb.String()
	}
	sb.WriteString(a.table.View())
	return sb.String()
}

func orAny(s string) string {
	if s == "" {
		return "any"
	}
	return s
}

func field(label, value string) string {
	if value == "" {
		value = "-"
	}
	return styles.Label.Render(label) + " " + value + "\n"
}

func timeField(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func (a *App) viewIncident(snap querycache.Snapshot) string {
	inc, err := views.Incident(snap)
	if err != nil {
		return styles.StatusCritical.Render("Unreadable incident: " + err.Error())
	}

	var sb strings.Builder
	sb.WriteString(styles.Title.Render(fmt.Sprintf("%s Incident #%d: %s", icons.Incident.String(), inc.ID, inc.Title)) + "\n")
	sb.WriteString(field("Severity", widgets.SeverityBadge(inc.Severity)))
	sb.WriteString(field("Status", widgets.StatusText(inc.Status)))
	sb.WriteString(field("Type", inc.IncidentType))
	sb.WriteString(field("Affected", inc.AffectedSystems))
	sb.WriteString(field("Detected", timeField(inc.DetectedAt)))
	sb.WriteString(field("Resolved", timeField(inc.ResolvedAt)))
	sb.WriteString(field("Updated", formatTimeSince(a.now().Sub(inc.UpdatedAt))))
	sb.WriteString("\n" + wrapText(inc.Description, a.frameWidth()-4) + "\n")
	if inc.ResolutionSummary != "" {
		sb.WriteString("\n" + styles.Subtitle.Render("Resolution") + "\n" + wrapText(inc.ResolutionSummary, a.frameWidth()-4) + "\n")
	}
	if next := nextStatus(inc.Status); next != "" {
		sb.WriteString("\n" + styles.Help.Render("u marks it "+next))
	}
	return sb.String()
}

func (a *App) viewAlert(snap querycache.Snapshot) string {
	al, err := views.Alert(snap)
	if err != nil {
		return styles.StatusCritical.Render("Unreadable alert: " + err.Error())
	}

	var sb strings.Builder
	sb.WriteString(styles.Title.Render(fmt.Sprintf("%s Alert #%d: %s", icons.Alert.String(), al.ID, al.Title)) + "\n")
	sb.WriteString(field("Severity", widgets.SeverityBadge(al.Severity)))
	sb.WriteString(field("Status", widgets.StatusText(al.Status)))
	sb.WriteString(field("Type", al.AlertType))
	sb.WriteString(field("Source", al.Source))
	sb.WriteString(field("Source IP", al.SourceIP))
	sb.WriteString(field("Dest IP", al.DestinationIP))
	sb.WriteString(field("Asset", al.AffectedAsset))
	sb.WriteString(field("Incident", incidentRef(al)))
	sb.WriteString(field("Created", formatTimeSince(a.now().Sub(al.CreatedAt))))
	sb.WriteString("\n" + wrapText(al.Description, a.frameWidth()-4))
	if al.ResolutionNotes != "" {
		sb.WriteString("\n\n" + styles.Subtitle.Render("Resolution") + "\n" + wrapText(al.ResolutionNotes, a.frameWidth()-4))
	}
	return sb.String()
}

func incidentRef(al *client.Alert) string {
	if al.IncidentID == nil {
		return ""
	}
	return "#" + strconv.Itoa(*al.IncidentID)
}

func wrapText(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}
