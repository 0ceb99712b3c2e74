// ABOUTME: Embedded huh forms for signing in and filing a new incident
// ABOUTME: Completed forms turn into API commands; failures rebuild the form with a message

package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/drake-forum/technoshield/internal/apierr"
	"github.com/drake-forum/technoshield/internal/client"
	"github.com/drake-forum/technoshield/internal/guard"
	"github.com/drake-forum/technoshield/internal/tui/styles"
	"github.com/drake-forum/technoshield/internal/views"
)

// formTheme matches huh to the console palette.
func formTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Group.Title = lipgloss.NewStyle().Foreground(styles.Primary).Bold(true).MarginBottom(1)
	t.Group.Description = lipgloss.NewStyle().Foreground(styles.Muted).MarginBottom(1)

	t.Focused.Base = lipgloss.NewStyle().
		PaddingLeft(1).
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(styles.Primary)
	t.Focused.Title = lipgloss.NewStyle().Foreground(styles.Accent).Bold(true)
	t.Focused.Description = lipgloss.NewStyle().Foreground(styles.Muted)
	t.Focused.ErrorIndicator = lipgloss.NewStyle().Foreground(styles.Danger).SetString(" *")
	t.Focused.ErrorMessage = lipgloss.NewStyle().Foreground(styles.Danger)
	t.Focused.SelectSelector = lipgloss.NewStyle().Foreground(styles.Primary).SetString("> ")
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(styles.Primary)
	t.Focused.TextInput.Cursor = lipgloss.NewStyle().Foreground(styles.Accent)
	t.Focused.TextInput.Prompt = lipgloss.NewStyle().Foreground(styles.Primary)

	t.Blurred = t.Focused
	t.Blurred.Base = lipgloss.NewStyle().
		PaddingLeft(1).
		BorderStyle(lipgloss.HiddenBorder()).
		BorderLeft(true)
	t.Blurred.Title = lipgloss.NewStyle().Foreground(styles.Muted)
	t.Blurred.SelectSelector = lipgloss.NewStyle().SetString("  ")

	return t
}

func required(name string) func(string) error {
	return func(s string) error {
		return validation.Validate(s, validation.Required.Error(name+" is required"))
	}
}

type loginForm struct {
	form     *huh.Form
	username string
	password string
	errText  string
}

func newLoginForm(username, errText string) *loginForm {
	f := &loginForm{username: username, errText: errText}
	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(&f.username).
				Validate(required("username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&f.password).
				Validate(required("password")),
		).Title("Sign in").
			Description("Use your analyst account. The session is shared with the CLI."),
	).WithTheme(formTheme()).WithShowHelp(false)
	return f
}

func loginError(err error) string {
	if apierr.IsAuthFailure(err) {
		return "Incorrect username or password"
	}
	return err.Error()
}

func (a *App) updateLogin(msg tea.Msg) tea.Cmd {
	if a.login == nil || a.busy {
		return nil
	}
	model, cmd := a.login.form.Update(msg)
	if f, ok := model.(*huh.Form); ok {
		a.login.form = f
	}
	if a.login.form.State != huh.StateCompleted {
		return cmd
	}

	a.busy = true
	a.login.errText = ""
	ctx, c := a.ctx, a.deps.Client
	username, password := a.login.username, a.login.password
	return func() tea.Msg {
		_, err := c.Login(ctx, username, password)
		return loginDoneMsg{err: err}
	}
}

type incidentForm struct {
	form         *huh.Form
	title        string
	description  string
	severity     string
	incidentType string
	affected     string
	errText      string
}

func newIncidentForm() *incidentForm {
	return buildIncidentForm(&incidentForm{severity: "medium", incidentType: "other"})
}

// retry rebuilds the form keeping what was typed.
func (f *incidentForm) retry(errText string) *incidentForm {
	return buildIncidentForm(&incidentForm{
		title:        f.title,
		description:  f.description,
		severity:     f.severity,
		incidentType: f.incidentType,
		affected:     f.affected,
		errText:      errText,
	})
}

func buildIncidentForm(f *incidentForm) *incidentForm {
	severities := make([]huh.Option[string], len(views.Severities))
	for i, s := range views.Severities {
		severities[i] = huh.NewOption(s, s)
	}
	types := make([]huh.Option[string], len(views.IncidentTypes))
	for i, t := range views.IncidentTypes {
		types[i] = huh.NewOption(t, t)
	}

	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				CharLimit(200).
				Value(&f.title).
				Validate(func(s string) error {
					return validation.Validate(s, validation.Required, validation.Length(3, 200))
				}),
			huh.NewText().
				Title("Description").
				Lines(3).
				Value(&f.description),
			huh.NewSelect[string]().
				Title("Severity").
				Options(severities...).
				Value(&f.severity),
			huh.NewSelect[string]().
				Title("Type").
				Options(types...).
				Value(&f.incidentType),
			huh.NewInput().
				Title("Affected systems").
				Placeholder("optional").
				Value(&f.affected),
		).Title("New incident"),
	).WithTheme(formTheme()).WithShowHelp(false)
	return f
}

func (f *incidentForm) request() client.IncidentCreate {
	return client.IncidentCreate{
		Title:           f.title,
		Description:     f.description,
		Severity:        f.severity,
		IncidentType:    f.incidentType,
		AffectedSystems: f.affected,
	}
}

func (a *App) updateCreate(msg tea.Msg) tea.Cmd {
	if a.create == nil || a.busy {
		return nil
	}
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		a.create = nil
		return a.back()
	}

	model, cmd := a.create.form.Update(msg)
	if f, ok := model.(*huh.Form); ok {
		a.create.form = f
	}
	if a.create.form.State != huh.StateCompleted {
		return cmd
	}

	in := a.create.request()
	if err := views.ValidateNewIncident(&in); err != nil {
		a.create = a.create.retry(err.Error())
		return a.create.form.Init()
	}

	a.busy = true
	ctx, c := a.ctx, a.deps.Client
	return func() tea.Msg {
		incident, err := c.CreateIncident(ctx, in)
		return incidentSavedMsg{incident: incident, created: true, err: err}
	}
}

// advanceIncident moves the open incident one step along its lifecycle.
func (a *App) advanceIncident() tea.Cmd {
	snap, ok := a.primary()
	if !ok || !snap.HasData() || a.busy {
		return nil
	}
	incident, err := views.Incident(snap)
	if err != nil {
		a.err = err
		return nil
	}
	next := nextStatus(incident.Status)
	if next == "" {
		a.notice = fmt.Sprintf("Incident #%d is already %s", incident.ID, incident.Status)
		return nil
	}

	a.busy = true
	ctx, c, id := a.ctx, a.deps.Client, incident.ID
	return func() tea.Msg {
		updated, err := c.UpdateIncident(ctx, id, client.IncidentUpdate{Status: &next})
		return incidentSavedMsg{incident: updated, err: err}
	}
}

func nextStatus(current string) string {
	for i, s := range views.IncidentStatuses {
		if s == current && i+1 < len(views.IncidentStatuses) {
			return views.IncidentStatuses[i+1]
		}
	}
	return ""
}

func (a *App) handleIncidentSaved(msg incidentSavedMsg) tea.Cmd {
	a.busy = false
	if msg.err != nil {
		a.logger.Warn("saving incident failed", "error", msg.err)
		if msg.created && a.create != nil {
			a.create = a.create.retry(msg.err.Error())
			return a.create.form.Init()
		}
		a.err = msg.err
		return nil
	}

	// Lists, details, and the dashboard all derive from incidents.
	if err := a.deps.Bindings.InvalidateIncidents(a.deps.Cache); err != nil {
		a.logger.Warn("invalidating incidents", "error", err)
	}

	if msg.created {
		cmd := a.navigate(guard.Target{Route: guard.RouteIncidentDetail, ID: msg.incident.ID})
		a.notice = fmt.Sprintf("Incident #%d created", msg.incident.ID)
		return cmd
	}
	a.notice = fmt.Sprintf("Incident #%d is now %s", msg.incident.ID, msg.incident.Status)
	return nil
}

// forwardToForm passes non-key messages to whichever form is showing.
func (a *App) forwardToForm(msg tea.Msg) tea.Cmd {
	switch a.screen {
	case ScreenLogin:
		return a.updateLogin(msg)
	case ScreenCreateIncident:
		return a.updateCreate(msg)
	default:
		return nil
	}
}
