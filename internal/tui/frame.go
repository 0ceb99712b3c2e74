// ABOUTME: Header and footer chrome around every screen
// ABOUTME: Shows the active view, key hints, polling state, and data age

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/drake-forum/technoshield/internal/tui/icons"
	"github.com/drake-forum/technoshield/internal/tui/styles"
)

const minTerminalWidth = 80

// frameWidth keeps one spare column so terminals that wrap on the last
// cell do not break the border.
func (a *App) frameWidth() int {
	width := a.width - 1
	if width < minTerminalWidth {
		width = minTerminalWidth
	}
	return width
}

func (a *App) renderHeader() string {
	width := a.frameWidth()

	borderStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	titleStyle := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
	contextStyle := lipgloss.NewStyle().Foreground(styles.Secondary)

	left := fmt.Sprintf(" %s %s ", icons.App.String(), titleStyle.Render("TechnoShield"))

	right := ""
	if title := a.screen.title(); title != "" {
		right = " " + contextStyle.Render(title) + " "
	}

	fill := width - 4 - lipgloss.Width(left) - lipgloss.Width(right)
	if fill < 0 {
		fill = 0
	}

	return borderStyle.Render("╭─") + left + borderStyle.Render(strings.Repeat("─", fill)) + right + borderStyle.Render("─╮")
}

func (a *App) renderFooter() string {
	width := a.frameWidth()

	borderStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	keyStyle := lipgloss.NewStyle().Foreground(styles.Primary)
	labelStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	statusStyle := lipgloss.NewStyle().Foreground(styles.Secondary)

	right := ""
	if a.screen.protected() && a.screen != ScreenCreateIncident {
		var parts []string
		if !a.focused {
			parts = append(parts, lipgloss.NewStyle().Foreground(styles.Warning).Render(icons.Pause.String()+" paused"))
		}
		if a.fetching() {
			parts = append(parts, statusStyle.Render(icons.Refresh.String()))
		}
		if !a.lastUpdate.IsZero() {
			parts = append(parts, statusStyle.Render("Updated "+formatTimeSince(a.now().Sub(a.lastUpdate))))
		}
		if len(parts) > 0 {
			right = " " + strings.Join(parts, " ") + " "
		}
	}

	// Narrow terminals lose the status first, then trailing shortcuts.
	shortcuts := a.screen.shortcuts()
	left := renderShortcuts(shortcuts, keyStyle, labelStyle)
	if width-4-lipgloss.Width(left)-lipgloss.Width(right) < 0 {
		right = ""
	}
	for width-4-lipgloss.Width(left) < 0 && len(shortcuts) > 1 {
		shortcuts = shortcuts[:len(shortcuts)-1]
		left = renderShortcuts(shortcuts, keyStyle, labelStyle)
	}
	fill := max(0, width-4-lipgloss.Width(left)-lipgloss.Width(right))

	return borderStyle.Render("╰─") + left + borderStyle.Render(strings.Repeat("─", fill)) + right + borderStyle.Render("─╯")
}

func renderShortcuts(shortcuts []string, keyStyle, labelStyle lipgloss.Style) string {
	styled := make([]string, 0, len(shortcuts))
	for _, s := range shortcuts {
		if key, label, ok := strings.Cut(s, " "); ok {
			styled = append(styled, keyStyle.Render(key)+" "+labelStyle.Render(label))
		} else {
			styled = append(styled, s)
		}
	}
	return " " + strings.Join(styled, "  ") + " "
}

// formatTimeSince renders an age in the coarsest useful unit.
func formatTimeSince(d time.Duration) string {
	if d < time.Minute {
		secs := int(d.Seconds())
		if secs < 5 {
			return "just now"
		}
		return fmt.Sprintf("%ds ago", secs)
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh ago", int(d.Hours()))
}

func (a *App) wrapWithFrame(content string) string {
	var sb strings.Builder
	sb.WriteString(a.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(content)
	sb.WriteString("\n")
	sb.WriteString(a.renderFooter())
	return sb.String()
}
