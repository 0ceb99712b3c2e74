// ABOUTME: Inline badges for severity, status, and week-over-week change
// ABOUTME: Colours follow the shared severity scale

package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/drake-forum/technoshield/internal/tui/icons"
	"github.com/drake-forum/technoshield/internal/tui/styles"
)

// Level is how alarming a value is.
type Level int

const (
	LevelOK Level = iota
	LevelWarning
	LevelCritical
	LevelInfo
	LevelNeutral
)

func (l Level) colors() (bg, fg lipgloss.Color) {
	switch l {
	case LevelOK:
		return styles.Secondary, lipgloss.Color("#FFFFFF")
	case LevelWarning:
		return styles.Warning, lipgloss.Color("#000000")
	case LevelCritical:
		return styles.Danger, lipgloss.Color("#FFFFFF")
	case LevelInfo:
		return styles.Info, lipgloss.Color("#FFFFFF")
	default:
		return styles.Muted, lipgloss.Color("#FFFFFF")
	}
}

// Badge renders text on a coloured background.
func Badge(text string, level Level) string {
	bg, fg := level.colors()
	return lipgloss.NewStyle().
		Background(bg).
		Foreground(fg).
		Padding(0, 1).
		Bold(true).
		Render(text)
}

// SeverityBadge renders a fixed-width severity label.
func SeverityBadge(severity string) string {
	fg := lipgloss.Color("#FFFFFF")
	if strings.EqualFold(severity, "medium") {
		fg = lipgloss.Color("#000000")
	}
	return lipgloss.NewStyle().
		Background(styles.SeverityColor(severity)).
		Foreground(fg).
		Bold(true).
		Width(10).
		Align(lipgloss.Center).
		Render(strings.ToUpper(severity))
}

// StatusLevel maps incident and alert statuses onto levels.
func StatusLevel(status string) Level {
	switch status {
	case "new", "open":
		return LevelCritical
	case "investigating", "acknowledged":
		return LevelWarning
	case "mitigated":
		return LevelInfo
	case "resolved", "closed":
		return LevelOK
	default:
		return LevelNeutral
	}
}

// StatusText renders a status with its icon.
func StatusText(status string) string {
	level := StatusLevel(status)
	bg, _ := level.colors()

	var icon string
	switch level {
	case LevelOK:
		icon = icons.CheckOK.String()
	case LevelWarning:
		icon = icons.Warning.String()
	case LevelCritical:
		icon = icons.Critical.String()
	case LevelInfo:
		icon = icons.Info.String()
	default:
		icon = "•"
	}
	style := lipgloss.NewStyle().Foreground(bg)
	return fmt.Sprintf("%s %s", style.Render(icon), style.Render(status))
}

// DeltaBadge renders a percentage change. For alert and incident counts an
// increase is bad, so positive deltas are shown as warnings.
func DeltaBadge(pct float64) string {
	switch {
	case pct > 0:
		return Badge(fmt.Sprintf("%s +%.0f%%", icons.TrendUp.String(), pct), LevelWarning)
	case pct < 0:
		return Badge(fmt.Sprintf("%s %.0f%%", icons.TrendDown.String(), pct), LevelOK)
	default:
		return Badge("0%", LevelNeutral)
	}
}
