// ABOUTME: Shared lipgloss styles for the analyst dashboard
// ABOUTME: Palette, panel borders, and the severity colour scale

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Core palette
	Primary   = lipgloss.Color("#06B6D4") // Cyan
	Secondary = lipgloss.Color("#10B981") // Green
	Warning   = lipgloss.Color("#F59E0B") // Amber
	Danger    = lipgloss.Color("#EF4444") // Red
	Muted     = lipgloss.Color("#6B7280") // Gray
	Text      = lipgloss.Color("#F9FAFB") // Light
	Accent    = lipgloss.Color("#22D3EE")
	Surface   = lipgloss.Color("#374151")
	Info      = lipgloss.Color("#3B82F6") // Blue

	// Severity scale
	SeverityCritical = Danger
	SeverityHigh     = lipgloss.Color("#F97316") // Orange
	SeverityMedium   = Warning
	SeverityLow      = Info

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(Muted)

	StatusOK = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	StatusWarning = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	StatusCritical = lipgloss.NewStyle().
			Foreground(Danger).
			Bold(true)

	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Muted).
		Padding(0, 1)

	ActivePanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 1)

	Help = lipgloss.NewStyle().
		Foreground(Muted).
		MarginTop(1)

	KeyStyle = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true)

	ValueStyle = lipgloss.NewStyle().
			Foreground(Text).
			Bold(true)

	Label = lipgloss.NewStyle().
		Foreground(Muted).
		Width(12)
)

// SeverityColor maps a backend severity to its colour.
func SeverityColor(severity string) lipgloss.Color {
	switch strings.ToLower(severity) {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium":
		return SeverityMedium
	case "low":
		return SeverityLow
	default:
		return Muted
	}
}
