// ABOUTME: Compact metric block for dashboard counters
// ABOUTME: Title in the top border, a big value, and a subtitle line

package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/drake-forum/technoshield/internal/tui/icons"
	"github.com/drake-forum/technoshield/internal/tui/styles"
)

// MetricBlock renders a bordered counter of the given outer width.
// value and subtitle may contain styled text.
func MetricBlock(icon icons.Icon, title, value, subtitle string, width int, accent lipgloss.Color) string {
	if width < 12 {
		width = 12
	}
	inner := width - 4

	border := lipgloss.NewStyle().Foreground(styles.Muted)
	titleText := truncate(icon.String()+" "+title, inner-1)
	top := border.Render("┌─ ") +
		lipgloss.NewStyle().Foreground(accent).Render(titleText) +
		border.Render(" "+strings.Repeat("─", max(0, inner-lipgloss.Width(titleText)-1))+"┐")

	valueStyle := lipgloss.NewStyle().Foreground(accent).Bold(true)
	lines := []string{
		top,
		row(valueStyle.Render(value), inner),
		row(subtitle, inner),
		border.Render("└" + strings.Repeat("─", width-2) + "┘"),
	}
	return strings.Join(lines, "\n")
}

func row(content string, inner int) string {
	border := lipgloss.NewStyle().Foreground(styles.Muted)
	pad := max(0, inner-lipgloss.Width(content))
	return border.Render("│ ") + content + strings.Repeat(" ", pad) + border.Render(" │")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
