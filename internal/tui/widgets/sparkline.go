// ABOUTME: Sparkline widget for the alert count trend across refreshes
// ABOUTME: Scales values onto eight block heights

package widgets

import (
	"github.com/charmbracelet/lipgloss"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders the last width values, oldest first.
func Sparkline(values []float64, width int, color lipgloss.Color) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	out := make([]rune, len(values))
	for i, v := range values {
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparkBlocks)-1))
		}
		out[i] = sparkBlocks[idx]
	}
	return lipgloss.NewStyle().Foreground(color).Render(string(out))
}
