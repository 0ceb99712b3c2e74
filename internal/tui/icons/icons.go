// ABOUTME: Icon set with Nerd Font detection and Unicode fallback
// ABOUTME: Keeps glyphs consistent across terminals with different fonts

package icons

import (
	"os"
	"strings"
	"sync"
)

var (
	useNerdFonts     bool
	nerdFontDetected sync.Once
)

func detectNerdFonts() bool {
	if env := os.Getenv("TECHNOSHIELD_NERD_FONTS"); env != "" {
		return env == "1" || strings.EqualFold(env, "true")
	}

	term := os.Getenv("TERM")
	termProgram := os.Getenv("TERM_PROGRAM")
	for _, t := range []string{"iTerm.app", "alacritty", "WezTerm", "kitty", "ghostty"} {
		if strings.Contains(termProgram, t) || strings.Contains(term, strings.ToLower(t)) {
			return true
		}
	}
	return os.Getenv("NERD_FONTS") == "1"
}

// HasNerdFonts returns true if Nerd Fonts are available
func HasNerdFonts() bool {
	nerdFontDetected.Do(func() {
		useNerdFonts = detectNerdFonts()
	})
	return useNerdFonts
}

// Icon has a Nerd Font glyph and a plain Unicode fallback.
type Icon struct {
	NerdFont string
	Fallback string
}

func (i Icon) String() string {
	if HasNerdFonts() {
		return i.NerdFont
	}
	return i.Fallback
}

var (
	App      = Icon{"󰒃", "⛊"} // nf-md-shield_check
	Alert    = Icon{"󰀦", "⚑"} // nf-md-alert
	Incident = Icon{"󰈸", "✶"} // nf-md-fire
	Users    = Icon{"󰀎", "☺"} // nf-md-account_multiple
	Lock     = Icon{"󰌾", "⚿"} // nf-md-lock

	CheckOK  = Icon{"", "✓"} // nf-oct-check_circle
	Warning  = Icon{"", "⚠"} // nf-oct-alert
	Critical = Icon{"", "✗"} // nf-oct-x_circle
	Info     = Icon{"", "ℹ"} // nf-oct-info

	TrendUp   = Icon{"󰄬", "↗"} // nf-md-trending_up
	TrendDown = Icon{"󰄰", "↘"} // nf-md-trending_down

	Refresh = Icon{"󰑓", "↻"} // nf-md-refresh
	Pause   = Icon{"󰏤", "‖"} // nf-md-pause
	Back    = Icon{"󰁍", "←"} // nf-md-arrow_left
	Quit    = Icon{"󰗼", "×"} // nf-md-exit_to_app
)
