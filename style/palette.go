package style

import "github.com/charmbracelet/lipgloss"

// Semantic colors of the player output.
var (
	Text   = lipgloss.Color("#cdd6f4")
	Mauve  = lipgloss.Color("#cba6f7")
	Red    = lipgloss.Color("#f38ba8")
	Peach  = lipgloss.Color("#fab387")
	Yellow = lipgloss.Color("#f9e2af")
	Green  = lipgloss.Color("#a6e3a1")
	Sky    = lipgloss.Color("#89dceb")

	AccentColor  = Mauve
	WarningColor = Yellow
	ErrorColor   = Red

	PlayingColor = Green
	PausedColor  = Yellow
	StoppedColor = Sky
	VolumeColor  = Peach
)
