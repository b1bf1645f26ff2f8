package styles

import "github.com/charmbracelet/lipgloss"

// Theme defines a complete color scheme for the application
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color

	TextPrimary lipgloss.Color
	TextMuted   lipgloss.Color
	TextInverse lipgloss.Color

	Error   lipgloss.Color
	Warning lipgloss.Color

	Border   lipgloss.Color
	Selected lipgloss.Color
}

var DarkTheme = Theme{
	Primary:   lipgloss.Color("#B39DDB"), // Deep Purple 200
	Secondary: lipgloss.Color("#90CAF9"), // Blue 200

	TextPrimary: lipgloss.Color("#E0E0E0"),
	TextMuted:   lipgloss.Color("#757575"),
	TextInverse: lipgloss.Color("#FFFFFF"),

	Error:   lipgloss.Color("#EF9A9A"),
	Warning: lipgloss.Color("#FFF59D"),

	Border:   lipgloss.Color("#333333"),
	Selected: lipgloss.Color("#5C5C7A"),
}

var LightTheme = Theme{
	Primary:   lipgloss.Color("#5E35B1"), // Deep Purple 600
	Secondary: lipgloss.Color("#1E88E5"), // Blue 600

	TextPrimary: lipgloss.Color("#212121"),
	TextMuted:   lipgloss.Color("#9E9E9E"),
	TextInverse: lipgloss.Color("#FFFFFF"),

	Error:   lipgloss.Color("#E53935"),
	Warning: lipgloss.Color("#F9A825"),

	Border:   lipgloss.Color("#E0E0E0"),
	Selected: lipgloss.Color("#D1C4E9"),
}

// CurrentTheme holds the active theme
var CurrentTheme = LightTheme

// Apply switches the active theme and rebuilds every style from it.
func Apply(dark bool) {
	if dark {
		CurrentTheme = DarkTheme
	} else {
		CurrentTheme = LightTheme
	}
	build(CurrentTheme)
}

func init() {
	build(CurrentTheme)
}
