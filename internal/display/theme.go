package display

import "github.com/charmbracelet/lipgloss"

// ---------------------------------------------------------------------------
// Catppuccin Mocha palette — true-color hex values
// https://catppuccin.com/palette
// ---------------------------------------------------------------------------

const (
	colorRed      lipgloss.Color = "#f38ba8"
	colorPeach    lipgloss.Color = "#fab387"
	colorYellow   lipgloss.Color = "#f9e2af"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorTeal     lipgloss.Color = "#94e2d5"
	colorSky      lipgloss.Color = "#89dceb"
	colorBlue     lipgloss.Color = "#89b4fa"
	colorMauve    lipgloss.Color = "#cba6f7"
	colorLavender lipgloss.Color = "#b4befe"

	colorText     lipgloss.Color = "#cdd6f4"
	colorSubtext0 lipgloss.Color = "#a6adc8"
	colorOverlay1 lipgloss.Color = "#7f849c"
	colorSurface2 lipgloss.Color = "#585b70"
)

// Semantic aliases.
const (
	colorSafe    = colorGreen
	colorCaution = colorYellow
	colorNoQuote = colorRed
	colorAccent  = colorSky
	colorBrand   = colorLavender
)

// ---------------------------------------------------------------------------
// Styles
// ---------------------------------------------------------------------------

var (
	titleStyle = lipgloss.NewStyle().Foreground(colorBrand).Bold(true)

	headerStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)

	tableHeaderStyle = lipgloss.NewStyle().Foreground(colorSubtext0).Bold(true)

	dimStyle = lipgloss.NewStyle().Foreground(colorOverlay1)

	sepStyle = lipgloss.NewStyle().Foreground(colorSurface2)

	safeStyle    = lipgloss.NewStyle().Foreground(colorSafe).Bold(true)
	cautionStyle = lipgloss.NewStyle().Foreground(colorCaution).Bold(true)
	noQuoteStyle = lipgloss.NewStyle().Foreground(colorNoQuote).Bold(true)

	clearedStyle = lipgloss.NewStyle().Foreground(colorTeal)

	goodStyle = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle = lipgloss.NewStyle().Foreground(colorYellow)
	badStyle  = lipgloss.NewStyle().Foreground(colorRed)

	triggerStyle = lipgloss.NewStyle().Foreground(colorRed).Bold(true)

	staleStyle = lipgloss.NewStyle().Foreground(colorRed).Bold(true)

	footerStyle = lipgloss.NewStyle().Foreground(colorSubtext0)

	statusStyle = lipgloss.NewStyle().Foreground(colorPeach)

	helpHeadingStyle = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
)

// regimeStyle maps a regime name to its display style.
func regimeStyle(regime string) lipgloss.Style {
	switch regime {
	case "SAFE":
		return safeStyle
	case "CAUTION":
		return cautionStyle
	default:
		return noQuoteStyle
	}
}

// depthStyle bands order-book depth: deep books green, thin books red.
func depthStyle(depth int) lipgloss.Style {
	switch {
	case depth >= 1000:
		return goodStyle
	case depth >= 300:
		return warnStyle
	default:
		return badStyle
	}
}

// latencyStyle bands a latency reading against its warn/bad thresholds.
func latencyStyle(ms, warn, bad float64) lipgloss.Style {
	switch {
	case ms < warn:
		return goodStyle
	case ms < bad:
		return warnStyle
	default:
		return badStyle
	}
}

// moveStyle bands an adverse move headline in cents by severity.
func moveStyle(cents float64) lipgloss.Style {
	switch {
	case cents >= 10:
		return badStyle
	case cents >= 5:
		return warnStyle
	default:
		return goodStyle
	}
}
