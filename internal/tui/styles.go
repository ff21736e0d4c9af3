package tui

import "github.com/charmbracelet/lipgloss"

// Dashboard color palette.
const (
	ColorBorder   = lipgloss.Color("#2A2A4A")
	ColorHealthy  = lipgloss.Color("#39FF14") // idle, plenty of headroom
	ColorWarning  = lipgloss.Color("#FFAA00") // partially loaded
	ColorCritical = lipgloss.Color("#FF0055") // busy or broken

	ColorTextPrimary   = lipgloss.Color("#FFFFFF")
	ColorTextSecondary = lipgloss.Color("#B4B4D0")
	ColorTextMuted     = lipgloss.Color("#6B6B8D")
	ColorAccent        = lipgloss.Color("#FF2E97")
)

// Utilization thresholds for card coloring. A GPU under BusyThreshold
// percent counts as lightly loaded; anything at or above HotThreshold is
// flagged critical.
const (
	BusyThreshold = 10.0
	HotThreshold  = 50.0
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Bold(true).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Padding(0, 1)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1).
			MarginRight(1).
			MarginBottom(1)

	HostNameStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorCritical)

	AlertStyle = lipgloss.NewStyle().
			Foreground(ColorWarning).
			Bold(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorAccent)
)

// UtilColor maps a utilization percentage to its severity color.
func UtilColor(percent float64) lipgloss.Color {
	switch {
	case percent >= HotThreshold:
		return ColorCritical
	case percent >= BusyThreshold:
		return ColorWarning
	default:
		return ColorHealthy
	}
}

// UtilStyle returns a style colored for the given utilization.
func UtilStyle(percent float64) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(UtilColor(percent))
}
