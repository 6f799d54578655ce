package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/lu-zhengda/avscan/internal/scanner"
)

// ---------------------------------------------------------------------------
// Color palette -- single source of truth for all TUI colors.
// Values are ANSI-256 color codes passed to lipgloss.Color().
// ---------------------------------------------------------------------------

var (
	colorPrimary   = lipgloss.Color("170")
	colorSecondary = lipgloss.Color("212")
	colorSuccess   = lipgloss.Color("82")
	colorWarning   = lipgloss.Color("214")
	colorDanger    = lipgloss.Color("196")
	colorDim       = lipgloss.Color("241")
	colorSubtle    = lipgloss.Color("236")
	colorText      = lipgloss.Color("252")
	colorWhite     = lipgloss.Color("255")
	colorDangerBg  = lipgloss.Color("52")
)

// ---------------------------------------------------------------------------
// Risk colors -- used for threat rows and the summary line.
// ---------------------------------------------------------------------------

var riskColors = map[scanner.RiskLevel]lipgloss.Color{
	scanner.Safe:     colorSuccess,
	scanner.Moderate: colorWarning,
	scanner.Risky:    colorDanger,
}

// RiskColor returns the theme color for a risk level. Unknown levels fall
// back to colorPrimary.
func RiskColor(r scanner.RiskLevel) lipgloss.Color {
	if c, ok := riskColors[r]; ok {
		return c
	}
	return colorPrimary
}

// ---------------------------------------------------------------------------
// Gradient -- used for the scan progress bar.
// ---------------------------------------------------------------------------

const (
	progressGradientStart = "#5A56E0"
	progressGradientEnd   = "#EE6FF8"
)
