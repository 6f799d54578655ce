package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lu-zhengda/avscan/internal/scanner"
)

// RiskBreakdown counts findings by risk level.
type RiskBreakdown struct {
	Moderate int `json:"moderate"`
	Risky    int `json:"risky"`
	Total    int `json:"total"`
}

// riskSummary aggregates findings by their risk level. Findings without
// reasons are not counted.
func riskSummary(findings []scanner.Finding) RiskBreakdown {
	var rb RiskBreakdown
	for _, f := range findings {
		switch f.Risk() {
		case scanner.Moderate:
			rb.Moderate++
		case scanner.Risky:
			rb.Risky++
		default:
			continue
		}
		rb.Total++
	}
	return rb
}

// riskSummaryLine renders a colored risk summary string.
// Returns empty string if Total == 0.
func riskSummaryLine(rb RiskBreakdown) string {
	if rb.Total == 0 {
		return ""
	}

	moderateStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	riskyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	pct := func(n int) int {
		return int(float64(n) / float64(rb.Total) * 100)
	}

	var parts []string

	if rb.Risky > 0 {
		parts = append(parts, riskyStyle.Render(
			fmt.Sprintf("Signature match: %d (%d%%)", rb.Risky, pct(rb.Risky)),
		))
	}

	if rb.Moderate > 0 {
		parts = append(parts, moderateStyle.Render(
			fmt.Sprintf("Suspicious type only: %d (%d%%)", rb.Moderate, pct(rb.Moderate)),
		))
	}

	return strings.Join(parts, "  ")
}
