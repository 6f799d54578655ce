package tui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/lu-zhengda/avscan/internal/scanner"
)

func TestRiskColor(t *testing.T) {
	tests := []struct {
		risk scanner.RiskLevel
		want lipgloss.Color
	}{
		{scanner.Safe, colorSuccess},
		{scanner.Moderate, colorWarning},
		{scanner.Risky, colorDanger},
		{scanner.RiskLevel(99), colorPrimary},
	}
	for _, tt := range tests {
		t.Run(tt.risk.String(), func(t *testing.T) {
			if got := RiskColor(tt.risk); got != tt.want {
				t.Errorf("RiskColor(%v) = %v, want %v", tt.risk, got, tt.want)
			}
		})
	}
}

func TestTruncPath(t *testing.T) {
	tests := []struct {
		path   string
		maxLen int
		want   string
	}{
		{"/short", 20, "/short"},
		{"/a/very/long/path/to/file.exe", 12, ".../file.exe"},
		{"/abc", 2, "/abc"},
	}
	for _, tt := range tests {
		if got := truncPath(tt.path, tt.maxLen); got != tt.want {
			t.Errorf("truncPath(%q, %d) = %q, want %q", tt.path, tt.maxLen, got, tt.want)
		}
	}
}
