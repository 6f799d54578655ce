package cli

import (
	"testing"

	"github.com/lu-zhengda/avscan/internal/scanner"
)

// ---------------------------------------------------------------------------
// riskSummary
// ---------------------------------------------------------------------------

func TestRiskSummary(t *testing.T) {
	findings := []scanner.Finding{
		{Path: "/a", Reasons: []string{scanner.SuspiciousTypeReason(".exe")}},
		{Path: "/b", Reasons: []string{scanner.SignatureReason("eval(base64_decode")}},
		{Path: "/c", Reasons: []string{scanner.SuspiciousTypeReason(".bat"), scanner.SignatureReason("powershell -enc")}},
		{Path: "/d", Reasons: []string{scanner.SuspiciousTypeReason(".vbs")}},
		{Path: "/e"},
	}

	rb := riskSummary(findings)

	if rb.Moderate != 2 {
		t.Errorf("Moderate = %d, want 2", rb.Moderate)
	}
	if rb.Risky != 2 {
		t.Errorf("Risky = %d, want 2", rb.Risky)
	}
	if rb.Total != 4 {
		t.Errorf("Total = %d, want 4", rb.Total)
	}
}

func TestRiskSummary_Empty(t *testing.T) {
	rb := riskSummary(nil)

	if rb.Total != 0 {
		t.Errorf("Total = %d, want 0", rb.Total)
	}
	if rb.Moderate != 0 {
		t.Errorf("Moderate = %d, want 0", rb.Moderate)
	}
	if rb.Risky != 0 {
		t.Errorf("Risky = %d, want 0", rb.Risky)
	}
}

// ---------------------------------------------------------------------------
// riskSummaryLine
// ---------------------------------------------------------------------------

func TestRiskSummaryLine(t *testing.T) {
	rb := RiskBreakdown{Moderate: 3, Risky: 1, Total: 4}
	line := riskSummaryLine(rb)

	if line == "" {
		t.Fatal("expected non-empty risk summary line")
	}
	if !containsText(line, "Signature match: 1 (25%)") {
		t.Errorf("expected signature count in output, got %q", stripAnsi(line))
	}
	if !containsText(line, "Suspicious type only: 3 (75%)") {
		t.Errorf("expected extension-only count in output, got %q", stripAnsi(line))
	}
}

func TestRiskSummaryLine_Empty(t *testing.T) {
	rb := RiskBreakdown{}
	line := riskSummaryLine(rb)

	if line != "" {
		t.Errorf("expected empty string for zero total, got %q", line)
	}
}

func TestRiskSummaryLine_ModerateOnly(t *testing.T) {
	rb := RiskBreakdown{Moderate: 2, Total: 2}
	line := riskSummaryLine(rb)

	if !containsText(line, "Suspicious type only") {
		t.Error("expected 'Suspicious type only' in output")
	}
	// Signature matches should not appear when zero.
	if containsText(line, "Signature match") {
		t.Error("did not expect 'Signature match' in output when zero")
	}
}

// containsText strips ANSI escape sequences and checks for substring presence.
func containsText(s, sub string) bool {
	// Simple ANSI strip: remove escape sequences like \x1b[...m
	stripped := stripAnsi(s)
	return len(stripped) > 0 && len(sub) > 0 && contains(stripped, sub)
}

func stripAnsi(s string) string {
	var out []byte
	i := 0
	for i < len(s) {
		if s[i] == '\x1b' && i+1 < len(s) && s[i+1] == '[' {
			// Skip to 'm'
			j := i + 2
			for j < len(s) && s[j] != 'm' {
				j++
			}
			if j < len(s) {
				i = j + 1
				continue
			}
		}
		out = append(out, s[i])
		i++
	}
	return string(out)
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && searchSubstring(s, sub)
}

func searchSubstring(s, sub string) bool {
	for i := 0; i <= len(s)-len(sub); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
