package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lu-zhengda/avscan/internal/engine"
	"github.com/lu-zhengda/avscan/internal/scanner"
)

// pollInterval is how often the view drains the scan's event stream.
const pollInterval = 100 * time.Millisecond

type pollMsg time.Time

func poll() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

// ScanModel shows a running scan: progress, live threats and the final
// summary. Quitting before the scan ends cancels it.
type ScanModel struct {
	run  *engine.Run
	root string

	spinner  spinner.Model
	progress progress.Model

	completed int
	total     int
	threats   []scanner.Finding
	lastError string

	done    bool
	summary scanner.Summary
	err     error

	cursor       int
	scrollOffset int
	width        int
	height       int
}

// NewScan returns a model that follows run.
func NewScan(run *engine.Run, root string) ScanModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	return ScanModel{
		run:      run,
		root:     root,
		spinner:  sp,
		progress: progress.New(progress.WithGradient(progressGradientStart, progressGradientEnd), progress.WithWidth(40)),
	}
}

func (m ScanModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, poll())
}

// Result returns the scan summary once the scan has finished.
func (m ScanModel) Result() (summary scanner.Summary, done bool, err error) {
	return m.summary, m.done, m.err
}

// apply folds one scan event into the model.
func (m *ScanModel) apply(ev engine.Event) {
	switch ev.Kind {
	case engine.EventProgress:
		m.completed = ev.Completed
		m.total = ev.Total
	case engine.EventThreat:
		m.threats = append(m.threats, scanner.Finding{Path: ev.Path, Reasons: ev.Reasons})
	case engine.EventError:
		m.lastError = ev.Message
	}
}

// drain applies every event queued so far without blocking. It reports
// whether the stream has ended.
func (m *ScanModel) drain() bool {
	events := m.run.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return true
			}
			m.apply(ev)
		default:
			return false
		}
	}
}

func (m ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 10), 60)
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pollMsg:
		if m.done {
			return m, nil
		}
		if !m.drain() {
			return m, poll()
		}
		m.summary, m.err = m.run.Wait()
		m.done = true
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.done {
				return m, tea.Quit
			}
			m.run.Cancel()
			return m, nil
		case "c":
			if !m.done {
				m.run.Cancel()
			}
			return m, nil
		case "enter":
			if m.done {
				return m, tea.Quit
			}
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				m.ensureCursorVisible()
			}
		case "down", "j":
			if m.cursor < len(m.threats)-1 {
				m.cursor++
				m.ensureCursorVisible()
			}
		}
	}

	return m, nil
}

func (m ScanModel) visibleItemCount() int {
	if m.height <= 0 {
		return 10
	}
	// header, status, progress, blank, title, footer
	n := m.height - 9
	if n < 3 {
		n = 3
	}
	return n
}

func (m *ScanModel) ensureCursorVisible() {
	visible := m.visibleItemCount()
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+visible {
		m.scrollOffset = m.cursor - visible + 1
	}
}

func (m ScanModel) View() string {
	var b strings.Builder
	b.WriteString(renderHeader("scan", truncPath(m.root, 50)))
	b.WriteString("\n")

	percent := 1.0
	if m.total > 0 {
		percent = float64(m.completed) / float64(m.total)
	}

	switch {
	case !m.done:
		fmt.Fprintf(&b, "%s Scanning... %d/%d files\n", m.spinner.View(), m.completed, m.total)
		b.WriteString(m.progress.ViewAs(percent) + "\n")
	case m.err != nil:
		b.WriteString(alertStyle.Render("Scan failed") + " " + m.err.Error() + "\n")
	default:
		status := successStyle.Render("Scan complete")
		if m.summary.Cancelled {
			status = alertStyle.Render("Scan cancelled")
		}
		fmt.Fprintf(&b, "%s  %d files in %.2fs\n", status, m.summary.FilesScanned, m.summary.Elapsed.Seconds())
		b.WriteString(m.progress.ViewAs(percent) + "\n")
	}
	if m.lastError != "" && m.err == nil {
		b.WriteString(dimStyle.Render(m.lastError) + "\n")
	}
	b.WriteString("\n")

	if len(m.threats) == 0 {
		b.WriteString(dimStyle.Render("No threats detected") + "\n")
	} else {
		b.WriteString(titleStyle.Render(fmt.Sprintf("Threats (%d)", len(m.threats))) + "\n")
		visible := m.visibleItemCount()
		end := min(m.scrollOffset+visible, len(m.threats))
		for i := m.scrollOffset; i < end; i++ {
			b.WriteString(m.renderThreat(i) + "\n")
		}
	}

	hints := "j/k scroll  c cancel  q quit"
	if m.done {
		hints = "j/k scroll  enter/q exit"
	}
	b.WriteString(renderFooter(hints))
	return b.String()
}

func (m ScanModel) renderThreat(i int) string {
	f := m.threats[i]
	risk := f.Risk()
	marker := lipgloss.NewStyle().Foreground(RiskColor(risk)).Render("●")

	line := fmt.Sprintf("%s %-8s %s", marker, risk, truncPath(f.Path, 60))
	if i == m.cursor {
		line = selectedStyle.Render("> ") + line
		if len(f.Reasons) > 0 {
			line += "\n" + dimStyle.Render("    "+strings.Join(f.Reasons, "; "))
		}
	} else {
		line = "  " + line
	}
	return line
}
