package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/ppiankov/pyrun/internal/runner"
)

var spinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type (
	tickMsg  time.Time
	chunkMsg string
	doneMsg  struct{ result *runner.RunResult }
)

// Model is the Bubbletea model for a live script run: a header with the
// script and elapsed time, a scrollable output window fed by the run
// handle, and a final status line once the process exits.
type Model struct {
	handle      *runner.Handle
	script      string
	interpreter string
	startedAt   time.Time

	lines   []string
	partial string // trailing output without a newline yet
	result  *runner.RunResult

	scrollOffset int
	follow       bool // stick to the newest output
	frame        int
	width        int
	height       int
	quitting     bool // quit as soon as the run settles
}

// New creates a model displaying the given run.
func New(h *runner.Handle, script, interpreter string) Model {
	return Model{
		handle:      h,
		script:      script,
		interpreter: interpreter,
		startedAt:   time.Now(),
		follow:      true,
	}
}

// Result returns the final run result, nil while the run is active.
func (m Model) Result() *runner.RunResult { return m.result }

// Lines returns the collected output lines (the partial tail included).
func (m Model) Lines() []string {
	if m.partial == "" {
		return m.lines
	}
	return append(append([]string(nil), m.lines...), m.partial)
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.waitForChunk())
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForChunk blocks on the output stream; a closed stream settles the run.
func (m Model) waitForChunk() tea.Cmd {
	h := m.handle
	if h == nil {
		return nil
	}
	return func() tea.Msg {
		chunk, ok := <-h.Output()
		if !ok {
			return doneMsg{result: h.Wait()}
		}
		return chunkMsg(chunk)
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.result == nil {
				if m.handle != nil {
					m.handle.Cancel()
				}
				m.quitting = true
				return m, nil
			}
			return m, tea.Quit

		case "c":
			m.lines = nil
			m.partial = ""
			m.scrollOffset = 0
			m.follow = true

		case "j", "down":
			m.scrollDown(1)

		case "k", "up":
			m.scrollUp(1)

		case "g", "home":
			m.scrollOffset = 0
			m.follow = false

		case "G", "end":
			m.scrollOffset = m.maxScroll()
			m.follow = true

		case "pgdown":
			m.scrollDown(m.visibleLines())

		case "pgup":
			m.scrollUp(m.visibleLines())
		}

	case chunkMsg:
		m.appendChunk(string(msg))
		if m.follow {
			m.scrollOffset = m.maxScroll()
		}
		return m, m.waitForChunk()

	case doneMsg:
		if m.partial != "" {
			m.lines = append(m.lines, m.partial)
			m.partial = ""
		}
		m.result = msg.result
		if m.follow {
			m.scrollOffset = m.maxScroll()
		}
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		m.frame++
		if m.result != nil {
			return m, nil
		}
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.follow {
			m.scrollOffset = m.maxScroll()
		}
	}

	return m, nil
}

func (m *Model) appendChunk(chunk string) {
	text := m.partial + chunk
	parts := strings.Split(text, "\n")
	m.partial = parts[len(parts)-1]
	m.lines = append(m.lines, parts[:len(parts)-1]...)
}

func (m *Model) scrollDown(n int) {
	m.scrollOffset += n
	if max := m.maxScroll(); m.scrollOffset >= max {
		m.scrollOffset = max
		m.follow = true
	}
}

func (m *Model) scrollUp(n int) {
	m.follow = false
	m.scrollOffset -= n
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}

func (m Model) visibleLines() int {
	// header(1) + status(1) + blank(1) + help(1) = 4 reserved lines
	avail := m.height - 4
	if avail < 3 {
		return 3
	}
	return avail
}

func (m Model) maxScroll() int {
	total := len(m.Lines())
	vis := m.visibleLines()
	if total <= vis {
		return 0
	}
	return total - vis
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("pyrun — %s", filepath.Base(m.script))))
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	lines := m.Lines()
	vis := m.visibleLines()
	start := m.scrollOffset
	if start > len(lines) {
		start = len(lines)
	}
	end := start + vis
	if end > len(lines) {
		end = len(lines)
	}

	if start > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  ↑ %d more above", start)))
		b.WriteString("\n")
	}

	for i := start; i < end; i++ {
		b.WriteString(truncate(lines[i], m.width))
		b.WriteString("\n")
	}

	// pad to fill the screen
	used := 3 + (end - start)
	if start > 0 {
		used++
	}
	for i := used; i < m.height-1; i++ {
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("  ↑↓/jk: scroll  g/G: top/bottom  c: clear  q: " + m.quitLabel()))

	return b.String()
}

func (m Model) quitLabel() string {
	if m.result == nil {
		return "stop"
	}
	return "quit"
}

func (m Model) statusLine() string {
	if m.result == nil {
		spinner := spinnerChars[m.frame%len(spinnerChars)]
		elapsed := time.Since(m.startedAt).Truncate(time.Second)
		label := fmt.Sprintf("%s running  %s  %s", spinner, elapsed, m.interpreter)
		if m.quitting {
			label += "  (stopping...)"
		}
		return runStyle.Render("  " + label)
	}

	res := m.result
	dur := res.Duration().Truncate(10 * time.Millisecond)
	switch {
	case res.TimedOut:
		return warnStyle.Render(fmt.Sprintf("  ⏱ timed out after %s", dur))
	case res.Cancelled:
		return warnStyle.Render(fmt.Sprintf("  ⊘ cancelled after %s", dur))
	case res.Exited && res.ExitCode == 0:
		return doneStyle.Render(fmt.Sprintf("  ✓ exit 0 in %s", dur))
	case res.Exited:
		return failStyle.Render(fmt.Sprintf("  ✗ exit %d in %s", res.ExitCode, dur))
	default:
		return failStyle.Render(fmt.Sprintf("  ✗ killed in %s", dur))
	}
}

// truncate clips a line to the terminal width measured in display cells, so
// wide runes (CJK) count as two columns.
func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	var b strings.Builder
	used := 0
	for _, r := range s {
		rw := runewidth.RuneWidth(r)
		if used+rw > width-1 {
			break
		}
		b.WriteRune(r)
		used += rw
	}
	return b.String() + "…"
}
