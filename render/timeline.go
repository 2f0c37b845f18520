package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/smallnest/genaistack/chat"
)

var statusMarks = map[chat.Status]string{
	chat.StatusStarted:   "▶",
	chat.StatusCompleted: "✓",
	chat.StatusError:     "✗",
	chat.StatusInfo:      "•",
}

// Timeline renders execution logs one step per line.
type Timeline struct {
	status map[chat.Status]lipgloss.Style
	step   lipgloss.Style
	dim    lipgloss.Style
}

// NewTimeline returns a timeline styled for w. Colors are dropped when w is
// not a terminal.
func NewTimeline(w io.Writer) *Timeline {
	r := lipgloss.NewRenderer(w)
	return &Timeline{
		status: map[chat.Status]lipgloss.Style{
			chat.StatusStarted:   r.NewStyle().Foreground(lipgloss.Color("214")),
			chat.StatusCompleted: r.NewStyle().Foreground(lipgloss.Color("42")),
			chat.StatusError:     r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
			chat.StatusInfo:      r.NewStyle().Foreground(lipgloss.Color("245")),
		},
		step: r.NewStyle().Bold(true),
		dim:  r.NewStyle().Faint(true),
	}
}

// Render formats entries in the order given.
//
//	12:00:01 ✓ completed  Query Processing  Query received (3ms)
func (t *Timeline) Render(entries []chat.LogEntry) string {
	if len(entries) == 0 {
		return ""
	}

	stepWidth, statusWidth := 0, 0
	for _, e := range entries {
		stepWidth = max(stepWidth, lipgloss.Width(e.StepName))
		statusWidth = max(statusWidth, lipgloss.Width(string(e.Status)))
	}

	var sb strings.Builder
	for _, e := range entries {
		if !e.Timestamp.IsZero() {
			sb.WriteString(t.dim.Render(e.Timestamp.Format("15:04:05")))
			sb.WriteByte(' ')
		}

		mark, ok := statusMarks[e.Status]
		if !ok {
			mark = "?"
		}
		style, ok := t.status[e.Status]
		if !ok {
			style = t.dim
		}
		sb.WriteString(style.Render(fmt.Sprintf("%s %-*s", mark, statusWidth, e.Status)))
		sb.WriteString("  ")
		sb.WriteString(t.step.Render(fmt.Sprintf("%-*s", stepWidth, e.StepName)))

		if e.Message != "" {
			sb.WriteString("  ")
			sb.WriteString(e.Message)
		}
		if d, ok := e.Duration(); ok {
			sb.WriteString(t.dim.Render(fmt.Sprintf(" (%dms)", d.Milliseconds())))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// LogTimeline renders entries for standard output.
func LogTimeline(entries []chat.LogEntry) string {
	return NewTimeline(os.Stdout).Render(entries)
}
