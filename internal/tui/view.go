package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/BuzzLyutic/taskboard/internal/board"
	"github.com/BuzzLyutic/taskboard/internal/modal"
	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/shell"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("221"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("221")).Padding(0, 1)
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62"))
	panelStyle  = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
	modalStyle  = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(1, 2)
)

func (m Model) View() string {
	var body string
	switch {
	case m.modal != nil:
		body = m.renderModal()
	case m.app.Page() == shell.PageBoard:
		body = m.renderBoard()
	default:
		body = m.renderLanding()
	}
	if m.statusMsg != "" {
		body += "\n" + errorStyle.Render(m.statusMsg)
	}
	return body
}

func (m Model) renderLanding() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Task Board") + "\n\n")
	if m.app.Page() == shell.PageCallback {
		b.WriteString("Completing sign-in. Paste the access token from the browser.\n\n")
	} else {
		b.WriteString("Organize your work across To Do, In Progress and Completed.\n\n")
		b.WriteString("Press enter to sign in with Google.\n")
	}
	if m.signInURL != "" {
		b.WriteString("\nOpen this address in your browser:\n  " + m.signInURL + "\n")
		b.WriteString("then paste the access_token it hands back and press enter.\n")
	}
	b.WriteString("\n" + m.tokenInput.View() + "\n\n")
	b.WriteString(mutedStyle.Render("enter sign in • esc quit"))
	return b.String()
}

func (m Model) renderBoard() string {
	snap := m.board.Snapshot()

	header := titleStyle.Render("Task Board")
	if m.app.User() != nil {
		header += mutedStyle.Render("  signed in as " + m.app.DisplayName())
	}

	lines := []string{header, ""}
	if snap.LoadErr != nil {
		lines = append(lines, errorStyle.Render("Could not load tasks: "+snap.LoadErr.Error()), "")
	}
	lines = append(lines, m.renderColumns(snap))
	lines = append(lines, mutedStyle.Render("←/→ column • ↑/↓ task • H/L move • n new • enter edit • o sign out • q quit"))
	return strings.Join(lines, "\n")
}

func (m Model) renderColumns(snap board.Snapshot) string {
	columnWidth := max(24, (m.width-4)/max(1, len(snap.Columns)))
	panels := make([]string, 0, len(snap.Columns))
	for ci, col := range snap.Columns {
		hs := headerStyle
		if ci == m.col {
			hs = hs.Background(lipgloss.Color("58")).Foreground(lipgloss.Color("230"))
		}
		label := col.Title
		if !snap.Loading {
			label = fmt.Sprintf("%s (%d)", col.Title, len(col.Tasks))
		}
		rows := []string{hs.Width(columnWidth - 2).Render(label)}

		switch {
		case snap.Loading:
			rows = append(rows, mutedStyle.Padding(0, 1).Render("Loading..."))
		case len(col.Tasks) == 0:
			rows = append(rows, mutedStyle.Padding(0, 1).Render("No tasks"))
		}
		for ri, t := range col.Tasks {
			style := lipgloss.NewStyle().Padding(0, 1)
			if ci == m.col && ri == m.row {
				style = cursorStyle.Padding(0, 1)
			}
			rows = append(rows, style.Render(cardLine(t, columnWidth-4)))
		}
		panels = append(panels, panelStyle.Width(columnWidth).Render(strings.Join(rows, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, panels...)
}

func cardLine(t model.Task, width int) string {
	line := t.Title
	if t.Priority != "" {
		line = fmt.Sprintf("[%s] %s", t.Priority, line)
	}
	if r := []rune(line); width > 3 && len(r) > width {
		line = string(r[:width-3]) + "..."
	}
	return line
}

func (m Model) renderModal() string {
	heading := "New Task"
	if m.modal.Mode() == modal.ModeEdit {
		heading = "Edit Task"
	}

	field := func(i int, label, value string) string {
		marker := "  "
		if m.focus == i {
			marker = "> "
		}
		return marker + label + "\n" + value
	}

	lines := []string{
		titleStyle.Render(heading),
		"",
		field(fieldTitle, "Title *", m.title.View()),
		"",
		field(fieldDescription, "Description", m.desc.View()),
		"",
		field(fieldPriority, "Priority", "  ‹ "+string(m.priority)+" ›"),
		"",
		field(fieldStatus, "Status", "  ‹ "+m.status.Label()+" ›"),
		"",
	}
	if m.modalErr != "" {
		lines = append(lines, errorStyle.Render(m.modalErr), "")
	}
	if m.busy {
		lines = append(lines, mutedStyle.Render("Saving..."), "")
	}
	help := "tab next field • ctrl+s save • esc cancel"
	if m.modal.Mode() == modal.ModeEdit {
		help += " • ctrl+d delete"
	}
	lines = append(lines, mutedStyle.Render(help))
	return modalStyle.Render(strings.Join(lines, "\n"))
}
