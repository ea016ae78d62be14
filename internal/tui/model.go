package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BuzzLyutic/taskboard/internal/board"
	"github.com/BuzzLyutic/taskboard/internal/modal"
	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/shell"
	"github.com/BuzzLyutic/taskboard/internal/worker"
)

const writeTimeout = 10 * time.Second

// RefreshMsg asks the view to redraw after the board or the session changed.
type RefreshMsg struct{}

// WriteFailedMsg reports a background status write the server rejected.
type WriteFailedMsg struct {
	Result worker.Result
}

type modalDoneMsg struct {
	res modal.Result
	err error
}

type signInMsg struct{ err error }

type signOutMsg struct{ err error }

const (
	fieldTitle = iota
	fieldDescription
	fieldPriority
	fieldStatus
	fieldCount
)

type Model struct {
	app   *shell.App
	board *board.Board
	keys  keyMap

	width  int
	height int

	col int
	row int

	tokenInput textinput.Model
	signInURL  string

	modal     *modal.Modal
	title     textinput.Model
	desc      textarea.Model
	priority  model.Priority
	status    model.Status
	focus     int
	busy      bool
	modalErr  string
	statusMsg string
}

func New(app *shell.App, b *board.Board) Model {
	ti := textinput.New()
	ti.Placeholder = "paste access token"
	ti.Prompt = "> "
	ti.CharLimit = 4096
	ti.Width = 60
	ti.Focus()

	title := textinput.New()
	title.Placeholder = "Task title"
	title.CharLimit = 200
	title.Width = 50

	desc := textarea.New()
	desc.Placeholder = "Description"
	desc.SetWidth(50)
	desc.SetHeight(4)

	return Model{
		app:        app,
		board:      b,
		keys:       newKeyMap(),
		width:      100,
		height:     30,
		tokenInput: ti,
		title:      title,
		desc:       desc,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case RefreshMsg:
		m.clampSelection()
		return m, nil
	case modalDoneMsg:
		m.busy = false
		if errors.Is(msg.err, modal.ErrTitleRequired) {
			m.modalErr = "Title is required"
			return m, nil
		}
		m.modal = nil
		if msg.res.Err != nil {
			m.statusMsg = "Could not " + string(msg.res.Action) + " task: " + msg.res.Err.Error()
		} else {
			m.statusMsg = ""
		}
		return m, nil
	case signInMsg:
		if msg.err != nil {
			m.statusMsg = "Sign-in failed: " + msg.err.Error()
		} else {
			m.statusMsg = ""
			m.tokenInput.Reset()
		}
		return m, nil
	case WriteFailedMsg:
		m.statusMsg = "Could not move task: " + msg.Result.Err.Error()
		return m, nil
	case signOutMsg:
		if msg.err != nil {
			m.statusMsg = "Signed out locally: " + msg.err.Error()
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	if m.modal != nil {
		return m.updateModal(msg)
	}
	if m.app.Page() == shell.PageBoard {
		return m.updateBoard(msg)
	}
	return m.updateLanding(msg)
}

func (m Model) updateLanding(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, m.keys.Cancel):
			return m, tea.Quit
		case key.Matches(keyMsg, m.keys.SignIn):
			token := m.tokenInput.Value()
			if token == "" {
				m.signInURL = m.app.SignInWithGoogle()
				return m, nil
			}
			return m, m.signInCmd(token)
		}
	}
	var cmd tea.Cmd
	m.tokenInput, cmd = m.tokenInput.Update(msg)
	return m, cmd
}

func (m Model) updateBoard(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	cols := m.board.Snapshot().Columns

	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Left):
		if m.col > 0 {
			m.col--
		}
	case key.Matches(keyMsg, m.keys.Right):
		if m.col < len(cols)-1 {
			m.col++
		}
	case key.Matches(keyMsg, m.keys.Up):
		if m.row > 0 {
			m.row--
		}
	case key.Matches(keyMsg, m.keys.Down):
		m.row++
	case key.Matches(keyMsg, m.keys.MoveLeft):
		if m.col > 0 {
			m.dropSelected(cols, m.col-1, len(cols[m.col-1].Tasks))
		}
	case key.Matches(keyMsg, m.keys.MoveRight):
		if m.col < len(cols)-1 {
			m.dropSelected(cols, m.col+1, len(cols[m.col+1].Tasks))
		}
	case key.Matches(keyMsg, m.keys.MoveUp):
		if m.row > 0 {
			m.dropSelected(cols, m.col, m.row-1)
		}
	case key.Matches(keyMsg, m.keys.MoveDown):
		if m.row < len(cols[m.col].Tasks)-1 {
			m.dropSelected(cols, m.col, m.row+1)
		}
	case key.Matches(keyMsg, m.keys.NewTask):
		return m.openModal(m.board.NewTask())
	case key.Matches(keyMsg, m.keys.Edit):
		if t, ok := selected(cols, m.col, m.row); ok {
			if md, ok := m.board.EditTask(t.ID); ok {
				return m.openModal(md)
			}
		}
	case key.Matches(keyMsg, m.keys.SignOut):
		return m, m.signOutCmd()
	}
	m.clampSelection()
	return m, nil
}

// dropSelected is the keyboard version of dragging the selected card to
// column dest at index.
func (m *Model) dropSelected(cols []board.Column, dest, index int) {
	t, ok := selected(cols, m.col, m.row)
	if !ok {
		return
	}
	_, err := m.board.Drop(board.DropResult{
		TaskID:      t.ID,
		Source:      board.Location{Column: cols[m.col].Status, Index: m.row},
		Destination: &board.Location{Column: cols[dest].Status, Index: index},
	})
	if err != nil {
		m.statusMsg = "Could not move task: " + err.Error()
		return
	}
	m.col, m.row = dest, index
}

func (m Model) openModal(md *modal.Modal) (tea.Model, tea.Cmd) {
	m.modal = md
	m.modalErr = ""
	m.title.SetValue(md.Form.Title)
	m.desc.SetValue(md.Form.Description)
	m.priority = md.Form.Priority
	m.status = md.Form.Status
	m.focus = fieldTitle
	m.desc.Blur()
	return m, m.title.Focus()
}

func (m Model) updateModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, m.keys.Cancel):
			m.modal.Cancel()
			m.modal = nil
			return m, nil
		case key.Matches(keyMsg, m.keys.Save):
			m.syncForm()
			m.busy = true
			return m, m.saveCmd(m.modal)
		case key.Matches(keyMsg, m.keys.Delete):
			if m.modal.Mode() != modal.ModeEdit {
				return m, nil
			}
			m.busy = true
			return m, m.deleteCmd(m.modal)
		case key.Matches(keyMsg, m.keys.NextField):
			return m, m.setFocus((m.focus + 1) % fieldCount)
		case key.Matches(keyMsg, m.keys.PrevField):
			return m, m.setFocus((m.focus + fieldCount - 1) % fieldCount)
		}
		switch m.focus {
		case fieldPriority:
			m.priority = cycle(model.Priorities, m.priority, keyMsg, m.keys)
			return m, nil
		case fieldStatus:
			m.status = cycle(model.Statuses, m.status, keyMsg, m.keys)
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case fieldTitle:
		m.title, cmd = m.title.Update(msg)
	case fieldDescription:
		m.desc, cmd = m.desc.Update(msg)
	}
	return m, cmd
}

func (m *Model) setFocus(f int) tea.Cmd {
	m.focus = f
	m.title.Blur()
	m.desc.Blur()
	switch f {
	case fieldTitle:
		return m.title.Focus()
	case fieldDescription:
		return m.desc.Focus()
	}
	return nil
}

func (m *Model) syncForm() {
	m.modal.Form = model.TaskFields{
		Title:       m.title.Value(),
		Description: m.desc.Value(),
		Priority:    m.priority,
		Status:      m.status,
	}
}

func (m *Model) clampSelection() {
	cols := m.board.Snapshot().Columns
	if m.col >= len(cols) {
		m.col = len(cols) - 1
	}
	if m.col < 0 {
		m.col = 0
	}
	if len(cols) == 0 {
		m.row = 0
		return
	}
	if n := len(cols[m.col].Tasks); m.row >= n {
		m.row = n - 1
	}
	if m.row < 0 {
		m.row = 0
	}
}

func (m Model) saveCmd(md *modal.Modal) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		res, err := md.Save(ctx)
		return modalDoneMsg{res: res, err: err}
	}
}

func (m Model) deleteCmd(md *modal.Modal) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		res, err := md.Delete(ctx)
		return modalDoneMsg{res: res, err: err}
	}
}

func (m Model) signInCmd(token string) tea.Cmd {
	app := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		return signInMsg{err: app.CompleteSignIn(ctx, token)}
	}
}

func (m Model) signOutCmd() tea.Cmd {
	app := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		return signOutMsg{err: app.SignOut(ctx)}
	}
}

func selected(cols []board.Column, col, row int) (model.Task, bool) {
	if col < 0 || col >= len(cols) || row < 0 || row >= len(cols[col].Tasks) {
		return model.Task{}, false
	}
	return cols[col].Tasks[row], true
}

func cycle[T comparable](values []T, cur T, msg tea.KeyMsg, keys keyMap) T {
	step := 0
	switch {
	case key.Matches(msg, keys.Left):
		step = -1
	case key.Matches(msg, keys.Right), msg.String() == " ":
		step = 1
	default:
		return cur
	}
	i := 0
	for j, v := range values {
		if v == cur {
			i = j
			break
		}
	}
	return values[(i+step+len(values))%len(values)]
}
