package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit      key.Binding
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
	MoveLeft  key.Binding
	MoveRight key.Binding
	MoveUp    key.Binding
	MoveDown  key.Binding
	NewTask   key.Binding
	Edit      key.Binding
	SignIn    key.Binding
	SignOut   key.Binding
	Save      key.Binding
	Delete    key.Binding
	Cancel    key.Binding
	NextField key.Binding
	PrevField key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
		Right:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),
		MoveLeft:  key.NewBinding(key.WithKeys("shift+left", "H"), key.WithHelp("H", "move left")),
		MoveRight: key.NewBinding(key.WithKeys("shift+right", "L"), key.WithHelp("L", "move right")),
		MoveUp:    key.NewBinding(key.WithKeys("shift+up", "K"), key.WithHelp("K", "move up")),
		MoveDown:  key.NewBinding(key.WithKeys("shift+down", "J"), key.WithHelp("J", "move down")),
		NewTask:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new task")),
		Edit:      key.NewBinding(key.WithKeys("enter", "e"), key.WithHelp("enter", "edit")),
		SignIn:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "sign in")),
		SignOut:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "sign out")),
		Save:      key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Delete:    key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "delete")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		NextField: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		PrevField: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous field")),
	}
}
