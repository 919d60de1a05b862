package ui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type keyMap struct {
	Toggle key.Binding
	Next   key.Binding
	Prev   key.Binding
	Play   key.Binding
	Up     key.Binding
	Down   key.Binding
	VolUp  key.Binding
	VolDn  key.Binding
	Add    key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Toggle: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause")),
	Next:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n/p", "track")),
	Prev:   key.NewBinding(key.WithKeys("p")),
	Play:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("j/k", "scroll")),
	Down:   key.NewBinding(key.WithKeys("down", "j")),
	VolUp:  key.NewBinding(key.WithKeys("+", "=")),
	VolDn:  key.NewBinding(key.WithKeys("-"), key.WithHelp("+/-", "volume")),
	Add:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
	Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

// ShortHelp lists the bindings shown in the footer. Bindings without help
// text are folded into a neighbour's entry.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Next, k.Up, k.Play, k.VolDn, k.Add, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func isQuit(msg tea.KeyMsg) bool {
	return key.Matches(msg, keys.Quit)
}
