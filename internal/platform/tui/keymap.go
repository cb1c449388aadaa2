package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/serialpong/internal/core"
)

// KeyMap holds the key bindings shared by the models.
// It implements help.KeyMap.
type KeyMap struct {
	Buttons [core.ButtonCount]key.Binding
	Quit    key.Binding
}

// DefaultKeyMap binds the number keys 1-4 to buttons 0-3.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Buttons: [core.ButtonCount]key.Binding{
			key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "cycle")),
			key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "pause")),
			key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "blink")),
			key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "next colour")),
		},
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return append(k.Buttons[:], k.Quit)
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.Buttons[:], {k.Quit}}
}

// MapButton translates a key message to a button.
// Returns false if the key is not bound to a button.
func (k KeyMap) MapButton(msg tea.KeyMsg) (core.Button, bool) {
	for i, b := range k.Buttons {
		if key.Matches(msg, b) {
			return core.Button(i), true
		}
	}
	return 0, false
}

// IsQuit reports whether msg is a quit request.
func (k KeyMap) IsQuit(msg tea.KeyMsg) bool {
	return key.Matches(msg, k.Quit)
}
