package picker

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/runger/runsel/internal/keybind"
)

// keyMap holds the navigation bindings. Action, mark and refresh keys come
// from the session's keybind.Set.
type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	PreviewUp   key.Binding
	PreviewDown key.Binding
	Cancel      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:          key.NewBinding(key.WithKeys("up", "ctrl+p"), key.WithHelp("↑", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "ctrl+n"), key.WithHelp("↓", "down")),
		PageUp:      key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
		PageDown:    key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "page down")),
		PreviewUp:   key.NewBinding(key.WithKeys("shift+up"), key.WithHelp("shift+↑", "preview up")),
		PreviewDown: key.NewBinding(key.WithKeys("shift+down"), key.WithHelp("shift+↓", "preview down")),
		Cancel:      key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "cancel")),
	}
}

// helpBindings lists what the footer shows for the focused entry.
func helpBindings(actions []keybind.ActionKey, keys *keybind.Set, multi bool, hasAsync bool) []key.Binding {
	var out []key.Binding
	for _, a := range actions {
		out = append(out, a.Binding())
	}
	if multi {
		out = append(out, keys.Mark.Binding())
	}
	if hasAsync {
		out = append(out, keys.RefreshPreview.Binding())
	}
	return append(out, defaultKeyMap().Cancel)
}
