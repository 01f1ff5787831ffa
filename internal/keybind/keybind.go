// Package keybind defines the action keys that finish a selection and the
// default key-binding set entries fall back to when they carry no overrides.
package keybind

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/key"
)

// ErrInvalidKey is returned when a key spelling is not a Bubble Tea key name.
var ErrInvalidKey = errors.New("invalid key")

// ActionKey is a key that completes the selection, plus a short label shown
// in the help line.
type ActionKey struct {
	Key         string
	Description string
}

// Set is the resolved, read-only key-binding configuration shared by every
// entry of a session.
type Set struct {
	DefaultActionKeys               []ActionKey
	DefaultActionKeysMultiSelection []ActionKey
	Mark                            ActionKey
	RefreshPreview                  ActionKey
}

// namedKeys are the non-printable key spellings produced by tea.KeyMsg.String().
var namedKeys = map[string]bool{
	"enter": true, "tab": true, "esc": true, "backspace": true, "delete": true,
	"insert": true, "up": true, "down": true, "left": true, "right": true,
	"home": true, "end": true, "pgup": true, "pgdown": true, "space": true,
	"f1": true, "f2": true, "f3": true, "f4": true, "f5": true, "f6": true,
	"f7": true, "f8": true, "f9": true, "f10": true, "f11": true, "f12": true,
}

var modifiers = []string{"ctrl+", "alt+", "shift+"}

// DefaultSet returns the built-in bindings used when the config has none.
func DefaultSet() *Set {
	return &Set{
		DefaultActionKeys:               []ActionKey{MustParse("enter:Select")},
		DefaultActionKeysMultiSelection: []ActionKey{MustParse("enter:Select marked")},
		Mark:                            MustParse("tab:Mark"),
		RefreshPreview:                  MustParse("ctrl+r:Refresh preview"),
	}
}

// Parse reads "key" or "key:Description".
func Parse(s string) (ActionKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ActionKey{}, fmt.Errorf("%w: empty", ErrInvalidKey)
	}

	// The first rune always belongs to the key so that ":" can be bound.
	_, size := utf8.DecodeRuneInString(s)
	k, desc := s, ""
	if i := strings.Index(s[size:], ":"); i >= 0 {
		k = s[:size+i]
		desc = strings.TrimSpace(s[size+i+1:])
	}

	k = strings.TrimSpace(k)
	// Printable single characters keep their case: "G" and "g" differ.
	if utf8.RuneCountInString(k) > 1 {
		k = strings.ToLower(k)
	}
	if !ValidKey(k) {
		return ActionKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, k)
	}
	return ActionKey{Key: k, Description: desc}, nil
}

// MustParse is Parse for literals known to be valid, such as the defaults.
func MustParse(s string) ActionKey {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

// ParseList parses every spelling, failing on the first invalid one.
func ParseList(specs []string) ([]ActionKey, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	keys := make([]ActionKey, 0, len(specs))
	for _, s := range specs {
		k, err := Parse(s)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// ValidKey reports whether k is a key name Bubble Tea can report.
func ValidKey(k string) bool {
	if k == "" {
		return false
	}
	if utf8.RuneCountInString(k) == 1 {
		r, _ := utf8.DecodeRuneInString(k)
		return r >= 0x20 && r != 0x7f
	}
	if namedKeys[k] {
		return true
	}
	for _, m := range modifiers {
		if rest, ok := strings.CutPrefix(k, m); ok {
			return ValidKey(rest)
		}
	}
	return false
}

// String renders the key in the same form Parse accepts.
func (k ActionKey) String() string {
	if k.Description == "" {
		return k.Key
	}
	return k.Key + ":" + k.Description
}

// Binding converts the key for use with bubbles/key and the help bubble.
func (k ActionKey) Binding() key.Binding {
	return key.NewBinding(
		key.WithKeys(pressedName(k.Key)),
		key.WithHelp(k.Key, k.Description),
	)
}

// Match returns the first key in keys equal to the pressed key name.
func Match(keys []ActionKey, pressed string) (ActionKey, bool) {
	for _, k := range keys {
		if pressedName(k.Key) == pressed {
			return k, true
		}
	}
	return ActionKey{}, false
}

// pressedName maps config spellings to tea.KeyMsg.String() output.
func pressedName(k string) string {
	if k == "space" {
		return " "
	}
	return k
}
