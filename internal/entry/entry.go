// Package entry holds the selectable entries of a session: display text,
// match highlight state, relevance score and the preview that may be computed
// in the background while the UI keeps polling.
//
// Match and score fields are owned by the UI goroutine. Preview state is the
// only part touched from worker goroutines; it is guarded per entry, and only
// entries with an asynchronous preview script allocate a lock.
package entry

import (
	"context"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/runger/runsel/internal/keybind"
)

// Script computes a preview body. It runs on a dispatcher worker, never on
// the UI goroutine and never while an entry lock is held.
type Script interface {
	Run(ctx context.Context, args any) ([]any, error)
}

// SourceItem is one item as supplied by the caller.
type SourceItem struct {
	Name        string
	Description string

	// Preview is a static preview body. Elements are converted to text and
	// split into lines.
	Preview []any

	// PreviewScript, when set, computes the preview in the background with
	// PreviewArgs as its argument payload.
	PreviewScript Script
	PreviewArgs   any

	// Per-item overrides of the default action keys.
	ActionKeys               []keybind.ActionKey
	ActionKeysMultiSelection []keybind.ActionKey

	// Value is handed back to the caller when the item is selected.
	Value any
}

// Entry is a SourceItem prepared for matching and display.
type Entry struct {
	Source *SourceItem

	Name                 string
	NameLowerCase        string
	Description          string
	DescriptionLowerCase string

	// One flag per rune of Name and Description. Lengths never change after
	// construction.
	NameMatches        []bool
	DescriptionMatches []bool
	Score              int

	IsMarked bool

	keys      *keybind.Set
	preview   previewState
	isUpdated atomic.Bool
}

var lineBreaks = strings.NewReplacer("\r", "", "\n", "")

// New builds an entry for item. keys supplies the default action keys; nil
// means keybind.DefaultSet().
func New(item SourceItem, keys *keybind.Set) *Entry {
	if keys == nil {
		keys = keybind.DefaultSet()
	}

	src := item
	e := &Entry{
		Source:      &src,
		Name:        formatWord(item.Name),
		Description: formatWord(item.Description),
		keys:        keys,
	}
	e.NameLowerCase = strings.ToLower(e.Name)
	e.DescriptionLowerCase = strings.ToLower(e.Description)
	e.NameMatches = make([]bool, utf8.RuneCountInString(e.Name))
	e.DescriptionMatches = make([]bool, utf8.RuneCountInString(e.Description))
	e.preview = newPreviewState(item)
	return e
}

// ConvertFrom builds one entry per item, preserving order.
func ConvertFrom(items []SourceItem, keys *keybind.Set) []*Entry {
	entries := make([]*Entry, len(items))
	for i := range items {
		entries[i] = New(items[i], keys)
	}
	return entries
}

// ResetMatchesAndScore clears every highlight flag and score so the same
// entries can be rescored without reallocating.
func ResetMatchesAndScore(entries []*Entry) {
	for _, e := range entries {
		clear(e.NameMatches)
		clear(e.DescriptionMatches)
		e.Score = 0
	}
}

// ActionKeys returns the keys that select this entry on its own.
func (e *Entry) ActionKeys() []keybind.ActionKey {
	if e.Source.ActionKeys != nil {
		return e.Source.ActionKeys
	}
	return e.keys.DefaultActionKeys
}

// ActionKeysMultiSelection returns the keys that select the marked entries.
func (e *Entry) ActionKeysMultiSelection() []keybind.ActionKey {
	if e.Source.ActionKeysMultiSelection != nil {
		return e.Source.ActionKeysMultiSelection
	}
	return e.keys.DefaultActionKeysMultiSelection
}

// IsUpdated reports what the last RefreshPreviewTask returned.
func (e *Entry) IsUpdated() bool {
	return e.isUpdated.Load()
}

func formatWord(s string) string {
	return lineBreaks.Replace(s)
}
