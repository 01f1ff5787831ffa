package entry

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/runsel/internal/keybind"
)

func TestNew_NormalizesText(t *testing.T) {
	e := New(SourceItem{
		Name:        "Get-\r\nChild\nItem",
		Description: "List\r files",
	}, nil)

	assert.Equal(t, "Get-ChildItem", e.Name)
	assert.Equal(t, "get-childitem", e.NameLowerCase)
	assert.Equal(t, "List files", e.Description)
	assert.Equal(t, "list files", e.DescriptionLowerCase)
	assert.Len(t, e.NameMatches, len("Get-ChildItem"))
	assert.Len(t, e.DescriptionMatches, len("List files"))
	assert.NotContains(t, e.NameMatches, true)
	assert.NotContains(t, e.DescriptionMatches, true)
	assert.Zero(t, e.Score)
	assert.False(t, e.IsMarked)
}

func TestNew_MasksCountRunes(t *testing.T) {
	e := New(SourceItem{Name: "日本語\nテキスト", Description: "café"}, nil)

	assert.Equal(t, "日本語テキスト", e.Name)
	assert.Len(t, e.NameMatches, utf8.RuneCountInString(e.Name))
	assert.Len(t, e.DescriptionMatches, 4)
}

func TestNew_NoDescription(t *testing.T) {
	e := New(SourceItem{Name: "item"}, nil)

	assert.Empty(t, e.Description)
	assert.Empty(t, e.DescriptionLowerCase)
	require.NotNil(t, e.DescriptionMatches)
	assert.Len(t, e.DescriptionMatches, 0)
}

func TestNew_KeepsSourceCopy(t *testing.T) {
	item := SourceItem{Name: "a", Value: 42}
	e := New(item, nil)
	item.Name = "changed"

	assert.Equal(t, "a", e.Source.Name)
	assert.Equal(t, 42, e.Source.Value)
}

func TestNew_PreviewVariants(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		e := New(SourceItem{Name: "a"}, nil)
		assert.IsType(t, noPreview{}, e.preview)
		assert.Nil(t, e.PreviewLines())
		assert.Equal(t, PreviewStatus{}, e.PreviewStatus())
	})

	t.Run("static", func(t *testing.T) {
		e := New(SourceItem{Name: "a", Preview: []any{"line 1\r\nline 2", nil, 3}}, nil)
		assert.IsType(t, staticPreview{}, e.preview)
		assert.Equal(t, []string{"line 1", "line 2", "3"}, e.PreviewLines())
		assert.False(t, e.PreviewStatus().Async)
	})

	t.Run("static empty is present", func(t *testing.T) {
		e := New(SourceItem{Name: "a", Preview: []any{}}, nil)
		lines := e.PreviewLines()
		require.NotNil(t, lines)
		assert.Empty(t, lines)
	})

	t.Run("async", func(t *testing.T) {
		e := New(SourceItem{Name: "a", PreviewScript: staticScript{"x"}}, nil)
		assert.IsType(t, &asyncPreview{}, e.preview)
		assert.Nil(t, e.PreviewLines())
		assert.Equal(t, PreviewStatus{Async: true}, e.PreviewStatus())
	})

	t.Run("async seeded with static", func(t *testing.T) {
		e := New(SourceItem{Name: "a", Preview: []any{"loading"}, PreviewScript: staticScript{"x"}}, nil)
		assert.IsType(t, &asyncPreview{}, e.preview)
		assert.Equal(t, []string{"loading"}, e.PreviewLines())
	})
}

func TestConvertFrom_PreservesOrder(t *testing.T) {
	items := []SourceItem{{Name: "first"}, {Name: "second\n"}, {Name: "third"}}

	entries := ConvertFrom(items, nil)

	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Name)
	assert.Equal(t, "second", entries[1].Name)
	assert.Equal(t, "third", entries[2].Name)
	assert.NotSame(t, entries[0].Source, entries[1].Source)
}

func TestConvertFrom_Empty(t *testing.T) {
	assert.Empty(t, ConvertFrom(nil, nil))
}

func TestResetMatchesAndScore(t *testing.T) {
	entries := ConvertFrom([]SourceItem{
		{Name: "alpha", Description: "first"},
		{Name: "beta"},
	}, nil)
	for _, e := range entries {
		for i := range e.NameMatches {
			e.NameMatches[i] = true
		}
		for i := range e.DescriptionMatches {
			e.DescriptionMatches[i] = true
		}
		e.Score = 17
	}

	ResetMatchesAndScore(entries)
	ResetMatchesAndScore(entries)

	for _, e := range entries {
		assert.Len(t, e.NameMatches, utf8.RuneCountInString(e.Name))
		assert.Len(t, e.DescriptionMatches, utf8.RuneCountInString(e.Description))
		assert.NotContains(t, e.NameMatches, true)
		assert.NotContains(t, e.DescriptionMatches, true)
		assert.Zero(t, e.Score)
	}
}

func TestResetMatchesAndScore_LeavesMarks(t *testing.T) {
	entries := ConvertFrom([]SourceItem{{Name: "a"}}, nil)
	entries[0].IsMarked = true

	ResetMatchesAndScore(entries)

	assert.True(t, entries[0].IsMarked)
}

func TestActionKeys(t *testing.T) {
	keys := &keybind.Set{
		DefaultActionKeys:               []keybind.ActionKey{keybind.MustParse("enter:Run")},
		DefaultActionKeysMultiSelection: []keybind.ActionKey{keybind.MustParse("ctrl+enter:Run all")},
	}

	t.Run("defaults", func(t *testing.T) {
		e := New(SourceItem{Name: "a"}, keys)
		assert.Equal(t, keys.DefaultActionKeys, e.ActionKeys())
		assert.Equal(t, keys.DefaultActionKeysMultiSelection, e.ActionKeysMultiSelection())
	})

	t.Run("overrides", func(t *testing.T) {
		own := []keybind.ActionKey{keybind.MustParse("ctrl+o:Open"), keybind.MustParse("ctrl+e:Edit")}
		ownMulti := []keybind.ActionKey{keybind.MustParse("ctrl+o:Open all")}
		e := New(SourceItem{Name: "a", ActionKeys: own, ActionKeysMultiSelection: ownMulti}, keys)
		assert.Equal(t, own, e.ActionKeys())
		assert.Equal(t, ownMulti, e.ActionKeysMultiSelection())
	})

	t.Run("nil set uses built-in defaults", func(t *testing.T) {
		e := New(SourceItem{Name: "a"}, nil)
		assert.Equal(t, keybind.DefaultSet().DefaultActionKeys, e.ActionKeys())
	})
}
