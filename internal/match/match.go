// Package match scores entries against a query and fills their highlight
// masks.
package match

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/runger/runsel/internal/entry"
)

// nameBonus favours name hits over description hits of similar quality.
const nameBonus = 10

// Fields selects what a query is matched against.
type Fields int

const (
	NameAndDescription Fields = iota
	NameOnly
)

// Matcher filters and ranks entries.
type Matcher struct {
	Fields Fields
}

// Match resets every entry, scores the ones matching query and returns them
// best first. Ties keep source order. An empty query returns all entries in
// source order.
func (m Matcher) Match(query string, entries []*entry.Entry) []*entry.Entry {
	entry.ResetMatchesAndScore(entries)

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		out := make([]*entry.Entry, len(entries))
		copy(out, entries)
		return out
	}

	matched := make([]bool, len(entries))
	for _, hit := range fuzzy.FindFrom(query, names(entries)) {
		e := entries[hit.Index]
		setMask(e.NameMatches, e.NameLowerCase, hit.MatchedIndexes)
		e.Score = hit.Score + nameBonus
		matched[hit.Index] = true
	}

	if m.Fields == NameAndDescription {
		for _, hit := range fuzzy.FindFrom(query, descriptions(entries)) {
			e := entries[hit.Index]
			if matched[hit.Index] && e.Score >= hit.Score {
				continue
			}
			if matched[hit.Index] {
				// The description is the better match; highlight it alone.
				clear(e.NameMatches)
			}
			setMask(e.DescriptionMatches, e.DescriptionLowerCase, hit.MatchedIndexes)
			e.Score = hit.Score
			matched[hit.Index] = true
		}
	}

	out := make([]*entry.Entry, 0, len(entries))
	for i, e := range entries {
		if matched[i] {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// setMask converts byte offsets into s to rune positions in mask. Lowercasing
// maps rune for rune, so positions line up with the display text.
func setMask(mask []bool, s string, byteOffsets []int) {
	if len(byteOffsets) == 0 {
		return
	}
	want := make(map[int]bool, len(byteOffsets))
	for _, off := range byteOffsets {
		want[off] = true
	}
	pos := 0
	for off := range s {
		if pos >= len(mask) {
			return
		}
		if want[off] {
			mask[pos] = true
		}
		pos++
	}
}

type names []*entry.Entry

func (n names) String(i int) string { return n[i].NameLowerCase }
func (n names) Len() int            { return len(n) }

type descriptions []*entry.Entry

func (d descriptions) String(i int) string { return d[i].DescriptionLowerCase }
func (d descriptions) Len() int            { return len(d) }
