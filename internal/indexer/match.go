package indexer

import (
	"cmp"
	"slices"
	"unicode"
	"unicode/utf8"

	"github.com/0xADE/ade-launchd/internal/app"
	"github.com/sahilm/fuzzy"
)

// Scoring weights. Only the relative order they produce matters.
const (
	matchPoints       = 16
	prefixBonus       = 24
	boundaryBonus     = 12
	adjacentBonus     = 8
	gapPenalty        = 2
	maxGapPenalty     = 10
	leadingPenalty    = 3
	maxLeadingPenalty = 9
)

// nameSource implements fuzzy.Source over entry display names
type nameSource []app.Entry

func (s nameSource) String(i int) string {
	return s[i].Name
}

func (s nameSource) Len() int {
	return len(s)
}

type candidate struct {
	index int
	score int
}

// rank returns the storage indices of entries whose name fuzzy-matches
// search, highest score first. Equal scores keep storage order.
func rank(entries []app.Entry, search string) []int {
	matches := fuzzy.FindFrom(search, nameSource(entries))

	candidates := make([]candidate, 0, len(matches))
	for _, match := range matches {
		candidates = append(candidates, candidate{
			index: match.Index,
			score: score(match.Str, match.MatchedIndexes),
		})
	}

	slices.SortFunc(candidates, func(a, b candidate) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})

	result := make([]int, len(candidates))
	for i, c := range candidates {
		result[i] = c.index
	}
	return result
}

// score rates a match from the byte offsets of the matched characters.
// Prefix and contiguous runs score above scattered matches.
func score(name string, positions []int) int {
	total := 0
	prevEnd := -1
	first := true

	for _, pos := range positions {
		if pos < 0 || pos >= len(name) || pos < prevEnd {
			continue
		}
		_, width := utf8.DecodeRuneInString(name[pos:])

		total += matchPoints
		switch {
		case pos == 0:
			total += prefixBonus
		case atBoundary(name, pos):
			total += boundaryBonus
		}

		switch {
		case first:
			total -= min(leadingPenalty*utf8.RuneCountInString(name[:pos]), maxLeadingPenalty)
		case pos == prevEnd:
			total += adjacentBonus
		default:
			total -= min(gapPenalty*utf8.RuneCountInString(name[prevEnd:pos]), maxGapPenalty)
		}

		first = false
		prevEnd = pos + width
	}

	return total
}

// atBoundary reports whether the rune at pos starts a word: it follows a
// separator or is an upper case letter after a lower case one.
func atBoundary(name string, pos int) bool {
	prev, _ := utf8.DecodeLastRuneInString(name[:pos])
	cur, _ := utf8.DecodeRuneInString(name[pos:])

	if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
		return true
	}
	return unicode.IsLower(prev) && unicode.IsUpper(cur)
}
