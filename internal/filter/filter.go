// Package filter matches a typed query against labels and reports which
// parts of the label matched.
package filter

import (
	"strings"
	"unicode"
)

// Span is a half-open range [Start, End) of rune offsets into a label.
type Span struct {
	Start int
	End   int
}

// Func matches word against target. A nil result means no match; an empty
// non-nil result means a match with nothing to highlight.
type Func func(word, target string) []Span

// Or returns a Func that tries each filter in turn and returns the first
// match.
func Or(filters ...Func) Func {
	return func(word, target string) []Span {
		for _, f := range filters {
			if m := f(word, target); m != nil {
				return m
			}
		}
		return nil
	}
}

// Words is the filter used for command labels: prefix, then word starts,
// then any contiguous substring.
var Words = Or(MatchesPrefix, MatchesWords, MatchesContiguousSubString)

// MatchesPrefix matches when target starts with word, ignoring case.
func MatchesPrefix(word, target string) []Span {
	w := []rune(strings.ToLower(word))
	t := []rune(strings.ToLower(target))
	if len(t) == 0 || len(t) < len(w) {
		return nil
	}
	for i, r := range w {
		if t[i] != r {
			return nil
		}
	}
	if len(w) == 0 {
		return []Span{}
	}
	return []Span{{Start: 0, End: len(w)}}
}

// MatchesContiguousSubString matches when word occurs anywhere in target,
// ignoring case.
func MatchesContiguousSubString(word, target string) []Span {
	w := []rune(strings.ToLower(word))
	t := []rune(strings.ToLower(target))
	idx := indexRunes(t, w)
	if idx < 0 {
		return nil
	}
	return []Span{{Start: idx, End: idx + len(w)}}
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 {
		return 0
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, r := range needle {
			if haystack[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}

// MatchesWords matches word as a sequence of pieces, each of which must
// begin at a word start in target. "gi st" matches "Git: Stash" and
// "tog sh" matches "Toggle Shortcuts". Separators in word match any
// separator in target.
func MatchesWords(word, target string) []Span {
	return matchesWords(word, target, false)
}

// MatchesContiguousWords is MatchesWords where every piece after the first
// must follow the previous one directly.
func MatchesContiguousWords(word, target string) []Span {
	return matchesWords(word, target, true)
}

func matchesWords(word, target string, contiguous bool) []Span {
	if target == "" {
		return nil
	}
	w := []rune(strings.ToLower(word))
	t := []rune(strings.ToLower(target))

	for ti := 0; ti < len(t); ti = nextWord(t, ti+1) {
		if m := matchWordsAt(w, t, 0, ti, contiguous); m != nil {
			return m
		}
	}
	return nil
}

func matchWordsAt(w, t []rune, wi, ti int, contiguous bool) []Span {
	if wi == len(w) {
		return []Span{}
	}
	if ti == len(t) {
		return nil
	}
	if !charactersMatch(w[wi], t[ti]) {
		return nil
	}

	next := ti + 1
	result := matchWordsAt(w, t, wi+1, next, contiguous)
	if !contiguous {
		for result == nil {
			next = nextWord(t, next)
			if next >= len(t) {
				break
			}
			result = matchWordsAt(w, t, wi+1, next, contiguous)
			next++
		}
	}
	if result == nil {
		return nil
	}

	// Matching separators are not highlighted.
	if w[wi] != t[ti] {
		return result
	}
	return join(Span{Start: ti, End: ti + 1}, result)
}

func join(head Span, tail []Span) []Span {
	if len(tail) == 0 {
		return []Span{head}
	}
	if head.End == tail[0].Start {
		tail[0].Start = head.Start
		return tail
	}
	return append([]Span{head}, tail...)
}

// nextWord returns the first index at or after start that is a separator or
// directly follows one.
func nextWord(t []rune, start int) int {
	for i := start; i < len(t); i++ {
		if isWordSeparator(t[i]) || (i > 0 && isWordSeparator(t[i-1])) {
			return i
		}
	}
	return len(t)
}

func charactersMatch(a, b rune) bool {
	return a == b || (isWordSeparator(a) && isWordSeparator(b))
}

const separators = "()[]{}<>`'\"-/;:,.?!"

func isWordSeparator(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(separators, r)
}
