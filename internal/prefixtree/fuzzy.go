package prefixtree

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"
)

// Match is a fuzzy search hit
type Match struct {
	Name  string
	Score float64
}

func sortMatches(matches []Match) {
	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

// similarity scores query against the last segment of name, which is what
// users usually type
func similarity(query, name string) float64 {
	q := strings.ToLower(query)
	target := strings.ToLower(lastSegment(name))
	if q == target {
		return 1
	}
	score, err := edlib.StringsSimilarity(q, target, edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return float64(score)
}

func lastSegment(name string) string {
	if i := strings.LastIndexAny(name, ":#"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Fuzzy returns every name containing query as a case-insensitive
// subsequence, best match first. Ties are broken alphabetically.
func (t *Tree) Fuzzy(query string) []Match {
	q := normalize(query)
	if len(q) == 0 {
		return nil
	}
	var matches []Match
	walk(t.root, func(name string) bool {
		if !isSubsequence(q, normalize(name)) {
			return true
		}
		score := similarity(query, name)
		if score >= t.options.threshold {
			matches = append(matches, Match{Name: name, Score: score})
		}
		return true
	})
	sortMatches(matches)
	return matches
}

// Stemmed returns names whose words share a stem with every word of query
// ("authentication" finds "Authenticator#authenticate").
func (t *Tree) Stemmed(query string) []Match {
	want := stems(query)
	if len(want) == 0 {
		return nil
	}
	var matches []Match
	walk(t.root, func(name string) bool {
		have := stems(name)
		for _, w := range want {
			if !slices.ContainsFunc(have, func(h string) bool { return strings.HasPrefix(h, w) || strings.HasPrefix(w, h) }) {
				return true
			}
		}
		matches = append(matches, Match{Name: name, Score: similarity(query, name)})
		return true
	})
	sortMatches(matches)
	return matches
}

// stems splits a name on separators and case changes and stems each word
func stems(s string) []string {
	var out []string
	for _, w := range splitWords(s) {
		if len(w) < 3 {
			continue
		}
		out = append(out, porter2.Stem(w))
	}
	return out
}

func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) ||
			(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}
