// Package payee ranks known payees against free-text statement memos.
package payee

import (
	"log/slog"
	"sort"
	"strings"
	"unicode"
)

// DefaultThreshold is the pass-1 case-insensitive similarity cutoff.
const DefaultThreshold = 0.9

// Match is one candidate payee with its similarity score.
type Match struct {
	Name  string
	Score float64
}

// Suggester fuzzy-matches statement memos against the known payee list using
// a two-pass Jaro-Winkler ranking.
type Suggester struct {
	threshold float64
}

// NewSuggester creates a suggester with the given pass-1 threshold.
func NewSuggester(threshold float64) *Suggester {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	return &Suggester{threshold: threshold}
}

// Suggest returns known payees ranked by similarity to the memo, best first.
func (s *Suggester) Suggest(memo string, payees []string) []string {
	slog.Debug("Looking for best payee match", "memo", memo)

	matches := s.TwoPass(memo, payees)
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.Name
	}

	slog.Debug("Payee candidates ranked", "memo", memo, "candidates", names)
	return names
}

// TwoPass runs the full ranking and returns candidates with their final
// scores. Pass 1 scores every whitespace-separated memo token against every
// payee case-insensitively and keeps pairs above the threshold; this prunes
// the candidate set on partial-word signal. Pass 2 re-scores each survivor
// against the full original memo case-sensitively and produces the final
// order. Both sorts are stable so ties preserve candidate order.
func (s *Suggester) TwoPass(memo string, payees []string) []Match {
	var firstPass []Match
	for _, word := range strings.Fields(memo) {
		for _, candidate := range payees {
			score := jaroWinkler(word, candidate, true)
			if score > s.threshold {
				firstPass = append(firstPass, Match{Name: candidate, Score: score})
			}
		}
	}
	sort.SliceStable(firstPass, func(i, j int) bool {
		return firstPass[i].Score > firstPass[j].Score
	})

	result := make([]Match, len(firstPass))
	for i, m := range firstPass {
		result[i] = Match{Name: m.Name, Score: jaroWinkler(memo, m.Name, false)}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})
	return result
}

// jaroWinkler extends Jaro similarity with a common-prefix boost. Unlike the
// textbook algorithm the prefix length is not capped at four characters; the
// only ceiling is the final score bound of 1.0.
func jaroWinkler(s1, s2 string, ignoreCase bool) float64 {
	prefixLen := commonPrefixLen(s1, s2, ignoreCase)
	if ignoreCase {
		s1 = strings.ToLower(s1)
		s2 = strings.ToLower(s2)
	}
	jaro := jaroSimilarity(s1, s2)
	winkler := jaro + 0.1*float64(prefixLen)*(1-jaro)
	if winkler > 1.0 {
		return 1.0
	}
	return winkler
}

func jaroSimilarity(s1, s2 string) float64 {
	r1 := []rune(s1)
	r2 := []rune(s2)

	switch {
	case len(r1) == 0 && len(r2) == 0:
		return 1.0
	case len(r1) == 0 || len(r2) == 0:
		return 0.0
	case len(r1) == 1 && len(r2) == 1:
		if r1[0] == r2[0] {
			return 1.0
		}
		return 0.0
	}

	searchRange := max(len(r1), len(r2))/2 - 1
	consumed := make([]bool, len(r2))
	matches := 0.0
	transpositions := 0
	matchIndex := 0

	for i, c1 := range r1 {
		start := max(0, i-searchRange)
		end := min(len(r2)-1, i+searchRange)
		for j := start; j <= end; j++ {
			if r2[j] != c1 || consumed[j] {
				continue
			}
			consumed[j] = true
			matches++
			if j < matchIndex {
				transpositions++
			}
			matchIndex = j
			break
		}
	}

	if matches == 0 {
		return 0.0
	}
	return (matches/float64(len(r1)) +
		matches/float64(len(r2)) +
		(matches-float64(transpositions))/matches) / 3.0
}

func commonPrefixLen(s1, s2 string, ignoreCase bool) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	n := 0
	for n < len(r1) && n < len(r2) {
		a, b := r1[n], r2[n]
		if ignoreCase {
			a = unicode.ToLower(a)
			b = unicode.ToLower(b)
		}
		if a != b {
			break
		}
		n++
	}
	return n
}
