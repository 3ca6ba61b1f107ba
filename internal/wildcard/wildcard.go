// Package wildcard implements wildcard pattern matching with deterministic
// priority and specificity ranking. It is used for matching shell command
// strings against permission patterns and for filtering tool names.
package wildcard

import (
	"regexp"
	"sort"
	"strings"
)

// Candidate is a pattern that matched a given text, annotated with its
// ranking scores. Priority and Specificity are pure functions of the
// pattern (and text), so Candidates are reproducible and cacheable.
type Candidate struct {
	Pattern     string
	Priority    int
	Specificity int
}

// ExactMatchPriority is assigned when the pattern equals the text. An exact
// match always outranks every wildcard pattern.
const ExactMatchPriority = 1000

// Match reports whether text matches pattern. Patterns use `*` for any run
// of characters (including empty), `?` for exactly one character, and
// literal characters otherwise. `**` is equivalent to `*`. A pattern that
// cannot be compiled is treated as non-matching.
func Match(pattern, text string) bool {
	if pattern == text {
		return true
	}
	if pattern == "*" || pattern == "**" {
		return true
	}
	re, err := compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

// compile turns a wildcard pattern into an anchored regexp. All regexp
// metacharacters except `*` and `?` are escaped.
func compile(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

// literalCount counts characters that are neither `*` nor `?`.
func literalCount(pattern string) int {
	n := 0
	for _, r := range pattern {
		if r != '*' && r != '?' {
			n++
		}
	}
	return n
}

// wildcardCount counts `*` and `?` occurrences.
func wildcardCount(pattern string) int {
	return len(pattern) - len(strings.NewReplacer("*", "", "?", "").Replace(pattern))
}

// Priority scores how strongly pattern claims text. An exact match scores
// ExactMatchPriority; otherwise more literal text raises the score and each
// wildcard lowers it.
func Priority(pattern, text string) int {
	if pattern == text {
		return ExactMatchPriority
	}
	return 10*literalCount(pattern) - 2*wildcardCount(pattern)
}

// Specificity is the tie-breaker between patterns of equal priority. It is
// never the primary sort key.
func Specificity(pattern string) int {
	score := 4 * literalCount(pattern)
	for _, r := range pattern {
		switch r {
		case '?':
			score += 2
		case '*':
			score--
		}
	}
	if strings.Contains(pattern, " ") {
		score += 5
	}
	if first := firstRune(pattern); first != 0 && first != '*' && first != '?' {
		score += 3
	}
	if last := lastRune(pattern); last != 0 && last != '*' && last != '?' {
		score += 3
	}
	return score
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func lastRune(s string) rune {
	var last rune
	for _, r := range s {
		last = r
	}
	return last
}

// Rank filters patterns to those matching text and orders them best-first:
// descending by priority, then by specificity. The sort is stable, so
// patterns with equal scores keep their input order. The head of the result,
// if any, is "the" match.
func Rank(patterns []string, text string) []Candidate {
	var candidates []Candidate
	for _, p := range patterns {
		if !Match(p, text) {
			continue
		}
		candidates = append(candidates, Candidate{
			Pattern:     p,
			Priority:    Priority(p, text),
			Specificity: Specificity(p),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].Specificity > candidates[j].Specificity
	})
	return candidates
}

// Best returns the top-ranked pattern for text, or false if nothing matched.
func Best(patterns []string, text string) (Candidate, bool) {
	ranked := Rank(patterns, text)
	if len(ranked) == 0 {
		return Candidate{}, false
	}
	return ranked[0], true
}

// PrefixMatch reports whether pattern's whitespace-separated tokens are a
// prefix of command's tokens, so a configured pattern "git push" matches the
// command "git push origin main". This compatibility mode applies only to
// patterns without wildcards, and only after Match has failed.
func PrefixMatch(command, pattern string) bool {
	if strings.ContainsAny(pattern, "*?") {
		return false
	}
	cmdTokens := strings.Fields(command)
	patTokens := strings.Fields(pattern)
	if len(patTokens) == 0 || len(patTokens) > len(cmdTokens) {
		return false
	}
	for i, tok := range patTokens {
		if cmdTokens[i] != tok {
			return false
		}
	}
	return true
}

// FilterNames applies include and exclude pattern lists to a set of names.
// An empty include list means every name is included; excludes are applied
// to whatever survives the include step.
func FilterNames(names, include, exclude []string) []string {
	var out []string
	for _, name := range names {
		if len(include) > 0 && !matchesAny(include, name) {
			continue
		}
		if matchesAny(exclude, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

func matchesAny(patterns []string, text string) bool {
	for _, p := range patterns {
		if Match(p, text) {
			return true
		}
	}
	return false
}
