package search

import "strings"

// Matcher decides whether a node name or raw input reference is a hit
type Matcher interface {
	Match(s string) bool
}

// Patterns matches any string containing one of its entries as a substring
type Patterns []string

// Match implements Matcher
func (p Patterns) Match(s string) bool {
	for _, pattern := range p {
		if strings.Contains(s, pattern) {
			return true
		}
	}
	return false
}

// MatchFunc adapts a predicate to Matcher
type MatchFunc func(s string) bool

// Match implements Matcher
func (f MatchFunc) Match(s string) bool {
	return f(s)
}

// Any matches when at least one of the matchers does
func Any(matchers ...Matcher) Matcher {
	return MatchFunc(func(s string) bool {
		for _, m := range matchers {
			if m != nil && m.Match(s) {
				return true
			}
		}
		return false
	})
}
