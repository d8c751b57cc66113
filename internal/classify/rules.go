package classify

import (
	"fmt"
	"regexp"
	"strings"
)

// Match selects how a Rule pattern is compared against a remote message.
type Match string

const (
	MatchExact    Match = "exact"
	MatchContains Match = "contains"
	MatchRegexp   Match = "regexp"
)

// Rule marks remote error messages that make the whole batch pointless.
type Rule struct {
	Match   Match
	Pattern string
	re      *regexp.Regexp
}

// NewRule validates and compiles a rule. An empty match kind means exact.
func NewRule(match, pattern string) (Rule, error) {
	r := Rule{Match: Match(strings.ToLower(strings.TrimSpace(match))), Pattern: pattern}
	if r.Match == "" {
		r.Match = MatchExact
	}
	if strings.TrimSpace(pattern) == "" {
		return Rule{}, fmt.Errorf("empty %s pattern", r.Match)
	}
	switch r.Match {
	case MatchExact, MatchContains:
	case MatchRegexp:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Rule{}, fmt.Errorf("compile %q: %w", pattern, err)
		}
		r.re = re
	default:
		return Rule{}, fmt.Errorf("unknown match kind %q", match)
	}
	return r, nil
}

func mustRule(match, pattern string) Rule {
	r, err := NewRule(match, pattern)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRules are the service messages for a bad token, a malformed
// collection id and a missing target column. They are English-only and
// follow the service wording verbatim.
func DefaultRules() []Rule {
	return []Rule{
		mustRule(string(MatchExact), "credential invalid"),
		mustRule(string(MatchExact), "collection id must be a valid unique identifier"),
		mustRule(string(MatchRegexp), `^.+ not found in target collection$`),
	}
}

func (r Rule) matches(message string) bool {
	message = strings.TrimSpace(message)
	if message == "" {
		return false
	}
	switch r.Match {
	case MatchExact:
		return message == r.Pattern
	case MatchContains:
		return strings.Contains(message, r.Pattern)
	case MatchRegexp:
		return r.re != nil && r.re.MatchString(message)
	}
	return false
}
