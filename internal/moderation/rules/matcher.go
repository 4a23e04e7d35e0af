package rules

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/venlyx/sentinel/pkg/utils"
)

// MaxInputRunes bounds the text fed to the pattern engine. Platform messages
// cap at 2000 characters; anything longer is truncated before matching so a
// pathological payload cannot inflate matching cost.
const MaxInputRunes = 2000

// Match identifies the rule and pattern a message was classified under.
type Match struct {
	Rule    int
	Message string
	Pattern string
}

// Matcher classifies message text against an ordered rule set. It holds no
// mutable state and is safe for concurrent use.
type Matcher struct {
	rules []Rule
}

// NewMatcher creates a matcher over the given rules, sorted by rule number
// so evaluation order always follows rule priority.
func NewMatcher(ruleSet []Rule) *Matcher {
	sorted := make([]Rule, len(ruleSet))
	copy(sorted, ruleSet)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	return &Matcher{rules: sorted}
}

// Rules returns the matcher's rule set in evaluation order.
func (m *Matcher) Rules() []Rule {
	return m.rules
}

// Classify returns the first rule and pattern matching the message text, or
// false when no rule matches. Text is bounded, lower-cased and
// unicode-normalized before matching so homoglyph padding does not evade
// word patterns.
func (m *Matcher) Classify(text string) (Match, bool) {
	normalized := normalize(truncateRunes(text, MaxInputRunes))

	for _, rule := range m.rules {
		for _, pattern := range rule.Patterns {
			if pattern.MatchString(normalized) {
				return Match{
					Rule:    rule.Number,
					Message: rule.Message,
					Pattern: pattern.String(),
				}, true
			}
		}
	}

	return Match{}, false
}

// normalize lower-cases text, strips combining marks via NFKD
// decomposition, and collapses whitespace runs so padding cannot split
// word patterns. Falls back to plain lower-casing if the transform fails
// on malformed input.
func normalize(s string) string {
	transformer := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(unicode.ToLower),
		norm.NFKC,
	)

	result, _, err := transform.String(transformer, s)
	if err != nil || result == "" {
		result = strings.ToLower(s)
	}

	return utils.CompressAllWhitespace(result)
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}

	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n])
}
