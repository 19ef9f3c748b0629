package scoring

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// aliases maps spellings of the same technology to one token. Keys are
// lowercased raw tokens, before punctuation is stripped.
var aliases = map[string]string{
	"golang":   "go",
	"node.js":  "nodejs",
	"node":     "nodejs",
	"k8s":      "kubernetes",
	"c++":      "cpp",
	"c#":       "csharp",
	"f#":       "fsharp",
	".net":     "dotnet",
	"js":       "javascript",
	"ts":       "typescript",
	"postgres": "postgresql",
	"psql":     "postgresql",
	"py":       "python",
	"react.js": "react",
	"reactjs":  "react",
	"vue.js":   "vue",
	"vuejs":    "vue",
	"next.js":  "nextjs",
}

// shortTokenLen is the longest normalized term that must match a whole token.
const shortTokenLen = 2

// Tokenize lowercases text and splits it into normalized tokens. The
// characters + # . are kept inside tokens so that "c++", "c#" and "node.js"
// reach the alias table intact; whatever punctuation remains afterwards is
// removed.
func Tokenize(text string) []string {
	var (
		tokens []string
		word   strings.Builder
	)

	flush := func() {
		// Trailing dots end sentences; a leading dot belongs to names like ".net".
		raw := strings.TrimRight(word.String(), ".")
		word.Reset()
		if alias, ok := aliases[raw]; ok {
			tokens = append(tokens, alias)
			return
		}

		cleaned := strings.Map(func(r rune) rune {
			if r == '+' || r == '#' || r == '.' {
				return -1
			}
			return r
		}, raw)
		if cleaned == "" {
			return
		}
		if alias, ok := aliases[cleaned]; ok {
			cleaned = alias
		}
		tokens = append(tokens, cleaned)
	}

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.' {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// NormalizeTerm returns the normalized form of a profile term.
func NormalizeTerm(term string) string {
	return strings.Join(Tokenize(term), " ")
}

// Text is a normalized listing text that terms are matched against.
type Text struct {
	joined string
	tokens map[string]struct{}
}

func NewText(parts ...string) *Text {
	tokens := Tokenize(strings.Join(parts, " "))

	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}

	return &Text{
		joined: " " + strings.Join(tokens, " ") + " ",
		tokens: set,
	}
}

// Contains reports whether the normalized term occurs in the text. Terms of
// at most two characters only match a whole token, so "go" never matches
// inside "django". Longer terms match as substrings.
func (t *Text) Contains(normalizedTerm string) bool {
	if normalizedTerm == "" {
		return false
	}
	if utf8.RuneCountInString(normalizedTerm) <= shortTokenLen {
		_, ok := t.tokens[normalizedTerm]
		return ok
	}
	return strings.Contains(t.joined, normalizedTerm)
}

// Words returns the token set, for overlap computations.
func (t *Text) Words() map[string]struct{} {
	return t.tokens
}
