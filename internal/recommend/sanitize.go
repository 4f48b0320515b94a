package recommend

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const DefaultPromptMaxRunes = 500

// DefaultDenylist names chat roles and instruction-override words.
var DefaultDenylist = []string{"system", "assistant", "user", "role", "function", "ignore"}

// Sanitizer scrubs user prompt text before it reaches the model. It is a
// best-effort filter against prompt injection, not a guarantee.
type Sanitizer struct {
	maxRunes int
	tokens   *regexp.Regexp
}

func NewSanitizer(denylist []string, maxRunes int) *Sanitizer {
	if maxRunes <= 0 {
		maxRunes = DefaultPromptMaxRunes
	}
	if len(denylist) == 0 {
		denylist = DefaultDenylist
	}
	var quoted []string
	for _, token := range denylist {
		token = norm.NFKC.String(strings.TrimSpace(token))
		if token != "" {
			quoted = append(quoted, regexp.QuoteMeta(token))
		}
	}
	s := &Sanitizer{maxRunes: maxRunes}
	if len(quoted) > 0 {
		s.tokens = regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
	}
	return s
}

// Sanitize folds compatibility characters, drops control characters, removes
// denylisted tokens until none remain and truncates to the configured length.
// Sanitize(Sanitize(x)) == Sanitize(x).
func (s *Sanitizer) Sanitize(in string) string {
	out := in
	for {
		next := s.scrub(out)
		if next == out {
			break
		}
		out = next
	}
	return strings.TrimSpace(truncateRunes(out, s.maxRunes))
}

func (s *Sanitizer) scrub(in string) string {
	out := norm.NFKC.String(in)
	out = strings.Map(func(r rune) rune {
		if r == utf8.RuneError || unicode.IsControl(r) && r != '\n' {
			return -1
		}
		return r
	}, out)
	if s.tokens != nil {
		out = s.tokens.ReplaceAllString(out, "")
	}
	return out
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
