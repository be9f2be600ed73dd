package util

import "strings"

// NormalizeCode canonicalizes a free-form product code: every non-digit is
// stripped and leading zeros are removed. Returns ok=false when no digit
// remains. An all-zero input keeps its digit string so "000" is not lost as
// the empty code.
func NormalizeCode(raw string) (string, bool) {
	digits := strings.Builder{}
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	s := digits.String()
	if s == "" {
		return "", false
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return s, true
	}
	return trimmed, true
}

// MergeCodes normalizes a list of raw tokens and deduplicates by canonical
// value, preserving first-seen order. Tokens without digits are dropped.
func MergeCodes(tokens []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		code, ok := NormalizeCode(tok)
		if !ok {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}
