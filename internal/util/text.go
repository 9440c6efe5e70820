package util

import (
	"regexp"
	"strings"
)

var (
	reSpaces = regexp.MustCompile(`\s+`)

	// Sizes and ratings such as 288mm, 110kW, 12V or 1.4l.
	reMeasurement = regexp.MustCompile(`(?i)^\d+(?:[.,]\d+)?(?:mm|cm|kw|ps|hp|v|ah|l|ccm|nm|zoll)$`)

	// Engine designations such as 1.6TDI or 2,0d.
	reEngine  = regexp.MustCompile(`(?i)^\d[.,]\d(?:tdi|tsi|tfsi|fsi|hdi|cdi|crdi|dci|tdci|jtd|d|i|t)?$`)
	reDecimal = regexp.MustCompile(`^\d+[.,]\d+$`)
)

// NormalizeOEM keeps ASCII letters and digits and upper-cases them.
// Every OEM comparison goes through this function.
func NormalizeOEM(input string) string {
	out := strings.Builder{}
	out.Grow(len(input))
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out.WriteByte(c)
		case c >= 'a' && c <= 'z':
			out.WriteByte(c - 'a' + 'A')
		}
	}
	return out.String()
}

// NormalizeText lower-cases, trims and collapses whitespace for name comparisons.
func NormalizeText(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	return reSpaces.ReplaceAllString(s, " ")
}

func Tokenize(input string) []string {
	parts := strings.FieldsFunc(input, func(r rune) bool {
		return r == ' ' || r == ',' || r == ';' || r == '\t' || r == '\n' || r == '(' || r == ')'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, ".:")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LooksLikeArticleNumber accepts tokens with at least five significant characters
// that contain a digit and either a letter or seven or more digits. Sizes, power
// ratings, engine designations and plain decimals are rejected.
func LooksLikeArticleNumber(input string) bool {
	compact := reSpaces.ReplaceAllString(strings.TrimSpace(input), "")
	if reMeasurement.MatchString(compact) || reEngine.MatchString(compact) || reDecimal.MatchString(compact) {
		return false
	}
	norm := NormalizeOEM(input)
	if len(norm) < 5 || len(norm) > 20 {
		return false
	}
	letters, digits := 0, 0
	for i := 0; i < len(norm); i++ {
		if norm[i] >= '0' && norm[i] <= '9' {
			digits++
		} else {
			letters++
		}
	}
	if digits == 0 {
		return false
	}
	return letters > 0 || digits >= 7
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
