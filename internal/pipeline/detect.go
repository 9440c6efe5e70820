package pipeline

import (
	"strings"

	"partsbot/internal"
	"partsbot/internal/util"
)

var (
	frontWords = []string{"vorne", "vorder", "front"}
	rearWords  = []string{"hinten", "hinter", "rear"}
	leftWords  = []string{"links", "left"}
	rightWords = []string{"rechts", "right"}
)

// DetectPartHints fills position, side and suspected number from the part text
// when the caller did not give them.
func DetectPartHints(q internal.PartQuery) internal.PartQuery {
	text := util.NormalizeText(q.Text)
	tokens := util.Tokenize(text)

	if q.Position == "" {
		switch {
		case hasWordPrefix(tokens, frontWords):
			q.Position = internal.PositionFront
		case hasWordPrefix(tokens, rearWords):
			q.Position = internal.PositionRear
		}
	}
	if q.Side == "" {
		switch {
		case hasWordPrefix(tokens, leftWords):
			q.Side = "left"
		case hasWordPrefix(tokens, rightWords):
			q.Side = "right"
		}
	}
	if strings.TrimSpace(q.SuspectedNumber) == "" {
		q.SuspectedNumber = SuspectedNumber(q.Text)
	} else {
		q.SuspectedNumber = strings.TrimSpace(q.SuspectedNumber)
	}
	return q
}

// SuspectedNumber returns the first token of text that looks like an article
// number. Spaced forms like "0 986 479 C67" are tried as a whole first.
func SuspectedNumber(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if isSpacedNumber(text) && util.LooksLikeArticleNumber(text) {
		return text
	}
	for _, tok := range util.Tokenize(text) {
		if util.LooksLikeArticleNumber(tok) {
			return tok
		}
	}
	return ""
}

// isSpacedNumber accepts "1K0 615 301 AA" but not "VW GOLF 7": every group
// carries a digit or is at most two characters long.
func isSpacedNumber(text string) bool {
	groups := strings.Fields(text)
	if len(groups) < 2 {
		return false
	}
	for _, g := range groups {
		if len(g) > 2 && !strings.ContainsAny(g, "0123456789") {
			return false
		}
	}
	return true
}

func hasWordPrefix(tokens []string, words []string) bool {
	for _, t := range tokens {
		for _, w := range words {
			if strings.HasPrefix(t, w) {
				return true
			}
		}
	}
	return false
}
