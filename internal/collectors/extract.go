package collectors

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"partsbot/internal/util"
)

// Extraction methods, strongest first.
const (
	MethodLabel      = "label"
	MethodStructured = "structured"
	MethodGeneric    = "generic"
)

const maxNumberLength = 20

var (
	reOELabel  = regexp.MustCompile(`(?i)(?:\b(?:OEM?|OE)(?:[- ]?(?:Nr|Nummer|Nummern|Number|Numbers|No|Teilenummer|Referenz))?|Référence OE|Numéro OE|Vergleichsnummer|Referenznummer)(?:[.:#]|\s)+`)
	reEmbedded = regexp.MustCompile(`"(?:oeNumbers?|oemNumbers?|oe_numbers?|oeNo)"\s*:\s*(\[[^\]]*\]|"[^"]*")`)
	reQuoted   = regexp.MustCompile(`"([^"]+)"`)
	reGeneric  = regexp.MustCompile(`\b[A-Z0-9][A-Z0-9.\-]{3,18}[A-Z0-9]\b`)
	reGroup    = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]*$`)
	reBoundary = regexp.MustCompile(`\s{2,}|\n`)
)

// Extracted is one OEM-looking number found on a page.
type Extracted struct {
	Raw    string
	Method string
}

// ExtractOptions tune a single extraction run.
type ExtractOptions struct {
	// Labels are extra site-specific label patterns; the number must follow the match.
	Labels  []*regexp.Regexp
	Exclude []string
	Limit   int
}

// ExtractOEMs scans an HTML or text body for OEM numbers: explicit labels first,
// then structured data, then generic tokens. The result is deduplicated by
// normalized number and capped at opts.Limit.
func ExtractOEMs(body string, opts ExtractOptions) []Extracted {
	limit := opts.Limit
	if limit <= 0 {
		limit = 8
	}
	out := []Extracted{}
	seen := map[string]struct{}{}
	for _, ex := range opts.Exclude {
		if n := util.NormalizeOEM(ex); n != "" {
			seen[n] = struct{}{}
		}
	}
	add := func(raw, method string) bool {
		raw = strings.TrimSpace(raw)
		if !util.LooksLikeArticleNumber(raw) {
			return len(out) < limit
		}
		norm := util.NormalizeOEM(raw)
		if _, ok := seen[norm]; ok {
			return len(out) < limit
		}
		seen[norm] = struct{}{}
		out = append(out, Extracted{Raw: raw, Method: method})
		return len(out) < limit
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	text := body
	if err == nil {
		text = visibleText(doc)
	}

	patterns := append([]*regexp.Regexp{reOELabel}, opts.Labels...)
	for _, p := range patterns {
		for _, loc := range p.FindAllStringIndex(text, -1) {
			for _, n := range numbersAfterLabel(text[loc[1]:]) {
				if !add(n, MethodLabel) {
					return out
				}
			}
		}
	}

	for _, n := range structuredNumbers(doc, body) {
		if !add(n, MethodStructured) {
			return out
		}
	}

	for _, tok := range reGeneric.FindAllString(text, -1) {
		if !add(tok, MethodGeneric) {
			return out
		}
	}
	return out
}

// numbersAfterLabel reads the numbers directly following a label. Spaced groups
// such as "1K0 615 301 AA" are joined within one text run; comma or semicolon
// separated lists continue only while every group of the previous entry was used.
func numbersAfterLabel(tail string) []string {
	if len(tail) > 120 {
		tail = tail[:120]
	}
	out := []string{}
	for _, segment := range strings.FieldsFunc(tail, isListSeparator) {
		segment = strings.TrimSpace(segment)
		chunk := segment
		if loc := reBoundary.FindStringIndex(segment); loc != nil {
			chunk = segment[:loc[0]]
		}
		groups := strings.Fields(chunk)
		taken := []string{}
		size := 0
		for _, g := range groups {
			if strings.HasPrefix(g, "(") {
				break
			}
			g = strings.TrimRight(g, ").")
			if !reGroup.MatchString(g) {
				break
			}
			size += len(util.NormalizeOEM(g))
			if size > maxNumberLength {
				break
			}
			taken = append(taken, g)
		}
		if len(taken) == 0 {
			break
		}
		out = append(out, strings.Join(taken, " "))
		if len(taken) < len(groups) || chunk != segment || len(out) >= 4 {
			break
		}
	}
	return out
}

func isListSeparator(r rune) bool {
	return r == ',' || r == ';' || r == '|' || r == '/'
}

// structuredNumbers collects JSON-LD mpn/sku values, data-oe* attributes and
// oeNumbers arrays embedded in inline JSON.
func structuredNumbers(doc *goquery.Document, body string) []string {
	out := []string{}
	if doc != nil {
		doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
			var v any
			if json.Unmarshal([]byte(s.Text()), &v) == nil {
				out = append(out, jsonLDNumbers(v, 0)...)
			}
		})
		doc.Find("*").Each(func(_ int, s *goquery.Selection) {
			for _, attr := range s.Nodes[0].Attr {
				if strings.HasPrefix(strings.ToLower(attr.Key), "data-oe") {
					out = append(out, attr.Val)
				}
			}
		})
	}
	for _, m := range reEmbedded.FindAllStringSubmatch(body, -1) {
		for _, q := range reQuoted.FindAllStringSubmatch(m[1], -1) {
			out = append(out, q[1])
		}
	}
	return out
}

func jsonLDNumbers(v any, depth int) []string {
	if depth > 6 {
		return nil
	}
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			out = append(out, jsonLDNumbers(item, depth+1)...)
		}
	case map[string]any:
		for _, key := range []string{"mpn", "sku"} {
			if s, ok := t[key].(string); ok {
				out = append(out, s)
			}
		}
		for _, key := range []string{"@graph", "itemListElement", "item", "offers"} {
			if nested, ok := t[key]; ok {
				out = append(out, jsonLDNumbers(nested, depth+1)...)
			}
		}
	}
	return out
}

// visibleText joins the page's text nodes one per line, skipping scripts and styles.
func visibleText(doc *goquery.Document) string {
	b := strings.Builder{}
	var walk func(s *goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				b.WriteString(c.Text())
				b.WriteByte('\n')
			case "script", "style", "noscript", "template", "#comment":
			default:
				walk(c)
			}
		})
	}
	walk(doc.Selection)
	return b.String()
}
