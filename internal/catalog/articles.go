package catalog

import "partsbot/internal/util"

// ReferenceNumber is one OEM or cross-reference number attached to an article.
type ReferenceNumber struct {
	Raw   string
	Brand string
	Kind  string
}

const (
	KindOE      = "oe"
	KindArticle = "article_number"
)

// ArticleInfo is the tolerant view of an article record.
type ArticleInfo struct {
	ID          int
	Number      string
	Brand       string
	Description string
}

func ReadArticle(r Record) ArticleInfo {
	return ArticleInfo{
		ID:          r.Int(ArticleIDFields...),
		Number:      r.String(ArticleNumberFields...),
		Brand:       r.String(ArticleBrandFields...),
		Description: r.String(ArticleDescriptionFields...),
	}
}

// CollectReferenceNumbers gathers every OE number listed on the article and on its
// details payload, plus the article numbers themselves, keeping the first spelling
// of each normalized number.
func CollectReferenceNumbers(article Record, details Record) []ReferenceNumber {
	out := []ReferenceNumber{}
	seen := map[string]struct{}{}
	add := func(raw, brand, kind string) {
		norm := util.NormalizeOEM(raw)
		if norm == "" {
			return
		}
		if _, ok := seen[norm]; ok {
			return
		}
		seen[norm] = struct{}{}
		out = append(out, ReferenceNumber{Raw: raw, Brand: brand, Kind: kind})
	}

	fromRecord := func(r Record) {
		if r == nil {
			return
		}
		for _, item := range r.List(OENumberListFields...) {
			switch t := item.(type) {
			case string:
				add(t, "", KindOE)
			case map[string]any:
				oe := Record(t)
				add(oe.String(OENumberValueFields...), oe.String(OENumberBrandFields...), KindOE)
			}
		}
	}

	fromRecord(article)
	fromRecord(details)
	if nested := details.Nested("article"); nested != nil {
		fromRecord(nested)
	}
	nestedArticles := ListOf(map[string]any(details))
	for _, d := range nestedArticles {
		fromRecord(d)
	}

	add(article.String(ArticleNumberFields...), article.String(ArticleBrandFields...), KindArticle)
	for _, d := range nestedArticles {
		add(d.String(ArticleNumberFields...), d.String(ArticleBrandFields...), KindArticle)
	}
	return out
}
