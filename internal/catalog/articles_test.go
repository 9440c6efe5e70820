package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectReferenceNumbersMergesArticleAndDetails(t *testing.T) {
	article := Record{
		"articleNo": "0 986 479 C67",
		"brandName": "BOSCH",
		"oeNumbers": []any{
			map[string]any{"oeNumber": "5Q0 615 301 H", "mfrName": "VW"},
			"1K0615301AA",
		},
	}
	details := Record{
		"article": map[string]any{
			"oemNumbers": []any{
				map[string]any{"number": "5Q0-615-301-H", "brandName": "VAG"},
				map[string]any{"number": "3C0615301"},
			},
		},
	}

	refs := CollectReferenceNumbers(article, details)

	raws := make([]string, 0, len(refs))
	for _, r := range refs {
		raws = append(raws, r.Raw)
	}
	assert.Equal(t, []string{"5Q0 615 301 H", "1K0615301AA", "3C0615301", "0 986 479 C67"}, raws)
	assert.Equal(t, "VW", refs[0].Brand)
	assert.Equal(t, KindOE, refs[0].Kind)
	assert.Equal(t, KindArticle, refs[3].Kind)
}

func TestCollectReferenceNumbersToleratesMissingFields(t *testing.T) {
	assert.Empty(t, CollectReferenceNumbers(Record{}, nil))
	assert.Empty(t, CollectReferenceNumbers(Record{"oeNumbers": "not-a-list", "articleNo": "---"}, Record{}))
}

func TestReadArticle(t *testing.T) {
	info := ReadArticle(Record{"id": 9.0, "articleNumber": "ABC123", "mfrName": "ATE", "articleName": "Bremsscheibe"})
	assert.Equal(t, ArticleInfo{ID: 9, Number: "ABC123", Brand: "ATE", Description: "Bremsscheibe"}, info)
}

func TestListOfReadsKeyedObjects(t *testing.T) {
	body := map[string]any{
		"categories": map[string]any{
			"100030": map[string]any{"text": "Bremsanlage", "children": map[string]any{
				"100032": map[string]any{"text": "Bremsscheibe"},
			}},
			"100001": map[string]any{"text": "Motor"},
		},
	}
	records := ListOf(body)
	if assert.Len(t, records, 2) {
		assert.Equal(t, "Motor", records[0].String(CategoryNameFields...))
		assert.Equal(t, 100030, records[1].Int(CategoryIDFields...))
		children := records[1].Children()
		assert.Len(t, children, 1)
		assert.Equal(t, 100032, children[0].Int(CategoryIDFields...))
	}
}
