package catalog

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Record is one loosely typed object from a catalog response. Field names vary
// between endpoint versions, so every read goes through a list of aliases and the
// first usable one wins. A missing field is absent, never an error.
type Record map[string]any

var (
	VehicleIDFields          = []string{"vehicleId", "id", "typeId", "carId"}
	VehicleManufacturerIDs   = []string{"manufacturerId", "manuId", "mfrId", "makeId"}
	VehicleManufacturerNames = []string{"manufacturerName", "makeName", "mfrName"}
	VehicleModelIDs          = []string{"modelSeriesId", "modelId"}
	VehicleModelNames        = []string{"modelName", "model"}
	VehicleVariantNames      = []string{"typeName", "vehicleTypeDescription", "engineName", "description"}

	ManufacturerIDFields   = []string{"manuId", "manufacturerId", "mfrId", "id"}
	ManufacturerNameFields = []string{"name", "mfrName", "manuName", "text"}
	ModelIDFields          = []string{"modelSeriesId", "modelId", "id"}
	ModelNameFields        = []string{"name", "modelname", "modelName"}
	EngineNameFields       = []string{"engineName", "engineCode", "engine"}
	YearFromFields         = []string{"yearFrom", "yearOfConstrFrom", "constructionYearFrom"}
	YearToFields           = []string{"yearTo", "yearOfConstrTo", "constructionYearTo"}

	CategoryIDFields       = []string{"categoryId", "genericArticleId", "levelId_3", "levelId_2", "levelId_1", "assemblyGroupNodeId", "id"}
	CategoryNameFields     = []string{"productGroupName", "assemblyGroupName", "categoryName", "name", "text"}
	CategoryChildrenFields = []string{"children", "subCategories", "childNodes"}

	ArticleIDFields          = []string{"articleId", "id"}
	ArticleNumberFields      = []string{"articleNo", "articleNumber"}
	ArticleBrandFields       = []string{"brandName", "mfrName", "supplierName"}
	ArticleDescriptionFields = []string{"genericArticleDescription", "articleName", "description"}
	OENumberListFields       = []string{"oeNumbers", "oemNumbers", "oeNumber"}
	OENumberValueFields      = []string{"oeNumber", "oemNumber", "articleNumber", "number"}
	OENumberBrandFields      = []string{"mfrName", "brandName", "manufacturerName"}

	LanguageIDFields   = []string{"langId", "lngId", "languageId", "id"}
	LanguageNameFields = []string{"name", "languageName", "text"}
	CountryIDFields    = []string{"countryFilterId", "countryId", "id"}
	CountryCodeFields  = []string{"countryCode", "code", "iso2"}
	CountryNameFields  = []string{"name", "countryName", "text"}
)

// listKeys are the envelope keys a list may hide under, in lookup order.
var listKeys = []string{
	"data", "vehicles", "types", "results", "manufacturers", "modelSeries", "models",
	"engineTypes", "genericArticles", "assemblyGroups", "categories", "articles", "article",
	"articleDirectSearchResults", "languages", "countries",
}

// Int returns the first alias holding a non-zero integer.
func (r Record) Int(keys ...string) int {
	for _, k := range keys {
		if v, ok := toInt(r[k]); ok && v != 0 {
			return v
		}
	}
	return 0
}

// String returns the first alias holding a non-empty string or number.
func (r Record) String(keys ...string) string {
	for _, k := range keys {
		switch t := r[k].(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case json.Number:
			return t.String()
		}
	}
	return ""
}

// Nested returns the object stored under key, or nil.
func (r Record) Nested(key string) Record {
	if m, ok := r[key].(map[string]any); ok {
		return Record(m)
	}
	return nil
}

// List returns the first alias holding a list.
func (r Record) List(keys ...string) []any {
	for _, k := range keys {
		if arr, ok := r[k].([]any); ok {
			return arr
		}
	}
	return nil
}

// Year reads a construction year; YYYYMM and YYYYMMDD forms are reduced to the year,
// "2012-03" style strings use their leading digits.
func (r Record) Year(keys ...string) int {
	for _, k := range keys {
		v, ok := toInt(r[k])
		if !ok {
			s, isStr := r[k].(string)
			if !isStr || len(s) < 4 {
				continue
			}
			v, ok = toInt(s[:4])
			if !ok {
				continue
			}
		}
		for v > 9999 {
			v /= 100
		}
		if v > 0 {
			return v
		}
	}
	return 0
}

// ListOf unwraps a response into records: a bare array, or the first envelope key
// that holds an array. Non-object entries are dropped.
func ListOf(body any) []Record {
	switch t := body.(type) {
	case []any:
		return toRecords(t)
	case map[string]any:
		for _, k := range listKeys {
			switch inner := t[k].(type) {
			case []any:
				return toRecords(inner)
			case map[string]any:
				if k == "data" {
					if nested := ListOf(inner); len(nested) > 0 {
						return nested
					}
				}
			}
		}
	}
	return nil
}

// Children returns the sub-nodes of a tree record, whether they are stored as a
// list or as an object keyed by node id.
func (r Record) Children() []Record {
	for _, k := range CategoryChildrenFields {
		switch t := r[k].(type) {
		case []any:
			return toRecords(t)
		case map[string]any:
			if keyed, ok := objectValues(t); ok {
				return keyed
			}
		}
	}
	return nil
}

// objectValues reads {"<id>": {...}, ...} maps. The key becomes "id" when the
// object has none. Keys are visited in sorted order so results are stable.
func objectValues(m map[string]any) ([]Record, bool) {
	if len(m) == 0 {
		return nil, false
	}
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if _, ok := v.(map[string]any); !ok {
			return nil, false
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		rec := Record(m[k].(map[string]any))
		if _, has := rec["id"]; !has {
			rec["id"] = k
		}
		out = append(out, rec)
	}
	return out, true
}

func toRecords(arr []any) []Record {
	out := make([]Record, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Record(m))
		}
	}
	return out
}

// ManufacturerID also looks into a nested manufacturer object.
func (r Record) ManufacturerID() int {
	if id := r.Int(VehicleManufacturerIDs...); id != 0 {
		return id
	}
	if m := r.Nested("manufacturer"); m != nil {
		return m.Int("id", "manufacturerId")
	}
	return 0
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		i, err := t.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		return i, err == nil
	default:
		return 0, false
	}
}
