package identity

import (
	"testing"

	"partsbot/internal/catalog"
)

func TestScore(t *testing.T) {
	cases := []struct {
		name, needle string
		want         int
	}{
		{"VOLKSWAGEN", "volkswagen", 10},
		{"  Golf VII ", "golf", 4},
		{"Passat", "golf", 0},
		{"", "golf", 0},
		{"Golf", "", 0},
	}
	for _, tc := range cases {
		if got := Score(tc.name, tc.needle); got != tc.want {
			t.Fatalf("Score(%q, %q) = %d, want %d", tc.name, tc.needle, got, tc.want)
		}
	}
}

func TestBestMatchKeepsFirstOnTie(t *testing.T) {
	records := []catalog.Record{{"name": "Golf Plus"}, {"name": "Golf Variant"}}
	if got := BestMatch(records, "golf", 0, catalog.ModelNameFields); got != 0 {
		t.Fatalf("want first record, got %d", got)
	}
}

func TestBestMatchYearBonus(t *testing.T) {
	records := []catalog.Record{
		{"name": "Golf IV", "yearFrom": 1997.0, "yearTo": 2006.0},
		{"name": "Golf VII", "yearFrom": 2012.0, "yearTo": 2020.0},
	}
	if got := BestMatch(records, "golf", 2015, catalog.ModelNameFields); got != 1 {
		t.Fatalf("want year-matching record, got %d", got)
	}
	if got := BestMatch(records, "", 1990, catalog.ModelNameFields); got != -1 {
		t.Fatalf("want no match, got %d", got)
	}
}
