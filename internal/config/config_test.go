package config

import (
	"errors"
	"strings"
	"testing"
)

func TestLoadScrapeWeights(t *testing.T) {
	t.Setenv("SCRAPE_WEIGHTS", "partsouq=0.4, Oscaro=1.7,autodoc=-1")
	t.Setenv("SCRAPE_ENABLED_SOURCES", "partsouq, oscaro")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Weight("partsouq", 0.5); got != 0.4 {
		t.Fatalf("partsouq weight=%v", got)
	}
	if got := cfg.Weight("oscaro", 0.5); got != 1 {
		t.Fatalf("oscaro weight=%v", got)
	}
	if got := cfg.Weight("autodoc", 0.5); got != 0 {
		t.Fatalf("autodoc weight=%v", got)
	}
	if got := cfg.Weight("pkwteile", 0.82); got != 0.82 {
		t.Fatalf("fallback weight=%v", got)
	}
	if !cfg.SourceEnabled("PartSouq") || cfg.SourceEnabled("kfzteile24") {
		t.Fatalf("unexpected enabled sources %v", cfg.ScrapeEnabledSources)
	}
}

func TestLoadRejectsMalformedWeights(t *testing.T) {
	t.Setenv("SCRAPE_WEIGHTS", "partsouq")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}

func TestRequireCatalog(t *testing.T) {
	cfg := Config{CatalogAPIBaseURL: "https://catalog.test"}
	err := cfg.RequireCatalog()
	if !errors.Is(err, ErrCatalogNotConfigured) {
		t.Fatalf("err=%v", err)
	}
	if !strings.Contains(err.Error(), "CATALOG_API_TOKEN") {
		t.Fatalf("error does not name the missing var: %v", err)
	}
	cfg.CatalogAPIToken = "   "
	if err := cfg.RequireCatalog(); !errors.Is(err, ErrCatalogNotConfigured) {
		t.Fatalf("blank token accepted: %v", err)
	}
	if err := (Config{CatalogAPIToken: "token"}).RequireCatalog(); err == nil || !strings.Contains(err.Error(), "CATALOG_API_BASE_URL") {
		t.Fatalf("err=%v", err)
	}
	cfg.CatalogAPIToken = "token"
	if err := cfg.RequireCatalog(); err != nil {
		t.Fatal(err)
	}
}
