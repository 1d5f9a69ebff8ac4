package config

import "testing"

func TestParseCatalog(t *testing.T) {
	catalog, err := parseCatalog("price_100pack:100, price_pro_monthly:500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(catalog) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(catalog))
	}
	if catalog["price_100pack"] != 100 || catalog["price_pro_monthly"] != 500 {
		t.Fatalf("unexpected catalog: %+v", catalog)
	}
}

func TestParseCatalogEmpty(t *testing.T) {
	catalog, err := parseCatalog("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(catalog) != 0 {
		t.Fatalf("expected empty catalog, got %+v", catalog)
	}
}

func TestParseCatalogRejectsMalformedEntries(t *testing.T) {
	for _, raw := range []string{"price_no_credits", "price_x:abc", "price_x:-5"} {
		if _, err := parseCatalog(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
