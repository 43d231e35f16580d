package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zainabsaad99/EECE798S-Project/config"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools/firecrawl"
)

func TestExcludedPage(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"https://acme.com/about", false},
		{"https://acme.com/products/widget-3000", true},
		{"https://acme.com/ar/about", true},
		{"https://acme.com/sitemap.xml", true},
		{"https://acme.com/pricing", false},
	}
	for _, tc := range cases {
		if got := excludedPage(tc.url); got != tc.want {
			t.Fatalf("excludedPage(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}

func TestParseProductDefaultsCategory(t *testing.T) {
	p := parseProduct(map[string]any{
		"name":     "Widget 3000",
		"features": []any{"fast", "cheap", "Fast"},
	})
	if p.Category != "Uncategorized" {
		t.Fatalf("category = %q", p.Category)
	}
	if len(p.Features) != 2 {
		t.Fatalf("features = %v", p.Features)
	}

	p = parseProduct(map[string]any{"name": "Widget 3000", "category": "Hardware"})
	if p.Category != "Hardware" {
		t.Fatalf("category = %q", p.Category)
	}
}

func TestMergeBusiness(t *testing.T) {
	items := []map[string]any{
		{
			"company_name":     "Acme",
			"industry":         "Manufacturing",
			"primary_keywords": []any{"widgets", "Tooling"},
			"products": []any{
				map[string]any{"name": "Widget 3000", "category": "Hardware"},
				map[string]any{"name": ""},
			},
		},
		{
			"company_name":     "Acme Corp Ltd",
			"domain":           "acme.com",
			"primary_keywords": []any{"TOOLING", "machining"},
			"products": []any{
				map[string]any{"name": "widget 3000", "category": "hardware"},
				map[string]any{"name": "Press X", "description": "hydraulic press"},
			},
		},
	}

	biz := mergeBusiness(items)
	if biz.Name != "Acme" {
		t.Fatalf("name = %q, first non-empty should win", biz.Name)
	}
	if biz.Domain != "acme.com" {
		t.Fatalf("domain = %q", biz.Domain)
	}
	if len(biz.PrimaryKeywords) != 3 {
		t.Fatalf("keywords = %v", biz.PrimaryKeywords)
	}
	if len(biz.Products) != 2 {
		t.Fatalf("products = %+v", biz.Products)
	}
	if biz.Products[1].Category != "Uncategorized" {
		t.Fatalf("category = %q", biz.Products[1].Category)
	}
}

func TestCatalogExtract(t *testing.T) {
	var extractedURLs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/map":
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"links": []map[string]string{
					{"url": "https://acme.com/about"},
					{"url": "https://acme.com/about?trk=homepage"},
					{"url": "https://acme.com/products/widget-3000"},
					{"url": "https://acme.com/sitemap.xml"},
					{"url": "https://acme.com/pricing"},
				},
			})
		case "/v2/extract":
			var req struct {
				URLs []string `json:"urls"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			extractedURLs = req.URLs
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data": map[string]any{
					"company_name": "Acme",
					"products": []map[string]string{
						{"name": "Widget 3000", "category": "Hardware"},
					},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	fc := firecrawl.New(config.TrendsConfig{BaseURL: srv.URL})
	ex := NewCatalogExtractor(fc)

	biz, pages, err := ex.Extract(context.Background(), "fc-key", "https://acme.com", 10)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if pages != 2 {
		t.Fatalf("pages = %d, want tracking variant and noise URLs dropped", pages)
	}
	if len(extractedURLs) != 2 || extractedURLs[0] != "https://acme.com/about" || extractedURLs[1] != "https://acme.com/pricing" {
		t.Fatalf("extracted urls = %v", extractedURLs)
	}
	if biz.Name != "Acme" || len(biz.Products) != 1 {
		t.Fatalf("business = %+v", biz)
	}
}

func TestCatalogExtractRequiresKey(t *testing.T) {
	fc := firecrawl.New(config.TrendsConfig{BaseURL: "http://127.0.0.1:0"})
	ex := NewCatalogExtractor(fc)

	_, _, err := ex.Extract(context.Background(), "", "https://acme.com", 1)
	if err == nil {
		t.Fatalf("expected auth error without a key")
	}
}
