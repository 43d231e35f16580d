package gap

import "testing"

func TestNormalizeTrendRecord(t *testing.T) {
	rec, ok := normalizeTrendRecord(map[string]any{
		"title":                         "Voice Commerce",
		"core_concept":                  "shopping by voice assistant",
		"business_value":                "higher conversion",
		"target_audience":               []any{"retailers", "brands"},
		"domain":                        "retail",
		"semantic_keywords":             []any{"voice", "checkout"},
		"relevant_products_or_services": []any{"smart speakers"},
	})
	if !ok {
		t.Fatal("expected record to normalize")
	}
	if rec.Trend != "Voice Commerce" {
		t.Errorf("trend = %q", rec.Trend)
	}
	wantDesc := "higher conversion shopping by voice assistant Audience: retailers, brands Domain: retail"
	if rec.Description != wantDesc {
		t.Errorf("description = %q, want %q", rec.Description, wantDesc)
	}
	wantKw := []string{"voice", "checkout", "smart speakers"}
	if len(rec.Keywords) != len(wantKw) {
		t.Fatalf("keywords = %v, want %v", rec.Keywords, wantKw)
	}
	for i := range wantKw {
		if rec.Keywords[i] != wantKw[i] {
			t.Fatalf("keywords = %v, want %v", rec.Keywords, wantKw)
		}
	}
}

func TestNormalizeTrendRecordTitlePriority(t *testing.T) {
	rec, _ := normalizeTrendRecord(map[string]any{"trend": "A", "title": "B"})
	if rec.Trend != "A" {
		t.Errorf("trend field should win over title, got %q", rec.Trend)
	}

	rec, ok := normalizeTrendRecord(map[string]any{"industry": "fintech", "domain": "Unknown"})
	if !ok || rec.Trend != "fintech" {
		t.Fatalf("industry fallback: ok=%v trend=%q", ok, rec.Trend)
	}
	if rec.Description != "" {
		t.Errorf("unknown domain leaked into description: %q", rec.Description)
	}

	if _, ok := normalizeTrendRecord(map[string]any{"description": "no title"}); ok {
		t.Error("expected record without a title to be dropped")
	}
}

func TestFlattenTrendRecords(t *testing.T) {
	out := flattenTrendRecords([]map[string]any{
		{
			"keyword": "ai",
			"results": []any{
				map[string]any{"title": "Agentic Workflows", "keywords": []any{"agents"}},
				"not a record",
				map[string]any{"summary_only": true},
			},
		},
		{"trend": "Direct Record"},
	})
	if len(out) != 2 {
		t.Fatalf("flattened %d records, want 2: %+v", len(out), out)
	}
	if out[0].Trend != "Agentic Workflows" || out[1].Trend != "Direct Record" {
		t.Errorf("trends = %q, %q", out[0].Trend, out[1].Trend)
	}
	if len(out[0].Keywords) != 1 || out[0].Keywords[0] != "agents" {
		t.Errorf("keywords = %v", out[0].Keywords)
	}
}
