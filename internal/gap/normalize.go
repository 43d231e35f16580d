package gap

import "strings"

// TrendRecord is one normalized trend ready for embedding.
type TrendRecord struct {
	Trend       string   `json:"trend"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// flattenTrendRecords normalizes raw trend records. Inputs arrive in several
// shapes: plain {trend, description, keywords} dicts, structured TrendMatch
// output, or per-keyword wrappers carrying a nested results list.
func flattenTrendRecords(raw []map[string]any) []TrendRecord {
	var out []TrendRecord
	for _, rec := range raw {
		if results, ok := rec["results"].([]any); ok {
			for _, child := range results {
				if m, ok := child.(map[string]any); ok {
					if norm, ok := normalizeTrendRecord(m); ok {
						out = append(out, norm)
					}
				}
			}
			continue
		}
		if norm, ok := normalizeTrendRecord(rec); ok {
			out = append(out, norm)
		}
	}
	return out
}

func normalizeTrendRecord(raw map[string]any) (TrendRecord, bool) {
	title := firstString(raw, "trend", "title", "core_concept", "industry", "name")
	if title == "" {
		return TrendRecord{}, false
	}

	var parts []string
	for _, field := range []string{"description", "business_value"} {
		if v := asString(raw[field]); strings.TrimSpace(v) != "" {
			parts = append(parts, strings.TrimSpace(v))
		}
	}
	if core := asString(raw["core_concept"]); core != "" && core != title {
		parts = append(parts, core)
	}
	switch target := raw["target_audience"].(type) {
	case []any:
		if audience := joinStrings(target, ", "); audience != "" {
			parts = append(parts, "Audience: "+audience)
		}
	case string:
		if strings.TrimSpace(target) != "" {
			parts = append(parts, "Audience: "+strings.TrimSpace(target))
		}
	}
	if domain := asString(raw["domain"]); strings.TrimSpace(domain) != "" && !strings.EqualFold(domain, "unknown") {
		parts = append(parts, "Domain: "+strings.TrimSpace(domain))
	}

	var keywords []string
	for _, field := range []string{
		"keywords",
		"semantic_keywords",
		"products_services",
		"relevant_products",
		"relevant_products_services",
		"relevant_products_or_services",
	} {
		if list, ok := raw[field].([]any); ok {
			for _, item := range list {
				if s := strings.TrimSpace(asString(item)); s != "" {
					keywords = append(keywords, s)
				}
			}
		}
	}

	return TrendRecord{
		Trend:       title,
		Description: strings.Join(parts, " "),
		Keywords:    keywords,
	}, true
}

func firstString(raw map[string]any, fields ...string) string {
	for _, f := range fields {
		if v := strings.TrimSpace(asString(raw[f])); v != "" {
			return v
		}
	}
	return ""
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func joinStrings(items []any, sep string) string {
	var kept []string
	for _, item := range items {
		if s := strings.TrimSpace(asString(item)); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, sep)
}
