package analysis

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/zainabsaad99/EECE798S-Project/models"
	"github.com/zainabsaad99/EECE798S-Project/provider"
)

const businessPhrasesPrompt = `Analyze the following company profile data and extract 8 to 12 multi-word interest phrases for trend searching.

Requirements:
1. Each phrase must be 3 to 8 words long.
2. No single words or bigrams.
3. No vague generalities such as 'innovation' or 'leadership'
4. Each phrase must describe a concrete recurring theme or topic visible across the company data.
5. Each phrase must explicitly reference a product, category, or industry domain (e.g., kitchen, home decor, pet products, car accessories). Phrases without domain context are invalid.
6. Focus on trends and industry-specific topics that can be searched online.
7. Exclude slogans, mission statements, or value propositions not tied to specific products or themes.
8. Output only a JSON array of clean phrases.`

// ExtractBusinessPhrases derives searchable trend phrases from an extracted
// company profile, the catalog-side counterpart of ExtractInterests.
func (a *Analyzer) ExtractBusinessPhrases(ctx context.Context, prov provider.Provider, biz models.Business) ([]string, error) {
	var texts []string
	add := func(s string) {
		if strings.TrimSpace(s) != "" {
			texts = append(texts, s)
		}
	}
	addAll := func(items []string) {
		for _, s := range items {
			add(s)
		}
	}
	add(biz.Mission)
	add(biz.Name)
	addAll(biz.ContentThemes)
	add(biz.Industry)
	addAll(biz.IndustryTerms)
	addAll(biz.PrimaryKeywords)
	addAll(biz.SecondaryKeywords)
	add(biz.TargetAudience)
	addAll(biz.TrendingTopics)
	addAll(biz.ValuePropositions)

	corpus := a.capCorpus(strings.Join(texts, "\n\n"))
	if corpus == "" {
		corpus = "No content"
	}

	res, err := prov.Completion(ctx, models.ChatRequest{
		Model: "analysis",
		Messages: []models.ChatMessage{
			{Role: models.RoleSystem, Content: businessPhrasesPrompt},
			{Role: models.RoleUser, Content: corpus},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, err
	}

	raw := stripFences(res.Message.Content)
	var arr []any
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		var phrases []string
		for _, item := range arr {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				phrases = append(phrases, strings.TrimSpace(s))
			}
		}
		return phrases, nil
	}

	// Model sometimes answers with plain lines despite the prompt.
	var phrases []string
	for _, line := range strings.Split(res.Message.Content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			phrases = append(phrases, line)
		}
		if len(phrases) == 12 {
			break
		}
	}
	return phrases, nil
}
