package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zainabsaad99/EECE798S-Project/models"
	"github.com/zainabsaad99/EECE798S-Project/provider"
)

const interestsPrompt = "Analyze the following LinkedIn posts and image summaries and extract eight to twelve " +
	"multi word interest phrases. Requirements: " +
	"1. Each phrase must be 3 to 8 words long. " +
	"2. No single words or bigrams. " +
	"3. No vague generalities like 'innovation' or 'leadership'. " +
	"4. Each phrase must describe a concrete recurring theme or topic visible across the posts. " +
	"5. Output only a JSON array of clean phrases."

// ExtractInterests distills recurring interest phrases from a profile's
// posts. Text posts feed the corpus directly; a handful of image-only posts
// are described by the vision model first. The model must answer with a JSON
// array; a non-JSON answer degrades to line splitting.
func (a *Analyzer) ExtractInterests(ctx context.Context, prov provider.Provider, posts []models.Post) ([]string, error) {
	var texts []string
	for _, p := range posts {
		if strings.TrimSpace(p.PostContent) != "" {
			texts = append(texts, p.PostContent)
		}
	}
	imageSummaries := 0
	for _, p := range posts {
		if strings.TrimSpace(p.PostContent) == "" && p.ImgURL != "" && imageSummaries < a.maxImages {
			summary, err := prov.SummarizeImage(ctx, p.ImgURL)
			if err != nil {
				a.logger.Printf("image summary failed: %v", err)
				continue
			}
			texts = append(texts, summary)
			imageSummaries++
		}
	}

	corpus := a.capCorpus(strings.Join(texts, "\n\n"))
	if corpus == "" {
		corpus = "No content"
	}

	res, err := prov.Completion(ctx, models.ChatRequest{
		Model: "analysis",
		Messages: []models.ChatMessage{
			{Role: models.RoleSystem, Content: interestsPrompt},
			{Role: models.RoleUser, Content: corpus},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("extract interests: %w", err)
	}

	raw := stripFences(res.Message.Content)
	a.logger.Printf("interest phrases raw: %s", raw)

	var arr []any
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		var phrases []string
		for _, x := range arr {
			s := strings.ToLower(strings.TrimSpace(fmt.Sprint(x)))
			if s != "" {
				phrases = append(phrases, s)
			}
		}
		if len(phrases) > 0 {
			return phrases, nil
		}
	}

	var phrases []string
	for _, line := range strings.Split(res.Message.Content, "\n") {
		s := strings.ToLower(strings.TrimSpace(line))
		if s != "" {
			phrases = append(phrases, s)
		}
		if len(phrases) == 12 {
			break
		}
	}
	return phrases, nil
}
