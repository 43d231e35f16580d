package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/zainabsaad99/EECE798S-Project/models"
	"github.com/zainabsaad99/EECE798S-Project/provider"
)

const stylePrompt = "You will receive multiple LinkedIn posts from one profile. " +
	"Summarize the writing style in six to ten bullet style points. " +
	"Cover tone, sentence length, structure, vocabulary, use of emojis, " +
	"use of hashtags, and type of calls to action. " +
	"Keep the description precise and actionable. " +
	"IMPORTANT: Do NOT use markdown formatting (no **, no -, no bullet points). " +
	"Write in plain text with clear, readable sentences. " +
	"Each point should be a complete sentence or short paragraph."

// InferStyle characterizes how a profile writes, as plain-text guidance the
// post generator can follow.
func (a *Analyzer) InferStyle(ctx context.Context, prov provider.Provider, posts []models.Post) (string, error) {
	var texts []string
	for _, p := range posts {
		texts = append(texts, p.PostContent)
	}
	sample := a.capCorpus(strings.Join(texts, "\n\n"))
	if strings.TrimSpace(sample) == "" {
		sample = "No content"
	}

	res, err := prov.Completion(ctx, models.ChatRequest{
		Model: "analysis",
		Messages: []models.ChatMessage{
			{Role: models.RoleSystem, Content: stylePrompt},
			{Role: models.RoleUser, Content: sample},
		},
	})
	if err != nil {
		return "", fmt.Errorf("infer style: %w", err)
	}
	notes := strings.TrimSpace(res.Message.Content)
	a.logger.Printf("style notes: %s", snippet(notes, 400))
	return notes, nil
}

func snippet(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
