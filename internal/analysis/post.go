package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/zainabsaad99/EECE798S-Project/models"
	"github.com/zainabsaad99/EECE798S-Project/provider"
)

const copywriterPrompt = "You are a LinkedIn copywriter. Write a polished LinkedIn post about the given topic " +
	"and do NOT introduce unrelated topics. Focus only on the provided topic. " +
	"If other keywords are provided, ignore them and write only about the topic. " +
	"Start with a strong hook. Use two or three short paragraphs, each with a single clear idea. " +
	"Include a simple call to action near the end. Finish with six to ten relevant hashtags on a separate line. " +
	"Keep the entire post under about 1300 characters."

const neutralStyle = "Neutral professional tone with clear structure and no specific constraints."

// GeneratePost writes one LinkedIn post about topic, following styleNotes
// when given. Interest keywords are deliberately withheld from the prompt so
// the post stays on topic.
func (a *Analyzer) GeneratePost(ctx context.Context, prov provider.Provider, topic, styleNotes string) (string, error) {
	style := strings.TrimSpace(styleNotes)
	if style == "" {
		style = neutralStyle
	}
	userContent := fmt.Sprintf("Topic: %s\n\nStyle guidance:\n%s\n\n"+
		"Note: Do NOT use any user interest keywords or other profile keywords. Write only about the topic above.",
		topic, style)

	res, err := prov.Completion(ctx, models.ChatRequest{
		Model: "synthesis",
		Messages: []models.ChatMessage{
			{Role: models.RoleSystem, Content: copywriterPrompt},
			{Role: models.RoleUser, Content: userContent},
		},
		Temperature: 0.6,
	})
	if err != nil {
		return "", fmt.Errorf("generate post: %w", err)
	}
	post := strings.TrimSpace(res.Message.Content)
	a.logger.Printf("generated post length: %d", len(post))
	return post, nil
}
