package gap

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zainabsaad99/EECE798S-Project/models"
	"github.com/zainabsaad99/EECE798S-Project/provider"
)

// reasonOverGaps asks the model for a strategist's read of the similarity
// map. Failures degrade to a plain-text summary rather than failing the run.
func (e *Engine) reasonOverGaps(ctx context.Context, prov provider.Provider, similarityMap []SimilarityEntry, extra string) map[string]any {
	if len(similarityMap) == 0 {
		return map[string]any{
			"summary":         "No valid comparison could be made.",
			"actions":         []any{},
			"priority_matrix": []any{},
		}
	}

	body, err := json.MarshalIndent(similarityMap, "", "  ")
	if err != nil {
		return map[string]any{"summary": fmt.Sprintf("similarity map not serializable: %v", err)}
	}
	if extra == "" {
		extra = "N/A"
	}
	prompt := fmt.Sprintf(`You are a market intelligence strategist.

Similarity analysis between business products and market trends:
%s

Context:
%s

Rules:
- similarity >= %g → Covered (strong positioning)
- %g–%g → Weak coverage
- < %g → Gap (missing opportunity)

Deliver concise JSON with keys:
1. "insight_summary": bullet-style narrative.
2. "recommendations": list of objects { "title", "why_it_matters", "actions", "priority" }.
3. "priority_matrix": list of objects { "opportunity", "priority", "confidence" }.
Use High/Medium/Low priorities.`,
		string(body), extra,
		e.cfg.CoveredThreshold, e.cfg.WeakThreshold, e.cfg.CoveredThreshold, e.cfg.WeakThreshold)

	res, err := prov.Completion(ctx, models.ChatRequest{
		Model:    "synthesis",
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: prompt}},
	})
	if err != nil {
		e.logger.Printf("insight generation failed: %v", err)
		return map[string]any{"summary": "Insight generation failed: " + err.Error()}
	}

	var insights map[string]any
	if err := json.Unmarshal([]byte(res.Message.Content), &insights); err != nil {
		return map[string]any{"summary": res.Message.Content}
	}
	return insights
}
