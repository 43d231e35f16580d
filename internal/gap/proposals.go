package gap

import (
	"context"
	"encoding/json"

	"github.com/zainabsaad99/EECE798S-Project/models"
	"github.com/zainabsaad99/EECE798S-Project/provider"
)

// ProductProposal is one concrete extension brief for a weak or gap trend.
type ProductProposal struct {
	Trend          string   `json:"trend"`
	CoverageLevel  string   `json:"coverage_level"`
	Proposal       string   `json:"proposal"`
	WhyItHelps     string   `json:"why_it_helps"`
	TargetPersona  string   `json:"target_persona"`
	SuccessMetrics []string `json:"success_metrics"`
	SystemImpact   string   `json:"system_impact"`
	Risks          []string `json:"risks"`
	WorkingHours   float64  `json:"working_hours"`
	WorkingPrice   float64  `json:"working_price"`
	LaunchSteps    []string `json:"launch_steps"`
}

const maxProposalTrends = 6

const proposalInstruction = `You are a product innovation strategist embedded in a go-to-market intelligence platform.
Your task is to convert each trend alignment entry into a tangible product extension brief.

Overall Objectives
1. For every record, produce a product concept that either patches a weak coverage area or fills a true gap.
2. Highlight how the concept improves customer outcomes and business impact.
3. Estimate the blended working hours and working price (USD) required to scope, design, and launch a lean version.
4. Provide an actionable list of launch steps (3-6 items) that a cross-functional squad can execute.
5. Identify the target persona/segment, the pains relieved, expected success metrics, affected systems, and key risks/dependencies.

Prompting Rules
- Always restate the trend in your own words to prove understanding.
- Use coverage_level to shape the recommendation:
  * gap → net-new product or major capability.
  * weak → enhancement to an existing module or workflow improvement.
- Assume a SaaS team with product, design, eng, data science, and GTM enablement.
- Working hours should reflect total cross-functional effort; price is hours * $120 blended rate unless context dictates otherwise.
- Launch steps must be concrete actions (e.g., "Instrument churn signals for beta cohort") not vague statements.
- Tone: decisive, operator-focused, free of filler.
Output Format
Return a JSON array where each object contains:
- trend (string)
- coverage_level (string: "gap" or "weak")
- proposal (string, 3-4 sentences describing the concept)
- why_it_helps (string, 2 sentences covering user value + business value)
- target_persona (string describing primary persona/segment and their pain)
- success_metrics (array of strings, each KPI with measurable target)
- system_impact (string covering data/platform dependencies)
- risks (array of strings calling out blockers or assumptions)
- working_hours (number)
- working_price (number)
- launch_steps (array of 3-6 short imperative strings)`

// proposeExtensions turns gap and weak entries into product briefs using a
// schema-constrained completion. Gap entries go first so the trend sample
// favors true gaps when truncated.
func (e *Engine) proposeExtensions(ctx context.Context, prov provider.Provider, weak, gap []SimilarityEntry, extra string) []ProductProposal {
	type enriched struct {
		SimilarityEntry
		CoverageLevel string `json:"coverage_level"`
	}
	var entries []enriched
	for _, entry := range gap {
		entries = append(entries, enriched{SimilarityEntry: entry, CoverageLevel: firstNonEmpty(entry.Category, "gap")})
	}
	for _, entry := range weak {
		entries = append(entries, enriched{SimilarityEntry: entry, CoverageLevel: firstNonEmpty(entry.Category, "weak")})
	}
	if len(entries) == 0 {
		return nil
	}
	if len(entries) > maxProposalTrends {
		entries = entries[:maxProposalTrends]
	}

	payload, err := json.Marshal(map[string]any{
		"gaps":        entries,
		"context":     extra,
		"instruction": proposalInstruction,
	})
	if err != nil {
		return nil
	}

	res, err := prov.Completion(ctx, models.ChatRequest{
		Model: "synthesis",
		Messages: []models.ChatMessage{
			{Role: models.RoleSystem, Content: "You are a pragmatic SaaS product strategist who designs actionable product extensions."},
			{Role: models.RoleUser, Content: string(payload)},
		},
		JSONSchema: proposalSchema(),
	})
	if err != nil {
		e.logger.Printf("proposal generation failed: %v", err)
		return nil
	}

	var out struct {
		Proposals []ProductProposal `json:"proposals"`
	}
	if err := json.Unmarshal([]byte(res.Message.Content), &out); err != nil {
		e.logger.Printf("proposal parse failed: %v", err)
		return nil
	}
	return out.Proposals
}

func proposalSchema() map[string]any {
	stringArray := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	return map[string]any{
		"name": "product_proposals",
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"proposals": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"trend":           map[string]any{"type": "string"},
							"proposal":        map[string]any{"type": "string"},
							"why_it_helps":    map[string]any{"type": "string"},
							"coverage_level":  map[string]any{"type": "string"},
							"target_persona":  map[string]any{"type": "string"},
							"success_metrics": stringArray,
							"system_impact":   map[string]any{"type": "string"},
							"risks":           stringArray,
							"working_hours":   map[string]any{"type": "number"},
							"working_price":   map[string]any{"type": "number"},
							"launch_steps":    stringArray,
						},
						"required": []string{
							"trend",
							"proposal",
							"why_it_helps",
							"target_persona",
							"success_metrics",
							"system_impact",
							"risks",
							"working_hours",
							"working_price",
							"coverage_level",
						},
					},
				},
			},
			"required": []string{"proposals"},
		},
	}
}
