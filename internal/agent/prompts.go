package agent

// Final answer shape the model is told to emit. Kept on one line so the
// prompt reads as a single instruction.
const finalShape = `{"json_url": "<string with the user profile scrape json url>", ` +
	`"keywords": ["list", "of", "interest phrases"], ` +
	`"style_notes": "<string with style description>", ` +
	`"trends": [<array of trend objects exactly as returned by fetch_trends_tool>]}`

// systemPrompt instructs the model through the scrape/analyze/trends sequence.
// When the style profile equals the user profile the single-scrape variant
// tells the model to reuse the first scrape for both analyses.
func systemPrompt(sameProfile bool) string {
	if sameProfile {
		return "You are an automation agent for a LinkedIn content tool. " +
			"The user profile and style profile are the same, so you only need to scrape once. " +
			"You must perform the following steps using the provided tools. " +
			"First, scrape the user profile to get posts (only once since it's the same profile). " +
			"Second, extract recurring interest phrases from the user posts. " +
			"Third, infer writing style from the same user posts (use the same posts from step 1). " +
			"Fourth, fetch trends using the interest phrases and no specific topic. " +
			"When you have completed all steps, reply with a single JSON object only, " +
			"with this exact structure: " + finalShape + ". " +
			"Do not add explanations or extra text outside the JSON."
	}
	return "You are an automation agent for a LinkedIn content tool. " +
		"You must perform the following steps using the provided tools. " +
		"First, scrape the user profile to get posts. " +
		"Second, extract recurring interest phrases from the user posts. " +
		"Third, scrape the style profile to get posts. " +
		"Fourth, infer writing style from the style profile posts. " +
		"Fifth, fetch trends using the interest phrases and no specific topic. " +
		"When you have completed all steps, reply with a single JSON object only, " +
		"with this exact structure: " + finalShape + ". " +
		"Do not add explanations or extra text outside the JSON."
}
