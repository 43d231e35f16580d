package openai_provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zainabsaad99/EECE798S-Project/config"
	"github.com/zainabsaad99/EECE798S-Project/models"
)

// Client implements the provider interface using OpenAI's API
type Client struct {
	config  config.LLMProvider
	routing config.LLMRoutingConfig
	baseURL string
	// unary uses the configured timeout; stream reads are bounded by ctx,
	// not a client timeout, or long completions would be cut off mid-body.
	unary  *http.Client
	stream *http.Client
}

// NewClient creates a new OpenAI client
func NewClient(cfg config.LLMProvider, routing config.LLMRoutingConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Client{
		config:  cfg,
		routing: routing,
		baseURL: strings.TrimRight(baseURL, "/"),
		unary:   &http.Client{Timeout: timeout},
		stream:  &http.Client{},
	}
}

// wire shapes

type chatMessageWire struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []toolCallWire `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type toolCallWire struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionWire `json:"function"`
}

type functionWire struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolWire struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type responseFormatWire struct {
	Type       string         `json:"type"`
	JSONSchema map[string]any `json:"json_schema,omitempty"`
}

type chatRequestWire struct {
	Model          string              `json:"model"`
	Messages       []chatMessageWire   `json:"messages"`
	Tools          []toolWire          `json:"tools,omitempty"`
	ToolChoice     string              `json:"tool_choice,omitempty"`
	Temperature    float64             `json:"temperature,omitempty"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	Stream         bool                `json:"stream,omitempty"`
	StreamOptions  *streamOptionsWire  `json:"stream_options,omitempty"`
	ResponseFormat *responseFormatWire `json:"response_format,omitempty"`
}

type streamOptionsWire struct {
	IncludeUsage bool `json:"include_usage"`
}

type usageWire struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

type chatResponseWire struct {
	Choices []struct {
		Message struct {
			Content   string         `json:"content"`
			ToolCalls []toolCallWire `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage usageWire `json:"usage"`
	Model string    `json:"model"`
}

type streamChunkWire struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int          `json:"index"`
				ID       string       `json:"id"`
				Function functionWire `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *usageWire `json:"usage"`
}

// Completion runs one chat turn against the chat completions endpoint.
func (c *Client) Completion(ctx context.Context, req models.ChatRequest) (models.ChatResult, error) {
	wire, modelKey, err := c.buildRequest(req, false)
	if err != nil {
		return models.ChatResult{}, err
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return models.ChatResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return models.ChatResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.unary.Do(httpReq)
	if err != nil {
		return models.ChatResult{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.ChatResult{}, c.statusError(resp)
	}

	var out chatResponseWire
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.ChatResult{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return models.ChatResult{}, fmt.Errorf("no choices in response")
	}

	choice := out.Choices[0]
	msg := models.ChatMessage{
		Role:    models.RoleAssistant,
		Content: choice.Message.Content,
	}
	for _, tc := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return models.ChatResult{
		Message:   msg,
		Usage:     models.TokenUsage{InputTokens: out.Usage.PromptTokens, OutputTokens: out.Usage.CompletionTokens},
		ModelUsed: modelKey,
	}, nil
}

// StreamCompletion consumes the SSE token stream, forwarding assistant text
// fragments to onDelta and accumulating tool-call argument deltas by index.
func (c *Client) StreamCompletion(ctx context.Context, req models.ChatRequest, onDelta func(string)) (models.ChatResult, error) {
	wire, modelKey, err := c.buildRequest(req, true)
	if err != nil {
		return models.ChatResult{}, err
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return models.ChatResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return models.ChatResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(httpReq)
	if err != nil {
		return models.ChatResult{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.ChatResult{}, c.statusError(resp)
	}

	var (
		content   strings.Builder
		usage     models.TokenUsage
		toolCalls []models.ToolCall
	)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk streamChunkWire
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Usage != nil {
			usage.InputTokens = chunk.Usage.PromptTokens
			usage.OutputTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			content.WriteString(delta.Content)
			if onDelta != nil {
				onDelta(delta.Content)
			}
		}
		for _, tc := range delta.ToolCalls {
			for len(toolCalls) <= tc.Index {
				toolCalls = append(toolCalls, models.ToolCall{})
			}
			if tc.ID != "" {
				toolCalls[tc.Index].ID = tc.ID
			}
			if tc.Function.Name != "" {
				toolCalls[tc.Index].Name = tc.Function.Name
			}
			toolCalls[tc.Index].Arguments += tc.Function.Arguments
		}
	}
	if err := scanner.Err(); err != nil {
		return models.ChatResult{}, fmt.Errorf("stream read: %w", err)
	}

	return models.ChatResult{
		Message: models.ChatMessage{
			Role:      models.RoleAssistant,
			Content:   content.String(),
			ToolCalls: toolCalls,
		},
		Usage:     usage,
		ModelUsed: modelKey,
	}, nil
}

// CreateEmbedding generates an embedding for the given texts using OpenAI's API
func (c *Client) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := c.apiModelName(c.ResolveModel("embedding"))
	requestBody := map[string]interface{}{
		"model": model,
		"input": texts,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.unary.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}

	var openaiResp struct {
		Data []struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	vecs := make([][]float32, len(openaiResp.Data))
	for i, d := range openaiResp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// SummarizeImage describes a LinkedIn image post in two sentences.
func (c *Client) SummarizeImage(ctx context.Context, imageURL string) (string, error) {
	type contentPart struct {
		Type     string `json:"type"`
		Text     string `json:"text,omitempty"`
		ImageURL *struct {
			URL string `json:"url"`
		} `json:"image_url,omitempty"`
	}
	type visionMessage struct {
		Role    string        `json:"role"`
		Content []contentPart `json:"content"`
	}

	parts := []contentPart{
		{Type: "text", Text: "Summarize this LinkedIn image post in two sentences. No hashtags."},
		{Type: "image_url", ImageURL: &struct {
			URL string `json:"url"`
		}{URL: imageURL}},
	}

	body, err := json.Marshal(map[string]any{
		"model":       c.apiModelName(c.ResolveModel("analysis")),
		"messages":    []visionMessage{{Role: "user", Content: parts}},
		"temperature": 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.unary.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.statusError(resp)
	}

	var out chatResponseWire
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// CalculateCost calculates the cost for a given number of tokens
func (c *Client) CalculateCost(inputTokens, outputTokens int64, model string) float64 {
	m, ok := c.config.Models[model]
	if !ok {
		return 0.0
	}
	inputCost := float64(inputTokens) / 1000.0 * m.CostPer1K
	outputCost := float64(outputTokens) / 1000.0 * m.CostPer1KOutput
	return inputCost + outputCost
}

// ResolveModel maps a routing task to a configured model key.
func (c *Client) ResolveModel(task string) string {
	var key string
	switch task {
	case "agent":
		key = c.routing.Agent
	case "analysis":
		key = c.routing.Analysis
	case "synthesis":
		key = c.routing.Synthesis
	case "embedding":
		key = c.routing.Embedding
	}
	if key == "" {
		key = c.routing.Fallback
	}
	if key == "" {
		for name := range c.config.Models {
			key = name
			break
		}
	}
	return key
}

// apiModelName maps a configured model key to the name sent on the wire,
// falling back to the key itself when no api_name is set.
func (c *Client) apiModelName(key string) string {
	if m, ok := c.config.Models[key]; ok && m.APIName != "" {
		return m.APIName
	}
	return key
}

// buildRequest resolves the model key and assembles the wire request.
func (c *Client) buildRequest(req models.ChatRequest, stream bool) (chatRequestWire, string, error) {
	if c.config.APIKey == "" {
		return chatRequestWire{}, "", fmt.Errorf("openai: %w: API key not configured", models.ErrLLMUnauthorized)
	}

	modelKey := req.Model
	if modelKey == "" {
		modelKey = c.ResolveModel("")
	}
	if _, ok := c.config.Models[modelKey]; !ok && len(c.config.Models) > 0 {
		// Allow routing keys as well as raw model keys.
		if resolved := c.ResolveModel(modelKey); resolved != "" {
			modelKey = resolved
		}
	}

	temperature := req.Temperature
	maxTokens := req.MaxTokens
	if m, ok := c.config.Models[modelKey]; ok {
		if temperature == 0 {
			temperature = m.Temperature
		}
		if maxTokens == 0 {
			maxTokens = m.MaxTokens
		}
	}

	wire := chatRequestWire{
		Model:       c.apiModelName(modelKey),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      stream,
	}
	if stream {
		wire.StreamOptions = &streamOptionsWire{IncludeUsage: true}
	}
	for _, m := range req.Messages {
		wire.Messages = append(wire.Messages, toWireMessage(m))
	}
	for _, t := range req.Tools {
		var tw toolWire
		tw.Type = "function"
		tw.Function.Name = t.Name
		tw.Function.Description = t.Description
		tw.Function.Parameters = t.Parameters
		wire.Tools = append(wire.Tools, tw)
	}
	if len(wire.Tools) > 0 {
		wire.ToolChoice = "auto"
	}
	if req.JSONSchema != nil {
		wire.ResponseFormat = &responseFormatWire{Type: "json_schema", JSONSchema: req.JSONSchema}
	}
	return wire, modelKey, nil
}

func toWireMessage(m models.ChatMessage) chatMessageWire {
	w := chatMessageWire{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		w.ToolCalls = append(w.ToolCalls, toolCallWire{
			ID:   tc.ID,
			Type: "function",
			Function: functionWire{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return w
}

// statusError maps an HTTP failure to the shared boundary errors, keeping a
// body excerpt for debugging.
func (c *Client) statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	excerpt := strings.TrimSpace(string(b))
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("openai: %w: status %d: %s", models.ErrLLMUnauthorized, resp.StatusCode, excerpt)
	case http.StatusTooManyRequests:
		return fmt.Errorf("openai: %w: status %d: %s", models.ErrLLMRateLimited, resp.StatusCode, excerpt)
	default:
		return fmt.Errorf("openai: API returned status %d: %s", resp.StatusCode, excerpt)
	}
}
