package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zainabsaad99/EECE798S-Project/config"
	"github.com/zainabsaad99/EECE798S-Project/internal/stream"
	"github.com/zainabsaad99/EECE798S-Project/models"
)

// scriptedProvider replays canned chat turns and records every request.
type scriptedProvider struct {
	turns []models.ChatResult
	errs  []error
	reqs  []models.ChatRequest
}

func (p *scriptedProvider) Completion(ctx context.Context, req models.ChatRequest) (models.ChatResult, error) {
	p.reqs = append(p.reqs, req)
	i := len(p.reqs) - 1
	if i < len(p.errs) && p.errs[i] != nil {
		return models.ChatResult{}, p.errs[i]
	}
	if i >= len(p.turns) {
		return p.turns[len(p.turns)-1], nil
	}
	return p.turns[i], nil
}

func (p *scriptedProvider) StreamCompletion(ctx context.Context, req models.ChatRequest, onDelta func(string)) (models.ChatResult, error) {
	res, err := p.Completion(ctx, req)
	if err == nil && res.Message.Content != "" && onDelta != nil {
		half := len(res.Message.Content) / 2
		onDelta(res.Message.Content[:half])
		onDelta(res.Message.Content[half:])
	}
	return res, err
}

func (p *scriptedProvider) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not scripted")
}

func (p *scriptedProvider) SummarizeImage(ctx context.Context, imageURL string) (string, error) {
	return "", errors.New("not scripted")
}

func (p *scriptedProvider) CalculateCost(inputTokens, outputTokens int64, model string) float64 {
	return float64(inputTokens+outputTokens) / 1e6
}

func (p *scriptedProvider) ResolveModel(task string) string { return "scripted" }

func toolCallTurn(id, name, args string) models.ChatResult {
	return models.ChatResult{
		Message: models.ChatMessage{
			Role:      models.RoleAssistant,
			ToolCalls: []models.ToolCall{{ID: id, Name: name, Arguments: args}},
		},
		Usage:     models.TokenUsage{InputTokens: 100, OutputTokens: 20},
		ModelUsed: "scripted",
	}
}

func textTurn(content string) models.ChatResult {
	return models.ChatResult{
		Message:   models.ChatMessage{Role: models.RoleAssistant, Content: content},
		Usage:     models.TokenUsage{InputTokens: 50, OutputTokens: 30},
		ModelUsed: "scripted",
	}
}

const finalJSON = `{"json_url":"https://files.example/run.json","keywords":["golang","agents"],"style_notes":"short and direct","trends":[{"title":"Agents in production","url":"https://example.com/a"}]}`

func testLoop(t *testing.T, maxSteps int, extra map[string]ToolFunc) (*Loop, *RunState) {
	t.Helper()
	reg := NewRegistry()
	reg.MustRegister(ToolSpec{
		Name:   "mark",
		Params: map[string]ParamSpec{"note": {Type: "string", Required: true}},
	}, func(ctx context.Context, rs *RunState, args map[string]any) (any, error) {
		return map[string]any{"noted": args["note"]}, nil
	})
	for name, fn := range extra {
		reg.MustRegister(ToolSpec{Name: name}, fn)
	}
	reg.Seal()
	dispatcher := NewDispatcher(reg, 0, nil)
	loop := NewLoop(dispatcher, reg, config.AgentConfig{MaxSteps: maxSteps}, nil)
	rs := NewRunState(RunContext{
		RunID:         "run-1",
		ProfileURL:    "https://www.linkedin.com/in/someone/",
		SessionCookie: "li_at=abc",
	}, nil, nil)
	return loop, rs
}

func TestLoopToolThenFinal(t *testing.T) {
	loop, rs := testLoop(t, 5, nil)
	prov := &scriptedProvider{turns: []models.ChatResult{
		toolCallTurn("call-1", "mark", `{"note":"first"}`),
		textTurn(finalJSON),
	}}

	result, err := loop.Run(context.Background(), prov, rs, stream.NopRelay{}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success || result.Steps != 2 {
		t.Fatalf("result = %+v", result)
	}
	if result.SourceURL != "https://files.example/run.json" {
		t.Fatalf("source url = %q", result.SourceURL)
	}
	if len(result.Keywords) != 2 || len(result.Trends) != 1 {
		t.Fatalf("keywords=%v trends=%v", result.Keywords, result.Trends)
	}
	if result.TokensIn != 150 || result.TokensOut != 50 {
		t.Fatalf("tokens = %d/%d", result.TokensIn, result.TokensOut)
	}
	if result.CostUSD <= 0 {
		t.Fatalf("cost = %v", result.CostUSD)
	}

	// the second request must replay the tool call and its result envelope
	if len(prov.reqs) != 2 {
		t.Fatalf("requests = %d", len(prov.reqs))
	}
	if len(prov.reqs[0].Tools) != 1 || prov.reqs[0].Tools[0].Name != "mark" {
		t.Fatalf("tools = %+v", prov.reqs[0].Tools)
	}
	msgs := prov.reqs[1].Messages
	if len(msgs) != 4 {
		t.Fatalf("transcript = %d messages", len(msgs))
	}
	last := msgs[3]
	if last.Role != models.RoleTool || last.ToolCallID != "call-1" {
		t.Fatalf("last message = %+v", last)
	}
	if !strings.Contains(last.Content, `"ok":true`) || !strings.Contains(last.Content, "first") {
		t.Fatalf("tool result = %s", last.Content)
	}
}

func TestLoopToolFailureContinues(t *testing.T) {
	loop, rs := testLoop(t, 5, map[string]ToolFunc{
		"flaky": func(ctx context.Context, rs *RunState, args map[string]any) (any, error) {
			return nil, errors.New("upstream 500")
		},
	})
	prov := &scriptedProvider{turns: []models.ChatResult{
		toolCallTurn("call-1", "flaky", `{}`),
		textTurn(finalJSON),
	}}

	result, err := loop.Run(context.Background(), prov, rs, stream.NopRelay{}, false)
	if err != nil {
		t.Fatalf("a tool failure must not abort the run: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	last := prov.reqs[1].Messages[3]
	if !strings.Contains(last.Content, `"ok":false`) || !strings.Contains(last.Content, "upstream 500") {
		t.Fatalf("tool result = %s", last.Content)
	}
}

// TestLoopScrapeThenExtract walks the canonical two-tool run: a scrape whose
// posts are captured on the run state, a keyword extraction reading those
// posts, then the final answer. The replayed transcript must hold the exact
// message sequence with correlated call IDs.
func TestLoopScrapeThenExtract(t *testing.T) {
	posts := []models.Post{
		{PostContent: "golang tips for production systems"},
		{PostContent: "agents will change content workflows"},
	}

	reg := NewRegistry()
	reg.MustRegister(ToolSpec{
		Name:   "scrape_profile_tool",
		Params: map[string]ParamSpec{"profile_url": {Type: "string", Required: true}},
	}, func(ctx context.Context, rs *RunState, args map[string]any) (any, error) {
		rs.CapturePosts("https://files.example/run.json", posts)
		return map[string]any{"json_url": "https://files.example/run.json", "posts": posts}, nil
	})
	reg.MustRegister(ToolSpec{
		Name:   "extract_keywords_tool",
		Params: map[string]ParamSpec{"json_url": {Type: "string", Required: true}},
	}, func(ctx context.Context, rs *RunState, args map[string]any) (any, error) {
		var keywords []string
		for _, p := range rs.Posts() {
			keywords = append(keywords, strings.Fields(p.PostContent)[0])
		}
		return map[string]any{"keywords": keywords}, nil
	})
	reg.Seal()

	loop := NewLoop(NewDispatcher(reg, 0, nil), reg, config.AgentConfig{MaxSteps: 5}, nil)
	rs := NewRunState(RunContext{RunID: "run-2", ProfileURL: "https://www.linkedin.com/in/someone/"}, nil, nil)
	prov := &scriptedProvider{turns: []models.ChatResult{
		toolCallTurn("call-1", "scrape_profile_tool", `{"profile_url":"https://www.linkedin.com/in/someone/"}`),
		toolCallTurn("call-2", "extract_keywords_tool", `{"json_url":"https://files.example/run.json"}`),
		textTurn(finalJSON),
	}}

	result, err := loop.Run(context.Background(), prov, rs, stream.NopRelay{}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success || result.Steps != 3 {
		t.Fatalf("result = %+v", result)
	}
	if len(result.Posts) != 2 {
		t.Fatalf("posts = %+v", result.Posts)
	}
	if result.SourceURL != "https://files.example/run.json" {
		t.Fatalf("source url = %q", result.SourceURL)
	}

	if len(prov.reqs) != 3 {
		t.Fatalf("requests = %d", len(prov.reqs))
	}
	msgs := prov.reqs[2].Messages
	wantRoles := []models.ChatRole{
		models.RoleSystem, models.RoleUser,
		models.RoleAssistant, models.RoleTool,
		models.RoleAssistant, models.RoleTool,
	}
	if len(msgs) != len(wantRoles) {
		t.Fatalf("transcript = %d messages", len(msgs))
	}
	for i, want := range wantRoles {
		if msgs[i].Role != want {
			t.Fatalf("message %d role = %s, want %s", i, msgs[i].Role, want)
		}
	}
	if msgs[2].ToolCalls[0].Name != "scrape_profile_tool" || msgs[3].ToolCallID != "call-1" {
		t.Fatalf("first tool exchange = %+v / %+v", msgs[2], msgs[3])
	}
	if msgs[4].ToolCalls[0].Name != "extract_keywords_tool" || msgs[5].ToolCallID != "call-2" {
		t.Fatalf("second tool exchange = %+v / %+v", msgs[4], msgs[5])
	}
	if !strings.Contains(msgs[5].Content, "golang") || !strings.Contains(msgs[5].Content, "agents") {
		t.Fatalf("keywords not derived from scraped posts: %s", msgs[5].Content)
	}
}

func TestLoopRateLimitedToolContinues(t *testing.T) {
	loop, rs := testLoop(t, 5, map[string]ToolFunc{
		"throttled": func(ctx context.Context, rs *RunState, args map[string]any) (any, error) {
			return nil, &RateLimitError{Provider: "phantombuster", RetryAfter: 30 * time.Second}
		},
	})
	prov := &scriptedProvider{turns: []models.ChatResult{
		toolCallTurn("call-1", "throttled", `{}`),
		textTurn(finalJSON),
	}}

	result, err := loop.Run(context.Background(), prov, rs, stream.NopRelay{}, false)
	if err != nil {
		t.Fatalf("a rate limited tool must not abort the run: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	last := prov.reqs[1].Messages[3]
	if !strings.Contains(last.Content, `"ok":false`) || !strings.Contains(last.Content, "rate limited") {
		t.Fatalf("tool result = %s", last.Content)
	}
}

func TestLoopStepLimit(t *testing.T) {
	loop, rs := testLoop(t, 2, nil)
	prov := &scriptedProvider{turns: []models.ChatResult{
		toolCallTurn("call-1", "mark", `{"note":"a"}`),
		toolCallTurn("call-2", "mark", `{"note":"b"}`),
		toolCallTurn("call-3", "mark", `{"note":"c"}`),
	}}

	result, err := loop.Run(context.Background(), prov, rs, stream.NopRelay{}, false)
	if !errors.Is(err, ErrStepLimitExceeded) {
		t.Fatalf("err = %v", err)
	}
	if result.Steps != 2 {
		t.Fatalf("steps = %d", result.Steps)
	}
}

func TestLoopTransportFailure(t *testing.T) {
	loop, rs := testLoop(t, 5, nil)
	prov := &scriptedProvider{errs: []error{errors.New("connection reset")}}

	_, err := loop.Run(context.Background(), prov, rs, stream.NopRelay{}, false)
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("err = %v", err)
	}
}

func TestLoopCancellationPassesThrough(t *testing.T) {
	loop, rs := testLoop(t, 5, nil)
	prov := &scriptedProvider{errs: []error{context.Canceled}}

	_, err := loop.Run(context.Background(), prov, rs, stream.NopRelay{}, false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestLoopKeepsRawMessageWhenFinalIsProse(t *testing.T) {
	loop, rs := testLoop(t, 5, nil)
	prov := &scriptedProvider{turns: []models.ChatResult{
		textTurn("I was unable to complete the analysis."),
	}}

	result, err := loop.Run(context.Background(), prov, rs, stream.NopRelay{}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success {
		t.Fatalf("prose final must not count as success")
	}
	if result.RawMessage == "" {
		t.Fatalf("raw message should carry the model text")
	}
}

func TestLoopParsesFinalBuriedInProse(t *testing.T) {
	loop, rs := testLoop(t, 5, nil)
	prov := &scriptedProvider{turns: []models.ChatResult{
		textTurn("Here is the final answer:\n```json\n" + finalJSON + "\n```\nDone."),
	}}

	result, err := loop.Run(context.Background(), prov, rs, stream.NopRelay{}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success || len(result.Keywords) != 2 {
		t.Fatalf("result = %+v", result)
	}
}

type closedRelay struct{ stream.NopRelay }

func (closedRelay) Closed() bool { return true }

func TestLoopAbortsWhenRelayClosed(t *testing.T) {
	loop, rs := testLoop(t, 5, nil)
	prov := &scriptedProvider{turns: []models.ChatResult{textTurn(finalJSON)}}

	_, err := loop.Run(context.Background(), prov, rs, closedRelay{}, false)
	if !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("err = %v", err)
	}
	if len(prov.reqs) != 0 {
		t.Fatalf("no model call should happen after the client left")
	}
}

type chunkRelay struct {
	stream.NopRelay
	chunks []string
}

func (r *chunkRelay) Chunk(fragment string) { r.chunks = append(r.chunks, fragment) }

func TestLoopStreamsTokens(t *testing.T) {
	loop, rs := testLoop(t, 5, nil)
	prov := &scriptedProvider{turns: []models.ChatResult{textTurn(finalJSON)}}
	relay := &chunkRelay{}

	result, err := loop.Run(context.Background(), prov, rs, relay, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if strings.Join(relay.chunks, "") != finalJSON {
		t.Fatalf("chunks = %q", relay.chunks)
	}
}

func TestParseFinal(t *testing.T) {
	cases := []struct {
		name    string
		content string
		ok      bool
		jsonURL string
	}{
		{"bare object", finalJSON, true, "https://files.example/run.json"},
		{"fenced object", "```json\n" + finalJSON + "\n```", true, "https://files.example/run.json"},
		{"object in prose", "The result: " + finalJSON + " as requested.", true, "https://files.example/run.json"},
		{"plain prose", "no structured answer here", false, ""},
		{"array", `["a","b"]`, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			final, ok := parseFinal(tc.content)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if final.JSONURL != tc.jsonURL {
				t.Fatalf("json_url = %q", final.JSONURL)
			}
		})
	}
}
