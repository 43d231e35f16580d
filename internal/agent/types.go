package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zainabsaad99/EECE798S-Project/models"
	"github.com/zainabsaad99/EECE798S-Project/provider"
)

// Phase names the loop's position in its state machine.
type Phase string

const (
	PhaseInit          Phase = "init"
	PhaseAwaitingModel Phase = "awaiting_model"
	PhaseToolRequested Phase = "tool_requested"
	PhaseDispatching   Phase = "dispatching"
	PhaseDone          Phase = "done"
	PhaseFailed        Phase = "failed"
)

// ParamSpec describes one tool parameter.
type ParamSpec struct {
	Type        string // string, integer, number, boolean, array, object
	Items       string // element type when Type is array
	Required    bool
	Description string
}

// ToolSpec declares one callable tool: its name, what it does, and the
// parameter schema the model sees. Immutable after registration.
type ToolSpec struct {
	Name        string
	Description string
	Params      map[string]ParamSpec
}

// Def renders the spec as the JSON-schema wire shape sent to the model.
// Required names are sorted so the schema is byte-stable across runs.
func (s ToolSpec) Def() models.ToolDef {
	properties := make(map[string]any, len(s.Params))
	var required []string
	for name, p := range s.Params {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Type == "array" {
			items := p.Items
			if items == "" {
				items = "object"
			}
			prop["items"] = map[string]any{"type": items}
		}
		properties[name] = prop
		if p.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	params := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		params["required"] = required
	}
	return models.ToolDef{
		Name:        s.Name,
		Description: s.Description,
		Parameters:  params,
	}
}

// RunContext is the request-scoped seed of one agent run: credentials,
// session values and target URLs. It is treated as immutable; re-running with
// the same RunContext reproduces the same seed transcript.
type RunContext struct {
	RunID           string
	UserID          string
	OpenAIKey       string
	PhantomKey      string
	FirecrawlKey    string
	SessionCookie   string
	UserAgent       string
	ProfileURL      string
	StyleProfileURL string
	Topic           string
	SheetURL        string
}

// UserPayload is the JSON the model receives as the seed user message.
// Credentials never appear here; tools draw them from the run state.
func (rc RunContext) UserPayload() (string, error) {
	payload := map[string]any{
		"session_cookie":    rc.SessionCookie,
		"user_agent":        rc.UserAgent,
		"user_profile_url":  rc.ProfileURL,
		"style_profile_url": rc.StyleProfileURL,
	}
	if rc.Topic != "" {
		payload["topic"] = rc.Topic
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal user payload: %w", err)
	}
	return string(b), nil
}

// SameProfile reports whether the style profile matches the user profile, in
// which case a single scrape serves both analyses.
func (rc RunContext) SameProfile() bool {
	return rc.StyleProfileURL == "" || rc.StyleProfileURL == rc.ProfileURL
}

// RunState is the per-run mutable scratchpad shared by the loop and tool
// implementations. One run owns one RunState; access is sequential by design.
type RunState struct {
	Context  RunContext
	prov     provider.Provider
	progress func(string)

	posts     []models.Post
	sourceURL string
}

// NewRunState seeds a fresh scratchpad for one run. prov is the run-scoped
// LLM provider, already bound to the caller's API key.
func NewRunState(rc RunContext, prov provider.Provider, progress func(string)) *RunState {
	if progress == nil {
		progress = func(string) {}
	}
	return &RunState{Context: rc, prov: prov, progress: progress}
}

// Provider returns the run-scoped LLM provider for tool implementations that
// call the model themselves.
func (rs *RunState) Provider() provider.Provider { return rs.prov }

// ReportProgress forwards a human-readable progress line to the client.
func (rs *RunState) ReportProgress(msg string) {
	rs.progress(msg)
}

// CapturePosts records the first successful scrape so the final result can
// attach the source posts without a second download.
func (rs *RunState) CapturePosts(sourceURL string, posts []models.Post) {
	if rs.sourceURL == "" {
		rs.sourceURL = sourceURL
		rs.posts = posts
	}
}

// Posts returns the captured scrape output, if any.
func (rs *RunState) Posts() []models.Post { return rs.posts }

// SourceURL returns the captured scrape export URL, if any.
func (rs *RunState) SourceURL() string { return rs.sourceURL }

// ToolFunc executes one tool against the run state with a validated argument
// bag. The returned value must be JSON-serializable.
type ToolFunc func(ctx context.Context, rs *RunState, args map[string]any) (any, error)

// Invocation is the uniform result envelope of one dispatch.
type Invocation struct {
	Tool  string
	Args  map[string]any
	OK    bool
	Value any
	Err   string
}

// Envelope renders the invocation as the JSON the model reads back.
func (inv Invocation) Envelope() string {
	var payload map[string]any
	if inv.OK {
		payload = map[string]any{"ok": true, "value": inv.Value}
	} else {
		payload = map[string]any{"ok": false, "error": inv.Err}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"ok":false,"error":%q}`, "unserializable tool result: "+err.Error())
	}
	return string(b)
}

// DecodeArgs converts a validated argument bag into a typed per-tool struct.
func DecodeArgs(args map[string]any, dst any) error {
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return nil
}

// Transcript is the append-only conversation of one run. It is owned by a
// single loop invocation and discarded at run end.
type Transcript struct {
	msgs []models.ChatMessage
}

// NewTranscript seeds a transcript with the system prompt and user payload.
func NewTranscript(systemPrompt, userPayload string) *Transcript {
	return &Transcript{msgs: []models.ChatMessage{
		{Role: models.RoleSystem, Content: systemPrompt},
		{Role: models.RoleUser, Content: userPayload},
	}}
}

// Append adds an assistant or user message.
func (t *Transcript) Append(m models.ChatMessage) {
	t.msgs = append(t.msgs, m)
}

// AppendToolResult adds a tool-result message. The call ID must match a tool
// call on a prior assistant message in this transcript.
func (t *Transcript) AppendToolResult(callID, content string) error {
	found := false
	for _, m := range t.msgs {
		if m.Role != models.RoleAssistant {
			continue
		}
		for _, tc := range m.ToolCalls {
			if tc.ID == callID {
				found = true
				break
			}
		}
	}
	if !found {
		return fmt.Errorf("tool result references unknown call id %q", callID)
	}
	t.msgs = append(t.msgs, models.ChatMessage{
		Role:       models.RoleTool,
		Content:    content,
		ToolCallID: callID,
	})
	return nil
}

// Messages returns the transcript in order. Callers must not mutate it.
func (t *Transcript) Messages() []models.ChatMessage { return t.msgs }

// Len returns the number of messages.
func (t *Transcript) Len() int { return len(t.msgs) }
