package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zainabsaad99/EECE798S-Project/config"
	"github.com/zainabsaad99/EECE798S-Project/internal/stream"
	"github.com/zainabsaad99/EECE798S-Project/internal/telemetry"
	"github.com/zainabsaad99/EECE798S-Project/models"
	"github.com/zainabsaad99/EECE798S-Project/provider"
)

var tracer = otel.Tracer("contentagent/agent")

// Loop drives the bounded model/tool conversation of one run. A Loop is
// stateless across runs; per-run state lives in the RunState and the
// transcript built inside Run.
type Loop struct {
	dispatcher *Dispatcher
	registry   *Registry
	cfg        config.AgentConfig
	telemetry  *telemetry.Telemetry
	logger     *log.Logger
}

// NewLoop builds a loop over a sealed registry and its dispatcher.
func NewLoop(dispatcher *Dispatcher, registry *Registry, cfg config.AgentConfig, tel *telemetry.Telemetry) *Loop {
	return &Loop{
		dispatcher: dispatcher,
		registry:   registry,
		cfg:        cfg,
		telemetry:  tel,
		logger:     log.New(log.Writer(), "[AGENT] ", log.LstdFlags),
	}
}

// finalAnswer is the JSON object the model must emit as its last message.
type finalAnswer struct {
	JSONURL    string         `json:"json_url"`
	Keywords   []string       `json:"keywords"`
	StyleNotes string         `json:"style_notes"`
	Trends     []models.Trend `json:"trends"`
}

// Run executes the state machine INIT -> AWAITING_MODEL ->
// (TOOL_REQUESTED -> DISPATCHING -> AWAITING_MODEL)* -> DONE | FAILED.
// Tool failures are folded into the transcript and the loop continues; only
// the step bound, an LLM transport failure or cancellation abort the run.
// When streamTokens is set, assistant text fragments are forwarded to
// relay.Chunk as they arrive.
func (l *Loop) Run(ctx context.Context, prov provider.Provider, rs *RunState, relay stream.Relay, streamTokens bool) (result models.AgentResult, err error) {
	started := time.Now().UTC()
	maxSteps := l.cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 10
	}

	ctx, span := tracer.Start(ctx, "AgentLoop.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", rs.Context.RunID),
		attribute.Bool("same_profile", rs.Context.SameProfile()),
		attribute.Int("max_steps", maxSteps),
	)

	var toolsUsed []string
	defer func() {
		result.RunID = rs.Context.RunID
		result.StartedAt = started
		result.FinishedAt = time.Now().UTC()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if l.telemetry != nil {
			event := telemetry.RunEvent{
				ID:         rs.Context.RunID,
				ProfileURL: rs.Context.ProfileURL,
				StartTime:  started,
				EndTime:    result.FinishedAt,
				Duration:   result.FinishedAt.Sub(started),
				Steps:      result.Steps,
				Success:    err == nil && result.Success,
				Cost:       result.CostUSD,
				TokensUsed: result.TokensIn + result.TokensOut,
				ToolsUsed:  toolsUsed,
			}
			if err != nil {
				event.Error = err.Error()
			}
			l.telemetry.RecordRunEvent(ctx, event)
		}
	}()

	phase := PhaseInit
	payload, perr := rs.Context.UserPayload()
	if perr != nil {
		err = perr
		return
	}
	transcript := NewTranscript(systemPrompt(rs.Context.SameProfile()), payload)
	tools := l.registry.DescribeAll()

	for step := 1; step <= maxSteps; step++ {
		if cerr := ctx.Err(); cerr != nil {
			err = cerr
			return
		}
		if relay.Closed() {
			err = ErrStreamClosed
			return
		}

		phase = PhaseAwaitingModel
		l.logger.Printf("run=%s step=%d phase=%s", rs.Context.RunID, step, phase)

		stepCtx, stepSpan := tracer.Start(ctx, "AgentLoop.step")
		stepSpan.SetAttributes(attribute.Int("step", step))

		req := models.ChatRequest{
			Model:       "agent",
			Messages:    transcript.Messages(),
			Tools:       tools,
			Temperature: 0.2,
		}
		var turn models.ChatResult
		var terr error
		if streamTokens {
			turn, terr = prov.StreamCompletion(stepCtx, req, relay.Chunk)
		} else {
			turn, terr = prov.Completion(stepCtx, req)
		}
		if terr != nil {
			stepSpan.RecordError(terr)
			stepSpan.SetStatus(codes.Error, terr.Error())
			stepSpan.End()
			result.Steps = step
			phase = PhaseFailed
			if errors.Is(terr, context.Canceled) || errors.Is(terr, context.DeadlineExceeded) {
				err = terr
				return
			}
			err = &TransportError{Err: terr}
			return
		}

		result.Steps = step
		result.TokensIn += turn.Usage.InputTokens
		result.TokensOut += turn.Usage.OutputTokens
		stepCost := prov.CalculateCost(turn.Usage.InputTokens, turn.Usage.OutputTokens, turn.ModelUsed)
		result.CostUSD += stepCost
		if l.telemetry != nil {
			l.telemetry.RecordLLMEvent(stepCtx, telemetry.LLMEvent{
				Model:        turn.ModelUsed,
				Operation:    "agent_step",
				InputTokens:  turn.Usage.InputTokens,
				OutputTokens: turn.Usage.OutputTokens,
				Cost:         stepCost,
			})
		}

		if turn.HasToolCalls() {
			phase = PhaseToolRequested
			transcript.Append(turn.Message)
			// Calls run strictly in the order received; later tools depend
			// on earlier outputs, so no intra-turn parallelism.
			for _, call := range turn.Message.ToolCalls {
				phase = PhaseDispatching
				l.logger.Printf("run=%s step=%d tool=%s args=%s", rs.Context.RunID, step, call.Name, snippet(call.Arguments, 200))
				inv := l.dispatcher.Call(stepCtx, rs, call.Name, call.Arguments)
				toolsUsed = append(toolsUsed, call.Name)
				if aerr := transcript.AppendToolResult(call.ID, inv.Envelope()); aerr != nil {
					stepSpan.RecordError(aerr)
					l.logger.Printf("run=%s step=%d drop tool result: %v", rs.Context.RunID, step, aerr)
				}
			}
			stepSpan.End()
			continue
		}

		// No tool calls: this is the final message.
		stepSpan.End()
		phase = PhaseDone
		content := turn.Message.Content
		l.logger.Printf("run=%s step=%d final text: %s", rs.Context.RunID, step, snippet(content, 400))

		if final, ok := parseFinal(content); ok {
			result.Success = true
			result.SourceURL = final.JSONURL
			result.Keywords = final.Keywords
			result.StyleNotes = final.StyleNotes
			result.Trends = final.Trends
		} else {
			result.RawMessage = content
		}
		if result.SourceURL == "" {
			result.SourceURL = rs.SourceURL()
		}
		result.Posts = rs.Posts()
		span.SetAttributes(attribute.Int("steps", result.Steps), attribute.Bool("success", result.Success))
		return result, nil
	}

	phase = PhaseFailed
	result.Posts = rs.Posts()
	if result.SourceURL == "" {
		result.SourceURL = rs.SourceURL()
	}
	err = ErrStepLimitExceeded
	return
}

// parseFinal decodes the final assistant message. Strict decode first, then a
// lenient pass that pulls the first top-level JSON object out of surrounding
// prose or code fences.
func parseFinal(content string) (finalAnswer, bool) {
	trimmed := strings.TrimSpace(content)
	var final finalAnswer
	if err := json.Unmarshal([]byte(trimmed), &final); err == nil && looksLikeObject(trimmed) {
		return final, true
	}
	candidate := extractFirstJSON(trimmed)
	if candidate == trimmed || !looksLikeObject(candidate) {
		return finalAnswer{}, false
	}
	if err := json.Unmarshal([]byte(candidate), &final); err != nil {
		return finalAnswer{}, false
	}
	return final, true
}

func looksLikeObject(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "{")
}

// extractFirstJSON finds the first top-level JSON object in a string.
func extractFirstJSON(s string) string {
	start := -1
	depth := 0
	for i, ch := range s {
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == '}' {
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return s
}

func snippet(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
