package agent

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/zainabsaad99/EECE798S-Project/config"
	"github.com/zainabsaad99/EECE798S-Project/internal/stream"
	"github.com/zainabsaad99/EECE798S-Project/internal/telemetry"
	"github.com/zainabsaad99/EECE798S-Project/models"
	"github.com/zainabsaad99/EECE798S-Project/provider"
)

// Runner is the single entry point callers use to execute agent runs. It owns
// the sealed registry and the loop; per-run state (provider bound to the
// caller's API key, scratchpad, relay) is constructed fresh for every run, so
// concurrent runs share nothing mutable.
type Runner struct {
	cfg       *config.Config
	registry  *Registry
	loop      *Loop
	telemetry *telemetry.Telemetry

	newProvider func(cfg config.LLMConfig, apiKeyOverride string) (provider.Provider, error)
}

// NewRunner seals the registry and wires the dispatcher and loop.
func NewRunner(cfg *config.Config, registry *Registry, tel *telemetry.Telemetry) *Runner {
	registry.Seal()
	dispatcher := NewDispatcher(registry, cfg.Agent.ToolTimeout, tel)
	return &Runner{
		cfg:         cfg,
		registry:    registry,
		loop:        NewLoop(dispatcher, registry, cfg.Agent, tel),
		telemetry:   tel,
		newProvider: provider.NewProvider,
	}
}

// Run executes one agent run to completion and returns the structured result.
func (r *Runner) Run(ctx context.Context, rc RunContext) (models.AgentResult, error) {
	return r.run(ctx, rc, stream.NopRelay{}, false)
}

// RunStream executes one agent run while forwarding progress lines, streamed
// assistant text and the terminal event to relay. The returned result mirrors
// what the relay delivered.
func (r *Runner) RunStream(ctx context.Context, rc RunContext, relay stream.Relay) (models.AgentResult, error) {
	return r.run(ctx, rc, relay, true)
}

func (r *Runner) run(ctx context.Context, rc RunContext, relay stream.Relay, streamTokens bool) (models.AgentResult, error) {
	if rc.RunID == "" {
		rc.RunID = uuid.NewString()
	}
	prov, err := r.newProvider(r.cfg.LLM, rc.OpenAIKey)
	if err != nil {
		relay.Error(err.Error())
		return models.AgentResult{RunID: rc.RunID}, err
	}
	rs := NewRunState(rc, prov, relay.Progress)

	result, err := r.loop.Run(ctx, prov, rs, relay, streamTokens)
	if err != nil {
		relay.Error(UserFacingError(err))
		return result, err
	}
	relay.Final(result)
	return result, nil
}

// UserFacingError renders a run failure as a message safe to show the client.
// Credential problems keep their actionable detail; everything else passes
// through as-is.
func UserFacingError(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Error()
	}
	if errors.Is(err, ErrStepLimitExceeded) {
		return "Reached max steps without a final answer."
	}
	return err.Error()
}
