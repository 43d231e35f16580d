package agent

import (
	"errors"
	"fmt"
	"time"
)

// ErrStepLimitExceeded aborts a run whose model never converged on a final
// answer within the configured step bound.
var ErrStepLimitExceeded = errors.New("reached max steps without a final answer")

// ErrRegistrySealed rejects registrations after warm-up.
var ErrRegistrySealed = errors.New("tool registry is sealed")

// ErrStreamClosed aborts a run whose client went away; further model and tool
// calls would be wasted work.
var ErrStreamClosed = errors.New("stream closed by client")

// DuplicateToolError reports a second registration under an existing name.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q already registered", e.Name)
}

// UnknownToolError reports a lookup for a name the registry never saw.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %s", e.Name)
}

// ValidationError reports a missing or mistyped tool argument. It is folded
// into the transcript, never raised to the caller.
type ValidationError struct {
	Tool   string
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s: %s", e.Tool, e.Param, e.Reason)
}

// ToolExecutionError wraps a failure inside a tool implementation (network,
// API, decoding). Recoverable: the model sees it and decides what to do.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// AuthError reports a rejected external credential, typically an expired
// LinkedIn session cookie. Fatal for the tool call, surfaced both into the
// transcript and as a user-actionable message.
type AuthError struct {
	Provider string
	Reason   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s rejected credentials: %s", e.Provider, e.Reason)
}

// RateLimitError reports provider throttling. Recoverable; retry is left to
// the model's discretion.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limited", e.Provider)
}

// TransportError wraps an LLM provider failure. Fatal: the loop cannot
// continue without the model.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
