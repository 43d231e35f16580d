package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/zainabsaad99/EECE798S-Project/internal/telemetry"
)

// Dispatcher routes model tool calls to registered implementations. Every
// outcome, including bad arguments and panics, is folded into an Invocation
// envelope; the loop never sees a Go error from a dispatch.
type Dispatcher struct {
	registry  *Registry
	timeout   time.Duration
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

// NewDispatcher wires a dispatcher over a sealed registry. timeout bounds a
// single tool execution; zero means no bound beyond the caller's context.
func NewDispatcher(registry *Registry, timeout time.Duration, tel *telemetry.Telemetry) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		timeout:   timeout,
		telemetry: tel,
		logger:    log.New(log.Writer(), "[DISPATCH] ", log.LstdFlags),
	}
}

// Call executes one tool call. rawArgs is the argument JSON exactly as the
// model produced it.
func (d *Dispatcher) Call(ctx context.Context, rs *RunState, name, rawArgs string) Invocation {
	started := time.Now()
	inv := d.call(ctx, rs, name, rawArgs)
	elapsed := time.Since(started)

	if inv.OK {
		d.logger.Printf("tool=%s ok elapsed=%s", name, elapsed.Round(time.Millisecond))
	} else {
		d.logger.Printf("tool=%s failed elapsed=%s err=%s", name, elapsed.Round(time.Millisecond), inv.Err)
	}
	if d.telemetry != nil {
		d.telemetry.RecordToolEvent(ctx, telemetry.ToolEvent{
			RunID:    rs.Context.RunID,
			Tool:     name,
			Duration: elapsed,
			Success:  inv.OK,
			Error:    inv.Err,
		})
	}
	return inv
}

func (d *Dispatcher) call(ctx context.Context, rs *RunState, name, rawArgs string) Invocation {
	args, err := parseArgs(rawArgs)
	if err != nil {
		return Invocation{Tool: name, Err: fmt.Sprintf("invalid arguments for %s: %v", name, err)}
	}

	spec, fn, err := d.registry.Resolve(name)
	if err != nil {
		return Invocation{Tool: name, Args: args, Err: err.Error()}
	}
	if err := validateArgs(spec, args); err != nil {
		return Invocation{Tool: name, Args: args, Err: err.Error()}
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	value, err := runTool(ctx, fn, rs, args)
	if err != nil {
		return Invocation{Tool: name, Args: args, Err: (&ToolExecutionError{Tool: name, Err: err}).Error()}
	}
	return Invocation{Tool: name, Args: args, OK: true, Value: value}
}

// runTool isolates the implementation behind a recover so a panicking tool
// degrades to an error envelope instead of killing the run.
func runTool(ctx context.Context, fn ToolFunc, rs *RunState, args map[string]any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, rs, args)
}

func parseArgs(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// validateArgs checks the bag against the tool's parameter schema. Missing
// required params and type mismatches fail; params the schema never mentions
// pass through untouched, models routinely add extras.
func validateArgs(spec ToolSpec, args map[string]any) error {
	for pname, p := range spec.Params {
		v, present := args[pname]
		if !present || v == nil {
			if p.Required {
				return &ValidationError{Tool: spec.Name, Param: pname, Reason: "required parameter missing"}
			}
			continue
		}
		if reason := typeMismatch(p, v); reason != "" {
			return &ValidationError{Tool: spec.Name, Param: pname, Reason: reason}
		}
	}
	return nil
}

func typeMismatch(p ParamSpec, v any) string {
	switch p.Type {
	case "string":
		if _, ok := v.(string); !ok {
			return fmt.Sprintf("expected string, got %T", v)
		}
	case "integer":
		f, ok := v.(float64)
		if !ok {
			return fmt.Sprintf("expected integer, got %T", v)
		}
		if f != math.Trunc(f) {
			return fmt.Sprintf("expected integer, got %v", f)
		}
	case "number":
		if _, ok := v.(float64); !ok {
			return fmt.Sprintf("expected number, got %T", v)
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			return fmt.Sprintf("expected boolean, got %T", v)
		}
	case "array":
		if _, ok := v.([]any); !ok {
			return fmt.Sprintf("expected array, got %T", v)
		}
	case "object":
		if _, ok := v.(map[string]any); !ok {
			return fmt.Sprintf("expected object, got %T", v)
		}
	}
	return ""
}
