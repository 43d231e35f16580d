package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func testDispatcher(t *testing.T, specs map[string]ToolFunc, timeout time.Duration) *Dispatcher {
	t.Helper()
	reg := NewRegistry()
	reg.MustRegister(ToolSpec{
		Name: "echo",
		Params: map[string]ParamSpec{
			"text":  {Type: "string", Required: true},
			"count": {Type: "integer"},
		},
	}, func(ctx context.Context, rs *RunState, args map[string]any) (any, error) {
		return args["text"], nil
	})
	for name, fn := range specs {
		reg.MustRegister(ToolSpec{Name: name}, fn)
	}
	reg.Seal()
	return NewDispatcher(reg, timeout, nil)
}

func testRunState() *RunState {
	return NewRunState(RunContext{RunID: "run-1"}, nil, nil)
}

func TestDispatchSuccess(t *testing.T) {
	d := testDispatcher(t, nil, 0)
	inv := d.Call(context.Background(), testRunState(), "echo", `{"text":"hello"}`)
	if !inv.OK {
		t.Fatalf("err = %s", inv.Err)
	}
	if inv.Value != "hello" {
		t.Fatalf("value = %v", inv.Value)
	}
	env := inv.Envelope()
	if !strings.Contains(env, `"ok":true`) || !strings.Contains(env, `"hello"`) {
		t.Fatalf("envelope = %s", env)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	d := testDispatcher(t, nil, 0)
	inv := d.Call(context.Background(), testRunState(), "does_not_exist", `{}`)
	if inv.OK {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(inv.Err, "unknown tool") {
		t.Fatalf("err = %s", inv.Err)
	}
}

func TestDispatchBadArgumentJSON(t *testing.T) {
	d := testDispatcher(t, nil, 0)
	inv := d.Call(context.Background(), testRunState(), "echo", `[1,2]`)
	if inv.OK || !strings.Contains(inv.Err, "invalid arguments") {
		t.Fatalf("inv = %+v", inv)
	}
}

func TestDispatchMissingRequiredParam(t *testing.T) {
	d := testDispatcher(t, nil, 0)
	inv := d.Call(context.Background(), testRunState(), "echo", `{"count":2}`)
	if inv.OK {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(inv.Err, "text") || !strings.Contains(inv.Err, "required") {
		t.Fatalf("err = %s", inv.Err)
	}
}

func TestDispatchTypeMismatch(t *testing.T) {
	d := testDispatcher(t, nil, 0)
	inv := d.Call(context.Background(), testRunState(), "echo", `{"text":"x","count":1.5}`)
	if inv.OK || !strings.Contains(inv.Err, "integer") {
		t.Fatalf("inv = %+v", inv)
	}
	// whole-valued floats pass the integer check
	inv = d.Call(context.Background(), testRunState(), "echo", `{"text":"x","count":3}`)
	if !inv.OK {
		t.Fatalf("err = %s", inv.Err)
	}
}

func TestDispatchEmptyArgs(t *testing.T) {
	called := false
	d := testDispatcher(t, map[string]ToolFunc{
		"no_args": func(ctx context.Context, rs *RunState, args map[string]any) (any, error) {
			called = true
			if args == nil {
				t.Errorf("args should be an empty map, not nil")
			}
			return "done", nil
		},
	}, 0)
	inv := d.Call(context.Background(), testRunState(), "no_args", "")
	if !inv.OK || !called {
		t.Fatalf("inv = %+v called = %v", inv, called)
	}
}

func TestDispatchToolFailureFoldsIntoEnvelope(t *testing.T) {
	d := testDispatcher(t, map[string]ToolFunc{
		"flaky": func(ctx context.Context, rs *RunState, args map[string]any) (any, error) {
			return nil, errors.New("upstream 500")
		},
	}, 0)
	inv := d.Call(context.Background(), testRunState(), "flaky", `{}`)
	if inv.OK {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(inv.Err, "tool flaky failed") || !strings.Contains(inv.Err, "upstream 500") {
		t.Fatalf("err = %s", inv.Err)
	}
	env := inv.Envelope()
	if !strings.Contains(env, `"ok":false`) {
		t.Fatalf("envelope = %s", env)
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	d := testDispatcher(t, map[string]ToolFunc{
		"boom": func(ctx context.Context, rs *RunState, args map[string]any) (any, error) {
			panic("nil map write")
		},
	}, 0)
	inv := d.Call(context.Background(), testRunState(), "boom", `{}`)
	if inv.OK {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(inv.Err, "panic") || !strings.Contains(inv.Err, "nil map write") {
		t.Fatalf("err = %s", inv.Err)
	}
}

func TestDispatchTimeout(t *testing.T) {
	d := testDispatcher(t, map[string]ToolFunc{
		"slow": func(ctx context.Context, rs *RunState, args map[string]any) (any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return "too late", nil
			}
		},
	}, 25*time.Millisecond)
	inv := d.Call(context.Background(), testRunState(), "slow", `{}`)
	if inv.OK {
		t.Fatalf("expected timeout failure")
	}
	if !strings.Contains(inv.Err, "deadline") {
		t.Fatalf("err = %s", inv.Err)
	}
}
