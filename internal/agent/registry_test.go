package agent

import (
	"context"
	"errors"
	"testing"
)

func noopTool(ctx context.Context, rs *RunState, args map[string]any) (any, error) {
	return "ok", nil
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	spec := ToolSpec{Name: "get_trends"}
	if err := reg.Register(spec, noopTool); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := reg.Register(spec, noopTool)
	var dup *DuplicateToolError
	if !errors.As(err, &dup) || dup.Name != "get_trends" {
		t.Fatalf("expected DuplicateToolError, got %v", err)
	}
}

func TestRegistryRejectsAfterSeal(t *testing.T) {
	reg := NewRegistry()
	reg.Seal()
	err := reg.Register(ToolSpec{Name: "late"}, noopTool)
	if !errors.Is(err, ErrRegistrySealed) {
		t.Fatalf("expected ErrRegistrySealed, got %v", err)
	}
}

func TestRegistryRejectsEmptyNameAndNilFunc(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(ToolSpec{}, noopTool); err == nil {
		t.Fatalf("empty name accepted")
	}
	if err := reg.Register(ToolSpec{Name: "nil_fn"}, nil); err == nil {
		t.Fatalf("nil func accepted")
	}
}

func TestRegistryResolveUnknown(t *testing.T) {
	reg := NewRegistry()
	_, _, err := reg.Resolve("missing")
	var unknown *UnknownToolError
	if !errors.As(err, &unknown) || unknown.Name != "missing" {
		t.Fatalf("expected UnknownToolError, got %v", err)
	}
}

func TestDescribeAllKeepsRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		reg.MustRegister(ToolSpec{Name: name}, noopTool)
	}
	reg.Seal()

	defs := reg.DescribeAll()
	if len(defs) != 3 {
		t.Fatalf("len = %d", len(defs))
	}
	for i, want := range []string{"zeta", "alpha", "mid"} {
		if defs[i].Name != want {
			t.Fatalf("defs[%d] = %q, want %q", i, defs[i].Name, want)
		}
	}
}

func TestToolSpecDefSortsRequired(t *testing.T) {
	spec := ToolSpec{
		Name: "scrape_linkedin_profile",
		Params: map[string]ParamSpec{
			"session_cookie": {Type: "string", Required: true},
			"profile_url":    {Type: "string", Required: true},
			"max_posts":      {Type: "integer"},
			"keywords":       {Type: "array", Items: "string"},
		},
	}
	def := spec.Def()
	required, ok := def.Parameters["required"].([]string)
	if !ok {
		t.Fatalf("required missing: %+v", def.Parameters)
	}
	if len(required) != 2 || required[0] != "profile_url" || required[1] != "session_cookie" {
		t.Fatalf("required = %v", required)
	}
	props := def.Parameters["properties"].(map[string]any)
	kw := props["keywords"].(map[string]any)
	items := kw["items"].(map[string]any)
	if items["type"] != "string" {
		t.Fatalf("array items = %v", items)
	}
}
