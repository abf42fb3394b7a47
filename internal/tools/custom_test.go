package tools

import (
	"context"
	"strings"
	"testing"
)

func TestCustomAction_ReturnsStringValue(t *testing.T) {
	a, err := NewCustomAction(CustomActionDef{
		Name:   "greet",
		Source: `"hello " + args.name`,
	}, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	result := a.Execute(context.Background(), map[string]any{"name": "world"}, ExecContext{})
	if !result.OK {
		t.Fatalf("execute failed: %s", result.Error)
	}
	if result.Output != "hello world" {
		t.Errorf("expected 'hello world', got %q", result.Output)
	}
}

func TestCustomAction_ObjectsJSONEncoded(t *testing.T) {
	a, err := NewCustomAction(CustomActionDef{
		Name:   "obj",
		Source: `({count: 2, items: ["a", "b"]})`,
	}, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	result := a.Execute(context.Background(), nil, ExecContext{})
	if !result.OK {
		t.Fatalf("execute failed: %s", result.Error)
	}
	if !strings.Contains(result.Output, `"count":2`) {
		t.Errorf("expected JSON output, got %q", result.Output)
	}
}

func TestCustomAction_ScriptErrorIsFailure(t *testing.T) {
	a, err := NewCustomAction(CustomActionDef{
		Name:   "boom",
		Source: `missingFunction()`,
	}, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	result := a.Execute(context.Background(), nil, ExecContext{})
	if result.OK {
		t.Error("script error should produce a failed result")
	}
	if result.Error == "" {
		t.Error("expected an error message")
	}
}

func TestCustomAction_CompileErrorReported(t *testing.T) {
	if _, err := NewCustomAction(CustomActionDef{
		Name:   "bad",
		Source: `function (`,
	}, nil); err == nil {
		t.Error("broken source should fail at compile time")
	}
}

func TestCustomAction_EmptySourceRejected(t *testing.T) {
	if _, err := NewCustomAction(CustomActionDef{Name: "empty"}, nil); err == nil {
		t.Error("empty source should be rejected")
	}
}

func TestCustomAction_TimesOut(t *testing.T) {
	a, err := NewCustomAction(CustomActionDef{
		Name:           "spin",
		Source:         `while (true) {}`,
		TimeoutSeconds: 1,
	}, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	result := a.Execute(context.Background(), nil, ExecContext{})
	if result.OK {
		t.Error("runaway script should fail")
	}
	if !strings.Contains(result.Error, "timed out") {
		t.Errorf("expected timeout error, got %q", result.Error)
	}
}

func TestCustomAction_DefaultParameterSchema(t *testing.T) {
	a, err := NewCustomAction(CustomActionDef{
		Name:   "noparams",
		Source: `"ok"`,
	}, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	params := a.Parameters()
	if params["type"] != "object" {
		t.Errorf("default schema should be an object schema, got %v", params["type"])
	}
}
