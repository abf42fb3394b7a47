package tools

import (
	"context"
	"strings"

	"github.com/nextlevelbuilder/webpilot/pkg/browser"
)

const scriptOutputMaxChars = 8000

// ScriptAction evaluates JavaScript inside the current tab.
type ScriptAction struct {
	mgr *browser.Manager
}

func NewScriptAction(mgr *browser.Manager) *ScriptAction {
	return &ScriptAction{mgr: mgr}
}

func (a *ScriptAction) Name() string { return "script" }

func (a *ScriptAction) Description() string {
	return "Evaluate a JavaScript expression in the current tab and return its string value. Use for reading state the snapshot cannot express."
}

func (a *ScriptAction) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "JavaScript expression or function body to evaluate.",
			},
		},
		"required": []string{"code"},
	}
}

func (a *ScriptAction) Execute(ctx context.Context, args map[string]any, ec ExecContext) *Result {
	code := StringArg(args, "code")
	if strings.TrimSpace(code) == "" {
		return FailResult("code is required")
	}

	// rod wants a function literal; wrap bare expressions.
	if !strings.HasPrefix(strings.TrimSpace(code), "()") &&
		!strings.HasPrefix(strings.TrimSpace(code), "function") {
		code = "() => { return (" + code + "); }"
	}

	out, err := a.mgr.Evaluate(ctx, ec.TargetID, code)
	if err != nil {
		return Failf("script failed: %v", err)
	}
	if len(out) > scriptOutputMaxChars {
		out = out[:scriptOutputMaxChars] + "\n[...TRUNCATED]"
	}
	if out == "" {
		out = "(no value)"
	}
	return OKResult(out)
}
