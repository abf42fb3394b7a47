package tools

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/webpilot/pkg/browser"
)

// ClickAction clicks an element by snapshot ref.
type ClickAction struct {
	mgr *browser.Manager
}

func NewClickAction(mgr *browser.Manager) *ClickAction {
	return &ClickAction{mgr: mgr}
}

func (a *ClickAction) Name() string { return "click" }

func (a *ClickAction) Description() string {
	return "Click an element by its snapshot ref (e.g. \"e5\"). Take an extract snapshot first to obtain refs."
}

func (a *ClickAction) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ref": map[string]any{
				"type":        "string",
				"description": "Element ref from the latest snapshot.",
			},
			"doubleClick": map[string]any{
				"type":        "boolean",
				"description": "Double-click instead of single click.",
			},
			"button": map[string]any{
				"type":        "string",
				"description": "Mouse button: left (default), right, or middle.",
				"enum":        []string{"left", "right", "middle"},
			},
		},
		"required": []string{"ref"},
	}
}

func (a *ClickAction) Execute(ctx context.Context, args map[string]any, ec ExecContext) *Result {
	ref := StringArg(args, "ref")
	if ref == "" {
		return FailResult("ref is required")
	}

	opts := browser.ClickOpts{
		DoubleClick: BoolArg(args, "doubleClick"),
		Button:      StringArg(args, "button"),
	}
	if err := a.mgr.Click(ctx, ec.TargetID, ref, opts); err != nil {
		return Failf("click failed: %v", err)
	}
	return OKResult(fmt.Sprintf("clicked %s", browser.NormalizeRef(ref)))
}

// TypeAction types text into an element by snapshot ref.
type TypeAction struct {
	mgr *browser.Manager
}

func NewTypeAction(mgr *browser.Manager) *TypeAction {
	return &TypeAction{mgr: mgr}
}

func (a *TypeAction) Name() string { return "type" }

func (a *TypeAction) Description() string {
	return "Type text into an input element by its snapshot ref. Set submit to press Enter afterwards."
}

func (a *TypeAction) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ref": map[string]any{
				"type":        "string",
				"description": "Element ref from the latest snapshot.",
			},
			"text": map[string]any{
				"type":        "string",
				"description": "Text to type.",
			},
			"submit": map[string]any{
				"type":        "boolean",
				"description": "Press Enter after typing.",
			},
			"slowly": map[string]any{
				"type":        "boolean",
				"description": "Type one character at a time (for inputs with keystroke handlers).",
			},
		},
		"required": []string{"ref", "text"},
	}
}

func (a *TypeAction) Execute(ctx context.Context, args map[string]any, ec ExecContext) *Result {
	ref := StringArg(args, "ref")
	if ref == "" {
		return FailResult("ref is required")
	}
	text := StringArg(args, "text")

	opts := browser.TypeOpts{
		Submit: BoolArg(args, "submit"),
		Slowly: BoolArg(args, "slowly"),
	}
	if err := a.mgr.Type(ctx, ec.TargetID, ref, text, opts); err != nil {
		return Failf("type failed: %v", err)
	}
	return OKResult(fmt.Sprintf("typed %d characters into %s", len(text), browser.NormalizeRef(ref)))
}

// PressAction presses a keyboard key on the current tab.
type PressAction struct {
	mgr *browser.Manager
}

func NewPressAction(mgr *browser.Manager) *PressAction {
	return &PressAction{mgr: mgr}
}

func (a *PressAction) Name() string { return "press" }

func (a *PressAction) Description() string {
	return "Press a keyboard key on the current tab (Enter, Tab, Escape, ArrowDown, ...)."
}

func (a *PressAction) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key": map[string]any{
				"type":        "string",
				"description": "Key name, e.g. Enter, Tab, Escape, ArrowDown, PageDown.",
			},
		},
		"required": []string{"key"},
	}
}

func (a *PressAction) Execute(ctx context.Context, args map[string]any, ec ExecContext) *Result {
	key := StringArg(args, "key")
	if key == "" {
		return FailResult("key is required")
	}
	if err := a.mgr.Press(ctx, ec.TargetID, key); err != nil {
		return Failf("press failed: %v", err)
	}
	return OKResult(fmt.Sprintf("pressed %s", key))
}

// WaitAction waits for a condition on the current tab.
type WaitAction struct {
	mgr *browser.Manager
}

func NewWaitAction(mgr *browser.Manager) *WaitAction {
	return &WaitAction{mgr: mgr}
}

func (a *WaitAction) Name() string { return "wait" }

func (a *WaitAction) Description() string {
	return "Wait for a fixed time (timeMs), for text to appear on the page, or for the page to stabilize when neither is given."
}

func (a *WaitAction) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"timeMs": map[string]any{
				"type":        "number",
				"description": "Milliseconds to wait.",
			},
			"text": map[string]any{
				"type":        "string",
				"description": "Wait for this text to appear on the page.",
			},
		},
	}
}

func (a *WaitAction) Execute(ctx context.Context, args map[string]any, ec ExecContext) *Result {
	opts := browser.WaitOpts{
		TimeMs: IntArg(args, "timeMs"),
		Text:   StringArg(args, "text"),
	}
	// Bound fixed sleeps so the planner cannot stall a run.
	if opts.TimeMs > 30000 {
		opts.TimeMs = 30000
	}
	if err := a.mgr.Wait(ctx, ec.TargetID, opts); err != nil {
		return Failf("wait failed: %v", err)
	}
	return OKResult("wait complete")
}
