package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/webpilot/pkg/browser"
)

const extractTextMaxChars = 16000

// ExtractAction reads the current page: an accessibility snapshot with
// actionable refs (default) or the raw visible text.
type ExtractAction struct {
	mgr *browser.Manager
}

func NewExtractAction(mgr *browser.Manager) *ExtractAction {
	return &ExtractAction{mgr: mgr}
}

func (a *ExtractAction) Name() string { return "extract" }

func (a *ExtractAction) Description() string {
	return "Read the current page. Mode \"snapshot\" (default) returns an accessibility tree with refs for click/type; mode \"text\" returns the visible page text."
}

func (a *ExtractAction) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mode": map[string]any{
				"type":        "string",
				"description": "What to extract: snapshot or text.",
				"enum":        []string{"snapshot", "text"},
			},
			"interactive": map[string]any{
				"type":        "boolean",
				"description": "Snapshot mode only: include interactive elements only.",
			},
		},
	}
}

func (a *ExtractAction) Execute(ctx context.Context, args map[string]any, ec ExecContext) *Result {
	mode := StringArg(args, "mode")
	if mode == "" {
		mode = "snapshot"
	}

	switch mode {
	case "text":
		text, err := a.mgr.Text(ctx, ec.TargetID)
		if err != nil {
			return Failf("extract text failed: %v", err)
		}
		text = strings.TrimSpace(text)
		if len(text) > extractTextMaxChars {
			text = text[:extractTextMaxChars] + "\n[...TRUNCATED]"
		}
		if text == "" {
			return OKResult("(page has no visible text)")
		}
		return OKResult(text)

	case "snapshot":
		opts := browser.DefaultSnapshotOptions()
		opts.Interactive = BoolArg(args, "interactive")

		snap, err := a.mgr.Snapshot(ctx, ec.TargetID, opts)
		if err != nil {
			return Failf("snapshot failed: %v", err)
		}

		var sb strings.Builder
		if snap.URL != "" {
			fmt.Fprintf(&sb, "URL: %s\n", snap.URL)
		}
		if snap.Title != "" {
			fmt.Fprintf(&sb, "Title: %s\n", snap.Title)
		}
		fmt.Fprintf(&sb, "Elements with refs: %d\n\n", snap.Refsize)
		sb.WriteString(snap.Snapshot)
		return OKResult(sb.String())

	default:
		return Failf("unknown extract mode %q", mode)
	}
}
