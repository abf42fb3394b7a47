package tools

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nextlevelbuilder/webpilot/pkg/browser"
)

// NavigateAction points the current tab at a URL.
type NavigateAction struct {
	mgr *browser.Manager
}

func NewNavigateAction(mgr *browser.Manager) *NavigateAction {
	return &NavigateAction{mgr: mgr}
}

func (a *NavigateAction) Name() string { return "navigate" }

func (a *NavigateAction) Description() string {
	return "Navigate the current tab to a URL and wait for the page to settle."
}

func (a *NavigateAction) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "HTTP or HTTPS URL to navigate to.",
			},
		},
		"required": []string{"url"},
	}
}

func (a *NavigateAction) Execute(ctx context.Context, args map[string]any, ec ExecContext) *Result {
	rawURL := StringArg(args, "url")
	if rawURL == "" {
		return FailResult("url is required")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Failf("invalid URL: %v", err)
	}
	if parsed.Scheme == "" {
		// Models often omit the scheme; assume https.
		rawURL = "https://" + rawURL
		parsed, err = url.Parse(rawURL)
		if err != nil {
			return Failf("invalid URL: %v", err)
		}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return FailResult("only http and https URLs are supported")
	}
	if parsed.Host == "" {
		return FailResult("missing hostname in URL")
	}

	if err := a.mgr.Navigate(ctx, ec.TargetID, rawURL); err != nil {
		return Failf("navigate failed: %v", err)
	}
	return OKResult(fmt.Sprintf("navigated to %s", rawURL))
}
