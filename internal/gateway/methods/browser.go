package methods

import (
	"context"
	"encoding/json"

	"github.com/nextlevelbuilder/webpilot/internal/gateway"
	"github.com/nextlevelbuilder/webpilot/pkg/browser"
	"github.com/nextlevelbuilder/webpilot/pkg/protocol"
)

// BrowserMethods handles browser.tabs, browser.open and browser.close.
type BrowserMethods struct {
	browser *browser.Manager
}

func NewBrowserMethods(b *browser.Manager) *BrowserMethods {
	return &BrowserMethods{browser: b}
}

// Register adds browser methods to the router.
func (m *BrowserMethods) Register(router *gateway.MethodRouter) {
	router.Register(protocol.MethodBrowserTabs, m.handleTabs)
	router.Register(protocol.MethodBrowserOpen, m.handleOpen)
	router.Register(protocol.MethodBrowserClose, m.handleClose)
}

func (m *BrowserMethods) handleTabs(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	tabs, err := m.browser.ListTabs(ctx)
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrUnavailable, err.Error()))
		return
	}
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"tabs": tabs,
	}))
}

func (m *BrowserMethods) handleOpen(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params struct {
		URL string `json:"url"`
	}
	if req.Params != nil {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "invalid params: "+err.Error()))
			return
		}
	}

	tab, err := m.browser.OpenTab(ctx, params.URL)
	if err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrUnavailable, err.Error()))
		return
	}
	client.SendResponse(protocol.NewOKResponse(req.ID, tab))
}

func (m *BrowserMethods) handleClose(ctx context.Context, client *gateway.Client, req *protocol.RequestFrame) {
	var params struct {
		TargetID string `json:"targetId"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "invalid params: "+err.Error()))
		return
	}
	if params.TargetID == "" {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrInvalidRequest, "targetId is required"))
		return
	}

	if err := m.browser.CloseTab(ctx, params.TargetID); err != nil {
		client.SendResponse(protocol.NewErrorResponse(req.ID, protocol.ErrNotFound, err.Error()))
		return
	}
	client.SendResponse(protocol.NewOKResponse(req.ID, map[string]interface{}{
		"ok": true,
	}))
}
