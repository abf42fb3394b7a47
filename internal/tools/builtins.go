package tools

import "github.com/nextlevelbuilder/webpilot/pkg/browser"

// RegisterBuiltins registers the built-in browser actions on a registry.
func RegisterBuiltins(reg *Registry, mgr *browser.Manager) {
	reg.MustRegister(NewNavigateAction(mgr))
	reg.MustRegister(NewClickAction(mgr))
	reg.MustRegister(NewTypeAction(mgr))
	reg.MustRegister(NewPressAction(mgr))
	reg.MustRegister(NewWaitAction(mgr))
	reg.MustRegister(NewExtractAction(mgr))
	reg.MustRegister(NewScriptAction(mgr))
}
