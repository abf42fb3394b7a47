package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/nextlevelbuilder/webpilot/pkg/browser"
)

const (
	defaultScriptTimeout = 30 * time.Second
	customOutputMaxChars = 8000
)

// CustomActionDef is a user-defined action loaded from a YAML manifest.
// Its source runs in an embedded JS VM with `args` bound to the call
// arguments and `page` exposing a small page API.
type CustomActionDef struct {
	Name           string         `yaml:"name" json:"name"`
	Description    string         `yaml:"description" json:"description"`
	Parameters     map[string]any `yaml:"parameters" json:"parameters"`
	Source         string         `yaml:"source" json:"source"`
	TimeoutSeconds int            `yaml:"timeoutSeconds" json:"timeoutSeconds"`
}

// CustomAction wraps a CustomActionDef and implements Action. Each Execute
// gets a fresh VM; definitions share the compiled program.
type CustomAction struct {
	def  CustomActionDef
	prog *goja.Program
	mgr  *browser.Manager
}

// NewCustomAction compiles a manifest definition into a runnable action.
func NewCustomAction(def CustomActionDef, mgr *browser.Manager) (*CustomAction, error) {
	if def.Source == "" {
		return nil, fmt.Errorf("custom action %q has no source", def.Name)
	}
	prog, err := goja.Compile(def.Name, def.Source, true)
	if err != nil {
		return nil, fmt.Errorf("compile custom action %q: %w", def.Name, err)
	}
	if def.Parameters == nil {
		def.Parameters = map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}
	return &CustomAction{def: def, prog: prog, mgr: mgr}, nil
}

func (a *CustomAction) Name() string               { return a.def.Name }
func (a *CustomAction) Description() string        { return a.def.Description }
func (a *CustomAction) Parameters() map[string]any { return a.def.Parameters }

func (a *CustomAction) Execute(ctx context.Context, args map[string]any, ec ExecContext) *Result {
	timeout := time.Duration(a.def.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultScriptTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	if err := vm.Set("args", args); err != nil {
		return Failf("bind args: %v", err)
	}
	if err := vm.Set("page", a.pageAPI(ctx, vm, ec)); err != nil {
		return Failf("bind page: %v", err)
	}

	// Interrupt the VM when the context ends so scripts cannot run away.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := vm.RunProgram(a.prog)
	if err != nil {
		if _, ok := err.(*goja.InterruptedError); ok {
			if ctx.Err() == context.DeadlineExceeded {
				return Failf("custom action timed out after %s", timeout)
			}
			return Failf("custom action interrupted: %v", ctx.Err())
		}
		return Failf("custom action error: %v", err)
	}

	out := renderJSValue(val)
	if len(out) > customOutputMaxChars {
		out = out[:customOutputMaxChars] + "\n[...TRUNCATED]"
	}
	if out == "" {
		out = "(custom action completed with no output)"
	}
	return OKResult(out)
}

// pageAPI exposes the page operations a custom action may call. Errors
// become JS exceptions so manifest scripts can try/catch them.
func (a *CustomAction) pageAPI(ctx context.Context, vm *goja.Runtime, ec ExecContext) map[string]any {
	throw := func(err error) {
		panic(vm.ToValue(err.Error()))
	}
	return map[string]any{
		"navigate": func(url string) {
			if err := a.mgr.Navigate(ctx, ec.TargetID, url); err != nil {
				throw(err)
			}
		},
		"click": func(ref string) {
			if err := a.mgr.Click(ctx, ec.TargetID, ref, browser.ClickOpts{}); err != nil {
				throw(err)
			}
		},
		"type": func(ref, text string) {
			if err := a.mgr.Type(ctx, ec.TargetID, ref, text, browser.TypeOpts{}); err != nil {
				throw(err)
			}
		},
		"text": func() string {
			s, err := a.mgr.Text(ctx, ec.TargetID)
			if err != nil {
				throw(err)
			}
			return s
		},
		"eval": func(js string) string {
			s, err := a.mgr.Evaluate(ctx, ec.TargetID, js)
			if err != nil {
				throw(err)
			}
			return s
		},
	}
}

// renderJSValue converts a script's return value to a string, JSON-encoding
// objects and arrays.
func renderJSValue(val goja.Value) string {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return ""
	}
	exported := val.Export()
	switch v := exported.(type) {
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return val.String()
		}
		return string(b)
	}
}
