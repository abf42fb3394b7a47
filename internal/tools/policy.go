package tools

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Policy evaluates CEL deny rules before every dispatch. A rule that
// evaluates to true denies the action. Rules are compiled at startup so a
// malformed expression is a configuration error, not a mid-run surprise.
//
// Rules see two variables:
//
//	action — the action name (string)
//	args   — the argument map (map<string, dyn>)
//
// Example: deny plain-http navigation:
//
//	action == "navigate" && !string(args["url"]).startsWith("https://")
type Policy struct {
	rules []policyRule
}

type policyRule struct {
	expr string
	prg  cel.Program
}

// NewPolicy compiles deny rules. Returns nil when no rules are configured.
func NewPolicy(exprs []string) (*Policy, error) {
	if len(exprs) == 0 {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("action", cel.StringType),
		cel.Variable("args", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	p := &Policy{rules: make([]policyRule, 0, len(exprs))}
	for _, expr := range exprs {
		ast, iss := env.Compile(expr)
		if iss.Err() != nil {
			return nil, fmt.Errorf("compile policy rule %q: %w", expr, iss.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program policy rule %q: %w", expr, err)
		}
		p.rules = append(p.rules, policyRule{expr: expr, prg: prg})
	}
	return p, nil
}

// Check returns an error naming the rule when any deny rule matches.
// Rule evaluation errors never block a dispatch.
func (p *Policy) Check(action string, args map[string]any) error {
	if p == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	for _, r := range p.rules {
		out, _, err := r.prg.Eval(map[string]any{
			"action": action,
			"args":   args,
		})
		if err != nil {
			continue
		}
		if denied, ok := out.Value().(bool); ok && denied {
			return fmt.Errorf("action %q denied by policy rule: %s", action, r.expr)
		}
	}
	return nil
}
