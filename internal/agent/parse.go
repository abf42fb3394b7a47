package agent

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Model output parsing is total: every input maps to a decision, possibly
// "no action". Priority order: embedded JSON object, then keyword
// extraction over the raw text, then no action.

// plannerDecision is the parsed outcome of one planner call.
type plannerDecision struct {
	Thought Thought
	Action  *ProposedAction
}

// evalDecision is the parsed outcome of one evaluator call.
type evalDecision struct {
	IsComplete     bool   `json:"isComplete"`
	Reasoning      string `json:"reasoning"`
	ShouldContinue bool   `json:"shouldContinue"`
	Result         string `json:"result"`
}

// plannerJSON is the structured shape the planner is prompted to emit.
type plannerJSON struct {
	Thought    string             `json:"thought"`
	Reasoning  string             `json:"reasoning"`
	Confidence *float64           `json:"confidence"`
	Action     *plannerActionJSON `json:"action"`
}

type plannerActionJSON struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

const defaultConfidence = 0.5

// parsePlannerOutput turns raw planner text into a decision. It never fails:
// missing fields get safe defaults (thought = raw text, confidence = 0.5,
// action = none) and unparsable output falls back to keyword extraction.
func parsePlannerOutput(raw string) plannerDecision {
	fallback := plannerDecision{
		Thought: Thought{Text: strings.TrimSpace(raw), Confidence: defaultConfidence},
	}

	block := extractJSONBlock(raw)
	if block != "" {
		var pj plannerJSON
		err := json.Unmarshal([]byte(block), &pj)
		if err != nil {
			// Models emit almost-JSON often enough that repairing is
			// worth a second attempt.
			if fixed, repairErr := jsonrepair.JSONRepair(block); repairErr == nil {
				err = json.Unmarshal([]byte(fixed), &pj)
			}
		}
		if err == nil {
			return decisionFromJSON(pj, raw)
		}
	}

	if action := extractHeuristicAction(raw); action != nil {
		fallback.Action = action
	}
	return fallback
}

func decisionFromJSON(pj plannerJSON, raw string) plannerDecision {
	d := plannerDecision{
		Thought: Thought{
			Text:       strings.TrimSpace(pj.Thought),
			Reasoning:  pj.Reasoning,
			Confidence: defaultConfidence,
		},
	}
	if d.Thought.Text == "" {
		d.Thought.Text = strings.TrimSpace(raw)
	}
	if pj.Confidence != nil && *pj.Confidence >= 0 && *pj.Confidence <= 1 {
		d.Thought.Confidence = *pj.Confidence
	}
	if pj.Action != nil && strings.TrimSpace(pj.Action.Name) != "" {
		d.Action = &ProposedAction{
			Name:   strings.TrimSpace(pj.Action.Name),
			Args:   pj.Action.Args,
			Source: SourceStructured,
		}
	}
	return d
}

// parseEvaluatorOutput parses evaluator text. The second return is false
// when nothing structured could be recovered, which routes the caller into
// the deterministic fallback.
func parseEvaluatorOutput(raw string) (evalDecision, bool) {
	block := extractJSONBlock(raw)
	if block == "" {
		return evalDecision{}, false
	}

	var d evalDecision
	err := json.Unmarshal([]byte(block), &d)
	if err != nil {
		if fixed, repairErr := jsonrepair.JSONRepair(block); repairErr == nil {
			err = json.Unmarshal([]byte(fixed), &d)
		}
	}
	if err != nil {
		return evalDecision{}, false
	}
	return d, true
}

var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// extractJSONBlock locates the most plausible embedded JSON object: the
// content of a code fence when present, otherwise the outermost braces.
func extractJSONBlock(raw string) string {
	s := raw
	if m := codeFenceRe.FindStringSubmatch(raw); len(m) == 2 {
		s = m[1]
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// Heuristic extraction patterns, tried in order.
var (
	urlRe        = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)
	navigateRe   = regexp.MustCompile(`(?i)\b(navigate|go to|open|visit)\b`)
	clickRe      = regexp.MustCompile(`(?i)\bclick(?:ing|ed)?\b`)
	typeRe       = regexp.MustCompile(`(?i)\b(type|fill|enter)\b`)
	extractRe    = regexp.MustCompile(`(?i)\b(extract|read|scrape|look at)\b`)
	refRe        = regexp.MustCompile(`(?i)\b(e\d+)\b`)
	quotedTextRe = regexp.MustCompile(`["']([^"']+)["']`)
)

// extractHeuristicAction salvages a plausible action from free text when the
// planner did not produce parsable JSON. Returns nil when nothing matches.
func extractHeuristicAction(raw string) *ProposedAction {
	if navigateRe.MatchString(raw) {
		if url := urlRe.FindString(raw); url != "" {
			return &ProposedAction{
				Name:   "navigate",
				Args:   map[string]any{"url": strings.TrimRight(url, ".,;")},
				Source: SourceHeuristic,
			}
		}
	}

	if clickRe.MatchString(raw) {
		args := map[string]any{}
		if m := refRe.FindStringSubmatch(raw); len(m) == 2 {
			args["ref"] = m[1]
		} else if m := quotedTextRe.FindStringSubmatch(raw); len(m) == 2 {
			args["target"] = m[1]
		}
		if len(args) > 0 {
			return &ProposedAction{Name: "click", Args: args, Source: SourceHeuristic}
		}
	}

	if typeRe.MatchString(raw) {
		if m := quotedTextRe.FindStringSubmatch(raw); len(m) == 2 {
			args := map[string]any{"text": m[1]}
			if r := refRe.FindStringSubmatch(raw); len(r) == 2 {
				args["ref"] = r[1]
			}
			return &ProposedAction{Name: "type", Args: args, Source: SourceHeuristic}
		}
	}

	if extractRe.MatchString(raw) {
		return &ProposedAction{Name: "extract", Args: map[string]any{}, Source: SourceHeuristic}
	}

	return nil
}
