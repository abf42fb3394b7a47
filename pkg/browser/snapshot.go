package browser

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod/lib/proto"
)

// axValue extracts a string value from an AXValue, tolerating numbers and
// booleans encoded as raw JSON.
func axValue(v *proto.AccessibilityAXValue) string {
	if v == nil {
		return ""
	}
	if s := v.Value.Str(); s != "" {
		return s
	}
	raw := v.Value.String()
	if raw == "" || raw == "null" || raw == `""` {
		return ""
	}
	return raw
}

// axNode is a flattened AX tree node with its depth in the tree.
type axNode struct {
	node  *proto.AccessibilityAXNode
	depth int
}

// flattenAXTree converts flat CDP AX nodes into depth-first order with
// depths, capped at limit nodes.
func flattenAXTree(nodes []*proto.AccessibilityAXNode, limit int) []axNode {
	if len(nodes) == 0 {
		return nil
	}

	byID := make(map[proto.AccessibilityAXNodeID]*proto.AccessibilityAXNode, len(nodes))
	referenced := make(map[proto.AccessibilityAXNodeID]bool)
	for _, n := range nodes {
		if n.NodeID != "" {
			byID[n.NodeID] = n
		}
		for _, cid := range n.ChildIDs {
			referenced[cid] = true
		}
	}

	// Root: the node nobody references as a child.
	var root *proto.AccessibilityAXNode
	for _, n := range nodes {
		if n.NodeID != "" && !referenced[n.NodeID] {
			root = n
			break
		}
	}
	if root == nil {
		root = nodes[0]
	}
	if root == nil || root.NodeID == "" {
		return nil
	}

	type frame struct {
		id    proto.AccessibilityAXNodeID
		depth int
	}
	var out []axNode
	stack := []frame{{id: root.NodeID}}

	for len(stack) > 0 && len(out) < limit {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, ok := byID[f.id]
		if !ok {
			continue
		}
		out = append(out, axNode{node: n, depth: f.depth})

		// Push children reversed so the first child pops first.
		for i := len(n.ChildIDs) - 1; i >= 0; i-- {
			cid := n.ChildIDs[i]
			if _, exists := byID[cid]; exists {
				stack = append(stack, frame{id: cid, depth: f.depth + 1})
			}
		}
	}
	return out
}

// dupTracker assigns nth indexes to repeated role+name combinations so a
// ref stays unambiguous when a page repeats the same labeled control.
type dupTracker struct {
	counts map[string]int
	seen   map[string][]string
}

func newDupTracker() *dupTracker {
	return &dupTracker{counts: make(map[string]int), seen: make(map[string][]string)}
}

func (t *dupTracker) next(role, name, ref string) int {
	k := role + ":" + name
	idx := t.counts[k]
	t.counts[k] = idx + 1
	t.seen[k] = append(t.seen[k], ref)
	return idx
}

// clearSingles removes nth=0 from refs whose role+name appears only once.
func (t *dupTracker) clearSingles(refs map[string]RoleRef) {
	for ref, data := range refs {
		if len(t.seen[data.Role+":"+data.Name]) <= 1 {
			data.Nth = 0
			refs[ref] = data
		}
	}
}

// FormatSnapshot renders raw CDP AX nodes as an indented text tree, handing
// out refs for elements an agent can act on. Interactive elements always
// get a ref; content elements only when named; structural elements never.
func FormatSnapshot(nodes []*proto.AccessibilityAXNode, opts SnapshotOptions) *SnapshotResult {
	if opts.MaxChars == 0 {
		opts.MaxChars = 8000
	}
	if opts.Limit == 0 {
		opts.Limit = 500
	}

	flat := flattenAXTree(nodes, opts.Limit)
	if len(flat) == 0 {
		return &SnapshotResult{Snapshot: "(empty page)", Refs: map[string]RoleRef{}, Lines: 1}
	}

	refs := make(map[string]RoleRef)
	tracker := newDupTracker()
	refCounter := 0

	var lines []string
	for _, an := range flat {
		role := strings.ToLower(axValue(an.node.Role))
		name := axValue(an.node.Name)
		value := axValue(an.node.Value)
		description := axValue(an.node.Description)

		if (role == "" || role == "none" || role == "unknown") && name == "" {
			continue
		}
		// Internal text representation nodes clutter the tree.
		if role == "statictext" || role == "inlinetextbox" {
			continue
		}
		if opts.MaxDepth > 0 && an.depth > opts.MaxDepth {
			continue
		}

		interactive := IsInteractive(role)
		if opts.Interactive && !interactive {
			continue
		}
		if opts.Compact && IsStructural(role) && name == "" {
			continue
		}

		line := strings.Repeat("  ", an.depth) + "- " + role
		if name != "" {
			line += fmt.Sprintf(" %q", name)
		}

		if interactive || (IsContent(role) && name != "") {
			refCounter++
			ref := fmt.Sprintf("e%d", refCounter)
			nth := tracker.next(role, name, ref)
			refs[ref] = RoleRef{
				Role:          role,
				Name:          name,
				Nth:           nth,
				BackendNodeID: int(an.node.BackendDOMNodeID),
			}
			line += fmt.Sprintf(" [ref=%s]", ref)
			if nth > 0 {
				line += fmt.Sprintf(" [nth=%d]", nth)
			}
		}

		if value != "" {
			line += fmt.Sprintf(": %q", value)
		}
		if description != "" {
			line += fmt.Sprintf(" (%s)", description)
		}
		lines = append(lines, line)
	}

	tracker.clearSingles(refs)

	snapshot := strings.Join(lines, "\n")
	if len(lines) == 0 {
		snapshot = "(empty page)"
	}
	if opts.Compact && len(lines) > 0 {
		snapshot = dropBareBranches(snapshot)
	}

	truncated := false
	if opts.MaxChars > 0 && len(snapshot) > opts.MaxChars {
		snapshot = snapshot[:opts.MaxChars] + "\n[...TRUNCATED]"
		truncated = true
	}

	return &SnapshotResult{
		Snapshot:  snapshot,
		Refs:      refs,
		Lines:     len(lines),
		Refsize:   len(refs),
		Truncated: truncated,
	}
}

// dropBareBranches removes structural lines with no ref-bearing descendant.
func dropBareBranches(tree string) string {
	lines := strings.Split(tree, "\n")
	var result []string

	for i, line := range lines {
		if strings.Contains(line, "[ref=") {
			result = append(result, line)
			continue
		}
		trimmed := strings.TrimSpace(line)
		if strings.Contains(trimmed, ":") && !strings.HasSuffix(trimmed, ":") {
			result = append(result, line)
			continue
		}

		indent := indentLevel(line)
		keep := false
		for j := i + 1; j < len(lines); j++ {
			if indentLevel(lines[j]) <= indent {
				break
			}
			if strings.Contains(lines[j], "[ref=") {
				keep = true
				break
			}
		}
		if keep {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}

// indentLevel returns the number of 2-space indents on a line.
func indentLevel(line string) int {
	spaces := 0
	for _, c := range line {
		if c != ' ' {
			break
		}
		spaces++
	}
	return spaces / 2
}
