package browser

import (
	"strings"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

func axv(s string) *proto.AccessibilityAXValue {
	return &proto.AccessibilityAXValue{Value: gson.New(s)}
}

func axNodeDef(id, role, name string, children ...string) *proto.AccessibilityAXNode {
	n := &proto.AccessibilityAXNode{
		NodeID: proto.AccessibilityAXNodeID(id),
		Role:   axv(role),
	}
	if name != "" {
		n.Name = axv(name)
	}
	for _, c := range children {
		n.ChildIDs = append(n.ChildIDs, proto.AccessibilityAXNodeID(c))
	}
	return n
}

func TestFormatSnapshot_RefsAndIndentation(t *testing.T) {
	nodes := []*proto.AccessibilityAXNode{
		axNodeDef("1", "RootWebArea", "Example Page", "2", "3", "4"),
		axNodeDef("2", "heading", "Welcome"),
		axNodeDef("3", "button", "Submit"),
		axNodeDef("4", "StaticText", "ignored text"),
	}

	res := FormatSnapshot(nodes, SnapshotOptions{})
	if res.Truncated {
		t.Error("small tree should not truncate")
	}

	if !strings.Contains(res.Snapshot, `- heading "Welcome" [ref=`) {
		t.Errorf("named heading should get a ref:\n%s", res.Snapshot)
	}
	if !strings.Contains(res.Snapshot, `- button "Submit" [ref=`) {
		t.Errorf("button should get a ref:\n%s", res.Snapshot)
	}
	if strings.Contains(res.Snapshot, "statictext") {
		t.Errorf("static text should be dropped:\n%s", res.Snapshot)
	}
	if !strings.Contains(res.Snapshot, "\n  - ") {
		t.Errorf("children should be indented:\n%s", res.Snapshot)
	}
	if res.Refsize != len(res.Refs) {
		t.Errorf("Refsize %d != len(Refs) %d", res.Refsize, len(res.Refs))
	}
}

func TestFormatSnapshot_NthDisambiguatesDuplicates(t *testing.T) {
	nodes := []*proto.AccessibilityAXNode{
		axNodeDef("1", "RootWebArea", "page", "2", "3", "4"),
		axNodeDef("2", "button", "Add"),
		axNodeDef("3", "button", "Add"),
		axNodeDef("4", "button", "Remove"),
	}

	res := FormatSnapshot(nodes, SnapshotOptions{})

	if !strings.Contains(res.Snapshot, "[nth=1]") {
		t.Errorf("second duplicate should carry [nth=1]:\n%s", res.Snapshot)
	}

	var addNths []int
	var removeNth = -1
	for _, r := range res.Refs {
		switch r.Name {
		case "Add":
			addNths = append(addNths, r.Nth)
		case "Remove":
			removeNth = r.Nth
		}
	}
	if len(addNths) != 2 {
		t.Fatalf("expected 2 Add refs, got %d", len(addNths))
	}
	if !((addNths[0] == 0 && addNths[1] == 1) || (addNths[0] == 1 && addNths[1] == 0)) {
		t.Errorf("Add nths = %v, want {0,1}", addNths)
	}
	if removeNth != 0 {
		t.Errorf("unique control should have nth=0, got %d", removeNth)
	}
}

func TestFormatSnapshot_EmptyTree(t *testing.T) {
	res := FormatSnapshot(nil, SnapshotOptions{})
	if res.Snapshot != "(empty page)" {
		t.Errorf("snapshot = %q", res.Snapshot)
	}
	if len(res.Refs) != 0 {
		t.Errorf("refs = %v", res.Refs)
	}
}

func TestFormatSnapshot_InteractiveOnly(t *testing.T) {
	nodes := []*proto.AccessibilityAXNode{
		axNodeDef("1", "RootWebArea", "page", "2", "3"),
		axNodeDef("2", "heading", "Welcome"),
		axNodeDef("3", "link", "Docs"),
	}

	res := FormatSnapshot(nodes, SnapshotOptions{Interactive: true})
	if strings.Contains(res.Snapshot, "heading") {
		t.Errorf("interactive-only snapshot should drop headings:\n%s", res.Snapshot)
	}
	if !strings.Contains(res.Snapshot, "link") {
		t.Errorf("link missing:\n%s", res.Snapshot)
	}
}

func TestFormatSnapshot_CompactDropsBareStructure(t *testing.T) {
	// A generic wrapper with a button inside stays; one wrapping only
	// unnamed structure goes away.
	nodes := []*proto.AccessibilityAXNode{
		axNodeDef("1", "RootWebArea", "page", "2", "4"),
		axNodeDef("2", "group", "toolbar area", "3"),
		axNodeDef("3", "button", "Save"),
		axNodeDef("4", "group", "empty area", "5"),
		axNodeDef("5", "group", ""),
	}

	res := FormatSnapshot(nodes, SnapshotOptions{Compact: true})
	if !strings.Contains(res.Snapshot, `"Save"`) {
		t.Errorf("button lost:\n%s", res.Snapshot)
	}
	if strings.Contains(res.Snapshot, "empty area") {
		t.Errorf("ref-free branch should be dropped in compact mode:\n%s", res.Snapshot)
	}
}

func TestFormatSnapshot_Truncation(t *testing.T) {
	nodes := []*proto.AccessibilityAXNode{
		axNodeDef("1", "RootWebArea", "page", "2", "3", "4"),
		axNodeDef("2", "button", "A very long button label to overflow"),
		axNodeDef("3", "button", "Another very long button label here"),
		axNodeDef("4", "button", "And a third one for good measure"),
	}

	res := FormatSnapshot(nodes, SnapshotOptions{MaxChars: 40})
	if !res.Truncated {
		t.Fatal("expected truncation")
	}
	if !strings.HasSuffix(res.Snapshot, "[...TRUNCATED]") {
		t.Errorf("truncation marker missing: %q", res.Snapshot)
	}
}

func TestFlattenAXTree_DepthFirstAndLimit(t *testing.T) {
	nodes := []*proto.AccessibilityAXNode{
		// Root listed last: detection must not rely on input order.
		axNodeDef("2", "group", "", "3"),
		axNodeDef("3", "button", "Deep"),
		axNodeDef("4", "button", "Shallow"),
		axNodeDef("1", "RootWebArea", "page", "2", "4"),
	}

	flat := flattenAXTree(nodes, 500)
	if len(flat) != 4 {
		t.Fatalf("flattened %d nodes, want 4", len(flat))
	}
	if flat[0].node.NodeID != "1" || flat[0].depth != 0 {
		t.Errorf("root should come first at depth 0, got %s depth %d", flat[0].node.NodeID, flat[0].depth)
	}
	// Depth-first: the group's child precedes the root's second child.
	if flat[1].node.NodeID != "2" || flat[2].node.NodeID != "3" || flat[3].node.NodeID != "4" {
		t.Errorf("order = %s %s %s", flat[1].node.NodeID, flat[2].node.NodeID, flat[3].node.NodeID)
	}
	if flat[2].depth != 2 {
		t.Errorf("grandchild depth = %d, want 2", flat[2].depth)
	}

	limited := flattenAXTree(nodes, 2)
	if len(limited) != 2 {
		t.Errorf("limit not applied: %d nodes", len(limited))
	}
}

func TestFlattenAXTree_CycleSafety(t *testing.T) {
	// Malformed trees must not hang: the node limit bounds traversal.
	nodes := []*proto.AccessibilityAXNode{
		axNodeDef("1", "RootWebArea", "page", "2"),
		axNodeDef("2", "group", "", "1"),
	}
	flat := flattenAXTree(nodes, 10)
	if len(flat) != 10 {
		t.Errorf("cycle should be cut off at the limit, got %d nodes", len(flat))
	}
}
