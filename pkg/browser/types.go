package browser

// TabInfo describes an open browser tab.
type TabInfo struct {
	TargetID string `json:"targetId"`
	URL      string `json:"url"`
	Title    string `json:"title"`
}

// RoleRef maps a snapshot ref (e.g. "e5") to an accessible element.
type RoleRef struct {
	Role          string `json:"role"`
	Name          string `json:"name,omitempty"`
	Nth           int    `json:"nth,omitempty"`
	BackendNodeID int    `json:"backendNodeId,omitempty"`
}

// SnapshotResult is the output of a page snapshot.
type SnapshotResult struct {
	Snapshot  string             `json:"snapshot"`
	Refs      map[string]RoleRef `json:"refs"`
	URL       string             `json:"url"`
	Title     string             `json:"title"`
	TargetID  string             `json:"targetId"`
	Lines     int                `json:"lines"`
	Refsize   int                `json:"refCount"`
	Truncated bool               `json:"truncated,omitempty"`
}

// SnapshotOptions controls snapshot generation.
type SnapshotOptions struct {
	Interactive bool // only include interactive elements
	MaxDepth    int  // 0 = unlimited
	Compact     bool // remove unnamed structural elements
	MaxChars    int  // truncate output (default 8000)
	Limit       int  // max AX nodes to process (default 500)
}

// DefaultSnapshotOptions returns the defaults used by the extract action.
func DefaultSnapshotOptions() SnapshotOptions {
	return SnapshotOptions{
		Compact:  true,
		MaxChars: 8000,
		Limit:    500,
	}
}

// ClickOpts controls click behavior.
type ClickOpts struct {
	DoubleClick bool
	Button      string // "left", "right", "middle"
}

// TypeOpts controls type behavior.
type TypeOpts struct {
	Submit bool // press Enter after typing
	Slowly bool // type character by character
}

// WaitOpts controls wait behavior.
type WaitOpts struct {
	TimeMs int    // fixed sleep
	Text   string // wait for text to appear
}

// StatusInfo describes the current browser state.
type StatusInfo struct {
	Running bool   `json:"running"`
	Tabs    int    `json:"tabs"`
	URL     string `json:"url,omitempty"`
}
