package protocol

// WebSocket event names pushed from server to client.
const (
	EventRun      = "run"
	EventHealth   = "health"
	EventShutdown = "shutdown"
)

// Run event subtypes (in payload.type), mirroring the internal bus.
const (
	RunEventStarted   = "run.started"
	RunEventPhase     = "run.phase"
	RunEventToolCall  = "run.tool_call"
	RunEventCompleted = "run.completed"
	RunEventFailed    = "run.failed"
)

// RPC method names.
const (
	MethodConnect      = "connect"
	MethodHealth       = "health"
	MethodStatus       = "status"
	MethodRunStart     = "run.start"
	MethodRunStop      = "run.stop"
	MethodRunState     = "run.state"
	MethodRunHistory   = "run.history"
	MethodBrowserTabs  = "browser.tabs"
	MethodBrowserOpen  = "browser.open"
	MethodBrowserClose = "browser.close"
)
