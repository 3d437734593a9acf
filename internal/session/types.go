package session

// Turn roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a conversation. Numbers are 1-based over the whole
// conversation and never reset by context filtering.
type Turn struct {
	Number  int    `json:"number"`
	Role    string `json:"role"`
	Content string `json:"content"`
	NodeID  string `json:"node_id"`
}

// ContextFlags are the UI-owned visibility settings consumed by the context
// filter. The core reads them verbatim and performs no inference.
type ContextFlags struct {
	Enabled           bool
	ActiveTurnNumbers map[int]bool
	ActiveNodeIDs     map[string]bool
}
