package event

// PermissionAskedData is the data for permission.asked events, published
// when a resolution requires user confirmation.
type PermissionAskedData struct {
	ID         string   `json:"id"`
	SessionID  string   `json:"sessionID,omitempty"`
	ActionType string   `json:"actionType"`
	Argument   string   `json:"argument,omitempty"`
	Agent      string   `json:"agent,omitempty"`
	Patterns   []string `json:"patterns,omitempty"`
	Title      string   `json:"title,omitempty"`
}

// PermissionResolvedData is the data for permission.resolved events.
type PermissionResolvedData struct {
	ActionType     string `json:"actionType"`
	Argument       string `json:"argument,omitempty"`
	Agent          string `json:"agent,omitempty"`
	Value          string `json:"value"`
	Scope          string `json:"scope"`
	MatchedPattern string `json:"matchedPattern,omitempty"`
}

// GrantData is the data for grant.session and grant.project events.
type GrantData struct {
	Operation string `json:"operation"`
	Scope     string `json:"scope"` // "session" | "project"
}

// GrantsClearedData is the data for grant.cleared events.
type GrantsClearedData struct {
	Count int `json:"count"`
}

// BranchUpdatedData is the data for vcs.branch.updated events.
type BranchUpdatedData struct {
	Branch string `json:"branch"`
}

// ConfigReloadedData is the data for config.reloaded events.
type ConfigReloadedData struct {
	Version uint64 `json:"version"`
	Path    string `json:"path,omitempty"`
}
