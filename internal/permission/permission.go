package permission

import (
	"github.com/kuuzuki-ai/kuuzuki/pkg/types"
)

// Scope identifies which configuration layer produced a decision.
type Scope string

const (
	ScopeEnv     Scope = "env"
	ScopeAgent   Scope = "agent"
	ScopeGlobal  Scope = "global"
	ScopeDefault Scope = "default"
)

// Request asks whether one invocation of a guarded action is permitted.
type Request struct {
	ID        string           `json:"id,omitempty"`
	Action    types.ActionType `json:"action"`
	Argument  string           `json:"argument,omitempty"` // e.g. the shell command string
	Agent     string           `json:"agent,omitempty"`
	SessionID string           `json:"sessionID,omitempty"`
	Title     string           `json:"title,omitempty"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

// Decision is the engine's answer for a request. It is immutable and safe
// to cache as long as the underlying configuration has not changed.
type Decision struct {
	Value          types.Action `json:"value"`
	MatchedPattern string       `json:"matchedPattern,omitempty"`
	Scope          Scope        `json:"scope"`
}

// Allowed reports whether the action may proceed without confirmation.
func (d Decision) Allowed() bool { return d.Value == types.ActionAllow }

// Denied reports whether the action is blocked outright.
func (d Decision) Denied() bool { return d.Value == types.ActionDeny }

// NeedsConfirmation reports whether a human must approve the action.
func (d Decision) NeedsConfirmation() bool { return d.Value == types.ActionAsk }

// RejectedError is returned to the tool layer when permission is denied.
type RejectedError struct {
	SessionID string
	Action    types.ActionType
	Argument  string
	Metadata  map[string]any
	Message   string
}

func (e *RejectedError) Error() string {
	return e.Message
}

// NewRejectedError builds a RejectedError for a request.
func NewRejectedError(req Request, message string) *RejectedError {
	return &RejectedError{
		SessionID: req.SessionID,
		Action:    req.Action,
		Argument:  req.Argument,
		Metadata:  req.Metadata,
		Message:   message,
	}
}

// IsRejected checks if an error is a permission rejection.
func IsRejected(err error) bool {
	_, ok := err.(*RejectedError)
	return ok
}
