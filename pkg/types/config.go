// Package types defines the configuration types shared by the permission
// engine and its callers. The JSON shapes are compatible with the kuuzuki
// configuration format.
package types

import (
	"encoding/json"
	"fmt"
)

// Action is a permission decision value.
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
	ActionAsk   Action = "ask"
)

// Valid reports whether a is a recognized action.
func (a Action) Valid() bool {
	switch a {
	case ActionAllow, ActionDeny, ActionAsk:
		return true
	}
	return false
}

// ActionType identifies a class of guarded operation. The set is closed:
// unknown types resolve as if no rule existed.
type ActionType string

const (
	ActionTypeBash        ActionType = "bash"
	ActionTypeEdit        ActionType = "edit"
	ActionTypeWrite       ActionType = "write"
	ActionTypeRead        ActionType = "read"
	ActionTypeWebFetch    ActionType = "webfetch"
	ActionTypeExternalDir ActionType = "external_directory"
	ActionTypeDoomLoop    ActionType = "doom_loop"
)

// ActionTypes lists every recognized action type.
var ActionTypes = []ActionType{
	ActionTypeBash,
	ActionTypeEdit,
	ActionTypeWrite,
	ActionTypeRead,
	ActionTypeWebFetch,
	ActionTypeExternalDir,
	ActionTypeDoomLoop,
}

func knownActionType(s string) bool {
	for _, t := range ActionTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}

// ActionRule is either a single action applying to every invocation of an
// action type, or a map from wildcard pattern to action applying when the
// invocation's argument matches. Exactly one form is set.
type ActionRule struct {
	Value    Action
	Patterns map[string]Action
}

// IsZero reports whether no rule is configured.
func (r ActionRule) IsZero() bool {
	return r.Value == "" && r.Patterns == nil
}

// IsScalar reports whether the rule is a single action.
func (r ActionRule) IsScalar() bool {
	return r.Value != ""
}

// UnmarshalJSON accepts a bare string ("ask"), a pattern map
// ({"git *": "allow"}), or the legacy array form (["git push *"]) meaning
// each listed pattern is "ask" and everything else "allow".
func (r *ActionRule) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		action := Action(s)
		if !action.Valid() {
			return fmt.Errorf("invalid permission value %q", s)
		}
		*r = ActionRule{Value: action}
		return nil
	}

	var patterns map[string]Action
	if err := json.Unmarshal(data, &patterns); err == nil {
		for p, a := range patterns {
			if !a.Valid() {
				return fmt.Errorf("invalid permission value %q for pattern %q", a, p)
			}
		}
		*r = ActionRule{Patterns: patterns}
		return nil
	}

	var legacy []string
	if err := json.Unmarshal(data, &legacy); err == nil {
		*r = ActionRule{Patterns: legacyPatterns(legacy)}
		return nil
	}

	return fmt.Errorf("permission rule must be a string, pattern map, or pattern array")
}

// legacyPatterns expands the legacy pattern-array shorthand: every listed
// pattern asks, everything else is allowed. When the list already carries a
// catch-all, the synthesized allow is omitted so that ["*"] keeps meaning
// "confirm everything" rather than having the allow shadow it.
func legacyPatterns(listed []string) map[string]Action {
	patterns := make(map[string]Action, len(listed)+1)
	catchAll := false
	for _, p := range listed {
		patterns[p] = ActionAsk
		if p == "*" || p == "**" {
			catchAll = true
		}
	}
	if !catchAll {
		patterns["*"] = ActionAllow
	}
	return patterns
}

// MarshalJSON writes the rule back in its configured form.
func (r ActionRule) MarshalJSON() ([]byte, error) {
	if r.IsScalar() {
		return json.Marshal(r.Value)
	}
	return json.Marshal(r.Patterns)
}

// PermissionConfig describes allow/ask/deny rules at per-action,
// per-tool-name-pattern, and per-agent granularity. Agent nesting is exactly
// one level deep: a nested config never carries agents of its own.
type PermissionConfig struct {
	// Actions maps each configured action type to its rule.
	Actions map[ActionType]ActionRule

	// Tools maps tool-name wildcard patterns to actions.
	Tools map[string]Action

	// Agents holds per-agent overrides. Nil on nested configs.
	Agents map[string]*PermissionConfig
}

// Rule returns the configured rule for an action type, if any.
func (c *PermissionConfig) Rule(t ActionType) (ActionRule, bool) {
	if c == nil || c.Actions == nil {
		return ActionRule{}, false
	}
	r, ok := c.Actions[t]
	return r, ok
}

// Agent returns the sub-config for an agent name, if any.
func (c *PermissionConfig) Agent(name string) (*PermissionConfig, bool) {
	if c == nil || name == "" {
		return nil, false
	}
	sub, ok := c.Agents[name]
	if !ok || sub == nil {
		return nil, false
	}
	return sub, true
}

// UnmarshalJSON accepts the structured object form and the legacy bare-array
// shorthand, where the array is a bash pattern list meaning "these patterns
// are ask, everything else allow".
func (c *PermissionConfig) UnmarshalJSON(data []byte) error {
	var legacy []string
	if err := json.Unmarshal(data, &legacy); err == nil {
		*c = PermissionConfig{
			Actions: map[ActionType]ActionRule{
				ActionTypeBash: {Patterns: legacyPatterns(legacy)},
			},
		}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := PermissionConfig{}
	for key, value := range raw {
		switch {
		case key == "tools":
			if err := json.Unmarshal(value, &out.Tools); err != nil {
				return fmt.Errorf("invalid tools map: %w", err)
			}
		case key == "agents":
			var agents map[string]*PermissionConfig
			if err := json.Unmarshal(value, &agents); err != nil {
				return fmt.Errorf("invalid agents map: %w", err)
			}
			// Agent recursion is one level deep.
			for _, sub := range agents {
				if sub != nil {
					sub.Agents = nil
				}
			}
			out.Agents = agents
		case knownActionType(key):
			var rule ActionRule
			if err := json.Unmarshal(value, &rule); err != nil {
				return fmt.Errorf("invalid rule for %q: %w", key, err)
			}
			if out.Actions == nil {
				out.Actions = make(map[ActionType]ActionRule)
			}
			out.Actions[ActionType(key)] = rule
		default:
			// Unknown keys are ignored so configs from newer builds load.
		}
	}
	*c = out
	return nil
}

// MarshalJSON writes the structured object form.
func (c PermissionConfig) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Actions)+2)
	for t, rule := range c.Actions {
		out[string(t)] = rule
	}
	if len(c.Tools) > 0 {
		out["tools"] = c.Tools
	}
	if len(c.Agents) > 0 {
		out["agents"] = c.Agents
	}
	return json.Marshal(out)
}

// GrantMode controls how a git-style stateful operation is authorized.
type GrantMode string

const (
	GrantNever   GrantMode = "never"
	GrantAsk     GrantMode = "ask"
	GrantSession GrantMode = "session"
	GrantProject GrantMode = "project"
)

// Valid reports whether m is a recognized grant mode.
func (m GrantMode) Valid() bool {
	switch m {
	case GrantNever, GrantAsk, GrantSession, GrantProject:
		return true
	}
	return false
}

// GitConfig holds per-operation grant modes plus the auxiliary constraints
// that can veto an otherwise-granted operation.
type GitConfig struct {
	// Operations maps an operation class ("commit", "push",
	// "config-change") to its grant mode.
	Operations map[string]GrantMode

	// MaxCommitSize caps the number of files in a commit. Zero means
	// unlimited.
	MaxCommitSize int

	// AllowedBranches restricts mutations to the listed branches. Entries
	// may be exact names or glob patterns such as "release/*". Empty means
	// any branch.
	AllowedBranches []string
}

// Mode returns the configured mode for an operation class, defaulting to
// GrantAsk when nothing is configured.
func (g *GitConfig) Mode(op string) GrantMode {
	if g == nil {
		return GrantAsk
	}
	if m, ok := g.Operations[op]; ok && m.Valid() {
		return m
	}
	return GrantAsk
}

// UnmarshalJSON decodes the flat kuuzuki "git" object, where every key that
// is not a known constraint is an operation mode.
func (g *GitConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := GitConfig{}
	for key, value := range raw {
		switch key {
		case "maxCommitSize":
			if err := json.Unmarshal(value, &out.MaxCommitSize); err != nil {
				return fmt.Errorf("invalid maxCommitSize: %w", err)
			}
		case "allowedBranches":
			if err := json.Unmarshal(value, &out.AllowedBranches); err != nil {
				return fmt.Errorf("invalid allowedBranches: %w", err)
			}
		default:
			var mode GrantMode
			if err := json.Unmarshal(value, &mode); err != nil {
				return fmt.Errorf("invalid mode for %q: %w", key, err)
			}
			if !mode.Valid() {
				return fmt.Errorf("invalid grant mode %q for %q", mode, key)
			}
			if out.Operations == nil {
				out.Operations = make(map[string]GrantMode)
			}
			out.Operations[key] = mode
		}
	}
	*g = out
	return nil
}

// MarshalJSON writes the flat object form back out.
func (g GitConfig) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(g.Operations)+2)
	for op, mode := range g.Operations {
		out[op] = mode
	}
	if g.MaxCommitSize > 0 {
		out["maxCommitSize"] = g.MaxCommitSize
	}
	if len(g.AllowedBranches) > 0 {
		out["allowedBranches"] = g.AllowedBranches
	}
	return json.Marshal(out)
}

// AgentConfig holds the per-agent settings the engine consults.
type AgentConfig struct {
	Description string `json:"description,omitempty"`
	Mode        string `json:"mode,omitempty"` // "subagent"|"primary"|"all"

	// Tools is the legacy exact-name tool allow-list.
	Tools map[string]bool `json:"tools,omitempty"`

	// IncludeTools/ExcludeTools are wildcard pattern lists applied to tool
	// names. When either is set they take precedence over Tools.
	IncludeTools []string `json:"include_tools,omitempty"`
	ExcludeTools []string `json:"exclude_tools,omitempty"`

	// Permission overrides for this agent.
	Permission *PermissionConfig `json:"permission,omitempty"`

	Disable bool `json:"disable,omitempty"`
}

// Config is the root kuuzuki configuration consumed by the engine.
type Config struct {
	Schema string `json:"$schema,omitempty"`

	// Global permission settings.
	Permission *PermissionConfig `json:"permission,omitempty"`

	// Git grant modes and constraints.
	Git *GitConfig `json:"git,omitempty"`

	// Agent configs.
	Agent map[string]AgentConfig `json:"agent,omitempty"`
}
