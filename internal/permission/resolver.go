package permission

import (
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/kuuzuki-ai/kuuzuki/internal/event"
	"github.com/kuuzuki-ai/kuuzuki/internal/logging"
	"github.com/kuuzuki-ai/kuuzuki/internal/wildcard"
	"github.com/kuuzuki-ai/kuuzuki/pkg/types"
)

// Resolver turns a Request into a Decision by layering the environment
// override, per-agent overrides, global configuration, and the default.
// Decisions are memoized per configuration version; reloading configuration
// or changing a grant bumps the version and invalidates stale entries.
type Resolver struct {
	mu      sync.RWMutex
	config  *types.Config
	env     *types.PermissionConfig
	version uint64
	cache   map[cacheKey]Decision
	log     zerolog.Logger
}

type cacheKey struct {
	action   types.ActionType
	argument string
	agent    string
	version  uint64
}

// NewResolver creates a resolver over the given configuration. env is the
// already-parsed environment override, or nil when absent; when present it
// fully replaces the configuration's permission root.
func NewResolver(config *types.Config, env *types.PermissionConfig) *Resolver {
	return &Resolver{
		config: config,
		env:    env,
		cache:  make(map[cacheKey]Decision),
		log:    logging.For("permission"),
	}
}

// Reload swaps in new configuration and invalidates the memo cache.
func (r *Resolver) Reload(config *types.Config, env *types.PermissionConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = config
	r.env = env
	r.bumpLocked()
}

// Invalidate drops all memoized decisions. Grant managers call this when a
// grant changes state.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bumpLocked()
}

// Version returns the current configuration version.
func (r *Resolver) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// bumpLocked increments the version so stale cache entries miss without a
// full scan, then resets the map to keep it from growing unbounded.
func (r *Resolver) bumpLocked() {
	r.version++
	r.cache = make(map[cacheKey]Decision)
}

// Resolve produces the decision for a request. It is safe for concurrent
// use and never returns an error: malformed configuration degrades to the
// next layer and unknown action types fall through to the default.
func (r *Resolver) Resolve(req Request) Decision {
	r.mu.RLock()
	key := cacheKey{action: req.Action, argument: req.Argument, agent: req.Agent, version: r.version}
	if d, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		// Events fire on cache hits too: front ends key prompts off
		// permission.asked, not off the returned Decision.
		r.publish(req, d)
		return d
	}
	root, envActive := r.rootLocked()
	agentPerm := r.agentPermLocked(req.Agent)
	r.mu.RUnlock()

	d := resolve(req, root, agentPerm, envActive)

	r.log.Debug().
		Str("action", string(req.Action)).
		Str("argument", req.Argument).
		Str("agent", req.Agent).
		Str("value", string(d.Value)).
		Str("scope", string(d.Scope)).
		Msg("resolved")

	r.mu.Lock()
	// The version may have moved while we computed; only memoize a
	// still-current decision.
	if key.version == r.version {
		r.cache[key] = d
	}
	r.mu.Unlock()

	r.publish(req, d)
	return d
}

// rootLocked picks the effective permission root: the environment override
// when present, otherwise the configuration's permission object.
func (r *Resolver) rootLocked() (*types.PermissionConfig, bool) {
	if r.env != nil {
		return r.env, true
	}
	if r.config != nil {
		return r.config.Permission, false
	}
	return nil, false
}

// agentPermLocked returns the permission block from the agent section, if
// any. The environment override replaces every configuration-derived
// permission source, so an active override suppresses this block too.
func (r *Resolver) agentPermLocked(agent string) *types.PermissionConfig {
	if r.env != nil || r.config == nil || agent == "" {
		return nil
	}
	if ac, ok := r.config.Agent[agent]; ok {
		return ac.Permission
	}
	return nil
}

func (r *Resolver) publish(req Request, d Decision) {
	event.Publish(event.Event{
		Type: event.PermissionResolved,
		Data: event.PermissionResolvedData{
			ActionType:     string(req.Action),
			Argument:       req.Argument,
			Agent:          req.Agent,
			Value:          string(d.Value),
			Scope:          string(d.Scope),
			MatchedPattern: d.MatchedPattern,
		},
	})

	if d.NeedsConfirmation() {
		id := req.ID
		if id == "" {
			id = ulid.Make().String()
		}
		event.Publish(event.Event{
			Type: event.PermissionAsked,
			Data: event.PermissionAskedData{
				ID:         id,
				SessionID:  req.SessionID,
				ActionType: string(req.Action),
				Argument:   req.Argument,
				Agent:      req.Agent,
				Title:      req.Title,
			},
		})
	}
}

// resolve is the pure decision function over an already-chosen root.
// agentPerm is the permission block from the agent section; the root's own
// agents map outranks it.
func resolve(req Request, root *types.PermissionConfig, agentPerm *types.PermissionConfig, envActive bool) Decision {
	layerScope := func(s Scope) Scope {
		// An env-supplied root is still reported layer by layer unless
		// the whole root came from the environment and decided at the
		// top level.
		if envActive && s == ScopeGlobal {
			return ScopeEnv
		}
		return s
	}

	// Agent layer.
	if sub, ok := root.Agent(req.Agent); ok {
		if d, ok := evalConfig(req, sub); ok {
			d.Scope = ScopeAgent
			return d
		}
	}
	if agentPerm != nil {
		if d, ok := evalConfig(req, agentPerm); ok {
			d.Scope = ScopeAgent
			return d
		}
	}

	// Global layer.
	if root != nil {
		if d, ok := evalConfig(req, root); ok {
			d.Scope = layerScope(ScopeGlobal)
			return d
		}
	}

	// Hard default: unconfigured installations are permissive; operators
	// opt into stricter behavior with an explicit "*": "ask" rule.
	return Decision{Value: types.ActionAllow, Scope: ScopeDefault}
}

// evalConfig evaluates one configuration layer: the action rule first, then
// tool-name patterns for action types outside the closed set.
func evalConfig(req Request, cfg *types.PermissionConfig) (Decision, bool) {
	if rule, ok := cfg.Rule(req.Action); ok {
		if d, ok := evalRule(rule, req.Argument); ok {
			return d, true
		}
	}

	if len(cfg.Tools) > 0 {
		if d, ok := evalToolPatterns(cfg.Tools, string(req.Action)); ok {
			return d, true
		}
	}

	return Decision{}, false
}

// evalRule applies an action rule to an argument. Scalar rules decide
// immediately; pattern maps decide via ranked wildcard matching, with a
// command-prefix compatibility pass for wildcard-free patterns when nothing
// matched outright.
func evalRule(rule types.ActionRule, argument string) (Decision, bool) {
	if rule.IsScalar() {
		return Decision{Value: rule.Value}, true
	}
	if len(rule.Patterns) == 0 {
		return Decision{}, false
	}

	patterns := sortedKeys(rule.Patterns)

	if best, ok := wildcard.Best(patterns, argument); ok {
		return Decision{Value: rule.Patterns[best.Pattern], MatchedPattern: best.Pattern}, true
	}

	// Compatibility mode: a wildcard-free pattern like "git push" matches
	// the command "git push origin main" as a token prefix. The longest
	// matching pattern wins.
	var prefix string
	for _, p := range patterns {
		if wildcard.PrefixMatch(argument, p) && len(p) > len(prefix) {
			prefix = p
		}
	}
	if prefix != "" {
		return Decision{Value: rule.Patterns[prefix], MatchedPattern: prefix}, true
	}

	return Decision{}, false
}

func evalToolPatterns(tools map[string]types.Action, name string) (Decision, bool) {
	best, ok := wildcard.Best(sortedKeys(tools), name)
	if !ok {
		return Decision{}, false
	}
	return Decision{Value: tools[best.Pattern], MatchedPattern: best.Pattern}, true
}

// sortedKeys gives deterministic ranking input regardless of map order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
