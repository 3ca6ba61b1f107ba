/*
Package permission decides, for every sensitive action an agent wants to
take, whether the action is permitted, must be confirmed by a human, or is
blocked outright. It is the only place where "is this safe to do" is
decided; callers execute, prompt, or abort based on the Decision it returns.

# Resolution layers

A Request is resolved against up to four layers, first decision wins:

 1. Environment override: a JSON permission document from the environment
    fully replaces the configured root (never merged). A malformed document
    is discarded with a warning and never aborts resolution.
 2. Agent override: the sub-config for Request.Agent, when present.
 3. Global configuration.
 4. Default: allow. Unconfigured installations are usable; operators opt
    into stricter behavior with an explicit wildcard rule such as
    "*": "ask".

Within a layer, a scalar rule decides every invocation of an action type,
while a pattern-map rule decides only when the request argument matches; the
highest-priority matching pattern wins (see the wildcard package for the
ranking rules). Tool-name patterns cover action types outside the closed
set, such as MCP tool identifiers.

# Decisions

	resolver := permission.NewResolver(cfg, envOverride)
	d := resolver.Resolve(permission.Request{
		Action:   types.ActionTypeBash,
		Argument: "git push origin main",
		Agent:    "codeReviewer",
	})

Decisions carry the value, the pattern that matched, and the layer that
decided. They are memoized per configuration version; Reload and Invalidate
bump the version so stale entries miss.

# Doom loop detection

DoomLoopDetector flags runs of identical tool calls within a session so a
rule on the doom_loop action type can interrupt an agent stuck repeating
itself.

# Concurrency

Resolvers and detectors are safe for concurrent use. Resolution is a fast,
bounded, synchronous computation; "requires confirmation" is a terminal
return, not a suspension point.
*/
package permission
