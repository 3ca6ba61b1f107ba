// Package toolfilter decides which tools an agent may see. It is a thin
// consumer of the wildcard matcher over the per-agent configuration.
package toolfilter

import (
	"github.com/kuuzuki-ai/kuuzuki/internal/wildcard"
	"github.com/kuuzuki-ai/kuuzuki/pkg/types"
)

// ForAgent filters tool identifiers for an agent. Agents with
// include/exclude pattern lists get pattern filtering; agents with only the
// legacy exact-name map get tools dropped where the map says false. Agents
// without configuration see every tool.
func ForAgent(tools []string, agent string, cfg *types.Config) []string {
	if cfg == nil {
		return tools
	}
	ac, ok := cfg.Agent[agent]
	if !ok {
		return tools
	}

	if len(ac.IncludeTools) > 0 || len(ac.ExcludeTools) > 0 {
		return wildcard.FilterNames(tools, ac.IncludeTools, ac.ExcludeTools)
	}

	if len(ac.Tools) > 0 {
		var out []string
		for _, name := range tools {
			if enabled, configured := ac.Tools[name]; configured && !enabled {
				continue
			}
			out = append(out, name)
		}
		return out
	}

	return tools
}
