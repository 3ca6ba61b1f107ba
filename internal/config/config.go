package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/kuuzuki-ai/kuuzuki/internal/logging"
	"github.com/kuuzuki-ai/kuuzuki/pkg/types"
)

const (
	// EnvPermission holds a JSON permission document that fully replaces
	// the configured permission root.
	EnvPermission = "KUUZUKI_PERMISSION"

	// EnvConfig points at an explicit config file.
	EnvConfig = "KUUZUKI_CONFIG"
)

// projectFileNames are the project config candidates, in load order.
var projectFileNames = []string{
	"kuuzuki.json",
	"kuuzuki.jsonc",
	filepath.Join(".kuuzuki", "kuuzuki.json"),
	filepath.Join(".kuuzuki", "kuuzuki.jsonc"),
}

// Load loads configuration from multiple sources (later wins per field):
// 1. User config (~/.config/kuuzuki/)
// 2. Project config (kuuzuki.json / .kuuzuki/ in the project directory)
// 3. KUUZUKI_CONFIG file
// Files that do not exist are skipped; files that fail to parse are skipped
// with a warning. Load itself never fails on malformed input.
func Load(directory string) *types.Config {
	config := &types.Config{}

	userDir := GetPaths().Config
	loadFile(filepath.Join(userDir, "kuuzuki.json"), config)
	loadFile(filepath.Join(userDir, "kuuzuki.jsonc"), config)

	if directory != "" {
		for _, name := range projectFileNames {
			loadFile(filepath.Join(directory, name), config)
		}
	}

	if path := os.Getenv(EnvConfig); path != "" {
		loadFile(path, config)
	}

	return config
}

// loadFile reads one config file into config. Missing files are fine;
// malformed files are logged and skipped so a typo in one file cannot take
// the engine down.
func loadFile(path string, config *types.Config) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var fileConfig types.Config
	if err := json.Unmarshal(jsonc.ToJSON(data), &fileConfig); err != nil {
		log := logging.For("config")
		log.Warn().Str("path", path).Err(err).Msg("skipping malformed config file")
		return
	}

	merge(config, &fileConfig)
}

// merge overlays source onto target. Permission and git objects replace as a
// whole; agent entries merge by name.
func merge(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.Permission != nil {
		target.Permission = source.Permission
	}
	if source.Git != nil {
		target.Git = source.Git
	}
	if source.Agent != nil {
		if target.Agent == nil {
			target.Agent = make(map[string]types.AgentConfig)
		}
		for name, agent := range source.Agent {
			target.Agent[name] = agent
		}
	}
}

// ParseEnvOverride parses a KUUZUKI_PERMISSION value. An empty value means
// no override; a malformed one is an error the caller should log and then
// treat as absent.
func ParseEnvOverride(value string) (*types.PermissionConfig, error) {
	if value == "" {
		return nil, nil
	}

	var perm types.PermissionConfig
	if err := json.Unmarshal([]byte(value), &perm); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvPermission, err)
	}
	return &perm, nil
}

// EnvOverride reads the permission override from the process environment.
// Parse failure is logged and treated as if the variable were unset.
func EnvOverride() *types.PermissionConfig {
	perm, err := ParseEnvOverride(os.Getenv(EnvPermission))
	if err != nil {
		log := logging.For("config")
		log.Warn().Err(err).Msg("discarding malformed permission override")
		return nil
	}
	return perm
}

// ProjectFile returns the path project-scoped grants are persisted to: the
// first existing project config file, or the default location when none
// exists yet.
func ProjectFile(directory string) string {
	for _, name := range projectFileNames {
		path := filepath.Join(directory, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return filepath.Join(directory, projectFileNames[0])
}
