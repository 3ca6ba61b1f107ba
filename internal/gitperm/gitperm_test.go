package gitperm

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuuzuki-ai/kuuzuki/pkg/types"
)

func testManager(t *testing.T, git *types.GitConfig) (*Manager, string) {
	t.Helper()
	file := filepath.Join(t.TempDir(), "kuuzuki.json")
	return NewManager(file, git), file
}

func TestCheckNeverMode(t *testing.T) {
	m, _ := testManager(t, &types.GitConfig{
		Operations: map[string]types.GrantMode{"push": types.GrantNever},
	})

	res := m.CheckPermission("push", Context{})
	assert.False(t, res.Allowed)
	assert.False(t, res.NeedsConfirmation)
	assert.Equal(t, "push disabled", res.Reason)

	// A session grant cannot override never.
	m.GrantSessionPermission("push")
	res = m.CheckPermission("push", Context{})
	assert.False(t, res.Allowed)
}

func TestCheckAskMode(t *testing.T) {
	m, _ := testManager(t, &types.GitConfig{
		Operations: map[string]types.GrantMode{"commit": types.GrantAsk},
	})

	res := m.CheckPermission("commit", Context{})
	assert.False(t, res.Allowed)
	assert.True(t, res.NeedsConfirmation)
	assert.Equal(t, "User confirmation required", res.Reason)
}

func TestCheckUnconfiguredDefaultsToAsk(t *testing.T) {
	m, _ := testManager(t, nil)

	res := m.CheckPermission("commit", Context{})
	assert.False(t, res.Allowed)
	assert.True(t, res.NeedsConfirmation)
}

func TestSessionGrantLifecycle(t *testing.T) {
	m, _ := testManager(t, &types.GitConfig{
		Operations: map[string]types.GrantMode{"commit": types.GrantSession},
	})

	// Not yet granted this run.
	res := m.CheckPermission("commit", Context{})
	assert.False(t, res.Allowed)
	assert.True(t, res.NeedsConfirmation)

	m.GrantSessionPermission("commit")
	assert.True(t, m.HasSessionGrant("commit"))

	res = m.CheckPermission("commit", Context{})
	assert.True(t, res.Allowed)
	assert.Equal(t, "session", res.Scope)

	// Clearing reverts to confirmation.
	m.ClearSessionPermissions()
	res = m.CheckPermission("commit", Context{})
	assert.False(t, res.Allowed)
	assert.True(t, res.NeedsConfirmation)
}

func TestProjectModeAllows(t *testing.T) {
	m, _ := testManager(t, &types.GitConfig{
		Operations: map[string]types.GrantMode{"push": types.GrantProject},
	})

	res := m.CheckPermission("push", Context{Branch: "main"})
	assert.True(t, res.Allowed)
	assert.Equal(t, "project", res.Scope)
}

func TestSizeLimitVetoesGrantedMode(t *testing.T) {
	m, _ := testManager(t, &types.GitConfig{
		Operations:    map[string]types.GrantMode{"commit": types.GrantProject},
		MaxCommitSize: 2,
	})

	res := m.CheckPermission("commit", Context{FileCount: 3})
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "Too many files")

	res = m.CheckPermission("commit", Context{FileCount: 2})
	assert.True(t, res.Allowed)
}

func TestBranchAllowListVetoesGrantedMode(t *testing.T) {
	m, _ := testManager(t, &types.GitConfig{
		Operations:      map[string]types.GrantMode{"push": types.GrantProject},
		AllowedBranches: []string{"main", "develop"},
	})

	res := m.CheckPermission("push", Context{Branch: "feature/x"})
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "feature/x")
	assert.Contains(t, res.Reason, "not allowed")

	res = m.CheckPermission("push", Context{Branch: "develop"})
	assert.True(t, res.Allowed)
}

func TestBranchAllowListGlobs(t *testing.T) {
	m, _ := testManager(t, &types.GitConfig{
		Operations:      map[string]types.GrantMode{"push": types.GrantSession},
		AllowedBranches: []string{"release/*"},
	})
	m.GrantSessionPermission("push")

	assert.True(t, m.CheckPermission("push", Context{Branch: "release/1.2"}).Allowed)
	assert.False(t, m.CheckPermission("push", Context{Branch: "main"}).Allowed)
}

func TestConstraintsApplyToSessionGrants(t *testing.T) {
	m, _ := testManager(t, &types.GitConfig{
		Operations:    map[string]types.GrantMode{"commit": types.GrantSession},
		MaxCommitSize: 1,
	})
	m.GrantSessionPermission("commit")

	res := m.CheckPermission("commit", Context{FileCount: 5})
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "Too many files")
}

func TestGrantProjectPermissionPersists(t *testing.T) {
	git := &types.GitConfig{
		Operations:    map[string]types.GrantMode{"commit": types.GrantAsk},
		MaxCommitSize: 10,
	}
	m, file := testManager(t, git)

	// Seed a config file with unrelated fields that must survive.
	seed := `{
		"$schema": "https://kuuzuki.ai/config.json",
		"permission": {"bash": {"git *": "allow"}},
		"git": {"commit": "ask", "maxCommitSize": 10}
	}`
	require.NoError(t, os.WriteFile(file, []byte(seed), 0644))

	require.NoError(t, m.GrantProjectPermission("commit"))

	// Takes effect immediately in-process.
	res := m.CheckPermission("commit", Context{})
	assert.True(t, res.Allowed)
	assert.Equal(t, "project", res.Scope)

	// The on-disk mode changed and unrelated fields survived.
	data, err := os.ReadFile(file)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "https://kuuzuki.ai/config.json", doc["$schema"])
	assert.NotNil(t, doc["permission"])

	gitDoc, ok := doc["git"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "project", gitDoc["commit"])
	assert.Equal(t, float64(10), gitDoc["maxCommitSize"])
}

func TestGrantProjectPermissionCreatesFile(t *testing.T) {
	m, file := testManager(t, nil)

	require.NoError(t, m.GrantProjectPermission("push"))

	var cfg types.Config
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &cfg))
	require.NotNil(t, cfg.Git)
	assert.Equal(t, types.GrantProject, cfg.Git.Mode("push"))
}

func TestGrantProjectPermissionFailureFallsBackToSession(t *testing.T) {
	// A directory where the config file should be makes the rename fail.
	dir := t.TempDir()
	file := filepath.Join(dir, "kuuzuki.json")
	require.NoError(t, os.MkdirAll(file, 0755))

	m := NewManager(file, &types.GitConfig{
		Operations: map[string]types.GrantMode{"commit": types.GrantSession},
	})

	err := m.GrantProjectPermission("commit")
	require.Error(t, err)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "commit", perr.Operation)

	// The session fallback keeps the user unblocked for this process.
	assert.True(t, m.HasSessionGrant("commit"))
	assert.True(t, m.CheckPermission("commit", Context{}).Allowed)
}

func TestOnChangeFiresOnGrantTransitions(t *testing.T) {
	m, _ := testManager(t, nil)

	var mu sync.Mutex
	count := 0
	m.OnChange(func() {
		mu.Lock()
		count++
		mu.Unlock()
	})

	m.GrantSessionPermission("commit")
	m.ClearSessionPermissions()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, count)
}

func TestConcurrentChecksAndGrants(t *testing.T) {
	m, _ := testManager(t, &types.GitConfig{
		Operations: map[string]types.GrantMode{"commit": types.GrantSession},
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				m.GrantSessionPermission("commit")
			}
			m.CheckPermission("commit", Context{Branch: "main"})
		}(i)
	}
	wg.Wait()

	assert.True(t, m.CheckPermission("commit", Context{}).Allowed)
}
