package vcs

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Skipf("git unavailable: %v: %s", err, out)
		}
	}

	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	run("commit", "--allow-empty", "-m", "init")
	return dir
}

func TestNewWatcherNonRepo(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestCurrentBranch(t *testing.T) {
	dir := initRepo(t)
	assert.Equal(t, "main", CurrentBranch(dir))

	assert.Empty(t, CurrentBranch(t.TempDir()))
}

func TestWatcherTracksBranchSwitch(t *testing.T) {
	dir := initRepo(t)

	w, err := NewWatcher(dir)
	require.NoError(t, err)
	require.NotNil(t, w)
	defer w.Stop()

	assert.Equal(t, "main", w.Branch())
	w.Start()

	cmd := exec.Command("git", "checkout", "-b", "feature/x")
	cmd.Dir = dir
	require.NoError(t, cmd.Run())

	require.Eventually(t, func() bool {
		return w.Branch() == "feature/x"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcherStopIdempotentWithoutStart(t *testing.T) {
	dir := initRepo(t)

	w, err := NewWatcher(dir)
	require.NoError(t, err)
	require.NotNil(t, w)

	assert.NoError(t, w.Stop())
}
