// Package gitperm manages scoped grants for git-style stateful operations:
// commit, push, configuration changes. A one-time human "yes" becomes either
// a session grant (this process only) or a project grant persisted into the
// project configuration file. Auxiliary constraints, a commit size cap and a
// branch allow-list, can veto an otherwise-granted operation but never widen
// one.
package gitperm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/tidwall/jsonc"

	"github.com/kuuzuki-ai/kuuzuki/internal/event"
	"github.com/kuuzuki-ai/kuuzuki/internal/logging"
	"github.com/kuuzuki-ai/kuuzuki/pkg/types"
)

// Result is the outcome of a grant check. It mirrors the Decision contract
// of the permission resolver so callers can treat both uniformly.
type Result struct {
	Allowed bool   `json:"allowed"`
	Scope   string `json:"scope,omitempty"`  // "session" | "project" when allowed
	Reason  string `json:"reason,omitempty"` // human-readable, when denied

	// NeedsConfirmation is set when the denial only means the caller
	// should prompt the user and call GrantSessionPermission or
	// GrantProjectPermission on acceptance.
	NeedsConfirmation bool `json:"needsConfirmation,omitempty"`
}

// Context carries the facts about the operation the constraints inspect.
type Context struct {
	// FileCount is the number of affected items, e.g. files in a commit.
	FileCount int

	// Branch is the active branch the operation targets.
	Branch string
}

// PersistenceError wraps a failed project-grant write. The session grant
// applied as a fallback is reported so callers can tell the user.
type PersistenceError struct {
	Operation string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist project grant for %q: %v", e.Operation, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Manager holds session grants in memory and persists project grants into
// the project configuration file. Safe for concurrent use.
type Manager struct {
	mu          sync.Mutex
	projectFile string
	git         *types.GitConfig
	session     map[string]bool
	onChange    []func()
	log         zerolog.Logger
}

// NewManager creates a grant manager over the given project config file and
// the git configuration read from it at process start. git may be nil; every
// operation then requires confirmation.
func NewManager(projectFile string, git *types.GitConfig) *Manager {
	return &Manager{
		projectFile: projectFile,
		git:         git,
		session:     make(map[string]bool),
		log:         logging.For("gitperm"),
	}
}

// OnChange registers a callback invoked whenever grant state changes, so
// resolvers can invalidate memoized decisions.
func (m *Manager) OnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// SetConfig swaps in reloaded git configuration.
func (m *Manager) SetConfig(git *types.GitConfig) {
	m.mu.Lock()
	m.git = git
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) notify() {
	m.mu.Lock()
	callbacks := make([]func(), len(m.onChange))
	copy(callbacks, m.onChange)
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// CheckPermission decides whether an operation may proceed. Constraints are
// evaluated after the mode allows; they can only turn an allow into a deny.
func (m *Manager) CheckPermission(op string, ctx Context) Result {
	m.mu.Lock()
	mode := m.git.Mode(op)
	granted := m.session[op]
	git := m.git
	m.mu.Unlock()

	switch mode {
	case types.GrantNever:
		return Result{Allowed: false, Reason: fmt.Sprintf("%s disabled", op)}

	case types.GrantProject:
		if reason, ok := checkConstraints(git, ctx); !ok {
			return Result{Allowed: false, Reason: reason}
		}
		return Result{Allowed: true, Scope: "project"}

	case types.GrantSession:
		if !granted {
			return confirmationRequired()
		}
		if reason, ok := checkConstraints(git, ctx); !ok {
			return Result{Allowed: false, Reason: reason}
		}
		return Result{Allowed: true, Scope: "session"}

	default: // ask
		return confirmationRequired()
	}
}

func confirmationRequired() Result {
	return Result{
		Allowed:           false,
		Reason:            "User confirmation required",
		NeedsConfirmation: true,
	}
}

// checkConstraints applies the size limit and branch allow-list. A branch
// entry may be an exact name or a glob such as "release/*".
func checkConstraints(git *types.GitConfig, ctx Context) (string, bool) {
	if git == nil {
		return "", true
	}

	if git.MaxCommitSize > 0 && ctx.FileCount > git.MaxCommitSize {
		return fmt.Sprintf("Too many files: %d exceeds limit of %d", ctx.FileCount, git.MaxCommitSize), false
	}

	if len(git.AllowedBranches) > 0 && ctx.Branch != "" && !branchAllowed(git.AllowedBranches, ctx.Branch) {
		return fmt.Sprintf("branch %q not allowed", ctx.Branch), false
	}

	return "", true
}

func branchAllowed(allowed []string, branch string) bool {
	for _, entry := range allowed {
		if entry == branch {
			return true
		}
		if ok, err := doublestar.Match(entry, branch); err == nil && ok {
			return true
		}
	}
	return false
}

// GrantSessionPermission records an operation as approved for the remainder
// of the process. It takes effect immediately and is lost on process exit.
func (m *Manager) GrantSessionPermission(op string) {
	m.mu.Lock()
	m.session[op] = true
	m.mu.Unlock()

	event.Publish(event.Event{
		Type: event.GrantSession,
		Data: event.GrantData{Operation: op, Scope: "session"},
	})

	m.log.Info().Str("operation", op).Msg("session grant recorded")
	m.notify()
}

// GrantProjectPermission persists an operation's mode as "project" in the
// project configuration file so future processes skip the prompt. On a
// persistence failure the grant degrades to a session grant and a
// PersistenceError is returned so the user is informed but not blocked.
func (m *Manager) GrantProjectPermission(op string) error {
	if err := m.persistProjectGrant(op); err != nil {
		m.log.Warn().Str("operation", op).Err(err).Msg("project grant falling back to session")
		m.GrantSessionPermission(op)
		return &PersistenceError{Operation: op, Err: err}
	}

	m.mu.Lock()
	if m.git == nil {
		m.git = &types.GitConfig{}
	}
	if m.git.Operations == nil {
		m.git.Operations = make(map[string]types.GrantMode)
	}
	m.git.Operations[op] = types.GrantProject
	m.mu.Unlock()

	event.Publish(event.Event{
		Type: event.GrantProject,
		Data: event.GrantData{Operation: op, Scope: "project"},
	})

	m.log.Info().Str("operation", op).Str("file", m.projectFile).Msg("project grant persisted")
	m.notify()
	return nil
}

// ClearSessionPermissions empties the in-memory grant set; previously
// granted operations revert to requiring confirmation.
func (m *Manager) ClearSessionPermissions() {
	m.mu.Lock()
	count := len(m.session)
	m.session = make(map[string]bool)
	m.mu.Unlock()

	event.Publish(event.Event{
		Type: event.GrantsCleared,
		Data: event.GrantsClearedData{Count: count},
	})

	m.notify()
}

// HasSessionGrant reports whether an operation holds a session grant.
func (m *Manager) HasSessionGrant(op string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session[op]
}

// persistProjectGrant performs a read-modify-write of the project config
// file: the operation's mode becomes "project" while every unrelated field
// is preserved. Writers are serialized by an advisory file lock; the write
// goes through a temp file and an atomic rename so a crash mid-write cannot
// leave a truncated file behind.
func (m *Manager) persistProjectGrant(op string) error {
	lock := newFileLock(m.projectFile)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock project config: %w", err)
	}
	defer lock.Unlock()

	doc, err := m.readProjectDoc()
	if err != nil {
		return err
	}

	git, ok := doc["git"].(map[string]any)
	if !ok {
		git = make(map[string]any)
	}
	git[op] = string(types.GrantProject)
	doc["git"] = git

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project config: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(m.projectFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp := m.projectFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, m.projectFile); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename config file: %w", err)
	}

	return nil
}

// readProjectDoc reads the current project config as a generic document. A
// missing file synthesizes a minimal default. A file that fails to parse is
// retried briefly in case a concurrent writer was mid-rename; if it still
// fails the grant attempt errs rather than clobbering the operator's config.
func (m *Manager) readProjectDoc() (map[string]any, error) {
	var doc map[string]any

	read := func() error {
		data, err := os.ReadFile(m.projectFile)
		if os.IsNotExist(err) {
			doc = make(map[string]any)
			return nil
		}
		if err != nil {
			return err
		}
		return json.Unmarshal(jsonc.ToJSON(data), &doc)
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(25*time.Millisecond), 3)
	if err := backoff.Retry(read, policy); err != nil {
		return nil, fmt.Errorf("failed to read project config: %w", err)
	}
	return doc, nil
}
