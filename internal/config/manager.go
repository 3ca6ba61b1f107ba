package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/kuuzuki-ai/kuuzuki/internal/event"
	"github.com/kuuzuki-ai/kuuzuki/internal/logging"
	"github.com/kuuzuki-ai/kuuzuki/pkg/types"
)

// ReloadFunc is called after a reload with the new configuration and
// environment override.
type ReloadFunc func(cfg *types.Config, env *types.PermissionConfig)

// Manager owns the loaded configuration for a project directory and reloads
// it when the underlying files change. Every reload bumps a version counter
// so resolvers can invalidate memoized decisions.
type Manager struct {
	mu        sync.RWMutex
	directory string
	config    *types.Config
	env       *types.PermissionConfig
	version   uint64
	onReload  []ReloadFunc

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	log     zerolog.Logger
}

// NewManager loads configuration for a project directory.
func NewManager(directory string) *Manager {
	return &Manager{
		directory: directory,
		config:    Load(directory),
		env:       EnvOverride(),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		log:       logging.For("config"),
	}
}

// Config returns the current configuration.
func (m *Manager) Config() *types.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Env returns the current environment permission override, or nil.
func (m *Manager) Env() *types.PermissionConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.env
}

// Version returns the current configuration version.
func (m *Manager) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// OnReload registers a callback invoked after each reload.
func (m *Manager) OnReload(fn ReloadFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReload = append(m.onReload, fn)
}

// Reload re-reads all configuration sources, bumps the version, notifies
// callbacks, and publishes a config.reloaded event.
func (m *Manager) Reload() {
	cfg := Load(m.directory)
	env := EnvOverride()

	m.mu.Lock()
	m.config = cfg
	m.env = env
	m.version++
	version := m.version
	callbacks := make([]ReloadFunc, len(m.onReload))
	copy(callbacks, m.onReload)
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg, env)
	}

	event.Publish(event.Event{
		Type: event.ConfigReloaded,
		Data: event.ConfigReloadedData{Version: version, Path: m.directory},
	})

	m.log.Debug().Uint64("version", version).Msg("configuration reloaded")
}

// Watch starts watching the project directory for config file changes.
func (m *Manager) Watch() error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if err := w.Add(m.directory); err != nil {
		w.Close()
		m.mu.Unlock()
		return err
	}
	// The .kuuzuki subdirectory may not exist yet; ignore failure.
	_ = w.Add(filepath.Join(m.directory, ".kuuzuki"))

	m.watcher = w
	m.started = true
	m.mu.Unlock()

	go m.run()
	return nil
}

func (m *Manager) run() {
	defer close(m.doneCh)

	for {
		select {
		case <-m.stopCh:
			return
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if isConfigFile(ev.Name) {
				m.Reload()
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.log.Error().Err(err).Msg("config watcher error")
		}
	}
}

func isConfigFile(path string) bool {
	base := filepath.Base(path)
	return base == "kuuzuki.json" || base == "kuuzuki.jsonc"
}

// Stop stops the watcher.
func (m *Manager) Stop() error {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()

	if !started {
		return nil
	}

	select {
	case <-m.stopCh:
	default:
		close(m.stopCh)
	}
	<-m.doneCh

	return m.watcher.Close()
}
