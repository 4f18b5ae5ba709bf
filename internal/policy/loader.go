package policy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/flockmesh/flockmesh/internal/ids"
)

// librarySourceFile is the on-disk JSON representation of a whole policy
// library source: a map of profile name to its rule set. Profile hashes
// are recomputed on load rather than trusted from disk.
type librarySourceFile map[string]map[string]PolicyRule

// adminConfigFile is the on-disk JSON representation of one admin
// config source; multiple files under the admin-config directory are
// merged by set-union.
type adminConfigFile struct {
	GlobalAdmins  []string            `json:"global_admins" yaml:"global_admins"`
	ProfileAdmins map[string][]string `json:"profile_admins" yaml:"profile_admins"`
}

// Loader loads the policy library and admin config from disk and,
// optionally, watches their sources for hot reload. It watches the
// containing directory rather than the file itself, to catch editor
// rename-and-replace patterns (e.g. vim, nano) the same way the teacher's
// config watcher does.
type Loader struct {
	logger *slog.Logger

	mu       sync.Mutex
	watchers []*fsnotify.Watcher
	done     []chan struct{}
}

// NewLoader creates a policy Loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger.With("component", "policy.Loader")}
}

// LoadLibrary reads a policy-library source file and returns the parsed
// profile set, with each profile's hash computed from its rules.
func (l *Loader) LoadLibrary(path string) (map[string]PolicyProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read library file %s: %w", path, err)
	}
	var src librarySourceFile
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, fmt.Errorf("policy: parse library file %s: %w", path, err)
	}

	out := make(map[string]PolicyProfile, len(src))
	for name, rules := range src {
		for capability, rule := range rules {
			if err := rule.Validate(); err != nil {
				return nil, fmt.Errorf("policy: profile %s capability %s: %w", name, capability, err)
			}
		}
		out[name] = NewProfile(ids.ProfileName(name), rules)
	}
	l.logger.Info("policy library loaded", "path", path, "profile_count", len(out))
	return out, nil
}

// LoadAdminConfigDir reads every *.json file in dir and set-unions their
// contents into a single AdminConfig. A missing directory is treated as an
// empty config, not an error -- FlockMesh can run with zero configured
// admins (every patch attempt will simply be denied).
func (l *Loader) LoadAdminConfigDir(dir string) (AdminConfig, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return AdminConfig{}, nil
	}
	if err != nil {
		return AdminConfig{}, fmt.Errorf("policy: read admin config dir %s: %w", dir, err)
	}

	merged := AdminConfig{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return AdminConfig{}, fmt.Errorf("policy: read admin config %s: %w", path, err)
		}
		var f adminConfigFile
		if err := json.Unmarshal(raw, &f); err != nil {
			return AdminConfig{}, fmt.Errorf("policy: parse admin config %s: %w", path, err)
		}
		merged = merged.Merge(AdminConfig{GlobalAdmins: f.GlobalAdmins, ProfileAdmins: f.ProfileAdmins})
	}
	l.logger.Info("admin config loaded", "dir", dir, "global_admins", len(merged.GlobalAdmins))
	return merged, nil
}

// WatchPath starts an fsnotify watcher on the directory containing path.
// Any write/create event targeting path invokes onChange. Call StopAll to
// tear down every watcher started this way.
func (l *Loader) WatchPath(path string, onChange func(path string)) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("policy: resolve path %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("policy: create watcher: %w", err)
	}
	dir := filepath.Dir(absPath)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("policy: watch directory %s: %w", dir, err)
	}

	done := make(chan struct{})
	l.mu.Lock()
	l.watchers = append(l.watchers, w)
	l.done = append(l.done, done)
	l.mu.Unlock()

	go l.watchLoop(w, done, absPath, onChange)
	l.logger.Info("watching path for changes", "path", absPath)
	return nil
}

// WatchDir starts an fsnotify watcher directly on dir (used for the
// admin-config directory, where any file under it matters, not a single
// target path).
func (l *Loader) WatchDir(dir string, onChange func(path string)) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("policy: resolve dir %s: %w", dir, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("policy: create watcher: %w", err)
	}
	if err := w.Add(absDir); err != nil {
		_ = w.Close()
		return fmt.Errorf("policy: watch directory %s: %w", absDir, err)
	}

	done := make(chan struct{})
	l.mu.Lock()
	l.watchers = append(l.watchers, w)
	l.done = append(l.done, done)
	l.mu.Unlock()

	go l.watchLoop(w, done, "", onChange)
	l.logger.Info("watching directory for changes", "dir", absDir)
	return nil
}

func (l *Loader) watchLoop(w *fsnotify.Watcher, done chan struct{}, targetPath string, onChange func(string)) {
	defer close(done)
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if targetPath != "" {
				absEvent, _ := filepath.Abs(event.Name)
				if absEvent != targetPath {
					continue
				}
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				l.logger.Info("watched path changed, triggering reload", "path", event.Name)
				onChange(event.Name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			l.logger.Error("fsnotify error", "error", err)
		}
	}
}

// StopAll stops every watcher started via WatchPath/WatchDir.
func (l *Loader) StopAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, w := range l.watchers {
		_ = w.Close()
		<-l.done[i]
	}
	l.watchers = nil
	l.done = nil
}
