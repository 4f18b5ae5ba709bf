package kit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// kitDocument is the on-disk `*.kit.json` representation of one AgentKit.
type kitDocument struct {
	Version              string                `json:"version"`
	KitID                string                `json:"kit_id"`
	Name                 string                `json:"name"`
	Description          string                `json:"description"`
	Role                 string                `json:"role"`
	DefaultPolicyProfile string                `json:"default_policy_profile"`
	DefaultPlaybookID    string                `json:"default_playbook_id"`
	CapabilityGoals      []string              `json:"capability_goals"`
	ConnectorCandidates  []ConnectorCandidate  `json:"connector_candidates"`
	Rollout              []RolloutPhase        `json:"rollout"`
}

func (d kitDocument) toKit() AgentKit {
	return AgentKit{
		KitID:                d.KitID,
		Name:                 d.Name,
		Description:          d.Description,
		Role:                 d.Role,
		DefaultPolicyProfile: d.DefaultPolicyProfile,
		DefaultPlaybookID:    d.DefaultPlaybookID,
		CapabilityGoals:      d.CapabilityGoals,
		ConnectorCandidates:  d.ConnectorCandidates,
		Rollout:              d.Rollout,
	}
}

// Library is a copy-on-write, hot-reloadable catalog of AgentKits, keyed
// by kit_id. Its read/write shape mirrors policy.Library: a single
// RWMutex guarding whole-map swaps, never in-place map mutation.
type Library struct {
	mu   sync.RWMutex
	kits map[string]AgentKit

	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	watchDir string
	done     chan struct{}
}

// NewLibrary creates a Library seeded with DefaultKits.
func NewLibrary(logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Library{kits: make(map[string]AgentKit), logger: logger.With("component", "kit.Library")}
	l.Replace(DefaultKits())
	return l
}

// Get returns the kit for id and whether it was found.
func (l *Library) Get(id string) (AgentKit, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	k, ok := l.kits[id]
	return k, ok
}

// Snapshot returns a copy of the whole catalog.
func (l *Library) Snapshot() map[string]AgentKit {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]AgentKit, len(l.kits))
	for k, v := range l.kits {
		out[k] = v
	}
	return out
}

// Replace atomically swaps in a whole new kit set.
func (l *Library) Replace(kits []AgentKit) {
	next := make(map[string]AgentKit, len(kits))
	for _, k := range kits {
		next[k.KitID] = k
	}
	l.mu.Lock()
	l.kits = next
	l.mu.Unlock()
}

// LoadDir reads every `*.kit.json` file in dir and replaces the catalog
// with their contents. A missing directory leaves the current catalog
// (the default two kits, unless already replaced) untouched -- a kit
// directory is optional, not required, infrastructure.
func (l *Library) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		l.logger.Info("kit directory not found, keeping in-memory default catalog", "dir", dir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("kit: read directory %s: %w", dir, err)
	}

	var kits []AgentKit
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".kit.json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("kit: read %s: %w", path, err)
		}
		var doc kitDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("kit: parse %s: %w", path, err)
		}
		k := doc.toKit()
		if err := k.Validate(); err != nil {
			return fmt.Errorf("kit: %s: %w", path, err)
		}
		kits = append(kits, k)
	}

	l.Replace(kits)
	l.logger.Info("kit library loaded from directory", "dir", dir, "kit_count", len(kits))
	return nil
}

// Watch starts an fsnotify watcher on dir; any write/create/remove event
// reloads the whole directory via LoadDir. Reload errors are logged, not
// returned -- a bad edit mid-save should not crash the watcher loop, and
// the previous good catalog stays in effect until a valid reload lands.
func (l *Library) Watch(dir string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("kit: resolve dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return fmt.Errorf("kit: ensure dir %s: %w", absDir, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("kit: create watcher: %w", err)
	}
	if err := w.Add(absDir); err != nil {
		_ = w.Close()
		return fmt.Errorf("kit: watch directory %s: %w", absDir, err)
	}

	l.mu.Lock()
	l.watcher = w
	l.watchDir = absDir
	l.done = make(chan struct{})
	l.mu.Unlock()

	go l.watchLoop(w, l.done, absDir)
	l.logger.Info("watching kit directory for changes", "dir", absDir)
	return nil
}

func (l *Library) watchLoop(w *fsnotify.Watcher, done chan struct{}, dir string) {
	defer close(done)
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				l.logger.Info("kit directory changed, reloading", "event", event.Name)
				if err := l.LoadDir(dir); err != nil {
					l.logger.Error("kit reload failed, keeping previous catalog", "error", err)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			l.logger.Error("fsnotify error", "error", err)
		}
	}
}

// StopWatch tears down the watcher started by Watch, if any.
func (l *Library) StopWatch() {
	l.mu.Lock()
	w := l.watcher
	done := l.done
	l.watcher = nil
	l.done = nil
	l.mu.Unlock()
	if w == nil {
		return
	}
	_ = w.Close()
	<-done
}
