package config

import (
	"fmt"
	"os"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"
)

// Loader reads a FlockMeshConfig from a YAML file, substituting ${VAR}
// environment-variable references in string fields, and caches the most
// recently loaded config for Get/Reload.
type Loader struct {
	mu       sync.RWMutex
	cfg      *FlockMeshConfig
	filePath string
}

// NewLoader creates an empty Loader; call Load before Get.
func NewLoader() *Loader {
	return &Loader{}
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnvVars replaces every ${VAR} occurrence in s with the value
// of the named environment variable, leaving unset variables as an empty
// string.
func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

func (c *FlockMeshConfig) substituteAll() {
	c.KitsDir = substituteEnvVars(c.KitsDir)
	c.PolicyAdminsDir = substituteEnvVars(c.PolicyAdminsDir)
	c.PolicyLibraryPath = substituteEnvVars(c.PolicyLibraryPath)
	c.SigningKeyPath = substituteEnvVars(c.SigningKeyPath)
	c.AuditDBPath = substituteEnvVars(c.AuditDBPath)
	c.LogLevel = substituteEnvVars(c.LogLevel)
}

// Load reads and parses the YAML config at path, applying env-var
// substitution, and caches both the config and the path for Reload.
func (l *Loader) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.substituteAll()

	l.mu.Lock()
	l.cfg = cfg
	l.filePath = path
	l.mu.Unlock()
	return nil
}

// Reload re-reads the config from the path passed to the last successful
// Load call.
func (l *Loader) Reload() error {
	l.mu.RLock()
	path := l.filePath
	l.mu.RUnlock()
	if path == "" {
		return fmt.Errorf("config: Reload called before Load")
	}
	return l.Load(path)
}

// Get returns the most recently loaded config. Returns DefaultConfig()
// if Load has never succeeded.
func (l *Loader) Get() *FlockMeshConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.cfg == nil {
		return DefaultConfig()
	}
	return l.cfg
}

// FilePath returns the path most recently passed to Load.
func (l *Loader) FilePath() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.filePath
}

// GenerateDefault writes DefaultConfig's YAML encoding to path, for first
// -run bootstrapping.
func GenerateDefault(path string) error {
	out, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("config: marshal default config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
