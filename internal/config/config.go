// Package config loads FlockMesh's process-level configuration: the
// directories and paths the rest of the module reads its JSON wire
// contracts (kit documents, admin config, policy library) from, plus
// logging and hot-reload settings.
package config

// FlockMeshConfig is the top-level process configuration.
type FlockMeshConfig struct {
	KitsDir           string `yaml:"kits_dir"`
	PolicyAdminsDir   string `yaml:"policy_admins_dir"`
	PolicyLibraryPath string `yaml:"policy_library_path"`
	SigningKeyPath    string `yaml:"signing_key_path"`
	AuditDBPath       string `yaml:"audit_db_path"`
	LogLevel          string `yaml:"log_level"`
	Watch             bool   `yaml:"watch"`
}

// DefaultConfig returns a FlockMeshConfig with sensible defaults for
// zero-config startup.
func DefaultConfig() *FlockMeshConfig {
	return &FlockMeshConfig{
		KitsDir:           "./kits",
		PolicyAdminsDir:   "./policy-admins",
		PolicyLibraryPath: "./policy-library.json",
		SigningKeyPath:    "./signing-key.seed",
		AuditDBPath:       "./flockmesh-audit.db",
		LogLevel:          "info",
		Watch:             true,
	}
}
