package main

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flockmesh/flockmesh/internal/audit"
	"github.com/flockmesh/flockmesh/internal/blueprint"
	"github.com/flockmesh/flockmesh/internal/config"
	"github.com/flockmesh/flockmesh/internal/kit"
	"github.com/flockmesh/flockmesh/internal/policy"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "flockmeshctl",
		Short: "Admin CLI for the FlockMesh policy engine and blueprint planner",
		Long:  "flockmeshctl — local operator surface over the policy engine, patch service, and blueprint planner.",
	}

	var configFile string
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to flockmesh.yaml (default: ./flockmesh.yaml)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("flockmeshctl %s\n", version)
		},
	}

	policyCmd := &cobra.Command{Use: "policy", Short: "Policy engine and patch-service commands"}

	var simProfile, simRulesFile string
	policySimulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Dry-run a rule patch against a profile without applying it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicySimulate(configFile, simProfile, simRulesFile)
		},
	}
	policySimulateCmd.Flags().StringVar(&simProfile, "profile", "", "Profile name to simulate against")
	policySimulateCmd.Flags().StringVar(&simRulesFile, "rules", "", "Path to a JSON file of capability -> rule overrides")
	_ = policySimulateCmd.MarkFlagRequired("profile")
	_ = policySimulateCmd.MarkFlagRequired("rules")

	var patchProfile, patchHash, patchRulesFile, patchActor, patchReason string
	policyPatchCmd := &cobra.Command{
		Use:   "patch",
		Short: "Atomically apply a rule patch to a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicyPatch(configFile, patchProfile, patchHash, patchRulesFile, patchActor, patchReason)
		},
	}
	policyPatchCmd.Flags().StringVar(&patchProfile, "profile", "", "Profile name to patch")
	policyPatchCmd.Flags().StringVar(&patchHash, "expected-hash", "", "Profile hash the caller last observed (optimistic concurrency)")
	policyPatchCmd.Flags().StringVar(&patchRulesFile, "rules", "", "Path to a JSON file of capability -> rule overrides")
	policyPatchCmd.Flags().StringVar(&patchActor, "actor", "", "Acting user ID (usr_... or svc_...)")
	policyPatchCmd.Flags().StringVar(&patchReason, "reason", "", "Reason recorded in patch history")
	_ = policyPatchCmd.MarkFlagRequired("profile")
	_ = policyPatchCmd.MarkFlagRequired("rules")
	_ = policyPatchCmd.MarkFlagRequired("actor")

	var rollbackProfile, rollbackHash, rollbackPatchID, rollbackActor string
	policyRollbackCmd := &cobra.Command{
		Use:   "rollback",
		Short: "Restore a profile to its state before a given patch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicyRollback(configFile, rollbackProfile, rollbackActor, rollbackPatchID, rollbackHash)
		},
	}
	policyRollbackCmd.Flags().StringVar(&rollbackProfile, "profile", "", "Profile name to roll back")
	policyRollbackCmd.Flags().StringVar(&rollbackPatchID, "patch", "", "Patch ID (pat_...) to undo")
	policyRollbackCmd.Flags().StringVar(&rollbackHash, "expected-hash", "", "Profile hash the caller last observed")
	policyRollbackCmd.Flags().StringVar(&rollbackActor, "actor", "", "Acting user ID (usr_... or svc_...)")
	_ = policyRollbackCmd.MarkFlagRequired("profile")
	_ = policyRollbackCmd.MarkFlagRequired("patch")
	_ = policyRollbackCmd.MarkFlagRequired("actor")

	var historyProfile string
	var historyExport bool
	policyHistoryCmd := &cobra.Command{
		Use:   "history",
		Short: "Show (or export, signed) a profile's patch/rollback history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicyHistory(configFile, historyProfile, historyExport)
		},
	}
	policyHistoryCmd.Flags().StringVar(&historyProfile, "profile", "", "Profile name")
	policyHistoryCmd.Flags().BoolVar(&historyExport, "export", false, "Print the signed export package instead of a table")
	_ = policyHistoryCmd.MarkFlagRequired("profile")

	policyCmd.AddCommand(policySimulateCmd, policyPatchCmd, policyRollbackCmd, policyHistoryCmd)

	blueprintCmd := &cobra.Command{Use: "blueprint", Short: "Agent blueprint planner commands"}

	var bpWorkspace, bpKit, bpManifests string
	blueprintPreviewCmd := &cobra.Command{
		Use:   "preview",
		Short: "Build and print a blueprint preview",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlueprintPreview(configFile, bpWorkspace, bpKit, bpManifests)
		},
	}
	blueprintLintCmd := &cobra.Command{
		Use:   "lint",
		Short: "Build a preview and print its lint report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlueprintLint(configFile, bpWorkspace, bpKit, bpManifests)
		},
	}
	blueprintRemediateCmd := &cobra.Command{
		Use:   "remediate",
		Short: "Build a preview and print its remediation plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlueprintRemediate(configFile, bpWorkspace, bpKit, bpManifests)
		},
	}
	for _, c := range []*cobra.Command{blueprintPreviewCmd, blueprintLintCmd, blueprintRemediateCmd} {
		c.Flags().StringVar(&bpWorkspace, "workspace", "", "Workspace ID (wsp_...)")
		c.Flags().StringVar(&bpKit, "kit", "", "Kit ID (kit_...)")
		c.Flags().StringVar(&bpManifests, "manifests", "", "Directory of connector manifest JSON files")
		_ = c.MarkFlagRequired("workspace")
		_ = c.MarkFlagRequired("kit")
		_ = c.MarkFlagRequired("manifests")
	}
	blueprintCmd.AddCommand(blueprintPreviewCmd, blueprintLintCmd, blueprintRemediateCmd)

	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configured directories and default kit library integrity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(configFile)
		},
	}

	rootCmd.AddCommand(versionCmd, policyCmd, blueprintCmd, doctorCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// environment is everything a command needs, assembled once from the
// configured directories -- the CLI never runs a long-lived watch loop,
// it loads, acts, and exits.
type environment struct {
	cfg      *config.FlockMeshConfig
	logger   *slog.Logger
	loader   *policy.Loader
	library  *policy.Library
	engine   *policy.Engine
	patchSvc *policy.PatchService
	kitLib   *kit.Library
	builder  *blueprint.Builder
	admin    policy.AdminConfig
}

func loadEnvironment(configFile string) (*environment, error) {
	cfg := config.DefaultConfig()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		cfgLoader := config.NewLoader()
		if err := cfgLoader.Load(configFile); err != nil {
			return nil, fmt.Errorf("flockmeshctl: load config: %w", err)
		}
		cfg = cfgLoader.Get()
	}

	logLevel := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	loader := policy.NewLoader(logger)
	library := policy.NewLibrary()
	if _, err := os.Stat(cfg.PolicyLibraryPath); err == nil {
		profiles, err := loader.LoadLibrary(cfg.PolicyLibraryPath)
		if err != nil {
			return nil, err
		}
		library.Replace(profiles)
	}

	admin, err := loader.LoadAdminConfigDir(cfg.PolicyAdminsDir)
	if err != nil {
		return nil, err
	}

	sink, err := openAuditSink(cfg.AuditDBPath, logger)
	if err != nil {
		return nil, err
	}

	signingKey, err := loadSigningKey(cfg.SigningKeyPath)
	if err != nil {
		return nil, err
	}

	engine := policy.NewEngine(logger)
	patchSvc := policy.NewPatchService(library, engine, admin, sink, signingKey, logger)

	kitLib := kit.NewLibrary(logger)
	if cfg.KitsDir != "" {
		if err := kitLib.LoadDir(cfg.KitsDir); err != nil {
			return nil, err
		}
	}

	return &environment{
		cfg:      cfg,
		logger:   logger,
		loader:   loader,
		library:  library,
		engine:   engine,
		patchSvc: patchSvc,
		kitLib:   kitLib,
		builder:  blueprint.NewBuilder(engine),
		admin:    admin,
	}, nil
}

// openAuditSink opens the configured SQLite ledger, falling back to an
// in-memory sink when no path is configured (mirrors the teacher's
// "dashboard optional" shape: the primary data path works without it).
func openAuditSink(path string, logger *slog.Logger) (audit.Sink, error) {
	if path == "" {
		return audit.NewMemorySink(), nil
	}
	sink, err := audit.NewSQLiteSink(path)
	if err != nil {
		return nil, fmt.Errorf("flockmeshctl: open audit sink: %w", err)
	}
	logger.Info("audit sink opened", "path", path)
	return sink, nil
}

// loadSigningKey reads a raw Ed25519 seed (32 bytes) or private key (64
// bytes) from path. A missing file is not an error -- ExportHistory simply
// refuses signed exports until an operator provisions one, the same
// "absent external dependency degrades a feature, not the process" shape
// as the teacher's optional OpenClaw adapter.
func loadSigningKey(path string) (ed25519.PrivateKey, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("flockmeshctl: read signing key %s: %w", path, err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, fmt.Errorf("flockmeshctl: signing key %s has %d bytes, want %d (seed) or %d (full key)", path, len(raw), ed25519.SeedSize, ed25519.PrivateKeySize)
	}
}

func findConfigFile() string {
	candidates := []string{"flockmesh.yaml", "flockmesh.yml"}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func readRulePatch(path string) (map[string]*policy.PolicyRule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("flockmeshctl: read rules file %s: %w", path, err)
	}
	var patch map[string]*policy.PolicyRule
	if err := json.Unmarshal(raw, &patch); err != nil {
		return nil, fmt.Errorf("flockmeshctl: parse rules file %s: %w", path, err)
	}
	return patch, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ─── policy commands ───

func runPolicySimulate(configFile, profile, rulesFile string) error {
	env, err := loadEnvironment(configFile)
	if err != nil {
		return err
	}
	patch, err := readRulePatch(rulesFile)
	if err != nil {
		return err
	}
	current, ok := env.library.Get(profile)
	if !ok {
		return fmt.Errorf("flockmeshctl: profile %q not found", profile)
	}
	result, err := env.patchSvc.Simulate(profile, current.Hash, patch, policy.PolicyContext{OrgProfile: profile}, nil)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runPolicyPatch(configFile, profile, expectedHash, rulesFile, actor, reason string) error {
	env, err := loadEnvironment(configFile)
	if err != nil {
		return err
	}
	patch, err := readRulePatch(rulesFile)
	if err != nil {
		return err
	}
	result, err := env.patchSvc.Patch(profile, actor, expectedHash, patch, reason)
	if err != nil {
		return err
	}
	fmt.Printf("patched %s: %s -> %s (patch_id=%s)\n", profile, result.BeforeHash, result.AfterHash, result.PatchID)
	return nil
}

func runPolicyRollback(configFile, profile, actor, patchID, expectedHash string) error {
	env, err := loadEnvironment(configFile)
	if err != nil {
		return err
	}
	result, err := env.patchSvc.Rollback(profile, actor, patchID, expectedHash)
	if err != nil {
		return err
	}
	fmt.Printf("rolled back %s: %s -> %s (patch_id=%s)\n", profile, result.BeforeHash, result.AfterHash, result.PatchID)
	return nil
}

func runPolicyHistory(configFile, profile string, export bool) error {
	env, err := loadEnvironment(configFile)
	if err != nil {
		return err
	}
	if export {
		pkg, err := env.patchSvc.ExportHistory(profile)
		if err != nil {
			return err
		}
		return printJSON(pkg)
	}
	return printJSON(env.patchSvc.History(profile))
}

// ─── blueprint commands ───

func readManifestDir(dir string) (map[string]blueprint.ConnectorManifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("flockmeshctl: read manifests dir %s: %w", dir, err)
	}
	out := make(map[string]blueprint.ConnectorManifest, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("flockmeshctl: read manifest %s: %w", e.Name(), err)
		}
		var m blueprint.ConnectorManifest
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("flockmeshctl: parse manifest %s: %w", e.Name(), err)
		}
		out[m.ConnectorID] = m
	}
	return out, nil
}

func buildPreviewInput(env *environment, workspaceID, kitID, manifestsDir string) (blueprint.PreviewInput, error) {
	manifests, err := readManifestDir(manifestsDir)
	if err != nil {
		return blueprint.PreviewInput{}, err
	}
	k, ok := env.kitLib.Get(kitID)
	if !ok {
		return blueprint.PreviewInput{}, fmt.Errorf("flockmeshctl: kit %q not found", kitID)
	}
	return blueprint.PreviewInput{
		WorkspaceID:   workspaceID,
		KitID:         kitID,
		AgentName:     k.Name,
		Manifests:     manifests,
		PolicyContext: policy.PolicyContext{OrgProfile: k.DefaultPolicyProfile},
		PolicyLibrary: env.library.Snapshot(),
		KitLibrary:    env.kitLib.Snapshot(),
	}, nil
}

func runBlueprintPreview(configFile, workspaceID, kitID, manifestsDir string) error {
	env, err := loadEnvironment(configFile)
	if err != nil {
		return err
	}
	in, err := buildPreviewInput(env, workspaceID, kitID, manifestsDir)
	if err != nil {
		return err
	}
	preview, err := env.builder.Build(in)
	if err != nil {
		return err
	}
	return printJSON(preview)
}

func runBlueprintLint(configFile, workspaceID, kitID, manifestsDir string) error {
	env, err := loadEnvironment(configFile)
	if err != nil {
		return err
	}
	in, err := buildPreviewInput(env, workspaceID, kitID, manifestsDir)
	if err != nil {
		return err
	}
	preview, err := env.builder.Build(in)
	if err != nil {
		return err
	}
	return printJSON(blueprint.Lint(preview))
}

func runBlueprintRemediate(configFile, workspaceID, kitID, manifestsDir string) error {
	env, err := loadEnvironment(configFile)
	if err != nil {
		return err
	}
	in, err := buildPreviewInput(env, workspaceID, kitID, manifestsDir)
	if err != nil {
		return err
	}
	preview, err := env.builder.Build(in)
	if err != nil {
		return err
	}
	lint := blueprint.Lint(preview)
	plan, err := env.builder.Remediate(in, preview, lint)
	if err != nil {
		return err
	}
	return printJSON(plan)
}

// ─── doctor ───

func runDoctor(configFile string) error {
	fmt.Println("FlockMesh Doctor")
	fmt.Println("────────────────")

	env, err := loadEnvironment(configFile)
	if err != nil {
		fmt.Printf("✗ environment failed to load: %v\n", err)
		return err
	}
	fmt.Printf("✓ config loaded (kits_dir=%s, policy_admins_dir=%s, policy_library_path=%s)\n",
		env.cfg.KitsDir, env.cfg.PolicyAdminsDir, env.cfg.PolicyLibraryPath)

	for name, dir := range map[string]string{"kits_dir": env.cfg.KitsDir, "policy_admins_dir": env.cfg.PolicyAdminsDir} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			fmt.Printf("✓ directory exists: %s (%s)\n", dir, name)
		} else {
			fmt.Printf("⚠ missing directory: %s (%s) -- falling back to built-in defaults where applicable\n", dir, name)
		}
	}

	kits := env.kitLib.Snapshot()
	fmt.Printf("✓ kit library parses cleanly: %d kit(s) loaded\n", len(kits))
	for id, k := range kits {
		if err := k.Validate(); err != nil {
			fmt.Printf("✗ kit %s failed validation: %v\n", id, err)
		}
	}

	profiles := env.library.Snapshot()
	fmt.Printf("✓ policy library: %d profile(s) loaded\n", len(profiles))

	if len(env.admin.GlobalAdmins) == 0 && len(env.admin.ProfileAdmins) == 0 {
		fmt.Println("⚠ no policy admins configured -- every patch/rollback attempt will be denied")
	} else {
		fmt.Printf("✓ policy admins configured: %d global, %d profile-scoped\n", len(env.admin.GlobalAdmins), len(env.admin.ProfileAdmins))
	}

	return nil
}
