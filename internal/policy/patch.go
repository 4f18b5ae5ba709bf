package policy

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flockmesh/flockmesh/internal/audit"
	"github.com/flockmesh/flockmesh/internal/ids"
)

// HistoryEntry records one applied patch or rollback against a profile,
// enough to reconstruct the profile's state before and after the change
// and to undo it via Rollback.
type HistoryEntry struct {
	ID              string            `json:"id"`
	PatchID         string            `json:"patch_id"`
	ProfileName     string            `json:"profile_name"`
	ActorID         string            `json:"actor_id"`
	Reason          string            `json:"reason"`
	BeforeHash      string            `json:"before_hash"`
	AfterHash       string            `json:"after_hash"`
	BeforeSnapshot  PolicyProfile     `json:"before_snapshot"`
	AfterSnapshot   PolicyProfile     `json:"after_snapshot"`
	RollbackOf      string            `json:"rollback_of,omitempty"`
	AppliedAt       time.Time         `json:"applied_at"`
}

// PatchResult summarizes a successfully applied patch or rollback.
type PatchResult struct {
	PatchID           string `json:"patch_id"`
	BeforeHash        string `json:"before_hash"`
	AfterHash         string `json:"after_hash"`
	AppliedRulesCount int    `json:"applied_rules_count"`
}

// SimulationDiff compares one capability's decision before and after a
// hypothetical patch.
type SimulationDiff struct {
	Capability string         `json:"capability"`
	Before     PolicyDecision `json:"before"`
	After      PolicyDecision `json:"after"`
	Changed    bool           `json:"changed"`
}

// SimulationResult is the outcome of a dry-run patch evaluation.
type SimulationResult struct {
	ProfileName string            `json:"profile_name"`
	BeforeHash  string            `json:"before_hash"`
	AfterHash   string            `json:"after_hash"`
	Diffs       []SimulationDiff  `json:"diffs"`
}

// HistoryExportPackage is a signed, exportable slice of a profile's patch
// history.
type HistoryExportPackage struct {
	Entries   []HistoryEntry `json:"entries"`
	Signature []byte         `json:"signature"`
}

// PatchService implements the Policy Patch Service: dry-run simulation,
// atomic apply with optimistic concurrency, rollback, and signed history
// export. Apply and Rollback serialize through a single mutex (the
// "single-writer" assumption in the concurrency model); reads of the
// library itself go through Library's own RWMutex and never block on this
// one.
type PatchService struct {
	mu      sync.Mutex
	library *Library
	engine  *Engine
	history map[string][]HistoryEntry

	adminMu sync.RWMutex
	admin   AdminConfig

	sink       audit.Sink
	signingKey ed25519.PrivateKey
	logger     *slog.Logger
}

// NewPatchService constructs a PatchService. signingKey may be nil, in
// which case ExportHistory returns an error -- the signing key is supplied
// by the environment and FlockMesh never generates or stores one.
func NewPatchService(library *Library, engine *Engine, admin AdminConfig, sink audit.Sink, signingKey ed25519.PrivateKey, logger *slog.Logger) *PatchService {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = audit.NewMemorySink()
	}
	return &PatchService{
		library:    library,
		engine:     engine,
		history:    make(map[string][]HistoryEntry),
		admin:      admin,
		sink:       sink,
		signingKey: signingKey,
		logger:     logger.With("component", "policy.PatchService"),
	}
}

// SetAdminConfig swaps in a newly merged admin configuration, called from
// the admin-config directory watcher on hot reload.
func (s *PatchService) SetAdminConfig(cfg AdminConfig) {
	s.adminMu.Lock()
	s.admin = cfg
	s.adminMu.Unlock()
}

func (s *PatchService) adminConfig() AdminConfig {
	s.adminMu.RLock()
	defer s.adminMu.RUnlock()
	return s.admin
}

// applyRules overlays patch rules onto a base rule set, returning the
// merged set or an error if any patch rule is invalid or attempts the
// rejected null-rule deletion.
func applyRules(base map[string]PolicyRule, patch map[string]*PolicyRule) (map[string]PolicyRule, error) {
	next := make(map[string]PolicyRule, len(base)+len(patch))
	for k, v := range base {
		next[k] = v
	}
	for capability, rule := range patch {
		if _, err := ids.NewCapability(capability); err != nil {
			return nil, &CodedError{Code: errCapInvalid, Msg: fmt.Sprintf("capability %q", capability), Err: err}
		}
		if rule == nil {
			return nil, &CodedError{Code: errNullDelete, Msg: fmt.Sprintf("rule=null rejected for capability %q", capability)}
		}
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		next[capability] = *rule
	}
	return next, nil
}

// Simulate dry-runs a patch against the current profile without mutating
// anything. If batch is empty, the profile's own rule-key capabilities are
// used as the comparison set.
func (s *PatchService) Simulate(profileName string, expectedHash string, patch map[string]*PolicyRule, pctx PolicyContext, batch []string) (SimulationResult, error) {
	current, ok := s.library.Get(profileName)
	if !ok {
		return SimulationResult{}, &CodedError{Code: errProfileMissing, Msg: profileName}
	}
	if expectedHash != "" && current.Hash != expectedHash {
		return SimulationResult{}, &CodedError{Code: errHashMismatch, Msg: fmt.Sprintf("have %s want %s", current.Hash, expectedHash)}
	}

	nextRules, err := applyRules(current.Rules, patch)
	if err != nil {
		return SimulationResult{}, err
	}
	next := NewProfile(current.Name, nextRules)

	if len(batch) == 0 {
		seen := map[string]struct{}{}
		for cap := range current.Rules {
			seen[cap] = struct{}{}
		}
		for cap := range nextRules {
			seen[cap] = struct{}{}
		}
		for cap := range seen {
			batch = append(batch, cap)
		}
	}

	beforeSnapshot := s.library.Snapshot()
	afterSnapshot := s.library.Snapshot()
	beforeSnapshot[profileName] = current
	afterSnapshot[profileName] = next

	var diffs []SimulationDiff
	for _, cap := range batch {
		before := s.engine.Evaluate(ActionIntent{Capability: cap}, pctx, beforeSnapshot)
		after := s.engine.Evaluate(ActionIntent{Capability: cap}, pctx, afterSnapshot)
		diffs = append(diffs, SimulationDiff{
			Capability: cap,
			Before:     before,
			After:      after,
			Changed:    before.Decision != after.Decision || before.RequiredApprovals != after.RequiredApprovals,
		})
	}

	return SimulationResult{
		ProfileName: profileName,
		BeforeHash:  current.Hash,
		AfterHash:   next.Hash,
		Diffs:       diffs,
	}, nil
}

// Patch atomically applies a set of rule overrides to profileName.
func (s *PatchService) Patch(profileName, actorID, expectedHash string, patch map[string]*PolicyRule, reason string) (PatchResult, error) {
	decision := CanActorManage(s.adminConfig(), actorID, profileName)
	if !decision.Allowed {
		return PatchResult{}, &CodedError{Code: decision.ReasonCode, Msg: fmt.Sprintf("actor %s profile %s", actorID, profileName)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.library.Get(profileName)
	if !ok {
		return PatchResult{}, &CodedError{Code: errProfileMissing, Msg: profileName}
	}
	if current.Hash != expectedHash {
		return PatchResult{}, &CodedError{Code: errHashMismatch, Msg: fmt.Sprintf("have %s want %s", current.Hash, expectedHash)}
	}

	nextRules, err := applyRules(current.Rules, patch)
	if err != nil {
		return PatchResult{}, err
	}
	next := NewProfile(current.Name, nextRules)

	patchID := ids.NewPatchID()
	entry := HistoryEntry{
		ID:             ids.NewHistoryEntryID(),
		PatchID:        patchID,
		ProfileName:    profileName,
		ActorID:        actorID,
		Reason:         reason,
		BeforeHash:     current.Hash,
		AfterHash:      next.Hash,
		BeforeSnapshot: current,
		AfterSnapshot:  next,
		AppliedAt:      time.Now().UTC(),
	}

	s.library.Put(next)
	s.history[profileName] = append(s.history[profileName], entry)

	s.auditRecord(patchID, entry)

	s.logger.Info("policy patch applied",
		"profile", profileName, "actor", actorID, "patch_id", patchID,
		"before_hash", entry.BeforeHash, "after_hash", entry.AfterHash,
	)

	return PatchResult{
		PatchID:           patchID,
		BeforeHash:        entry.BeforeHash,
		AfterHash:         entry.AfterHash,
		AppliedRulesCount: len(patch),
	}, nil
}

// Rollback restores a profile to the state it was in before the named
// patch, appending a new history entry marked rollback_of.
func (s *PatchService) Rollback(profileName, actorID, patchID, expectedHash string) (PatchResult, error) {
	decision := CanActorManage(s.adminConfig(), actorID, profileName)
	if !decision.Allowed {
		return PatchResult{}, &CodedError{Code: decision.ReasonCode, Msg: fmt.Sprintf("actor %s profile %s", actorID, profileName)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var target *HistoryEntry
	for i := range s.history[profileName] {
		if s.history[profileName][i].PatchID == patchID {
			target = &s.history[profileName][i]
			break
		}
	}
	if target == nil {
		return PatchResult{}, &CodedError{Code: errHistoryMissing, Msg: patchID}
	}

	current, ok := s.library.Get(profileName)
	if !ok {
		return PatchResult{}, &CodedError{Code: errProfileMissing, Msg: profileName}
	}
	if current.Hash != expectedHash {
		return PatchResult{}, &CodedError{Code: errHashMismatch, Msg: fmt.Sprintf("have %s want %s", current.Hash, expectedHash)}
	}

	restored := target.BeforeSnapshot.clone()
	newPatchID := ids.NewPatchID()
	entry := HistoryEntry{
		ID:             ids.NewHistoryEntryID(),
		PatchID:        newPatchID,
		ProfileName:    profileName,
		ActorID:        actorID,
		Reason:         fmt.Sprintf("rollback of %s", patchID),
		BeforeHash:     current.Hash,
		AfterHash:      restored.Hash,
		BeforeSnapshot: current,
		AfterSnapshot:  restored,
		RollbackOf:     patchID,
		AppliedAt:      time.Now().UTC(),
	}

	s.library.Put(restored)
	s.history[profileName] = append(s.history[profileName], entry)

	s.auditRecord(newPatchID, entry)

	s.logger.Info("policy rollback applied",
		"profile", profileName, "actor", actorID, "rollback_of", patchID, "new_patch_id", newPatchID,
	)

	return PatchResult{
		PatchID:    newPatchID,
		BeforeHash: entry.BeforeHash,
		AfterHash:  entry.AfterHash,
	}, nil
}

// auditRecord hands a committed change to the configured sink. A sink
// failure is logged but never unwinds the commit that already happened
// above -- the in-memory library is the durable source of truth.
func (s *PatchService) auditRecord(patchID string, entry HistoryEntry) {
	rec := audit.Record{
		ID:          ids.NewAuditRecordID(),
		ProfileName: entry.ProfileName,
		PatchID:     patchID,
		RollbackOf:  entry.RollbackOf,
		ActorID:     entry.ActorID,
		Reason:      entry.Reason,
		BeforeHash:  entry.BeforeHash,
		AfterHash:   entry.AfterHash,
		AppliedAt:   entry.AppliedAt,
	}
	if err := s.sink.Record(rec); err != nil {
		s.logger.Error("audit sink record failed", "error", err, "profile", entry.ProfileName, "patch_id", patchID)
	}
}

// History returns the patch/rollback history for a profile, oldest first.
func (s *PatchService) History(profileName string) []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryEntry, len(s.history[profileName]))
	copy(out, s.history[profileName])
	return out
}

// ExportHistory produces a signed export package for a profile's history.
func (s *PatchService) ExportHistory(profileName string) (HistoryExportPackage, error) {
	if s.signingKey == nil {
		return HistoryExportPackage{}, &CodedError{Code: "policy.history.signing_key_missing", Msg: "no signing key configured"}
	}
	entries := s.History(profileName)

	canonical, err := json.Marshal(entries)
	if err != nil {
		return HistoryExportPackage{}, fmt.Errorf("policy: marshal history for signing: %w", err)
	}
	sig := ed25519.Sign(s.signingKey, canonical)

	return HistoryExportPackage{Entries: entries, Signature: sig}, nil
}

// VerifyHistoryExport checks an export package's Ed25519 signature
// against the given public key.
func VerifyHistoryExport(pkg HistoryExportPackage, pub ed25519.PublicKey) (bool, error) {
	canonical, err := json.Marshal(pkg.Entries)
	if err != nil {
		return false, fmt.Errorf("policy: marshal history for verification: %w", err)
	}
	return ed25519.Verify(pub, canonical, pkg.Signature), nil
}
