package policy

import (
	"crypto/ed25519"
	"testing"

	"github.com/flockmesh/flockmesh/internal/audit"
)

func newTestPatchService(t *testing.T, admin AdminConfig) (*PatchService, *Library) {
	t.Helper()
	lib := NewLibrary()
	lib.Put(NewProfile("org_default", map[string]PolicyRule{
		"message.send": {Decision: DecisionAllow},
	}))
	engine := NewEngine(nil)
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	svc := NewPatchService(lib, engine, admin, audit.NewMemorySink(), priv, nil)
	return svc, lib
}

func ruleP(d Decision, approvals int) *PolicyRule {
	return &PolicyRule{Decision: d, RequiredApprovals: approvals}
}

func TestPatch_AppliesAndReplacesLibraryEntry(t *testing.T) {
	admin := AdminConfig{GlobalAdmins: []string{"usr_root"}}
	svc, lib := newTestPatchService(t, admin)

	current, _ := lib.Get("org_default")
	res, err := svc.Patch("org_default", "usr_root", current.Hash, map[string]*PolicyRule{
		"payment.send": ruleP(DecisionDeny, 0),
	}, "lock down payments")
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if res.AppliedRulesCount != 1 {
		t.Errorf("applied_rules_count = %d, want 1", res.AppliedRulesCount)
	}

	updated, _ := lib.Get("org_default")
	if updated.Hash != res.AfterHash {
		t.Errorf("library hash %s != patch result after_hash %s", updated.Hash, res.AfterHash)
	}
	if updated.Rules["payment.send"].Decision != DecisionDeny {
		t.Error("expected payment.send to be denied after patch")
	}
}

func TestPatch_HashMismatchRejected(t *testing.T) {
	admin := AdminConfig{GlobalAdmins: []string{"usr_root"}}
	svc, _ := newTestPatchService(t, admin)

	_, err := svc.Patch("org_default", "usr_root", "stale-hash", map[string]*PolicyRule{
		"payment.send": ruleP(DecisionDeny, 0),
	}, "")
	if CodeOf(err) != errHashMismatch {
		t.Fatalf("error = %v, want code %s", err, errHashMismatch)
	}
}

func TestPatch_NullRuleRejected(t *testing.T) {
	admin := AdminConfig{GlobalAdmins: []string{"usr_root"}}
	svc, lib := newTestPatchService(t, admin)
	current, _ := lib.Get("org_default")

	_, err := svc.Patch("org_default", "usr_root", current.Hash, map[string]*PolicyRule{
		"message.send": nil,
	}, "")
	if CodeOf(err) != errNullDelete {
		t.Fatalf("error = %v, want code %s", err, errNullDelete)
	}

	unchanged, _ := lib.Get("org_default")
	if unchanged.Hash != current.Hash {
		t.Error("a rejected patch must not mutate the library")
	}
}

func TestPatch_UnauthorizedActorRejected(t *testing.T) {
	svc, _ := newTestPatchService(t, AdminConfig{})
	_, err := svc.Patch("org_default", "usr_stranger", "", map[string]*PolicyRule{}, "")
	if CodeOf(err) != "policy.admin.not_authorized" {
		t.Fatalf("error = %v, want not_authorized", err)
	}
}

func TestPatch_InvalidCapabilityRejected(t *testing.T) {
	admin := AdminConfig{GlobalAdmins: []string{"usr_root"}}
	svc, lib := newTestPatchService(t, admin)
	current, _ := lib.Get("org_default")

	_, err := svc.Patch("org_default", "usr_root", current.Hash, map[string]*PolicyRule{
		"NotValid": ruleP(DecisionAllow, 0),
	}, "")
	if CodeOf(err) != errCapInvalid {
		t.Fatalf("error = %v, want code %s", err, errCapInvalid)
	}
}

func TestRollback_RestoresPriorSnapshot(t *testing.T) {
	admin := AdminConfig{GlobalAdmins: []string{"usr_root"}}
	svc, lib := newTestPatchService(t, admin)
	before, _ := lib.Get("org_default")

	patchRes, err := svc.Patch("org_default", "usr_root", before.Hash, map[string]*PolicyRule{
		"payment.send": ruleP(DecisionDeny, 0),
	}, "lock down")
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}

	afterPatch, _ := lib.Get("org_default")
	rollbackRes, err := svc.Rollback("org_default", "usr_root", patchRes.PatchID, afterPatch.Hash)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if rollbackRes.AfterHash != before.Hash {
		t.Errorf("after rollback hash = %s, want original %s", rollbackRes.AfterHash, before.Hash)
	}

	restored, _ := lib.Get("org_default")
	if _, ok := restored.Rules["payment.send"]; ok {
		t.Error("expected payment.send override to be gone after rollback")
	}
}

func TestRollback_UnknownPatchIDRejected(t *testing.T) {
	admin := AdminConfig{GlobalAdmins: []string{"usr_root"}}
	svc, _ := newTestPatchService(t, admin)
	_, err := svc.Rollback("org_default", "usr_root", "pat_does_not_exist", "")
	if CodeOf(err) != errHistoryMissing {
		t.Fatalf("error = %v, want code %s", err, errHistoryMissing)
	}
}

func TestSimulate_DoesNotMutateLibrary(t *testing.T) {
	admin := AdminConfig{GlobalAdmins: []string{"usr_root"}}
	svc, lib := newTestPatchService(t, admin)
	before, _ := lib.Get("org_default")

	result, err := svc.Simulate("org_default", before.Hash, map[string]*PolicyRule{
		"payment.send": ruleP(DecisionDeny, 0),
	}, PolicyContext{OrgProfile: "org_default"}, nil)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if result.AfterHash == result.BeforeHash {
		t.Error("expected simulated after_hash to differ from before_hash")
	}

	unchanged, _ := lib.Get("org_default")
	if unchanged.Hash != before.Hash {
		t.Error("Simulate must never mutate the library")
	}

	found := false
	for _, d := range result.Diffs {
		if d.Capability == "payment.send" {
			found = true
			if !d.Changed || d.After.Decision != DecisionDeny {
				t.Errorf("expected payment.send diff to show new deny decision, got %+v", d)
			}
		}
	}
	if !found {
		t.Error("expected a diff entry for payment.send")
	}
}

func TestExportHistory_SignatureVerifies(t *testing.T) {
	admin := AdminConfig{GlobalAdmins: []string{"usr_root"}}
	lib := NewLibrary()
	lib.Put(NewProfile("org_default", nil))
	engine := NewEngine(nil)
	pub, priv, _ := ed25519.GenerateKey(nil)
	svc := NewPatchService(lib, engine, admin, audit.NewMemorySink(), priv, nil)

	current, _ := lib.Get("org_default")
	if _, err := svc.Patch("org_default", "usr_root", current.Hash, map[string]*PolicyRule{
		"message.send": ruleP(DecisionAllow, 0),
	}, "seed"); err != nil {
		t.Fatalf("Patch: %v", err)
	}

	pkg, err := svc.ExportHistory("org_default")
	if err != nil {
		t.Fatalf("ExportHistory: %v", err)
	}
	ok, err := VerifyHistoryExport(pkg, pub)
	if err != nil {
		t.Fatalf("VerifyHistoryExport: %v", err)
	}
	if !ok {
		t.Error("expected signature to verify")
	}

	pkg.Entries[0].Reason = "tampered"
	ok, _ = VerifyHistoryExport(pkg, pub)
	if ok {
		t.Error("expected signature to fail after tampering with entries")
	}
}

func TestExportHistory_NoSigningKeyConfigured(t *testing.T) {
	lib := NewLibrary()
	lib.Put(NewProfile("org_default", nil))
	svc := NewPatchService(lib, NewEngine(nil), AdminConfig{}, audit.NewMemorySink(), nil, nil)
	_, err := svc.ExportHistory("org_default")
	if err == nil {
		t.Error("expected error when no signing key is configured")
	}
}
