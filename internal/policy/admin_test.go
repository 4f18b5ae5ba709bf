package policy

import "testing"

func TestCanActorManage_GlobalAdmin(t *testing.T) {
	cfg := AdminConfig{GlobalAdmins: []string{"usr_root"}}
	d := CanActorManage(cfg, "usr_root", "org_default")
	if !d.Allowed || d.Scope != ScopeGlobal {
		t.Fatalf("got %+v, want allowed global", d)
	}
}

func TestCanActorManage_ProfileAdmin(t *testing.T) {
	cfg := AdminConfig{ProfileAdmins: map[string][]string{"org_default": {"usr_alice"}}}
	d := CanActorManage(cfg, "usr_alice", "org_default")
	if !d.Allowed || d.Scope != ScopeProfile {
		t.Fatalf("got %+v, want allowed profile", d)
	}
}

func TestCanActorManage_ProfileAdminDoesNotGrantOtherProfiles(t *testing.T) {
	cfg := AdminConfig{ProfileAdmins: map[string][]string{"org_default": {"usr_alice"}}}
	d := CanActorManage(cfg, "usr_alice", "ws_other")
	if d.Allowed {
		t.Fatal("profile-scoped admin must not manage an unrelated profile")
	}
}

func TestCanActorManage_Denied(t *testing.T) {
	cfg := AdminConfig{}
	d := CanActorManage(cfg, "usr_bob", "org_default")
	if d.Allowed || d.ReasonCode != "policy.admin.not_authorized" {
		t.Fatalf("got %+v, want denied not_authorized", d)
	}
}

func TestCanActorManage_InvalidActorID(t *testing.T) {
	cfg := AdminConfig{GlobalAdmins: []string{"not-valid"}}
	d := CanActorManage(cfg, "not-valid", "org_default")
	if d.Allowed || d.ReasonCode != "policy.admin.invalid_actor" {
		t.Fatalf("got %+v, want invalid_actor", d)
	}
}

func TestCanActorManage_InvalidProfileName(t *testing.T) {
	cfg := AdminConfig{GlobalAdmins: []string{"usr_root"}}
	d := CanActorManage(cfg, "usr_root", "BadName")
	if d.Allowed || d.ReasonCode != "policy.admin.invalid_profile" {
		t.Fatalf("got %+v, want invalid_profile", d)
	}
}

func TestAdminConfig_MergeUnion(t *testing.T) {
	a := AdminConfig{GlobalAdmins: []string{"usr_a"}, ProfileAdmins: map[string][]string{"p1": {"usr_x"}}}
	b := AdminConfig{GlobalAdmins: []string{"usr_b"}, ProfileAdmins: map[string][]string{"p1": {"usr_y"}, "p2": {"usr_z"}}}
	merged := a.Merge(b)

	if len(merged.GlobalAdmins) != 2 {
		t.Errorf("expected 2 global admins, got %d", len(merged.GlobalAdmins))
	}
	if len(merged.ProfileAdmins["p1"]) != 2 {
		t.Errorf("expected 2 admins for p1, got %d", len(merged.ProfileAdmins["p1"]))
	}
	if len(merged.ProfileAdmins["p2"]) != 1 {
		t.Errorf("expected 1 admin for p2, got %d", len(merged.ProfileAdmins["p2"]))
	}
}
