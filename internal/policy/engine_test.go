package policy

import (
	"sort"
	"testing"
)

func profiles(ps ...PolicyProfile) map[string]PolicyProfile {
	out := make(map[string]PolicyProfile, len(ps))
	for _, p := range ps {
		out[string(p.Name)] = p
	}
	return out
}

func TestEvaluate_SingleLayerMatch(t *testing.T) {
	e := NewEngine(nil)
	lib := profiles(NewProfile("org_default", map[string]PolicyRule{
		"message.send": {Decision: DecisionAllow},
	}))
	d := e.Evaluate(ActionIntent{Capability: "message.send"}, PolicyContext{OrgProfile: "org_default"}, lib)
	if d.Decision != DecisionAllow {
		t.Fatalf("decision = %v, want allow", d.Decision)
	}
	if d.Trace.EffectiveSource != SourceOrg {
		t.Errorf("effective_source = %v, want org", d.Trace.EffectiveSource)
	}
	if d.Trace.EffectiveProfile != "org_default" {
		t.Errorf("effective_profile = %q, want org_default", d.Trace.EffectiveProfile)
	}
}

func TestEvaluate_LessSevereHigherPrecedenceLayerDoesNotOverride(t *testing.T) {
	// org denies, workspace allows the same capability -- workspace has
	// higher precedence but deny is more severe, so deny must still win.
	e := NewEngine(nil)
	lib := profiles(
		NewProfile("org_default", map[string]PolicyRule{"payment.send": {Decision: DecisionDeny}}),
		NewProfile("ws_a", map[string]PolicyRule{"payment.send": {Decision: DecisionAllow}}),
	)
	d := e.Evaluate(ActionIntent{Capability: "payment.send"}, PolicyContext{OrgProfile: "org_default", WorkspaceProfile: "ws_a"}, lib)
	if d.Decision != DecisionDeny {
		t.Fatalf("decision = %v, want deny (severity composition must not let a less-severe higher-precedence layer win)", d.Decision)
	}
	if d.Trace.EffectiveSource != SourceOrg {
		t.Errorf("effective_source = %v, want org", d.Trace.EffectiveSource)
	}
}

func TestEvaluate_TieBreaksToHighestPrecedenceLayer(t *testing.T) {
	// org and agent both declare escalate (equally severe) for the same
	// capability -- the tie goes to the highest-precedence layer (agent),
	// not to the earliest layer in fixed order (org).
	e := NewEngine(nil)
	lib := profiles(
		NewProfile("org_default", map[string]PolicyRule{"message.send": {Decision: DecisionEscalate, RequiredApprovals: 1}}),
		NewProfile("agent_x", map[string]PolicyRule{"message.send": {Decision: DecisionEscalate, RequiredApprovals: 2}}),
	)
	d := e.Evaluate(ActionIntent{Capability: "message.send"}, PolicyContext{OrgProfile: "org_default", AgentProfile: "agent_x"}, lib)
	if d.Decision != DecisionEscalate {
		t.Fatalf("decision = %v, want escalate", d.Decision)
	}
	if d.Trace.EffectiveSource != SourceAgent {
		t.Errorf("effective_source = %v, want agent (highest-precedence layer wins ties)", d.Trace.EffectiveSource)
	}
	// required_approvals is still the max across ALL contributing escalate
	// layers regardless of which one "won" the tie.
	if d.RequiredApprovals != 2 {
		t.Errorf("required_approvals = %d, want 2 (max across contributing escalate layers)", d.RequiredApprovals)
	}
}

func TestEvaluate_RunOverrideWins(t *testing.T) {
	e := NewEngine(nil)
	lib := profiles(
		NewProfile("org_default", map[string]PolicyRule{"ticket.create": {Decision: DecisionEscalate, RequiredApprovals: 1}}),
		NewProfile("run_override_1", map[string]PolicyRule{"ticket.create": {Decision: DecisionDeny}}),
	)
	d := e.Evaluate(ActionIntent{Capability: "ticket.create"}, PolicyContext{OrgProfile: "org_default", RunOverrideProfile: "run_override_1"}, lib)
	if d.Decision != DecisionDeny {
		t.Fatalf("decision = %v, want deny from run_override", d.Decision)
	}
	if d.Trace.EffectiveSource != SourceRunOverride {
		t.Errorf("effective_source = %v, want run_override", d.Trace.EffectiveSource)
	}
}

func TestEvaluate_MissingProfileFailsClosed(t *testing.T) {
	e := NewEngine(nil)
	d := e.Evaluate(ActionIntent{Capability: "message.send"}, PolicyContext{OrgProfile: "does_not_exist"}, profiles())
	if d.Decision != DecisionDeny {
		t.Fatalf("decision = %v, want deny (fail closed on missing profile)", d.Decision)
	}
	if d.Trace.EffectiveSource != SourceUnknown {
		t.Errorf("effective_source = %v, want unknown", d.Trace.EffectiveSource)
	}
}

func TestEvaluate_SingleMissingLayerAmongPresentFailsClosed(t *testing.T) {
	// Scenario S3: org and agent both resolve fine, but workspace names a
	// profile that isn't in the library -- the whole evaluation must fail
	// closed even though two of the three named layers are fine.
	e := NewEngine(nil)
	lib := profiles(
		NewProfile("org_default", map[string]PolicyRule{"message.send": {Decision: DecisionAllow}}),
		NewProfile("agent_x", map[string]PolicyRule{"message.send": {Decision: DecisionAllow}}),
	)
	d := e.Evaluate(ActionIntent{Capability: "message.send"}, PolicyContext{
		OrgProfile:       "org_default",
		WorkspaceProfile: "missing_profile",
		AgentProfile:     "agent_x",
	}, lib)
	if d.Decision != DecisionDeny {
		t.Fatalf("decision = %v, want deny (fail closed on any single missing named layer)", d.Decision)
	}
	found := false
	for _, rc := range d.ReasonCodes {
		if rc == errProfileMissing {
			found = true
		}
	}
	if !found {
		t.Errorf("reason_codes = %v, want to contain %q", d.ReasonCodes, errProfileMissing)
	}
}

func TestEvaluate_EmptyCapabilityFailsClosed(t *testing.T) {
	e := NewEngine(nil)
	d := e.Evaluate(ActionIntent{}, PolicyContext{OrgProfile: "org_default"}, profiles(NewProfile("org_default", nil)))
	if d.Decision != DecisionDeny {
		t.Fatalf("decision = %v, want deny", d.Decision)
	}
}

func TestEvaluate_UnmatchedCapabilityDefaultsAllow(t *testing.T) {
	e := NewEngine(nil)
	lib := profiles(NewProfile("org_default", map[string]PolicyRule{"other.cap": {Decision: DecisionDeny}}))
	d := e.Evaluate(ActionIntent{Capability: "message.send"}, PolicyContext{OrgProfile: "org_default"}, lib)
	if d.Decision != DecisionAllow {
		t.Fatalf("decision = %v, want default allow for unmatched capability", d.Decision)
	}
	if len(d.ReasonCodes) != 1 || d.ReasonCodes[0] != "policy.default.allow" {
		t.Errorf("reason_codes = %v, want [policy.default.allow]", d.ReasonCodes)
	}
}

func TestEvaluate_RequiredApprovalsIsMaxAcrossContributingEscalateLayers(t *testing.T) {
	e := NewEngine(nil)
	lib := profiles(
		NewProfile("org_default", map[string]PolicyRule{"ticket.create": {Decision: DecisionEscalate, RequiredApprovals: 3}}),
		NewProfile("agent_x", map[string]PolicyRule{"ticket.create": {Decision: DecisionEscalate, RequiredApprovals: 1}}),
	)
	d := e.Evaluate(ActionIntent{Capability: "ticket.create"}, PolicyContext{OrgProfile: "org_default", AgentProfile: "agent_x"}, lib)
	if d.RequiredApprovals != 3 {
		t.Fatalf("required_approvals = %d, want 3 (max across all contributing escalate layers, not just the winning one)", d.RequiredApprovals)
	}
}

func TestEvaluate_ReasonCodesOnePerContributingLayer(t *testing.T) {
	e := NewEngine(nil)
	lib := profiles(
		NewProfile("org_default", map[string]PolicyRule{"message.send": {Decision: DecisionEscalate, RequiredApprovals: 1}}),
		NewProfile("ws_a", map[string]PolicyRule{"message.send": {Decision: DecisionEscalate, RequiredApprovals: 2}}),
	)
	d := e.Evaluate(ActionIntent{Capability: "message.send"}, PolicyContext{OrgProfile: "org_default", WorkspaceProfile: "ws_a"}, lib)
	want := []string{"policy.org.escalate", "policy.workspace.escalate"}
	got := append([]string(nil), d.ReasonCodes...)
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("reason_codes = %v, want %v", d.ReasonCodes, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("reason_codes = %v, want %v", d.ReasonCodes, want)
		}
	}
}

func TestEvaluate_AllowPathWithEmptyContextMatchesScenarioS1(t *testing.T) {
	// Scenario S1: capability=message.read, all four profiles empty --
	// no layer participates, so there is no opinion anywhere and the
	// engine defaults to allow.
	e := NewEngine(nil)
	d := e.Evaluate(ActionIntent{Capability: "message.read"}, PolicyContext{}, profiles())
	if d.Decision != DecisionAllow {
		t.Fatalf("decision = %v, want allow", d.Decision)
	}
	if d.RequiredApprovals != 0 {
		t.Errorf("required_approvals = %d, want 0", d.RequiredApprovals)
	}
	found := false
	for _, rc := range d.ReasonCodes {
		if rc == "policy.default.allow" {
			found = true
		}
	}
	if !found {
		t.Errorf("reason_codes = %v, want to contain policy.default.allow", d.ReasonCodes)
	}
}

func TestEvaluate_LayeredEscalateMatchesScenarioS2(t *testing.T) {
	e := NewEngine(nil)
	lib := profiles(
		NewProfile("org_default", map[string]PolicyRule{"message.send": {Decision: DecisionEscalate, RequiredApprovals: 1}}),
		NewProfile("ws_a", map[string]PolicyRule{"message.send": {Decision: DecisionEscalate, RequiredApprovals: 2}}),
	)
	d := e.Evaluate(ActionIntent{Capability: "message.send"}, PolicyContext{OrgProfile: "org_default", WorkspaceProfile: "ws_a"}, lib)
	if d.Decision != DecisionEscalate {
		t.Fatalf("decision = %v, want escalate", d.Decision)
	}
	if d.RequiredApprovals != 2 {
		t.Fatalf("required_approvals = %d, want 2", d.RequiredApprovals)
	}
	if d.Trace.EffectiveSource != SourceWorkspace {
		t.Fatalf("effective_source = %v, want workspace", d.Trace.EffectiveSource)
	}
}
