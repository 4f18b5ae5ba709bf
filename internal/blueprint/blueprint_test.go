package blueprint

import (
	"time"

	"github.com/flockmesh/flockmesh/internal/kit"
	"github.com/flockmesh/flockmesh/internal/policy"
)

// fixedBuilder returns a Builder whose clock never advances, so tests can
// compare full previews byte-for-byte across repeated builds.
func fixedBuilder() *Builder {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &Builder{
		Now:    func() time.Time { return fixed },
		Since:  func(time.Time) time.Duration { return 0 },
		Engine: policy.NewEngine(nil),
	}
}

func testKit() kit.AgentKit {
	return kit.AgentKit{
		KitID:                "kit_office_ops_core",
		Name:                 "Office Ops Core",
		Role:                 "office_operations",
		DefaultPolicyProfile: "org_default",
		CapabilityGoals:      []string{"message.read", "message.send", "calendar.read", "tool.list"},
		ConnectorCandidates: []kit.ConnectorCandidate{
			{ConnectorID: "con_feishu_official", RequiredCapabilities: []string{"message.read", "message.send"}, RiskProfile: kit.RiskStandard},
			{ConnectorID: "con_office_calendar", RequiredCapabilities: []string{"calendar.read"}, RiskProfile: kit.RiskStandard},
			{ConnectorID: "con_mcp_gateway", RequiredCapabilities: []string{"tool.list"}, OptionalCapabilities: []string{"tool.read"}, RiskProfile: kit.RiskRestricted},
		},
		Rollout: []kit.RolloutPhase{
			{PhaseID: "phase_pilot", Title: "Pilot", Focus: "limited rollout", ApprovalExpectation: kit.ApprovalNone},
		},
	}
}

func testKitLibrary() map[string]kit.AgentKit {
	k := testKit()
	return map[string]kit.AgentKit{k.KitID: k}
}

func readyManifests() map[string]ConnectorManifest {
	return map[string]ConnectorManifest{
		"con_feishu_official": {ConnectorID: "con_feishu_official", Category: "office_channel", TrustLevel: TrustStandard, Capabilities: []string{"message.read", "message.send"}},
		"con_office_calendar": {ConnectorID: "con_office_calendar", Category: "office_system", TrustLevel: TrustStandard, Capabilities: []string{"calendar.read"}},
		"con_mcp_gateway":     {ConnectorID: "con_mcp_gateway", Category: "agent_protocol", TrustLevel: TrustSandbox, Capabilities: []string{"tool.list", "tool.read"}},
	}
}

// allowAllLibrary allows every covered capability goal with no escalation.
func allowAllLibrary() map[string]policy.PolicyProfile {
	return map[string]policy.PolicyProfile{
		"org_default": policy.NewProfile("org_default", map[string]policy.PolicyRule{
			"message.read":  {Decision: policy.DecisionAllow},
			"message.send":  {Decision: policy.DecisionAllow},
			"calendar.read": {Decision: policy.DecisionAllow},
			"tool.list":     {Decision: policy.DecisionAllow},
		}),
	}
}

// escalateSendLibrary allows reads and escalates sends, per scenario S5.
func escalateSendLibrary() map[string]policy.PolicyProfile {
	return map[string]policy.PolicyProfile{
		"org_default": policy.NewProfile("org_default", map[string]policy.PolicyRule{
			"message.read":  {Decision: policy.DecisionAllow},
			"message.send":  {Decision: policy.DecisionEscalate, RequiredApprovals: 1},
			"calendar.read": {Decision: policy.DecisionAllow},
			"tool.list":     {Decision: policy.DecisionAllow},
		}),
	}
}

func basePreviewInput() PreviewInput {
	return PreviewInput{
		WorkspaceID:   "wsp_acme",
		KitID:         "kit_office_ops_core",
		Owners:        []string{"usr_alice"},
		AgentName:     "Ops Bot",
		Manifests:     readyManifests(),
		PolicyContext: policy.PolicyContext{OrgProfile: "org_default"},
		PolicyLibrary: allowAllLibrary(),
		KitLibrary:    testKitLibrary(),
	}
}
