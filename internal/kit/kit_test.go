package kit

import "testing"

func TestDefaultKits_AreValid(t *testing.T) {
	for _, k := range DefaultKits() {
		if err := k.Validate(); err != nil {
			t.Errorf("default kit %s failed validation: %v", k.KitID, err)
		}
	}
}

func TestAgentKit_Candidate(t *testing.T) {
	k := officeOpsCore()
	c, ok := k.Candidate("con_feishu_official")
	if !ok {
		t.Fatal("expected con_feishu_official to be a candidate")
	}
	if c.RiskProfile != RiskStandard {
		t.Errorf("risk_profile = %v, want standard", c.RiskProfile)
	}

	if _, ok := k.Candidate("con_does_not_exist"); ok {
		t.Error("expected missing candidate to return false")
	}
}

func TestAgentKit_ValidateRejectsBadKitID(t *testing.T) {
	k := officeOpsCore()
	k.KitID = "not-a-kit-id"
	if err := k.Validate(); err == nil {
		t.Error("expected validation error for malformed kit_id")
	}
}

func TestAgentKit_ValidateRejectsEmptyCapabilityGoals(t *testing.T) {
	k := officeOpsCore()
	k.CapabilityGoals = nil
	if err := k.Validate(); err == nil {
		t.Error("expected validation error for empty capability_goals")
	}
}

func TestAgentKit_ValidateRejectsBadConnectorID(t *testing.T) {
	k := officeOpsCore()
	k.ConnectorCandidates[0].ConnectorID = "bad id"
	if err := k.Validate(); err == nil {
		t.Error("expected validation error for malformed connector_id")
	}
}

func TestAgentKit_ValidateRejectsBadRiskProfile(t *testing.T) {
	k := officeOpsCore()
	k.ConnectorCandidates[0].RiskProfile = "extreme"
	if err := k.Validate(); err == nil {
		t.Error("expected validation error for unknown risk_profile")
	}
}
