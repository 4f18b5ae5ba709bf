package blueprint

// GateStatus is one lint gate's verdict.
type GateStatus string

const (
	GatePass GateStatus = "pass"
	GateWarn GateStatus = "warn"
	GateFail GateStatus = "fail"
)

func worseGateStatus(a, b GateStatus) GateStatus {
	rank := func(s GateStatus) int {
		switch s {
		case GateFail:
			return 2
		case GateWarn:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// GateResult is one lint gate's outcome.
type GateResult struct {
	Gate        string     `json:"gate"`
	Status      GateStatus `json:"status"`
	ScoreImpact int        `json:"score_impact"`
	Detail      string     `json:"detail"`
}

// LintReport is the scored readiness report over one BlueprintPreview.
type LintReport struct {
	Status  GateStatus   `json:"status"`
	Score   int          `json:"score"`
	Gates   []GateResult `json:"gates"`
}

// Lint scores a preview across the four fixed gates (§4.6) and clamps the
// aggregate score to [0, 100].
func Lint(preview BlueprintPreview) LintReport {
	gates := []GateResult{
		connectorManifestIntegrityGate(preview),
		capabilityCoverageGate(preview),
		policyDecisionSafetyGate(preview),
		warningBudgetGate(preview),
	}

	total := 100
	overall := GatePass
	for _, g := range gates {
		total += g.ScoreImpact
		overall = worseGateStatus(overall, g.Status)
	}
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}

	return LintReport{Status: overall, Score: total, Gates: gates}
}

func connectorManifestIntegrityGate(preview BlueprintPreview) GateResult {
	for _, item := range preview.ConnectorPlan {
		if item.Status == StatusManifestMissing {
			return GateResult{
				Gate:        "connector_manifest_integrity",
				Status:      GateFail,
				ScoreImpact: -30,
				Detail:      "one or more selected connectors have no supplied manifest",
			}
		}
	}
	return GateResult{Gate: "connector_manifest_integrity", Status: GatePass, Detail: "every selected connector has a manifest"}
}

func capabilityCoverageGate(preview BlueprintPreview) GateResult {
	gap := preview.CapabilityCoverage.GapTotal
	switch {
	case gap == 0:
		return GateResult{Gate: "capability_coverage", Status: GatePass, Detail: "all capability goals covered"}
	case gap <= 2:
		return GateResult{Gate: "capability_coverage", Status: GateWarn, ScoreImpact: -8, Detail: "1-2 capability goals uncovered"}
	default:
		return GateResult{Gate: "capability_coverage", Status: GateFail, ScoreImpact: -18, Detail: "3 or more capability goals uncovered"}
	}
}

func policyDecisionSafetyGate(preview BlueprintPreview) GateResult {
	if preview.PolicyProjection.Summary.Deny > 0 {
		return GateResult{Gate: "policy_decision_safety", Status: GateFail, ScoreImpact: -25, Detail: "one or more projected actions are denied"}
	}
	if preview.PolicyProjection.Summary.Escalate > 0 {
		return GateResult{Gate: "policy_decision_safety", Status: GateWarn, ScoreImpact: -6, Detail: "one or more projected actions require escalation"}
	}
	return GateResult{Gate: "policy_decision_safety", Status: GatePass, Detail: "every projected action is allowed"}
}

func warningBudgetGate(preview BlueprintPreview) GateResult {
	var criticalCount, totalCount int
	for _, w := range preview.Warnings {
		totalCount++
		if w.Severity == SeverityCritical {
			criticalCount++
		}
	}
	if criticalCount > 0 {
		return GateResult{Gate: "warning_budget", Status: GateFail, ScoreImpact: -20, Detail: "one or more critical warnings present"}
	}
	if totalCount > 3 {
		return GateResult{Gate: "warning_budget", Status: GateWarn, ScoreImpact: -10, Detail: "more than 3 warnings present"}
	}
	return GateResult{Gate: "warning_budget", Status: GatePass, Detail: "warnings within budget"}
}
