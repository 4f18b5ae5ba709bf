// Package blueprint implements the Agent Blueprint Planner: the Preview
// Builder, Lint Reporter, and Remediation Planner that together fold an
// agent kit, a pool of connector manifests, and a policy projection into
// a readiness preview, a scored lint report, and a counterfactual
// remediation plan.
package blueprint

import (
	"time"

	"github.com/flockmesh/flockmesh/internal/kit"
	"github.com/flockmesh/flockmesh/internal/policy"
)

// ConnectorStatus is a connector's readiness rung within a blueprint.
// Severity order (worst first): manifest_missing > no_scope_match >
// partial > ready.
type ConnectorStatus string

const (
	StatusManifestMissing ConnectorStatus = "manifest_missing"
	StatusNoScopeMatch    ConnectorStatus = "no_scope_match"
	StatusPartial         ConnectorStatus = "partial"
	StatusReady           ConnectorStatus = "ready"
)

func (s ConnectorStatus) severity() int {
	switch s {
	case StatusManifestMissing:
		return 3
	case StatusNoScopeMatch:
		return 2
	case StatusPartial:
		return 1
	default:
		return 0
	}
}

// TrustLevel is the manifest-asserted trust tier of a connector.
type TrustLevel string

const (
	TrustStandard    TrustLevel = "standard"
	TrustSandbox     TrustLevel = "sandbox"
	TrustHighControl TrustLevel = "high_control"
	TrustUnknown     TrustLevel = "unknown"
)

// ConnectorManifest is the externally supplied description of one
// available connector: what it actually claims to cover, independent of
// what a kit hoped it would cover.
type ConnectorManifest struct {
	ConnectorID  string     `json:"connector_id"`
	Category     string     `json:"category"`
	TrustLevel   TrustLevel `json:"trust_level"`
	Capabilities []string   `json:"capabilities"`

	// WorkspaceID is set only when the manifest itself is workspace-scoped
	// (some connector pools are workspace-private); empty means global.
	WorkspaceID string `json:"workspace_id,omitempty"`
}

// ConnectorPlanItem is one selected connector's resolved readiness.
type ConnectorPlanItem struct {
	ConnectorID                string          `json:"connector_id"`
	Status                     ConnectorStatus `json:"status"`
	Scopes                     []string        `json:"scopes"`
	MissingRequiredCapabilities []string       `json:"missing_required_capabilities,omitempty"`
}

// CapabilityCoverage summarizes how much of a kit's capability_goals are
// actually covered by the resolved connector plan.
type CapabilityCoverage struct {
	CoveredCapabilities []string `json:"covered_capabilities"`
	MissingCapabilities []string `json:"missing_capabilities"`
	GapTotal            int      `json:"gap_total"`
}

// PolicyProjectionItem is one covered capability's synthetic evaluation.
type PolicyProjectionItem struct {
	Capability string                `json:"capability"`
	Intent     policy.ActionIntent   `json:"intent"`
	Decision   policy.PolicyDecision `json:"decision"`
}

// PolicyProjectionSummary tallies projection items by decision.
type PolicyProjectionSummary struct {
	Total    int `json:"total"`
	Allow    int `json:"allow"`
	Escalate int `json:"escalate"`
	Deny     int `json:"deny"`
}

// PolicyProjection is the full set of synthetic per-capability decisions
// a blueprint implies, plus their tally.
type PolicyProjection struct {
	Items   []PolicyProjectionItem  `json:"items"`
	Summary PolicyProjectionSummary `json:"summary"`
}

// ApprovalForecast rolls the policy projection up into what a human
// approver should expect to see once the blueprint goes live.
type ApprovalForecast struct {
	TotalActions         int `json:"total_actions"`
	EscalatedActions      int `json:"escalated_actions"`
	DeniedActions         int `json:"denied_actions"`
	MaxRequiredApprovals  int `json:"max_required_approvals"`
}

// PlannerMetrics records wall-clock cost of building a preview. Tests
// inject fixed Now/Since functions so two builds over identical
// inputs are byte-identical apart from these two fields.
type PlannerMetrics struct {
	GeneratedAt time.Time `json:"generated_at"`
	ElapsedMs   int64     `json:"elapsed_ms"`
}

// WarningSeverity distinguishes a fatal-adjacent critical warning from an
// ordinary one; only a critical warning fails the lint warning_budget
// gate outright.
type WarningSeverity string

const (
	SeverityCritical WarningSeverity = "critical"
	SeverityWarning  WarningSeverity = "warning"
)

// Warning is one non-fatal planner finding.
type Warning struct {
	Code        string          `json:"code"`
	Severity    WarningSeverity `json:"severity"`
	Detail      string          `json:"detail"`
	ConnectorID string          `json:"connector_id,omitempty"`
	Capability  string          `json:"capability,omitempty"`
}

// AgentDraft is the realized (as opposed to templated) identity of the
// agent a blueprint describes.
type AgentDraft struct {
	Name   string   `json:"name"`
	Role   string   `json:"role"`
	Owners []string `json:"owners"`
}

// PreviewInput is everything the Preview Builder needs to project a
// blueprint. PolicyLibrary/KitLibrary are passed as immutable snapshots
// so hypothetical re-previews (used by the Remediation Planner) never
// mutate the real library.
type PreviewInput struct {
	WorkspaceID          string
	KitID                string
	Owners               []string
	AgentName            string
	SelectedConnectorIDs []string
	Manifests            map[string]ConnectorManifest
	PolicyContext        policy.PolicyContext
	PolicyLibrary        map[string]policy.PolicyProfile
	KitLibrary           map[string]kit.AgentKit
}

// BlueprintPreview is the full output of one Preview Builder run.
type BlueprintPreview struct {
	WorkspaceID        string              `json:"workspace_id"`
	Kit                kit.AgentKit        `json:"kit"`
	AgentDraft         AgentDraft          `json:"agent_draft"`
	ConnectorPlan      []ConnectorPlanItem `json:"connector_plan"`
	CapabilityCoverage CapabilityCoverage  `json:"capability_coverage"`
	PolicyProjection   PolicyProjection    `json:"policy_projection"`
	PlannerMetrics     PlannerMetrics      `json:"planner_metrics"`
	ApprovalForecast   ApprovalForecast    `json:"approval_forecast"`
	Rollout            []kit.RolloutPhase  `json:"rollout"`
	Warnings           []Warning           `json:"warnings"`
}
