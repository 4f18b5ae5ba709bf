package blueprint

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/flockmesh/flockmesh/internal/capability"
	"github.com/flockmesh/flockmesh/internal/ids"
	"github.com/flockmesh/flockmesh/internal/kit"
	"github.com/flockmesh/flockmesh/internal/policy"
)

// Builder builds BlueprintPreviews. Its clock is injectable so repeated
// builds over identical input are byte-identical apart from
// planner_metrics -- tests supply fixed Now/Since functions instead of
// calling time.Now inline, the same testable-seam-via-injected-dependency
// style the policy engine's teacher ancestor used for session counters.
type Builder struct {
	Now   func() time.Time
	Since func(start time.Time) time.Duration
	Engine *policy.Engine
}

// NewBuilder creates a Builder with real wall-clock functions.
func NewBuilder(engine *policy.Engine) *Builder {
	return &Builder{
		Now:    func() time.Time { return time.Now().UTC() },
		Since:  time.Since,
		Engine: engine,
	}
}

// WorkspaceMismatchError is the fatal admission error raised when a
// selected connector manifest asserts a workspace_id that disagrees with
// the preview request's own workspace_id (§4.5's mechanized workspace
// isolation check).
type WorkspaceMismatchError struct {
	RequestWorkspaceID  string
	ManifestWorkspaceID string
	ConnectorID         string
}

func (e *WorkspaceMismatchError) Error() string {
	return fmt.Sprintf("blueprint: connector %s manifest scoped to workspace %s, request is for %s",
		e.ConnectorID, e.ManifestWorkspaceID, e.RequestWorkspaceID)
}

func (e *WorkspaceMismatchError) Code() string { return "blueprint.workspace.mismatch" }

// Build runs the full Preview Builder procedure (§4.5) over in.
func (b *Builder) Build(in PreviewInput) (BlueprintPreview, error) {
	start := b.Now()

	if _, err := ids.NewWorkspaceID(in.WorkspaceID); err != nil {
		return BlueprintPreview{}, &ids.ValidationError{Kind: "workspace_id", Value: in.WorkspaceID}
	}
	k, ok := in.KitLibrary[in.KitID]
	if !ok {
		return BlueprintPreview{}, fmt.Errorf("blueprint: kit %q not found", in.KitID)
	}

	selected := in.SelectedConnectorIDs
	if len(selected) == 0 {
		for _, c := range k.ConnectorCandidates {
			selected = append(selected, c.ConnectorID)
		}
	}

	// Workspace isolation admission check: a selected manifest that names
	// a different workspace is rejected before any policy evaluation
	// runs, not merely warned about.
	for _, connID := range selected {
		m, ok := in.Manifests[connID]
		if ok && m.WorkspaceID != "" && m.WorkspaceID != in.WorkspaceID {
			return BlueprintPreview{}, &WorkspaceMismatchError{
				RequestWorkspaceID:  in.WorkspaceID,
				ManifestWorkspaceID: m.WorkspaceID,
				ConnectorID:         connID,
			}
		}
	}

	var warnings []Warning
	var plan []ConnectorPlanItem
	coveredSet := map[string]struct{}{}

	sortedSelected := append([]string(nil), selected...)
	sort.Strings(sortedSelected)

	for _, connID := range sortedSelected {
		item, itemWarnings, scopes := resolveConnector(k, connID, in.Manifests)
		plan = append(plan, item)
		warnings = append(warnings, itemWarnings...)
		for _, c := range scopes {
			coveredSet[c] = struct{}{}
		}
	}

	var covered []string
	for _, goal := range k.CapabilityGoals {
		if _, ok := coveredSet[goal]; ok {
			covered = append(covered, goal)
		}
	}
	var missing []string
	for _, goal := range k.CapabilityGoals {
		if _, ok := coveredSet[goal]; !ok {
			missing = append(missing, goal)
			warnings = append(warnings, Warning{
				Code:       "blueprint.goal.capability_uncovered",
				Severity:   SeverityWarning,
				Detail:     fmt.Sprintf("capability goal %s is not covered by any selected connector", goal),
				Capability: goal,
			})
		}
	}
	coverage := CapabilityCoverage{
		CoveredCapabilities: covered,
		MissingCapabilities: missing,
		GapTotal:            len(missing),
	}

	projection := b.projectPolicy(covered, in.PolicyContext, in.PolicyLibrary)

	forecast := ApprovalForecast{
		TotalActions:     projection.Summary.Total,
		EscalatedActions: projection.Summary.Escalate,
		DeniedActions:    projection.Summary.Deny,
	}
	for _, item := range projection.Items {
		if item.Decision.RequiredApprovals > forecast.MaxRequiredApprovals {
			forecast.MaxRequiredApprovals = item.Decision.RequiredApprovals
		}
	}

	preview := BlueprintPreview{
		WorkspaceID: in.WorkspaceID,
		Kit:         k,
		AgentDraft: AgentDraft{
			Name:   in.AgentName,
			Role:   k.Role,
			Owners: in.Owners,
		},
		ConnectorPlan:      plan,
		CapabilityCoverage: coverage,
		PolicyProjection:   projection,
		ApprovalForecast:   forecast,
		Rollout:            k.Rollout,
		Warnings:           warnings,
		PlannerMetrics: PlannerMetrics{
			GeneratedAt: start,
			ElapsedMs:   b.Since(start).Milliseconds(),
		},
	}
	return preview, nil
}

// resolveConnector computes one selected connector's plan item, warnings,
// and resolved capability scopes, per §4.5 step 2's status ladder.
func resolveConnector(k kit.AgentKit, connID string, manifests map[string]ConnectorManifest) (ConnectorPlanItem, []Warning, []string) {
	manifest, hasManifest := manifests[connID]
	if !hasManifest {
		return ConnectorPlanItem{ConnectorID: connID, Status: StatusManifestMissing}, []Warning{{
			Code:        "blueprint.connector.manifest_missing",
			Severity:    SeverityCritical,
			Detail:      fmt.Sprintf("no manifest supplied for connector %s", connID),
			ConnectorID: connID,
		}}, nil
	}

	candidate, hasCandidate := k.Candidate(connID)
	var scopes []string
	if hasCandidate {
		union := unionStrings(candidate.RequiredCapabilities, candidate.OptionalCapabilities)
		scopes = intersectStrings(manifest.Capabilities, union)
	} else {
		scopes = intersectStrings(manifest.Capabilities, k.CapabilityGoals)
	}

	if len(scopes) == 0 {
		return ConnectorPlanItem{ConnectorID: connID, Status: StatusNoScopeMatch}, []Warning{{
			Code:        "blueprint.connector.no_scope_match",
			Severity:    SeverityWarning,
			Detail:      fmt.Sprintf("connector %s manifest shares no capabilities with its candidate scope", connID),
			ConnectorID: connID,
		}}, nil
	}

	var missingRequired []string
	if hasCandidate {
		missingRequired = differenceStrings(candidate.RequiredCapabilities, scopes)
	}
	if len(missingRequired) > 0 {
		var warnings []Warning
		for _, cap := range missingRequired {
			warnings = append(warnings, Warning{
				Code:        "blueprint.connector.required_capability_missing",
				Severity:    SeverityWarning,
				Detail:      fmt.Sprintf("connector %s manifest does not cover required capability %s", connID, cap),
				ConnectorID: connID,
				Capability:  cap,
			})
		}
		return ConnectorPlanItem{
			ConnectorID:                 connID,
			Status:                      StatusPartial,
			Scopes:                      scopes,
			MissingRequiredCapabilities: missingRequired,
		}, warnings, scopes
	}

	return ConnectorPlanItem{ConnectorID: connID, Status: StatusReady, Scopes: scopes}, nil, scopes
}

// projectPolicy constructs a synthetic ActionIntent per covered
// capability and evaluates each through the Policy Engine (§4.5 step 4).
func (b *Builder) projectPolicy(covered []string, pctx policy.PolicyContext, library map[string]policy.PolicyProfile) PolicyProjection {
	sorted := append([]string(nil), covered...)
	sort.Strings(sorted)

	var items []PolicyProjectionItem
	var summary PolicyProjectionSummary
	for _, cap := range sorted {
		sideEffect, risk := capability.Classify(cap)
		sanitized := strings.ReplaceAll(cap, ".", "_")

		var idemKey *string
		if sideEffect == capability.SideEffectMutation {
			key := "plan_" + sanitized
			idemKey = &key
		}

		intent := policy.ActionIntent{
			ID:             "act_plan_" + sanitized,
			RunID:          "run_plan_preview",
			StepID:         "plan." + cap,
			Capability:     cap,
			SideEffect:     string(sideEffect),
			RiskHint:       string(risk),
			IdempotencyKey: idemKey,
		}

		decision := b.Engine.Evaluate(intent, pctx, library)
		items = append(items, PolicyProjectionItem{Capability: cap, Intent: intent, Decision: decision})

		summary.Total++
		switch decision.Decision {
		case policy.DecisionAllow:
			summary.Allow++
		case policy.DecisionEscalate:
			summary.Escalate++
		case policy.DecisionDeny:
			summary.Deny++
		}
	}

	return PolicyProjection{Items: items, Summary: summary}
}

func unionStrings(a, b []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func intersectStrings(a, b []string) []string {
	set := map[string]struct{}{}
	for _, s := range b {
		set[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := set[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

func differenceStrings(a, b []string) []string {
	set := map[string]struct{}{}
	for _, s := range b {
		set[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := set[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
