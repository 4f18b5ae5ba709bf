package blueprint

import (
	"sort"

	"github.com/flockmesh/flockmesh/internal/capability"
	"github.com/flockmesh/flockmesh/internal/policy"
)

// ConnectorActionType distinguishes a remove from an add recommendation.
type ConnectorActionType string

const (
	ConnectorActionRemove ConnectorActionType = "remove"
	ConnectorActionAdd    ConnectorActionType = "add"
)

// ConnectorAction is one recommended change to the selected connector set.
type ConnectorAction struct {
	Type        ConnectorActionType `json:"type"`
	ConnectorID string              `json:"connector_id"`
	Reason      string              `json:"reason"`
}

// PolicyCandidateType distinguishes an actionable patch from an
// informational review prompt.
type PolicyCandidateType string

const (
	PolicyCandidatePatch            PolicyCandidateType = "policy_profile_patch"
	PolicyCandidateReview           PolicyCandidateType = "policy_profile_review"
	PolicyCandidateApprovalCapacity PolicyCandidateType = "approval_capacity"
)

// Applicability says whether a candidate can be applied directly or only
// informs a human decision.
type Applicability string

const (
	ApplicabilityManual        Applicability = "manual"
	ApplicabilityInformational Applicability = "informational"
	ApplicabilityDirect        Applicability = "direct"
)

// EstimatedEffect is the lint-score delta a policy_profile_patch candidate
// is projected to produce, computed by re-previewing and re-linting under
// a hypothetical patched library.
type EstimatedEffect struct {
	BeforeStatus GateStatus `json:"before_status"`
	AfterStatus  GateStatus `json:"after_status"`
	BeforeScore  int        `json:"before_score"`
	AfterScore   int        `json:"after_score"`
}

// PolicyCandidate is one recommended policy change.
type PolicyCandidate struct {
	Type            PolicyCandidateType    `json:"type"`
	EffectiveSource policy.Source          `json:"effective_source"`
	TargetProfile   string                 `json:"target_profile,omitempty"`
	Rules           map[string]policy.PolicyRule `json:"rules,omitempty"`
	Applicability   Applicability          `json:"applicability"`
	EstimatedEffect *EstimatedEffect       `json:"estimated_effect,omitempty"`
}

// RunOverrideCandidate is one profile the planner found that, if adopted
// as run_override, strictly improves the lint outcome.
type RunOverrideCandidate struct {
	ProfileName   string        `json:"profile_name"`
	StatusDelta   int           `json:"status_delta"`
	ScoreDelta    int           `json:"score_delta"`
	Applicability Applicability `json:"applicability"`
}

// RemediationPlan is the full counterfactual remediation output (§4.7).
type RemediationPlan struct {
	ConnectorActions       []ConnectorAction       `json:"connector_actions"`
	PolicyCandidates       []PolicyCandidate       `json:"policy_candidates"`
	RunOverrideCandidates  []RunOverrideCandidate  `json:"run_override_candidates"`
	UnresolvedCapabilities []string                `json:"unresolved_capabilities"`

	AutoFixRequest *PreviewInput     `json:"-"`
	AutoFixPreview *BlueprintPreview `json:"auto_fix_preview,omitempty"`
	AutoFixLint    *LintReport       `json:"auto_fix_lint,omitempty"`
}

var categoryWeight = map[string]int{
	"office_system":  30,
	"office_channel": 20,
	"agent_protocol": 10,
}

var trustWeight = map[TrustLevel]int{
	TrustStandard:    10,
	TrustSandbox:     6,
	TrustHighControl: 2,
}

// Remediate runs the full Remediation Planner procedure (§4.7) over an
// already-built preview and lint report.
func (b *Builder) Remediate(in PreviewInput, preview BlueprintPreview, lint LintReport) (RemediationPlan, error) {
	plan := RemediationPlan{}

	selected := map[string]struct{}{}
	for _, item := range preview.ConnectorPlan {
		if item.Status == StatusManifestMissing || item.Status == StatusNoScopeMatch {
			plan.ConnectorActions = append(plan.ConnectorActions, ConnectorAction{
				Type:        ConnectorActionRemove,
				ConnectorID: item.ConnectorID,
				Reason:      "connector status is " + string(item.Status),
			})
		} else {
			selected[item.ConnectorID] = struct{}{}
		}
	}

	addedIDs, unresolved := b.planConnectorAdds(preview.CapabilityCoverage.MissingCapabilities, selected, in.Manifests)
	for _, id := range addedIDs {
		plan.ConnectorActions = append(plan.ConnectorActions, ConnectorAction{
			Type:        ConnectorActionAdd,
			ConnectorID: id,
			Reason:      "covers one or more missing capability goals",
		})
	}
	plan.UnresolvedCapabilities = unresolved

	policyCandidates, err := b.planPolicyCandidates(in, preview)
	if err != nil {
		return RemediationPlan{}, err
	}
	plan.PolicyCandidates = policyCandidates

	runOverrides, err := b.planRunOverrides(in, preview, lint)
	if err != nil {
		return RemediationPlan{}, err
	}
	plan.RunOverrideCandidates = runOverrides

	autoFixReq := b.assembleAutoFixRequest(in, selected, addedIDs, runOverrides)
	plan.AutoFixRequest = &autoFixReq

	autoFixPreview, err := b.Build(autoFixReq)
	if err != nil {
		return RemediationPlan{}, err
	}
	autoFixLint := Lint(autoFixPreview)
	plan.AutoFixPreview = &autoFixPreview
	plan.AutoFixLint = &autoFixLint

	return plan, nil
}

// planConnectorAdds performs the greedy weighted set-cover search over
// the pool of not-yet-selected manifests.
func (b *Builder) planConnectorAdds(missing []string, selected map[string]struct{}, manifests map[string]ConnectorManifest) ([]string, []string) {
	remaining := map[string]struct{}{}
	for _, m := range missing {
		remaining[m] = struct{}{}
	}

	var pool []ConnectorManifest
	for id, m := range manifests {
		if _, ok := selected[id]; ok {
			continue
		}
		pool = append(pool, m)
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].ConnectorID < pool[j].ConnectorID })

	var added []string
	for len(remaining) > 0 {
		bestIdx := -1
		bestScore := -1
		var bestCovered []string
		for i, m := range pool {
			var covered []string
			for _, cap := range m.Capabilities {
				if _, ok := remaining[cap]; ok {
					covered = append(covered, cap)
				}
			}
			if len(covered) == 0 {
				continue
			}
			score := 100*len(covered) + categoryWeight[m.Category] + trustWeight[m.TrustLevel]
			if score > bestScore || (score == bestScore && bestIdx >= 0 && m.ConnectorID < pool[bestIdx].ConnectorID) {
				bestScore = score
				bestIdx = i
				bestCovered = covered
			}
		}
		if bestIdx < 0 {
			break
		}
		added = append(added, pool[bestIdx].ConnectorID)
		for _, cap := range bestCovered {
			delete(remaining, cap)
		}
		pool = append(pool[:bestIdx], pool[bestIdx+1:]...)
	}

	var unresolved []string
	for cap := range remaining {
		unresolved = append(unresolved, cap)
	}
	sort.Strings(unresolved)
	sort.Strings(added)
	return added, unresolved
}

// planPolicyCandidates groups denied projection items by effective
// source and derives a patch-rule candidate per group (§4.7).
func (b *Builder) planPolicyCandidates(in PreviewInput, preview BlueprintPreview) ([]PolicyCandidate, error) {
	type group struct {
		source       policy.Source
		capabilities []string
	}
	groups := map[policy.Source]*group{}
	var order []policy.Source
	for _, item := range preview.PolicyProjection.Items {
		if item.Decision.Decision != policy.DecisionDeny {
			continue
		}
		src := item.Decision.Trace.EffectiveSource
		g, ok := groups[src]
		if !ok {
			g = &group{source: src}
			groups[src] = g
			order = append(order, src)
		}
		g.capabilities = append(g.capabilities, item.Capability)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	var candidates []PolicyCandidate
	for _, src := range order {
		g := groups[src]
		targetProfile := targetProfileForSource(in.PolicyContext, src)

		rules := make(map[string]policy.PolicyRule, len(g.capabilities))
		for _, cap := range g.capabilities {
			_, risk := capability.Classify(cap)
			rules[cap] = derivePatchRule(risk)
		}

		candidate := PolicyCandidate{EffectiveSource: src, TargetProfile: targetProfile, Rules: rules}

		if targetProfile != "" {
			if _, ok := in.PolicyLibrary[targetProfile]; ok {
				candidate.Type = PolicyCandidatePatch
				candidate.Applicability = ApplicabilityManual
				effect, err := b.estimatePolicyPatchEffect(in, preview, targetProfile, rules)
				if err != nil {
					return nil, err
				}
				candidate.EstimatedEffect = &effect
				candidates = append(candidates, candidate)
				continue
			}
		}
		candidate.Type = PolicyCandidateReview
		candidate.Applicability = ApplicabilityInformational
		candidates = append(candidates, candidate)
	}

	if preview.PolicyProjection.Summary.Escalate > 0 {
		candidates = append(candidates, PolicyCandidate{
			Type:          PolicyCandidateApprovalCapacity,
			Applicability: ApplicabilityInformational,
		})
	}

	return candidates, nil
}

func targetProfileForSource(pctx policy.PolicyContext, src policy.Source) string {
	switch src {
	case policy.SourceOrg:
		return pctx.OrgProfile
	case policy.SourceWorkspace:
		return pctx.WorkspaceProfile
	case policy.SourceAgent:
		return pctx.AgentProfile
	case policy.SourceRunOverride:
		return pctx.RunOverrideProfile
	default:
		return ""
	}
}

func derivePatchRule(risk capability.RiskHint) policy.PolicyRule {
	switch risk {
	case capability.RiskR0, capability.RiskR1:
		return policy.PolicyRule{Decision: policy.DecisionAllow, RequiredApprovals: 0}
	case capability.RiskR3:
		return policy.PolicyRule{Decision: policy.DecisionEscalate, RequiredApprovals: 2}
	default:
		return policy.PolicyRule{Decision: policy.DecisionEscalate, RequiredApprovals: 1}
	}
}

// estimatePolicyPatchEffect re-previews and re-lints under a hypothetical
// library with targetProfile's rules overlaid by rules, without mutating
// the real library.
func (b *Builder) estimatePolicyPatchEffect(in PreviewInput, preview BlueprintPreview, targetProfile string, rules map[string]policy.PolicyRule) (EstimatedEffect, error) {
	before := Lint(preview)

	patched := cloneLibrary(in.PolicyLibrary)
	current := patched[targetProfile]
	nextRules := make(map[string]policy.PolicyRule, len(current.Rules)+len(rules))
	for k, v := range current.Rules {
		nextRules[k] = v
	}
	for k, v := range rules {
		nextRules[k] = v
	}
	patched[targetProfile] = policy.NewProfile(current.Name, nextRules)

	hypoIn := in
	hypoIn.PolicyLibrary = patched
	hypoPreview, err := b.Build(hypoIn)
	if err != nil {
		return EstimatedEffect{}, err
	}
	after := Lint(hypoPreview)

	return EstimatedEffect{
		BeforeStatus: before.Status,
		AfterStatus:  after.Status,
		BeforeScore:  before.Score,
		AfterScore:   after.Score,
	}, nil
}

// planRunOverrides searches every library profile name (other than the
// one already set as run_override) for one that, substituted in as
// run_override, strictly improves either the lint status or score.
func (b *Builder) planRunOverrides(in PreviewInput, preview BlueprintPreview, currentLint LintReport) ([]RunOverrideCandidate, error) {
	var names []string
	for name := range in.PolicyLibrary {
		if name == in.PolicyContext.RunOverrideProfile {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var best *RunOverrideCandidate
	for _, name := range names {
		hypoIn := in
		hypoCtx := in.PolicyContext
		hypoCtx.RunOverrideProfile = name
		hypoIn.PolicyContext = hypoCtx

		hypoPreview, err := b.Build(hypoIn)
		if err != nil {
			return nil, err
		}
		hypoLint := Lint(hypoPreview)

		statusDelta := gateStatusRank(currentLint.Status) - gateStatusRank(hypoLint.Status)
		scoreDelta := hypoLint.Score - currentLint.Score
		if statusDelta <= 0 && scoreDelta <= 0 {
			continue
		}
		candidate := RunOverrideCandidate{
			ProfileName:   name,
			StatusDelta:   statusDelta,
			ScoreDelta:    scoreDelta,
			Applicability: ApplicabilityDirect,
		}
		if best == nil || better(candidate, *best) {
			best = &candidate
		}
	}

	if best == nil {
		return nil, nil
	}
	return []RunOverrideCandidate{*best}, nil
}

func better(a, b RunOverrideCandidate) bool {
	if a.StatusDelta != b.StatusDelta {
		return a.StatusDelta > b.StatusDelta
	}
	return a.ScoreDelta > b.ScoreDelta
}

func gateStatusRank(s GateStatus) int {
	switch s {
	case GateFail:
		return 2
	case GateWarn:
		return 1
	default:
		return 0
	}
}

// assembleAutoFixRequest builds the request that would apply every
// connector action plus the best direct run-override candidate (§4.7's
// auto-fix assembly step).
func (b *Builder) assembleAutoFixRequest(in PreviewInput, selected map[string]struct{}, added []string, runOverrides []RunOverrideCandidate) PreviewInput {
	var after []string
	for id := range selected {
		after = append(after, id)
	}
	after = append(after, added...)
	sort.Strings(after)

	out := in
	out.SelectedConnectorIDs = after

	for _, c := range runOverrides {
		if c.Applicability == ApplicabilityDirect && (c.StatusDelta > 0 || c.ScoreDelta > 0) {
			out.PolicyContext.RunOverrideProfile = c.ProfileName
			break
		}
	}
	return out
}

func cloneLibrary(lib map[string]policy.PolicyProfile) map[string]policy.PolicyProfile {
	out := make(map[string]policy.PolicyProfile, len(lib))
	for k, v := range lib {
		out[k] = v
	}
	return out
}
