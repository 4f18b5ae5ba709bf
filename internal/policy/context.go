package policy

// Source names a layer in the precedence-ordered policy composition, plus
// the "unknown" sentinel used when evaluation could not resolve to any
// layer (fail-closed path).
type Source string

const (
	SourceOrg          Source = "org"
	SourceWorkspace    Source = "workspace"
	SourceAgent        Source = "agent"
	SourceRunOverride  Source = "run_override"
	SourceUnknown      Source = "unknown"
)

// PolicyContext names, for a single evaluation, which profile applies at
// each precedence layer. A layer with an empty name does not participate.
// Precedence (lowest to highest): org, workspace, agent, run_override.
type PolicyContext struct {
	OrgProfile         string `json:"org_profile"`
	WorkspaceProfile   string `json:"workspace_profile"`
	AgentProfile       string `json:"agent_profile"`
	RunOverrideProfile string `json:"run_override_profile,omitempty"`
}

// layers returns the context's participating (source, profile name) pairs
// in increasing precedence order.
func (c PolicyContext) layers() []struct {
	source  Source
	profile string
} {
	var out []struct {
		source  Source
		profile string
	}
	add := func(s Source, p string) {
		if p != "" {
			out = append(out, struct {
				source  Source
				profile string
			}{s, p})
		}
	}
	add(SourceOrg, c.OrgProfile)
	add(SourceWorkspace, c.WorkspaceProfile)
	add(SourceAgent, c.AgentProfile)
	add(SourceRunOverride, c.RunOverrideProfile)
	return out
}

// ActionIntent is the capability-level action a policy decision is
// evaluated against. SideEffect and RiskHint are carried for admission-time
// checks (e.g. the blueprint planner, or a future run-lifecycle admission
// layer) -- Evaluate itself only ever looks at Capability.
type ActionIntent struct {
	ID             string                 `json:"id"`
	RunID          string                 `json:"run_id"`
	StepID         string                 `json:"step_id"`
	Capability     string                 `json:"capability"`
	SideEffect     string                 `json:"side_effect,omitempty"`
	RiskHint       string                 `json:"risk_hint,omitempty"`
	IdempotencyKey *string                `json:"idempotency_key,omitempty"`
	Parameters     map[string]interface{} `json:"parameters,omitempty"`
	Target         string                 `json:"target,omitempty"`
}

// ValidateAdmission enforces the intent-level invariant "side_effect=
// mutation ⇒ idempotency_key present". It is informational, not fatal, at
// evaluation time (§4.3's failure-mode list marks
// policy.intent.mutation_without_idempotency as non-fatal there) -- it
// exists for admission-layer callers (the blueprint planner's synthetic
// intents, or a future run-lifecycle admission check) that want to flag
// the condition without blocking Evaluate itself.
func (a ActionIntent) ValidateAdmission() (ok bool, reasonCode string) {
	if a.SideEffect == "mutation" && a.IdempotencyKey == nil {
		return false, "policy.intent.mutation_without_idempotency"
	}
	return true, ""
}

// LayerDecision records what a single precedence layer contributed to an
// evaluation, whether or not it ended up winning.
type LayerDecision struct {
	Source            Source   `json:"source"`
	Profile           string   `json:"profile"`
	Matched           bool     `json:"matched"`
	Decision          Decision `json:"decision,omitempty"`
	RequiredApprovals int      `json:"required_approvals,omitempty"`
}

// PolicyTrace explains how an evaluation arrived at its decision.
type PolicyTrace struct {
	Layers          []LayerDecision `json:"layers"`
	EffectiveSource Source          `json:"effective_source"`
	EffectiveProfile string         `json:"effective_profile,omitempty"`
}

// PolicyDecision is the result of evaluating a single ActionIntent.
type PolicyDecision struct {
	Decision          Decision     `json:"decision"`
	RequiredApprovals int          `json:"required_approvals"`
	ReasonCodes       []string     `json:"reason_codes"`
	Trace             PolicyTrace  `json:"policy_trace"`
}
