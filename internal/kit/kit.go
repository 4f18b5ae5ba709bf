// Package kit implements the Agent Blueprint kit catalog: the typed
// AgentKit document, its on-disk DSL, and the default in-memory catalog
// served when no kit directory is configured.
package kit

import "github.com/flockmesh/flockmesh/internal/ids"

// RiskProfile classifies how much latitude a connector candidate is
// expected to need.
type RiskProfile string

const (
	RiskStandard    RiskProfile = "standard"
	RiskRestricted  RiskProfile = "restricted"
	RiskHighControl RiskProfile = "high_control"
)

// ApprovalExpectation describes the approval shape a rollout phase expects
// once its capabilities start escalating.
type ApprovalExpectation string

const (
	ApprovalNone         ApprovalExpectation = "none"
	ApprovalSingle       ApprovalExpectation = "single"
	ApprovalSingleOrDual ApprovalExpectation = "single_or_dual"
	ApprovalDual         ApprovalExpectation = "dual"
)

// ConnectorCandidate is one connector a kit anticipates wiring in, along
// with the capabilities it expects that connector to cover.
type ConnectorCandidate struct {
	ConnectorID          string      `json:"connector_id"`
	RequiredCapabilities []string    `json:"required_capabilities"`
	OptionalCapabilities []string    `json:"optional_capabilities,omitempty"`
	RiskProfile          RiskProfile `json:"risk_profile"`
}

// RolloutPhase is one step of a kit's suggested staged rollout.
type RolloutPhase struct {
	PhaseID              string              `json:"phase_id"`
	Title                string              `json:"title"`
	Focus                string              `json:"focus"`
	ApprovalExpectation  ApprovalExpectation `json:"approval_expectation"`
}

// AgentKit is the reusable blueprint template the Blueprint Preview
// Builder projects against a workspace's actual connector selection.
type AgentKit struct {
	KitID                string                `json:"kit_id"`
	Name                 string                `json:"name"`
	Description          string                `json:"description"`
	Role                 string                `json:"role"`
	DefaultPolicyProfile string                `json:"default_policy_profile"`
	DefaultPlaybookID    string                `json:"default_playbook_id"`
	CapabilityGoals      []string              `json:"capability_goals"`
	ConnectorCandidates  []ConnectorCandidate  `json:"connector_candidates"`
	Rollout              []RolloutPhase        `json:"rollout"`
}

// Candidate looks up one of the kit's connector candidates by ID.
func (k AgentKit) Candidate(connectorID string) (ConnectorCandidate, bool) {
	for _, c := range k.ConnectorCandidates {
		if c.ConnectorID == connectorID {
			return c, true
		}
	}
	return ConnectorCandidate{}, false
}

// Validate checks an AgentKit's identifiers and cross-field invariants.
// It does not mutate the kit; callers decide whether to reject it.
func (k AgentKit) Validate() error {
	if _, err := ids.NewKitID(k.KitID); err != nil {
		return err
	}
	if len(k.CapabilityGoals) == 0 {
		return &invalidKitError{KitID: k.KitID, Reason: "capability_goals must not be empty"}
	}
	for _, cap := range k.CapabilityGoals {
		if _, err := ids.NewCapability(cap); err != nil {
			return &invalidKitError{KitID: k.KitID, Reason: "invalid capability goal " + cap}
		}
	}
	for _, cand := range k.ConnectorCandidates {
		if _, err := ids.NewConnectorID(cand.ConnectorID); err != nil {
			return &invalidKitError{KitID: k.KitID, Reason: "invalid connector_id " + cand.ConnectorID}
		}
		switch cand.RiskProfile {
		case RiskStandard, RiskRestricted, RiskHighControl:
		default:
			return &invalidKitError{KitID: k.KitID, Reason: "invalid risk_profile for " + cand.ConnectorID}
		}
	}
	for _, phase := range k.Rollout {
		if _, err := ids.NewPhaseID(phase.PhaseID); err != nil {
			return &invalidKitError{KitID: k.KitID, Reason: "invalid phase_id " + phase.PhaseID}
		}
		switch phase.ApprovalExpectation {
		case ApprovalNone, ApprovalSingle, ApprovalSingleOrDual, ApprovalDual:
		default:
			return &invalidKitError{KitID: k.KitID, Reason: "invalid approval_expectation for " + phase.PhaseID}
		}
	}
	return nil
}

type invalidKitError struct {
	KitID  string
	Reason string
}

func (e *invalidKitError) Error() string { return "kit " + e.KitID + ": " + e.Reason }

func (e *invalidKitError) Code() string { return "kit.invalid" }
