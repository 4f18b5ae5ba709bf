// Package policy implements the FlockMesh policy evaluation and patching
// core: a deterministic, precedence-ordered decision over capability
// intents, copy-on-write profile storage, optimistic-concurrency patching
// with signed history, and owner-gated administration.
package policy

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/flockmesh/flockmesh/internal/ids"
)

// Decision is the outcome a policy rule or evaluation assigns to a
// capability. Severity order for composition is Deny > Escalate > Allow.
type Decision string

const (
	DecisionAllow    Decision = "allow"
	DecisionEscalate Decision = "escalate"
	DecisionDeny     Decision = "deny"
)

// severity returns the composition rank of a decision; higher wins.
func (d Decision) severity() int {
	switch d {
	case DecisionDeny:
		return 2
	case DecisionEscalate:
		return 1
	default:
		return 0
	}
}

// PolicyRule is a single capability override within a profile.
type PolicyRule struct {
	Decision          Decision `json:"decision"`
	RequiredApprovals int      `json:"required_approvals"`
}

// Validate enforces the PolicyRule invariant: escalate requires at least
// one required approval, any other decision requires exactly zero.
func (r PolicyRule) Validate() error {
	if r.RequiredApprovals < 0 || r.RequiredApprovals > 5 {
		return &CodedError{Code: "policy.rule.invalid_approvals", Msg: fmt.Sprintf("required_approvals %d out of [0,5]", r.RequiredApprovals)}
	}
	if r.Decision == DecisionEscalate && r.RequiredApprovals < 1 {
		return &CodedError{Code: "policy.rule.invalid_approvals", Msg: "escalate requires required_approvals >= 1"}
	}
	if r.Decision != DecisionEscalate && r.RequiredApprovals != 0 {
		return &CodedError{Code: "policy.rule.invalid_approvals", Msg: "non-escalate decisions require required_approvals == 0"}
	}
	switch r.Decision {
	case DecisionAllow, DecisionEscalate, DecisionDeny:
	default:
		return &CodedError{Code: "policy.rule.invalid_decision", Msg: fmt.Sprintf("unknown decision %q", r.Decision)}
	}
	return nil
}

// PolicyProfile is a named set of capability -> rule overrides, plus a
// stable content hash used for optimistic concurrency on patches.
type PolicyProfile struct {
	Name  ids.ProfileName       `json:"name"`
	Rules map[string]PolicyRule `json:"rules"`
	Hash  string                `json:"hash"`
}

// clone returns a deep copy of the profile, safe to mutate independently.
func (p PolicyProfile) clone() PolicyProfile {
	rules := make(map[string]PolicyRule, len(p.Rules))
	for k, v := range p.Rules {
		rules[k] = v
	}
	return PolicyProfile{Name: p.Name, Rules: rules, Hash: p.Hash}
}

// HashProfile computes the stable SHA-256 digest of a profile's rule set.
// encoding/json serializes map[string]T with lexicographically sorted
// keys, which together with the fixed field order of PolicyRule gives a
// canonical, whitespace-free byte representation sufficient for hashing.
func HashProfile(rules map[string]PolicyRule) string {
	if rules == nil {
		rules = map[string]PolicyRule{}
	}
	b, err := json.Marshal(rules)
	if err != nil {
		// rules is a plain map[string]PolicyRule; Marshal cannot fail.
		panic(fmt.Sprintf("policy: unexpected marshal failure hashing rules: %v", err))
	}
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum)
}

// NewProfile builds a profile from a rule set and computes its hash.
func NewProfile(name ids.ProfileName, rules map[string]PolicyRule) PolicyProfile {
	if rules == nil {
		rules = map[string]PolicyRule{}
	}
	return PolicyProfile{Name: name, Rules: rules, Hash: HashProfile(rules)}
}
