// Package capability implements the pure capability classifier: mapping a
// dotted capability identifier to the side-effect and risk-hint baseline
// that the policy engine and blueprint planner project intents from.
//
// Classification never performs I/O and never depends on runtime state --
// the same capability string always classifies identically.
package capability

import "strings"

// SideEffect describes whether invoking a capability mutates state.
type SideEffect string

const (
	SideEffectNone     SideEffect = "none"
	SideEffectMutation SideEffect = "mutation"
)

// RiskHint is a coarse risk tier assigned to a capability.
type RiskHint string

const (
	RiskR0 RiskHint = "R0"
	RiskR1 RiskHint = "R1"
	RiskR2 RiskHint = "R2"
	RiskR3 RiskHint = "R3"
)

// readOnlySuffixes mark a capability as read-only: side_effect=none, R0.
// Checked first, in listed order, against the capability's final dotted
// segment.
var readOnlySuffixes = []string{"read", "list", "status", "search", "get"}

// highRiskTokens mark R3 mutation when any token appears anywhere in the
// capability string. Checked before mutation tokens.
var highRiskTokens = []string{
	"payment", "finance", "legal", "contract", "credential", "admin", "delete", "terminate",
}

// mutationTokens mark R2 mutation. Checked after high-risk tokens; anything
// left over that isn't read-only is R1 mutation.
var mutationTokens = []string{
	"send", "write", "create", "update", "request", "invoke", "cancel", "execute", "publish",
}

// Classify maps a (caller-validated) capability string to its side-effect
// and risk-hint baseline. Order: read-only suffix test first; then
// high-risk tokens; then mutation tokens; else R1 mutation. Within a class,
// the first matching token in list order wins.
func Classify(capability string) (SideEffect, RiskHint) {
	if isReadOnly(capability) {
		return SideEffectNone, RiskR0
	}
	if tok := firstMatch(capability, highRiskTokens); tok != "" {
		return SideEffectMutation, RiskR3
	}
	if tok := firstMatch(capability, mutationTokens); tok != "" {
		return SideEffectMutation, RiskR2
	}
	return SideEffectMutation, RiskR1
}

func isReadOnly(capability string) bool {
	segments := strings.Split(capability, ".")
	last := segments[len(segments)-1]
	for _, suffix := range readOnlySuffixes {
		if last == suffix {
			return true
		}
	}
	return false
}

func firstMatch(capability string, tokens []string) string {
	for _, tok := range tokens {
		if strings.Contains(capability, tok) {
			return tok
		}
	}
	return ""
}
