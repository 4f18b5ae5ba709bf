// Package policy implements the FlockMesh policy evaluation and patching
// core: a deterministic, precedence-ordered decision over capability
// intents, copy-on-write profile storage, optimistic-concurrency patching
// with signed history, and owner-gated administration.
package policy

import (
	"fmt"
	"log/slog"

	"github.com/flockmesh/flockmesh/internal/ids"
)

// Engine evaluates ActionIntents against a set of named profiles. Unlike
// the rule pipeline it was generalized from, evaluation here is never an
// ordered walk of arbitrary rule sets: it composes exactly four named
// precedence layers (org, workspace, agent, run_override) per evaluation
// and never performs I/O, so Evaluate needs no context.Context or mutex of
// its own -- all shared mutable state lives in the Library it reads from.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a policy Engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger.With("component", "policy.Engine")}
}

// Evaluate composes the decision for a single ActionIntent against the
// given precedence context and profile set. Evaluation never panics or
// returns an error: any failure to resolve a layer or a missing capability
// surfaces as part of the returned PolicyDecision (fail-closed on missing
// profiles or an invalid capability, fail-open default-allow on an
// unmatched capability).
func (e *Engine) Evaluate(intent ActionIntent, pctx PolicyContext, profiles map[string]PolicyProfile) PolicyDecision {
	if _, err := ids.NewCapability(intent.Capability); err != nil {
		return e.denyUnknown(errCapInvalid, "invalid capability: "+intent.Capability)
	}

	layers := pctx.layers()

	trace := PolicyTrace{EffectiveSource: SourceUnknown}

	// Step 1: resolve every named layer. Any single unresolvable profile
	// fails the whole evaluation closed -- a layer that is *named* in the
	// context is a promise that it exists; a broken promise is not the
	// same thing as "no opinion".
	for _, layer := range layers {
		if _, ok := profiles[layer.profile]; !ok {
			e.logger.Warn("policy profile missing", "source", layer.source, "profile", layer.profile)
			return e.denyUnknown(errProfileMissing, fmt.Sprintf("profile %q (%s) not found", layer.profile, layer.source))
		}
	}

	// Step 2: compose by strictness among layers with an explicit rule for
	// the capability. Ties among equally severe contributing layers go to
	// the highest-precedence layer (the latest in fixed order, so
	// run_override over agent over workspace over org): the loop replaces
	// the current winner on equal or greater severity.
	var (
		contributing     []LayerDecision
		effectiveDecision Decision
		effectiveSource   Source
		effectiveProfile  string
		haveWinner        bool
	)

	for _, layer := range layers {
		profile := profiles[layer.profile]
		rule, matched := profile.Rules[intent.Capability]
		if !matched {
			trace.Layers = append(trace.Layers, LayerDecision{Source: layer.source, Profile: layer.profile, Matched: false})
			continue
		}

		ld := LayerDecision{
			Source:            layer.source,
			Profile:           layer.profile,
			Matched:           true,
			Decision:          rule.Decision,
			RequiredApprovals: rule.RequiredApprovals,
		}
		trace.Layers = append(trace.Layers, ld)
		contributing = append(contributing, ld)

		if !haveWinner || rule.Decision.severity() >= effectiveDecision.severity() {
			haveWinner = true
			effectiveDecision = rule.Decision
			effectiveSource = layer.source
			effectiveProfile = layer.profile
		}
	}

	if !haveWinner {
		trace.EffectiveSource = SourceUnknown
		return PolicyDecision{
			Decision:          DecisionAllow,
			RequiredApprovals: 0,
			ReasonCodes:       []string{"policy.default.allow"},
			Trace:             trace,
		}
	}

	// Step 3: required_approvals is the maximum among ALL contributing
	// layers that explicitly declared escalate, not just the winning
	// layer's own value -- a stricter lower layer's approval count still
	// has to be honored even when a different layer decided the outcome.
	requiredApprovals := 0
	if effectiveDecision == DecisionEscalate {
		for _, ld := range contributing {
			if ld.Decision == DecisionEscalate && ld.RequiredApprovals > requiredApprovals {
				requiredApprovals = ld.RequiredApprovals
			}
		}
		if requiredApprovals < 1 {
			requiredApprovals = 1
		}
		if requiredApprovals > 5 {
			requiredApprovals = 5
		}
	}

	// Step 5: one reason code per contributing layer.
	reasonCodes := make([]string, 0, len(contributing))
	for _, ld := range contributing {
		reasonCodes = append(reasonCodes, fmt.Sprintf("policy.%s.%s", ld.Source, ld.Decision))
	}

	trace.EffectiveSource = effectiveSource
	trace.EffectiveProfile = effectiveProfile

	return PolicyDecision{
		Decision:          effectiveDecision,
		RequiredApprovals: requiredApprovals,
		ReasonCodes:       reasonCodes,
		Trace:             trace,
	}
}

func (e *Engine) denyUnknown(code, msg string) PolicyDecision {
	e.logger.Warn("policy evaluation failed closed", "reason_code", code, "detail", msg)
	return PolicyDecision{
		Decision:          DecisionDeny,
		RequiredApprovals: 0,
		ReasonCodes:       []string{code},
		Trace:             PolicyTrace{EffectiveSource: SourceUnknown},
	}
}
