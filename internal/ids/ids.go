// Package ids promotes the string-pattern-typed identifiers scattered
// through the FlockMesh data model to opaque types with a single
// validating constructor each. No other code in this module is allowed to
// construct one of these types directly -- the constructor is the sole
// point of pattern enforcement (the "String-pattern-typed IDs" redesign
// flag).
package ids

import (
	"crypto/rand"
	"fmt"
	"regexp"

	"github.com/oklog/ulid/v2"
)

var (
	capabilityPattern  = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)
	profileNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{2,80}$`)
	userIDPattern      = regexp.MustCompile(`^(usr|svc)_[A-Za-z0-9_-]{4,64}$`)
	kitIDPattern       = regexp.MustCompile(`^kit_[A-Za-z0-9_-]{4,64}$`)
	workspaceIDPattern = regexp.MustCompile(`^wsp_[A-Za-z0-9_-]{4,64}$`)
	connectorIDPattern = regexp.MustCompile(`^con_[A-Za-z0-9_-]{4,64}$`)
	playbookIDPattern  = regexp.MustCompile(`^pbk_[A-Za-z0-9_-]{4,64}$`)
	phaseIDPattern     = regexp.MustCompile(`^phase_[A-Za-z0-9_-]{4,64}$`)
)

// ValidationError reports that a raw string failed its pattern check.
type ValidationError struct {
	Kind  string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Kind, e.Value)
}

// Code returns the structured reason code for this validation failure,
// in the form "<kind>.invalid" (e.g. "kit_id.invalid").
func (e *ValidationError) Code() string {
	return e.Kind + ".invalid"
}

// Capability is a dotted capability identifier, e.g. "message.send".
type Capability string

// NewCapability validates and wraps a raw capability string.
func NewCapability(raw string) (Capability, error) {
	if !capabilityPattern.MatchString(raw) {
		return "", &ValidationError{Kind: "capability", Value: raw}
	}
	return Capability(raw), nil
}

func (c Capability) String() string { return string(c) }

// ProfileName is a validated policy profile name.
type ProfileName string

func NewProfileName(raw string) (ProfileName, error) {
	if !profileNamePattern.MatchString(raw) {
		return "", &ValidationError{Kind: "profile_name", Value: raw}
	}
	return ProfileName(raw), nil
}

func (p ProfileName) String() string { return string(p) }

// UserID is a validated actor identifier (usr_ or svc_ prefixed).
type UserID string

func NewUserID(raw string) (UserID, error) {
	if !userIDPattern.MatchString(raw) {
		return "", &ValidationError{Kind: "user_id", Value: raw}
	}
	return UserID(raw), nil
}

func (u UserID) String() string { return string(u) }

// KitID is a validated agent-kit identifier.
type KitID string

func NewKitID(raw string) (KitID, error) {
	if !kitIDPattern.MatchString(raw) {
		return "", &ValidationError{Kind: "kit_id", Value: raw}
	}
	return KitID(raw), nil
}

func (k KitID) String() string { return string(k) }

// WorkspaceID is a validated workspace identifier.
type WorkspaceID string

func NewWorkspaceID(raw string) (WorkspaceID, error) {
	if !workspaceIDPattern.MatchString(raw) {
		return "", &ValidationError{Kind: "workspace_id", Value: raw}
	}
	return WorkspaceID(raw), nil
}

func (w WorkspaceID) String() string { return string(w) }

// ConnectorID is a validated connector identifier.
type ConnectorID string

func NewConnectorID(raw string) (ConnectorID, error) {
	if !connectorIDPattern.MatchString(raw) {
		return "", &ValidationError{Kind: "connector_id", Value: raw}
	}
	return ConnectorID(raw), nil
}

func (c ConnectorID) String() string { return string(c) }

// PlaybookID is a validated playbook identifier.
type PlaybookID string

func NewPlaybookID(raw string) (PlaybookID, error) {
	if !playbookIDPattern.MatchString(raw) {
		return "", &ValidationError{Kind: "playbook_id", Value: raw}
	}
	return PlaybookID(raw), nil
}

func (p PlaybookID) String() string { return string(p) }

// PhaseID is a validated rollout-phase identifier.
type PhaseID string

func NewPhaseID(raw string) (PhaseID, error) {
	if !phaseIDPattern.MatchString(raw) {
		return "", &ValidationError{Kind: "phase_id", Value: raw}
	}
	return PhaseID(raw), nil
}

func (p PhaseID) String() string { return string(p) }

// Generated IDs. The spec never assigns these an external pattern, so
// FlockMesh mints them itself as lexically sortable ULIDs under a short
// prefix -- useful for history entries where insertion order matters.

// NewPatchID mints a new patch identifier.
func NewPatchID() string { return "pat_" + newULID() }

// NewHistoryEntryID mints a new policy-patch-history-entry identifier.
func NewHistoryEntryID() string { return "phe_" + newULID() }

// NewAuditRecordID mints a new audit-ledger record identifier.
func NewAuditRecordID() string { return "aud_" + newULID() }

func newULID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
