package policy

import "github.com/flockmesh/flockmesh/internal/ids"

// AdminScope is the breadth of control an authorized actor holds.
type AdminScope string

const (
	ScopeGlobal  AdminScope = "global"
	ScopeProfile AdminScope = "profile"
)

// AdminConfig names the actors permitted to patch or roll back policy
// profiles. GlobalAdmins may manage any profile; ProfileAdmins grants
// per-profile management rights. Configs loaded from multiple sources
// (e.g. several files under an admin-config directory) are merged by
// set-union before being handed to the guard.
type AdminConfig struct {
	GlobalAdmins  []string            `json:"global_admins" yaml:"global_admins"`
	ProfileAdmins map[string][]string `json:"profile_admins" yaml:"profile_admins"`
}

// Merge set-unions other into a new AdminConfig, leaving both inputs
// untouched.
func (c AdminConfig) Merge(other AdminConfig) AdminConfig {
	globals := map[string]struct{}{}
	for _, a := range c.GlobalAdmins {
		globals[a] = struct{}{}
	}
	for _, a := range other.GlobalAdmins {
		globals[a] = struct{}{}
	}
	merged := AdminConfig{ProfileAdmins: map[string][]string{}}
	for a := range globals {
		merged.GlobalAdmins = append(merged.GlobalAdmins, a)
	}

	profileSets := map[string]map[string]struct{}{}
	addAll := func(src map[string][]string) {
		for profile, admins := range src {
			set, ok := profileSets[profile]
			if !ok {
				set = map[string]struct{}{}
				profileSets[profile] = set
			}
			for _, a := range admins {
				set[a] = struct{}{}
			}
		}
	}
	addAll(c.ProfileAdmins)
	addAll(other.ProfileAdmins)
	for profile, set := range profileSets {
		for a := range set {
			merged.ProfileAdmins[profile] = append(merged.ProfileAdmins[profile], a)
		}
	}
	return merged
}

// AdminDecision is the result of an authorization check.
type AdminDecision struct {
	Allowed    bool
	Scope      AdminScope
	ReasonCode string
}

// CanActorManage decides whether actorID may patch or roll back
// profileName under config. Actor and profile identifiers are validated
// against their internal/ids patterns before any set lookup; a malformed
// identifier is denied rather than risking a lookup against attacker
// -controlled keys.
func CanActorManage(config AdminConfig, actorID, profileName string) AdminDecision {
	if _, err := ids.NewUserID(actorID); err != nil {
		return AdminDecision{Allowed: false, ReasonCode: "policy.admin.invalid_actor"}
	}
	if _, err := ids.NewProfileName(profileName); err != nil {
		return AdminDecision{Allowed: false, ReasonCode: "policy.admin.invalid_profile"}
	}

	for _, a := range config.GlobalAdmins {
		if a == actorID {
			return AdminDecision{Allowed: true, Scope: ScopeGlobal}
		}
	}
	for _, a := range config.ProfileAdmins[profileName] {
		if a == actorID {
			return AdminDecision{Allowed: true, Scope: ScopeProfile}
		}
	}
	return AdminDecision{Allowed: false, ReasonCode: errNotAdmin}
}
