package policy

import (
	"sort"
	"sync"

	"github.com/flockmesh/flockmesh/internal/ids"
)

// Library is a copy-on-write collection of named policy profiles. Reads
// take a snapshot reference under a read lock and never block each other;
// writes (Replace) build a new profile map and swap it in atomically under
// a write lock.
type Library struct {
	mu       sync.RWMutex
	profiles map[string]PolicyProfile
}

// NewLibrary constructs an empty library.
func NewLibrary() *Library {
	return &Library{profiles: make(map[string]PolicyProfile)}
}

// Get returns the named profile and whether it was present.
func (l *Library) Get(name string) (PolicyProfile, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.profiles[name]
	if !ok {
		return PolicyProfile{}, false
	}
	return p.clone(), true
}

// Snapshot returns a point-in-time copy of every profile in the library,
// keyed by profile name.
func (l *Library) Snapshot() map[string]PolicyProfile {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]PolicyProfile, len(l.profiles))
	for k, v := range l.profiles {
		out[k] = v.clone()
	}
	return out
}

// Replace swaps in a whole new profile set, e.g. after a hot reload from
// the policy-library source file. It never mutates profiles already handed
// out by a prior Get/Snapshot call.
func (l *Library) Replace(profiles map[string]PolicyProfile) {
	next := make(map[string]PolicyProfile, len(profiles))
	for k, v := range profiles {
		next[k] = v.clone()
	}
	l.mu.Lock()
	l.profiles = next
	l.mu.Unlock()
}

// Put inserts or overwrites a single profile, used by the patch service to
// apply an accepted patch without disturbing the rest of the library.
func (l *Library) Put(profile PolicyProfile) {
	cloned := profile.clone()
	l.mu.Lock()
	if l.profiles == nil {
		l.profiles = make(map[string]PolicyProfile)
	}
	l.profiles[string(profile.Name)] = cloned
	l.mu.Unlock()
}

// Names returns the sorted set of profile names currently loaded.
func (l *Library) Names() []ids.ProfileName {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ids.ProfileName, 0, len(l.profiles))
	for k := range l.profiles {
		out = append(out, ids.ProfileName(k))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
