// Package audit provides the FlockMesh side of the "Audit Ledger Sink
// (ext.)" external collaborator: a small interface the policy patch
// service hands committed patches and rollbacks to, plus two concrete
// implementations -- an in-memory sink for tests and a reference
// SQLite-backed sink modeled on the teacher's hash-chained trace store.
//
// A sink failure never unwinds a commit: the in-memory policy library is
// the durable source of truth within a process, and the sink is a
// best-effort external record.
package audit

import (
	"sync"
	"time"
)

// Record is a single audit-ledger entry describing a committed policy
// patch or rollback.
type Record struct {
	ID          string
	ProfileName string
	PatchID     string
	RollbackOf  string
	ActorID     string
	Reason      string
	BeforeHash  string
	AfterHash   string
	AppliedAt   time.Time
}

// Sink records committed policy changes. Implementations must be safe for
// concurrent use; Record is expected to be called from the single-writer
// patch-apply path, but Query may be called concurrently from admin
// tooling.
type Sink interface {
	Record(r Record) error
	Query(profileName string, limit int) ([]Record, error)
	Close() error
}

// MemorySink is an in-process Sink backed by a slice, intended for tests
// and for environments with no external ledger configured.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

// NewMemorySink constructs an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Record(r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *MemorySink) Query(profileName string, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for i := len(m.records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if profileName == "" || m.records[i].ProfileName == profileName {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *MemorySink) Close() error { return nil }
