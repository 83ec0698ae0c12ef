// Package inmemory provides a Perch session backend that runs entirely
// in-process. Statements buffered during a transaction become visible in the
// store only when the root transaction commits; a rollback discards them.
// It is useful for tests and embedded applications that want Perch's
// transaction semantics without a server.
package inmemory

import (
	"sync"

	"github.com/perchdb/perch"
)

// Store is the shared key/value table sessions commit into.
type Store struct {
	mu   sync.RWMutex
	data map[string]any
	// log keeps the statements of every committed transaction, in commit order.
	log []perch.Statement
}

// NewStore returns an empty store. A store may be shared by many sessions.
func NewStore() *Store {
	return &Store{data: make(map[string]any)}
}

// Get returns the committed value for key.
func (st *Store) Get(key string) (any, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	v, ok := st.data[key]
	return v, ok
}

// Len returns the number of committed keys.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.data)
}

// CommittedStatements returns a copy of the committed statement log.
func (st *Store) CommittedStatements() []perch.Statement {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]perch.Statement, len(st.log))
	copy(out, st.log)
	return out
}

// apply merges a session's buffered writes and statement log into the store.
func (st *Store) apply(writes map[string]any, stmts []perch.Statement) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for k, v := range writes {
		if v == nil {
			delete(st.data, k)
			continue
		}
		st.data[k] = v
	}
	st.log = append(st.log, stmts...)
}
