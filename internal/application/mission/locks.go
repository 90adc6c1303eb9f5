package mission

import (
	"sync"

	"github.com/google/uuid"
)

// missionLocks serializes mutating transitions per mission. Different
// missions proceed fully in parallel; there is no global lock. Entries are
// refcounted and dropped once no holder or waiter remains, so the map does
// not grow with mission churn.
type missionLocks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// missionLock is a held per-mission lock.
type missionLock struct {
	locks     *missionLocks
	missionID uuid.UUID
	entry     *lockEntry
}

func (l *missionLocks) lock(missionID uuid.UUID) *missionLock {
	l.mu.Lock()
	if l.entries == nil {
		l.entries = make(map[uuid.UUID]*lockEntry)
	}
	e := l.entries[missionID]
	if e == nil {
		e = &lockEntry{}
		l.entries[missionID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return &missionLock{locks: l, missionID: missionID, entry: e}
}

func (h *missionLock) Unlock() {
	h.entry.mu.Unlock()

	h.locks.mu.Lock()
	h.entry.refs--
	if h.entry.refs == 0 {
		delete(h.locks.entries, h.missionID)
	}
	h.locks.mu.Unlock()
}
