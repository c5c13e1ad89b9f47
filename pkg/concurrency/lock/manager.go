package lock

import (
	"slices"
	"sync"

	"cursordb/pkg/dberror"
	"cursordb/pkg/logging"
)

// Manager grants and releases locks for every connection of a database.
type Manager struct {
	mu            sync.Mutex
	resourceLocks map[Resource][]*Lock
	ownerLocks    map[string]map[Resource]Level
	tableHolders  map[string]map[string]int // table -> owner -> resources held
}

func NewManager() *Manager {
	return &Manager{
		resourceLocks: make(map[Resource][]*Lock),
		ownerLocks:    make(map[string]map[Resource]Level),
		tableHolders:  make(map[string]map[string]int),
	}
}

// Acquire grants owner a lock of at least level on res and returns the level
// it held before. A weaker or equal request is a no-op; a stronger one
// escalates the existing grant.
func (m *Manager) Acquire(owner string, res Resource, level Level) (Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.ownerLocks[owner][res]
	if prev >= level {
		return prev, nil
	}

	if holder, ok := m.conflict(owner, res, level); !ok {
		logging.WithLock(owner, res.String()).Debug("lock conflict",
			"requested", level.String(), "holder", holder)
		return prev, dberror.LockConflict(res.String(), holder)
	}

	m.grant(owner, res, level, prev)
	return prev, nil
}

// conflict returns the first other owner whose lock prevents the grant.
func (m *Manager) conflict(owner string, res Resource, level Level) (string, bool) {
	if res.Row == TableLevel {
		for other, n := range m.tableHolders[res.Table] {
			if other != owner && n > 0 {
				return other, false
			}
		}
		return "", true
	}

	for _, l := range m.resourceLocks[TableResource(res.Table)] {
		if l.Owner != owner {
			return l.Owner, false
		}
	}
	for _, l := range m.resourceLocks[res] {
		if l.Owner != owner && !compatible(l.Level, level) {
			return l.Owner, false
		}
	}
	return "", true
}

func (m *Manager) grant(owner string, res Resource, level, prev Level) {
	if prev == None {
		m.resourceLocks[res] = append(m.resourceLocks[res], newLock(owner, level))
		if m.tableHolders[res.Table] == nil {
			m.tableHolders[res.Table] = make(map[string]int)
		}
		m.tableHolders[res.Table][owner]++
	} else {
		for _, l := range m.resourceLocks[res] {
			if l.Owner == owner {
				l.Level = level
				break
			}
		}
	}

	if m.ownerLocks[owner] == nil {
		m.ownerLocks[owner] = make(map[Resource]Level)
	}
	m.ownerLocks[owner][res] = level
}

// Restore sets owner's lock on res back to level, releasing it when level is
// None. It undoes an Acquire when a statement rolls back.
func (m *Manager) Restore(owner string, res Resource, level Level) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.ownerLocks[owner][res]
	if !ok || cur == level {
		return
	}
	if level == None {
		m.release(owner, res)
		return
	}
	for _, l := range m.resourceLocks[res] {
		if l.Owner == owner {
			l.Level = level
		}
	}
	m.ownerLocks[owner][res] = level
}

// Release drops owner's lock on res.
func (m *Manager) Release(owner string, res Resource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release(owner, res)
}

func (m *Manager) release(owner string, res Resource) {
	if _, ok := m.ownerLocks[owner][res]; !ok {
		return
	}

	locks := slices.DeleteFunc(m.resourceLocks[res], func(l *Lock) bool {
		return l.Owner == owner
	})
	if len(locks) == 0 {
		delete(m.resourceLocks, res)
	} else {
		m.resourceLocks[res] = locks
	}

	delete(m.ownerLocks[owner], res)
	if len(m.ownerLocks[owner]) == 0 {
		delete(m.ownerLocks, owner)
	}

	holders := m.tableHolders[res.Table]
	if holders[owner]--; holders[owner] <= 0 {
		delete(holders, owner)
	}
	if len(holders) == 0 {
		delete(m.tableHolders, res.Table)
	}
}

// ReleaseAll drops every lock owner holds.
func (m *Manager) ReleaseAll(owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for res := range m.ownerLocks[owner] {
		m.release(owner, res)
	}
}

// Held returns the level owner holds on res.
func (m *Manager) Held(owner string, res Resource) Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownerLocks[owner][res]
}

// Count returns the number of resources owner holds locks on.
func (m *Manager) Count(owner string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ownerLocks[owner])
}
