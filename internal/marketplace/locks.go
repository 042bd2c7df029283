package marketplace

import (
	"sync"

	"github.com/google/uuid"
)

// lockTable hands out one mutex per listing so every multi-row transition
// touching a listing runs single-file in this process. Combined with the
// status-guarded UPDATEs inside each transaction, two racing operations on
// the same listing cannot both observe the pre-state.
type lockTable struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// acquire blocks until the key's mutex is held and returns the release func.
func (t *lockTable) acquire(key uuid.UUID) func() {
	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}
