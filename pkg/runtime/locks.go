package runtime

import (
	"bytes"
	"sort"
	"sync"

	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

// lockTable serializes transactions that reference overlapping accounts.
// Locks are always acquired in sorted key order so two transactions touching
// the same accounts cannot deadlock.
type lockTable struct {
	mu    sync.Mutex
	locks map[types.Pubkey]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{
		locks: make(map[types.Pubkey]*accountLock),
	}
}

// Acquire locks every key and returns a release function. Duplicate keys are
// locked once.
func (t *lockTable) Acquire(keys []types.Pubkey) (release func()) {
	sorted := make([]types.Pubkey, 0, len(keys))
	seen := make(map[types.Pubkey]bool, len(keys))
	for _, key := range keys {
		if !seen[key] {
			seen[key] = true
			sorted = append(sorted, key)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	acquired := make([]*accountLock, len(sorted))
	for i, key := range sorted {
		t.mu.Lock()
		lock, ok := t.locks[key]
		if !ok {
			lock = &accountLock{}
			t.locks[key] = lock
		}
		lock.refs++
		t.mu.Unlock()

		lock.mu.Lock()
		acquired[i] = lock
	}

	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].mu.Unlock()

			t.mu.Lock()
			acquired[i].refs--
			if acquired[i].refs == 0 {
				delete(t.locks, sorted[i])
			}
			t.mu.Unlock()
		}
	}
}
