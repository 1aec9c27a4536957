package runtime

import (
	"sync"
	"testing"

	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

func TestLockTable_SerializesOverlappingKeys(t *testing.T) {
	lt := newLockTable()

	var key types.Pubkey
	key[0] = 1

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := lt.Acquire([]types.Pubkey{key})
			counter++
			release()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}

func TestLockTable_DuplicateKeysInOneAcquire(t *testing.T) {
	lt := newLockTable()

	var key types.Pubkey
	key[0] = 2

	// duplicate keys must not deadlock against themselves
	release := lt.Acquire([]types.Pubkey{key, key, key})
	release()

	release = lt.Acquire([]types.Pubkey{key})
	release()
}
