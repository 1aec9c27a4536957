package accounts

import (
	"sync"

	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

// MemoryStore is an in-memory implementation of Store, used for tests and
// for running the node without a data directory.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[types.Pubkey]*types.Account
}

// NewMemoryStore creates a new in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[types.Pubkey]*types.Account),
	}
}

// GetAccount retrieves an account by pubkey.
// Returns nil, nil if the account does not exist.
func (s *MemoryStore) GetAccount(pubkey types.Pubkey) (*types.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[pubkey]
	if !exists {
		return nil, nil
	}
	// Clone so callers cannot mutate committed state.
	return account.Clone(), nil
}

// SetAccount stores an account.
func (s *MemoryStore) SetAccount(pubkey types.Pubkey, account *types.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[pubkey] = account.Clone()
	return nil
}

// DeleteAccount removes an account.
func (s *MemoryStore) DeleteAccount(pubkey types.Pubkey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.accounts, pubkey)
	return nil
}

// HasAccount returns true if the account exists.
func (s *MemoryStore) HasAccount(pubkey types.Pubkey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.accounts[pubkey]
	return exists
}

// Count returns the total number of accounts.
func (s *MemoryStore) Count() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return uint64(len(s.accounts))
}

// ForEach calls fn for every stored account.
func (s *MemoryStore) ForEach(fn func(pubkey types.Pubkey, account *types.Account) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for pubkey, account := range s.accounts {
		if err := fn(pubkey, account.Clone()); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = make(map[types.Pubkey]*types.Account)
	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
