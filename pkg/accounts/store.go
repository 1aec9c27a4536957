// Package accounts provides committed account storage for the escrow node.
package accounts

import (
	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

// Store defines the interface for committed account state.
type Store interface {
	// GetAccount retrieves an account by pubkey.
	// Returns nil, nil if the account does not exist.
	GetAccount(pubkey types.Pubkey) (*types.Account, error)

	// SetAccount stores an account.
	SetAccount(pubkey types.Pubkey, account *types.Account) error

	// DeleteAccount removes an account. Deleting a missing account is a no-op.
	DeleteAccount(pubkey types.Pubkey) error

	// HasAccount returns true if the account exists.
	HasAccount(pubkey types.Pubkey) bool

	// Count returns the total number of accounts.
	Count() uint64

	// ForEach calls fn for every stored account. Iteration stops at the
	// first error, which is returned.
	ForEach(fn func(pubkey types.Pubkey, account *types.Account) error) error

	// Close closes the store.
	Close() error
}
