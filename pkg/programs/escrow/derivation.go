package escrow

import (
	"github.com/kevredlabs/ro-sham-bo/pkg/runtime"
	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

// Derivation namespace tags.
const (
	RecordSeed = "game_escrow"
	VaultSeed  = "vault"
)

// DeriveRecordAddress derives the game escrow record address from the
// creator and game id.
func DeriveRecordAddress(program, creator types.Pubkey, gameID types.GameID) (types.Pubkey, uint8, error) {
	return runtime.FindProgramAddress(
		[][]byte{[]byte(RecordSeed), creator[:], gameID[:]},
		program,
	)
}

// DeriveVaultAddress derives the vault address from the record address.
func DeriveVaultAddress(program, record types.Pubkey) (types.Pubkey, uint8, error) {
	return runtime.FindProgramAddress(
		[][]byte{[]byte(VaultSeed), record[:]},
		program,
	)
}

// recordAddressForBump recomputes the record address using a stored bump.
func recordAddressForBump(program, creator types.Pubkey, gameID types.GameID, bump uint8) (types.Pubkey, error) {
	return runtime.CreateProgramAddress(
		[][]byte{[]byte(RecordSeed), creator[:], gameID[:], {bump}},
		program,
	)
}

// vaultAddressForBump recomputes the vault address using a stored bump.
func vaultAddressForBump(program, record types.Pubkey, bump uint8) (types.Pubkey, error) {
	return runtime.CreateProgramAddress(
		[][]byte{[]byte(VaultSeed), record[:], {bump}},
		program,
	)
}
