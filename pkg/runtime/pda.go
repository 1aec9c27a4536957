package runtime

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"

	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

// PDA derivation constants.
const (
	// MaxSeeds is the maximum number of seeds for PDA derivation.
	MaxSeeds = 16
	// MaxSeedLen is the maximum length of a single seed.
	MaxSeedLen = 32
	// PDAMarker is the domain separator appended during PDA derivation.
	PDAMarker = "ProgramDerivedAddress"
)

// PDA derivation errors.
var (
	ErrTooManySeeds = errors.New("too many PDA seeds")
	ErrSeedTooLong  = errors.New("PDA seed too long")
	ErrNoViableBump = errors.New("no viable bump seed found")
	ErrOnCurve      = errors.New("derived address is on the ed25519 curve")
)

// CreateProgramAddress derives a program address from seeds and a program ID.
//
// Formula: SHA256(seeds... || program_id || "ProgramDerivedAddress").
// The result must NOT be a valid ed25519 point: a PDA is a storage address
// with no corresponding signing key.
func CreateProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return types.ZeroPubkey, ErrTooManySeeds
	}

	hasher := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return types.ZeroPubkey, ErrSeedTooLong
		}
		hasher.Write(seed)
	}
	hasher.Write(programID[:])
	hasher.Write([]byte(PDAMarker))

	hash := hasher.Sum(nil)
	if isOnCurve(hash) {
		return types.ZeroPubkey, ErrOnCurve
	}

	var pda types.Pubkey
	copy(pda[:], hash)
	return pda, nil
}

// FindProgramAddress finds a valid PDA by trying bump seeds from 255 down
// to 0. Returns the address and the bump that produced it.
func FindProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return types.ZeroPubkey, 0, ErrTooManySeeds
	}

	seedsWithBump := make([][]byte, len(seeds)+1)
	copy(seedsWithBump, seeds)
	bumpSeed := []byte{0}
	seedsWithBump[len(seeds)] = bumpSeed

	for bump := 255; bump >= 0; bump-- {
		bumpSeed[0] = uint8(bump)
		pda, err := CreateProgramAddress(seedsWithBump, programID)
		if err == nil {
			return pda, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return types.ZeroPubkey, 0, err
		}
	}

	return types.ZeroPubkey, 0, ErrNoViableBump
}

// isOnCurve reports whether a 32-byte value decompresses to a valid
// ed25519 point.
func isOnCurve(data []byte) bool {
	if len(data) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(data)
	return err == nil
}
