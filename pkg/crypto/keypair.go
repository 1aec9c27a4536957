// Package crypto provides Ed25519 keypairs, transaction signing, and
// signature verification for the escrow node.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

// Ed25519 sizes.
const (
	PublicKeySize  = 32
	PrivateKeySize = 64
	SeedSize       = 32
	SignatureSize  = 64
)

var (
	// ErrInvalidSeed is returned when a keypair seed has the wrong length.
	ErrInvalidSeed = errors.New("crypto: invalid seed length")

	// ErrInvalidPrivateKey is returned when a private key has the wrong length.
	ErrInvalidPrivateKey = errors.New("crypto: invalid private key length")
)

// Keypair is an Ed25519 keypair used to sign transactions.
type Keypair struct {
	private ed25519.PrivateKey
	pubkey  types.Pubkey
}

// NewKeypair generates a random keypair.
func NewKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	var pk types.Pubkey
	copy(pk[:], pub)
	return &Keypair{private: priv, pubkey: pk}, nil
}

// KeypairFromSeed derives a keypair from a 32-byte seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSeed, SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	var pk types.Pubkey
	copy(pk[:], priv.Public().(ed25519.PublicKey))
	return &Keypair{private: priv, pubkey: pk}, nil
}

// KeypairFromBytes reconstructs a keypair from a 64-byte private key
// in the standard seed-then-pubkey layout.
func KeypairFromBytes(data []byte) (*Keypair, error) {
	if len(data) != PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPrivateKey, PrivateKeySize, len(data))
	}
	return KeypairFromSeed(data[:SeedSize])
}

// Pubkey returns the keypair's public key.
func (kp *Keypair) Pubkey() types.Pubkey {
	return kp.pubkey
}

// Sign signs a message and returns the 64-byte signature.
func (kp *Keypair) Sign(message []byte) types.Signature {
	var sig types.Signature
	copy(sig[:], ed25519.Sign(kp.private, message))
	return sig
}

// SignTransaction signs the transaction's serialized message and places
// the signature at the slot matching the keypair's position among the
// message's required signers. Signers not covered by the provided
// keypairs keep their existing (zero) signature.
func SignTransaction(tx *types.Transaction, keypairs ...*Keypair) error {
	if tx == nil {
		return ErrMissingMessage
	}
	message := tx.Message.Serialize()
	signers := tx.Message.Signers()

	if len(tx.Signatures) != len(signers) {
		tx.Signatures = make([]types.Signature, len(signers))
	}

	for _, kp := range keypairs {
		found := false
		for i, signer := range signers {
			if signer == kp.Pubkey() {
				tx.Signatures[i] = kp.Sign(message)
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s is not a required signer", ErrUnknownSigner, kp.Pubkey())
		}
	}
	return nil
}

// NewSignedTransaction compiles a message from instructions and signs it.
// The first keypair is the fee payer.
func NewSignedTransaction(recentBlockhash types.Hash, instructions []types.Instruction, keypairs ...*Keypair) (*types.Transaction, error) {
	if len(keypairs) == 0 {
		return nil, ErrNoSignatures
	}
	msg, err := types.NewMessage(keypairs[0].Pubkey(), recentBlockhash, instructions)
	if err != nil {
		return nil, fmt.Errorf("failed to compile message: %w", err)
	}
	tx := &types.Transaction{Message: *msg}
	if err := SignTransaction(tx, keypairs...); err != nil {
		return nil, err
	}
	return tx, nil
}
