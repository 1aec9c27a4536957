package crypto

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

var (
	// ErrMissingMessage is returned when a transaction is nil.
	ErrMissingMessage = errors.New("crypto: missing transaction message")

	// ErrNoSignatures is returned when a transaction carries no signatures.
	ErrNoSignatures = errors.New("crypto: transaction has no signatures")

	// ErrSignatureCountMismatch is returned when the signature count does
	// not match the message header's required signer count.
	ErrSignatureCountMismatch = errors.New("crypto: signature count mismatch")

	// ErrVerificationFailed is returned when a signature does not verify.
	ErrVerificationFailed = errors.New("crypto: signature verification failed")

	// ErrUnknownSigner is returned when a keypair is not among a
	// transaction's required signers.
	ErrUnknownSigner = errors.New("crypto: unknown signer")
)

// VerifySignature verifies a single Ed25519 signature. Returns false for
// malformed public keys or signatures.
func VerifySignature(pubkey, message, signature []byte) bool {
	if len(pubkey) != PublicKeySize || len(signature) != SignatureSize {
		return false
	}
	return ed25519.Verify(pubkey, message, signature)
}

// VerifyTransaction verifies every signature on a transaction against the
// serialized message and the required signers from the message header.
func VerifyTransaction(tx *types.Transaction) error {
	if tx == nil {
		return ErrMissingMessage
	}
	if len(tx.Signatures) == 0 {
		return ErrNoSignatures
	}

	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) != required {
		return fmt.Errorf("%w: have %d, header requires %d",
			ErrSignatureCountMismatch, len(tx.Signatures), required)
	}
	if required > len(tx.Message.AccountKeys) {
		return fmt.Errorf("%w: %d signers but %d account keys",
			ErrSignatureCountMismatch, required, len(tx.Message.AccountKeys))
	}

	message := tx.Message.Serialize()
	for i := 0; i < required; i++ {
		signer := tx.Message.AccountKeys[i]
		if !VerifySignature(signer[:], message, tx.Signatures[i][:]) {
			return fmt.Errorf("%w: signer %s (signature index %d)",
				ErrVerificationFailed, signer, i)
		}
	}
	return nil
}
